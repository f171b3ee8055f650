package prompt

import (
	"strings"
	"testing"
	"time"
)

func TestSystem(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		result := System(SystemOptions{Now: time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)})
		if !strings.Contains(result, "You are Pandora") {
			t.Error("missing default instructions")
		}
		if !strings.Contains(result, "print_message") {
			t.Error("missing communication rules")
		}
		if !strings.Contains(result, "mcp__<server>__<tool>") {
			t.Error("missing remote tool naming rule")
		}
		if !strings.Contains(result, "Date: 2025-03-09") {
			t.Error("missing date")
		}
		if strings.Contains(result, "Connected tool servers") {
			t.Error("server line present without servers")
		}
	})

	t.Run("custom instructions and servers", func(t *testing.T) {
		result := System(SystemOptions{
			Instructions: "You review pull requests.",
			Servers:      []string{"github", "fs"},
		})
		if !strings.HasPrefix(result, "You review pull requests.") {
			t.Errorf("instructions not first: %q", result[:40])
		}
		if strings.Contains(result, "You are Pandora") {
			t.Error("default instructions not replaced")
		}
		if !strings.Contains(result, "Connected tool servers: github, fs") {
			t.Error("missing servers")
		}
		if !strings.Contains(result, "print_message") {
			t.Error("communication rules dropped with custom instructions")
		}
	})
}
