// Package prompt builds the agent's system prompt.
package prompt

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// SystemOptions describes the session the prompt is written for.
type SystemOptions struct {
	// Instructions replaces the built-in role section when set.
	Instructions string
	// Servers lists connected external tool servers.
	Servers []string
	// Now is used for the date line. Defaults to time.Now.
	Now time.Time
}

const defaultInstructions = `You are Pandora, an autonomous assistant running in the user's terminal.
You work by calling tools: reading and changing files, running shell commands,
searching the web, planning, and calling tools offered by external servers.`

const communicationRules = `Communication:
- Every message to the user goes through the print_message tool. Plain text replies are not shown.
- Choose message_type by what should happen next:
  - think, analyze, notify, update: you keep working without waiting for the user.
  - reply, ask, confirm: you stop and wait for the user's next input.
- Start a task with print_message (think or notify) saying what you are about to do.
- End a task with print_message (reply) giving the result, or ask/confirm when you need the user.
- Keep messages short. Put details in tool calls, not in messages.`

const toolRules = `Tools:
- Tools named mcp__<server>__<tool> are provided by external servers. Call them with exactly that name.
- Independent tool calls may be issued together; they run concurrently.
- A failed tool call returns an error result. Read it and recover instead of repeating the same call.
- Prefer read_file before edit_file or apply_regex, and check command output before reporting success.`

// System returns the system prompt for an agent session.
func System(opts SystemOptions) string {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	cwd, _ := os.Getwd()

	var b strings.Builder
	instructions := strings.TrimSpace(opts.Instructions)
	if instructions == "" {
		instructions = defaultInstructions
	}
	b.WriteString(instructions)
	b.WriteString("\n\n")
	b.WriteString(communicationRules)
	b.WriteString("\n\n")
	b.WriteString(toolRules)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, `Context:
- Date: %s
- Operating System: %s
- Architecture: %s
- Current Directory: %s`, now.Format("2006-01-02"), runtime.GOOS, runtime.GOARCH, cwd)

	if len(opts.Servers) > 0 {
		fmt.Fprintf(&b, "\n- Connected tool servers: %s", strings.Join(opts.Servers, ", "))
	}
	return b.String()
}
