package llm

import (
	"context"
	"errors"
	"testing"
)

func TestCompleteCollectsText(t *testing.T) {
	provider := &fakeProvider{script: func(call int, req Request) ([]Event, error) {
		return []Event{
			{Type: EventTextDelta, Text: "step one, "},
			{Type: EventTextDelta, Text: "step two"},
			done(StopEndTurn),
		}, nil
	}}
	text, err := Complete(context.Background(), provider, Request{
		Messages:   []Message{UserText("plan")},
		Tools:      []ToolSpec{{Name: "ignored"}},
		ToolChoice: ToolChoice{Mode: ToolChoiceRequired},
	})
	if err != nil {
		t.Fatal(err)
	}
	if text != "step one, step two" {
		t.Fatalf("text=%q", text)
	}
	if req := provider.calls[0]; len(req.Tools) != 0 || req.ToolChoice.Mode != "" {
		t.Fatalf("tools leaked into completion request: %+v", req)
	}
}

func TestCompleteReturnsStreamError(t *testing.T) {
	provider := &fakeProvider{script: func(call int, req Request) ([]Event, error) {
		return []Event{{Type: EventError, Err: errors.New("quota exceeded")}}, nil
	}}
	if _, err := Complete(context.Background(), provider, Request{}); err == nil {
		t.Fatal("expected error")
	}
}
