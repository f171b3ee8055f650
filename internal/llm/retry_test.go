package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

// drain collects events until EOF or error.
func drain(t *testing.T, stream Stream) ([]Event, error) {
	t.Helper()
	defer stream.Close()
	var events []Event
	for {
		event, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
}

func testRetryConfig(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestRetryProviderRetriesTransientErrors(t *testing.T) {
	inner := &fakeProvider{script: func(call int, req Request) ([]Event, error) {
		if call == 0 {
			return nil, errors.New("429 Too Many Requests")
		}
		return []Event{{Type: EventTextDelta, Text: "ok"}, done(StopEndTurn)}, nil
	}}
	stream, err := WrapWithRetry(inner, testRetryConfig(3)).Stream(context.Background(), Request{})
	if err != nil {
		t.Fatal(err)
	}
	events, err := drain(t, stream)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if inner.callCount() != 2 {
		t.Fatalf("inner called %d times, want 2", inner.callCount())
	}
	if events[0].Type != EventRetry || events[0].RetryAttempt != 1 || events[0].RetryMaxAttempts != 3 {
		t.Fatalf("first event=%+v, want retry", events[0])
	}
	if events[1].Text != "ok" {
		t.Fatalf("events=%+v", events)
	}
}

func TestRetryProviderStopsOnPermanentError(t *testing.T) {
	inner := &fakeProvider{script: func(call int, req Request) ([]Event, error) {
		return nil, errors.New("401 invalid api key")
	}}
	stream, _ := WrapWithRetry(inner, testRetryConfig(3)).Stream(context.Background(), Request{})
	if _, err := drain(t, stream); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("err=%v", err)
	}
	if inner.callCount() != 1 {
		t.Fatalf("inner called %d times, want 1", inner.callCount())
	}
}

func TestRetryProviderDoesNotReplayForwardedOutput(t *testing.T) {
	inner := &fakeProvider{script: func(call int, req Request) ([]Event, error) {
		return []Event{
			{Type: EventTextDelta, Text: "partial"},
			{Type: EventError, Err: errors.New("503 service unavailable")},
		}, nil
	}}
	stream, _ := WrapWithRetry(inner, testRetryConfig(3)).Stream(context.Background(), Request{})
	events, err := drain(t, stream)
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.callCount() != 1 {
		t.Fatalf("inner called %d times after forwarding output", inner.callCount())
	}
	if len(events) != 1 || events[0].Text != "partial" {
		t.Fatalf("events=%+v", events)
	}
}

func TestRetryProviderGivesUp(t *testing.T) {
	inner := &fakeProvider{script: func(call int, req Request) ([]Event, error) {
		return nil, errors.New("connection reset by peer")
	}}
	stream, _ := WrapWithRetry(inner, testRetryConfig(2)).Stream(context.Background(), Request{})
	if _, err := drain(t, stream); err == nil {
		t.Fatal("expected error")
	}
	if inner.callCount() != 2 {
		t.Fatalf("inner called %d times, want 2", inner.callCount())
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  string
		want bool
	}{
		{"429 Too Many Requests", true},
		{"server overloaded", true},
		{"dial tcp: connection refused", true},
		{"context deadline exceeded", true},
		{"400 bad request", false},
		{"invalid message type", false},
	}
	for _, tt := range tests {
		if got := isRetryable(errors.New(tt.err)); got != tt.want {
			t.Errorf("isRetryable(%q)=%v, want %v", tt.err, got, tt.want)
		}
	}
	if isRetryable(nil) {
		t.Error("nil error is retryable")
	}
}

func TestCalculateBackoff(t *testing.T) {
	r := &RetryProvider{config: RetryConfig{MaxAttempts: 5, BaseBackoff: time.Second, MaxBackoff: 10 * time.Second}}

	if got := r.calculateBackoff(1, errors.New("rate limited, retry-after: 3")); got != 3*time.Second {
		t.Fatalf("retry-after backoff=%v, want 3s", got)
	}
	if got := r.calculateBackoff(1, errors.New("Retry-After: 120")); got != 10*time.Second {
		t.Fatalf("capped backoff=%v, want 10s", got)
	}
	got := r.calculateBackoff(3, errors.New("503"))
	if got < 3*time.Second || got > 5*time.Second {
		t.Fatalf("exponential backoff=%v, want 4s +/- 25%%", got)
	}
}
