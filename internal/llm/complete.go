package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Complete runs a single request without tools and returns the streamed text.
func Complete(ctx context.Context, provider Provider, req Request) (string, error) {
	req.Tools = nil
	req.ToolChoice = ToolChoice{}
	req.ParallelToolCalls = false

	stream, err := provider.Stream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("start stream: %w", err)
	}
	defer stream.Close()

	var text strings.Builder
	for {
		event, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch event.Type {
		case EventTextDelta:
			text.WriteString(event.Text)
		case EventError:
			if event.Err != nil {
				return "", event.Err
			}
		}
	}
	return text.String(), nil
}
