package mcp

import (
	"context"
	"maps"
	"sync"
)

// StartupBarrier releases waiters once every expected worker has reported
// its startup outcome, success or failure.
type StartupBarrier struct {
	mu       sync.Mutex
	expected int
	outcomes map[string]error
	done     chan struct{}
}

// NewStartupBarrier creates a barrier expecting n distinct reports.
func NewStartupBarrier(n int) *StartupBarrier {
	b := &StartupBarrier{
		expected: n,
		outcomes: make(map[string]error, n),
		done:     make(chan struct{}),
	}
	if n <= 0 {
		close(b.done)
	}
	return b
}

// Report records the outcome for name. Only the first report per name
// counts; it returns false for duplicates.
func (b *StartupBarrier) Report(name string, err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, seen := b.outcomes[name]; seen {
		return false
	}
	b.outcomes[name] = err
	if len(b.outcomes) == b.expected {
		close(b.done)
	}
	return true
}

// Done is closed once all expected reports have arrived.
func (b *StartupBarrier) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until every expected report arrived or ctx is done.
func (b *StartupBarrier) Wait(ctx context.Context) (map[string]error, error) {
	select {
	case <-b.done:
		return b.Outcomes(), nil
	case <-ctx.Done():
		return b.Outcomes(), ctx.Err()
	}
}

// Outcomes returns a snapshot of the reports received so far.
func (b *StartupBarrier) Outcomes() map[string]error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.outcomes)
}
