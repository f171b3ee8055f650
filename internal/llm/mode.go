package llm

import (
	"errors"
	"fmt"
	"sync"
)

// ExecutionMode says whether the loop waits for the user between turns.
type ExecutionMode int

const (
	ModeInteractive ExecutionMode = iota
	ModeAutonomous
)

func (m ExecutionMode) String() string {
	switch m {
	case ModeInteractive:
		return "interactive"
	case ModeAutonomous:
		return "autonomous"
	}
	return fmt.Sprintf("ExecutionMode(%d)", int(m))
}

// Message categories accepted by the communication action.
const (
	CategoryThink   = "think"
	CategoryAsk     = "ask"
	CategoryConfirm = "confirm"
	CategoryAnalyze = "analyze"
	CategoryNotify  = "notify"
	CategoryUpdate  = "update"
	CategoryReply   = "reply"
)

// Categories lists every accepted message category.
func Categories() []string {
	return []string{
		CategoryThink, CategoryAsk, CategoryConfirm, CategoryAnalyze,
		CategoryNotify, CategoryUpdate, CategoryReply,
	}
}

// ErrInvalidCategory is wrapped by StateError.
var ErrInvalidCategory = errors.New("invalid message type")

// StateError reports a communication action with an unknown category.
type StateError struct {
	Category string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%v: %q", ErrInvalidCategory, e.Category)
}

func (e *StateError) Unwrap() error { return ErrInvalidCategory }

// Classify maps a message category to the mode it leads to. Terminating
// categories hand control back to the user; continuing ones keep the
// agent running.
func Classify(category string) (ExecutionMode, error) {
	switch category {
	case CategoryReply, CategoryAsk, CategoryConfirm:
		return ModeInteractive, nil
	case CategoryThink, CategoryNotify, CategoryUpdate, CategoryAnalyze:
		return ModeAutonomous, nil
	}
	return ModeInteractive, &StateError{Category: category}
}

// ModeMachine holds the engine's execution mode.
type ModeMachine struct {
	mu   sync.RWMutex
	mode ExecutionMode
}

// NewModeMachine starts in interactive mode.
func NewModeMachine() *ModeMachine {
	return &ModeMachine{mode: ModeInteractive}
}

// Mode returns the current mode.
func (m *ModeMachine) Mode() ExecutionMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// Transition applies a message category. An unknown category returns a
// *StateError and leaves the mode unchanged.
func (m *ModeMachine) Transition(category string) (ExecutionMode, error) {
	next, err := Classify(category)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		return m.mode, err
	}
	m.mode = next
	return next, nil
}

// Reset returns to interactive mode.
func (m *ModeMachine) Reset() {
	m.mu.Lock()
	m.mode = ModeInteractive
	m.mu.Unlock()
}
