package llm

import (
	"errors"
	"sync"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		category string
		want     ExecutionMode
	}{
		{CategoryReply, ModeInteractive},
		{CategoryAsk, ModeInteractive},
		{CategoryConfirm, ModeInteractive},
		{CategoryThink, ModeAutonomous},
		{CategoryNotify, ModeAutonomous},
		{CategoryUpdate, ModeAutonomous},
		{CategoryAnalyze, ModeAutonomous},
	}
	for _, tt := range tests {
		got, err := Classify(tt.category)
		if err != nil {
			t.Fatalf("Classify(%q): %v", tt.category, err)
		}
		if got != tt.want {
			t.Errorf("Classify(%q)=%v, want %v", tt.category, got, tt.want)
		}
	}
	if len(Categories()) != len(tests) {
		t.Fatalf("Categories() has %d entries, want %d", len(Categories()), len(tests))
	}
}

func TestClassifyInvalid(t *testing.T) {
	for _, category := range []string{"", "shout", "REPLY"} {
		_, err := Classify(category)
		var stateErr *StateError
		if !errors.As(err, &stateErr) {
			t.Fatalf("Classify(%q) err=%v, want *StateError", category, err)
		}
		if stateErr.Category != category {
			t.Fatalf("Category=%q, want %q", stateErr.Category, category)
		}
		if !errors.Is(err, ErrInvalidCategory) {
			t.Fatalf("error does not wrap ErrInvalidCategory")
		}
	}
}

func TestModeMachineTransitions(t *testing.T) {
	m := NewModeMachine()
	if m.Mode() != ModeInteractive {
		t.Fatalf("initial mode=%v", m.Mode())
	}

	steps := []struct {
		category string
		want     ExecutionMode
	}{
		{CategoryThink, ModeAutonomous},
		{CategoryUpdate, ModeAutonomous},
		{CategoryAsk, ModeInteractive},
		{CategoryAnalyze, ModeAutonomous},
		{CategoryReply, ModeInteractive},
	}
	for _, step := range steps {
		got, err := m.Transition(step.category)
		if err != nil {
			t.Fatalf("Transition(%q): %v", step.category, err)
		}
		if got != step.want || m.Mode() != step.want {
			t.Fatalf("after %q mode=%v, want %v", step.category, m.Mode(), step.want)
		}
	}
}

func TestModeMachineInvalidLeavesModeUnchanged(t *testing.T) {
	m := NewModeMachine()
	m.Transition(CategoryThink)

	mode, err := m.Transition("bogus")
	if err == nil {
		t.Fatal("expected error")
	}
	if mode != ModeAutonomous || m.Mode() != ModeAutonomous {
		t.Fatalf("mode changed on invalid category: %v", m.Mode())
	}

	m.Reset()
	if m.Mode() != ModeInteractive {
		t.Fatalf("Reset left mode %v", m.Mode())
	}
}

func TestModeMachineConcurrentAccess(t *testing.T) {
	m := NewModeMachine()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				m.Transition(CategoryThink)
			} else {
				m.Transition(CategoryReply)
			}
			_ = m.Mode()
		}()
	}
	wg.Wait()
	if mode := m.Mode(); mode != ModeInteractive && mode != ModeAutonomous {
		t.Fatalf("unexpected mode %v", mode)
	}
}

func TestExecutionModeString(t *testing.T) {
	if ModeInteractive.String() != "interactive" || ModeAutonomous.String() != "autonomous" {
		t.Fatal("unexpected mode names")
	}
}
