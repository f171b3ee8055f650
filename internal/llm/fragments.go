package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ToolCallFragment is one streamed piece of a tool call. The name arrives
// only on the first fragment for an index; later fragments carry argument
// text.
type ToolCallFragment struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// ArgumentParseError reports a tool call whose accumulated argument text
// is not a JSON object.
type ArgumentParseError struct {
	Index int
	Name  string
	Text  string
	Err   error
}

func (e *ArgumentParseError) Error() string {
	return fmt.Sprintf("invalid arguments for %s (call %d): %v", e.Name, e.Index, e.Err)
}

func (e *ArgumentParseError) Unwrap() error { return e.Err }

// AssembledCall is a sealed tool call. Err is set when its arguments could
// not be parsed; the call is still reported so it can receive a result.
type AssembledCall struct {
	Index int
	Call  ToolCall
	Err   error
}

// errAggregatorSealed is returned for fragments arriving after Seal.
var errAggregatorSealed = errors.New("fragment aggregator already sealed")

type pendingToolCall struct {
	id   string
	name string
	args strings.Builder
}

// FragmentAggregator reassembles tool calls from fragments keyed by index.
// It is used by a single turn and is not safe for concurrent use.
type FragmentAggregator struct {
	byIndex map[int]*pendingToolCall
	order   []int
	sealed  bool
}

// NewFragmentAggregator creates an empty aggregator.
func NewFragmentAggregator() *FragmentAggregator {
	return &FragmentAggregator{byIndex: make(map[int]*pendingToolCall)}
}

// OnFragment records a fragment given as index, name and argument chunk.
func (a *FragmentAggregator) OnFragment(index int, name, chunk string) error {
	return a.Add(ToolCallFragment{Index: index, Name: name, Arguments: chunk})
}

// Add records a fragment. The first fragment for an index creates the call
// and fixes its name; later fragments only append argument text.
func (a *FragmentAggregator) Add(f ToolCallFragment) error {
	if a.sealed {
		return errAggregatorSealed
	}
	state, ok := a.byIndex[f.Index]
	if !ok {
		state = &pendingToolCall{name: f.Name}
		a.byIndex[f.Index] = state
		a.order = append(a.order, f.Index)
	}
	if state.id == "" && f.ID != "" {
		state.id = f.ID
	}
	if f.Arguments != "" {
		state.args.WriteString(f.Arguments)
	}
	return nil
}

// Len returns the number of distinct calls seen so far.
func (a *FragmentAggregator) Len() int {
	return len(a.order)
}

// Seal finishes the turn and returns every call in index order.
func (a *FragmentAggregator) Seal() []AssembledCall {
	a.sealed = true
	if len(a.order) == 0 {
		return nil
	}
	sort.Ints(a.order)
	calls := make([]AssembledCall, 0, len(a.order))
	for n, idx := range a.order {
		state := a.byIndex[idx]
		id := state.id
		if id == "" {
			id = fmt.Sprintf("toolcall-%d", n+1)
		}
		call := AssembledCall{
			Index: idx,
			Call:  ToolCall{ID: id, Name: state.name},
		}
		args, err := parseArguments(state.args.String())
		if err != nil {
			call.Err = &ArgumentParseError{Index: idx, Name: state.name, Text: state.args.String(), Err: err}
			call.Call.Arguments = json.RawMessage(state.args.String())
		} else {
			call.Call.Arguments = args
		}
		calls = append(calls, call)
	}
	return calls
}

// parseArguments validates that text is a JSON object. Whitespace-only
// text is treated as an empty object.
func parseArguments(text string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 {
		return json.RawMessage("{}"), nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("arguments must be a JSON object, got null")
	}
	return json.RawMessage(trimmed), nil
}
