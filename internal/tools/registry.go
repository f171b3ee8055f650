package tools

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pandora-agent/pandora/internal/llm"
)

// Deps carries what tools need from the rest of the program.
type Deps struct {
	// Provider serves edit_file, search_through_web and generate_plan.
	// Those tools are skipped when it is nil.
	Provider llm.Provider
	// Model is the default model for provider-backed tools.
	Model string
	// Out receives print_message output. Defaults to stdout.
	Out io.Writer
	// PrintMode is the default print_message mode: rich or json.
	PrintMode string
}

// LocalToolRegistry builds the enabled local tools.
type LocalToolRegistry struct {
	deps  Deps
	tools map[string]llm.Tool
}

// NewLocalToolRegistry creates tools for the enabled names; an empty list
// enables every tool. print_message is always registered since the
// execution mode depends on it.
func NewLocalToolRegistry(enabled []string, deps Deps) (*LocalToolRegistry, error) {
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.PrintMode == "" {
		deps.PrintMode = PrintModeRich
	}

	r := &LocalToolRegistry{deps: deps, tools: make(map[string]llm.Tool)}

	names := enabled
	if len(names) == 0 {
		names = AllToolNames()
	}
	if !containsString(names, PrintMessageToolName) {
		names = append([]string{PrintMessageToolName}, names...)
	}
	for _, name := range names {
		if err := r.registerTool(name); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *LocalToolRegistry) registerTool(specName string) error {
	if !ValidToolName(specName) {
		return fmt.Errorf("unknown tool: %s", specName)
	}
	if needsProvider(specName) && r.deps.Provider == nil {
		return nil
	}

	var tool llm.Tool
	switch specName {
	case PrintMessageToolName:
		tool = NewPrintMessageTool(r.deps.Out, r.deps.PrintMode)
	case ReadFileToolName:
		tool = NewReadFileTool()
	case CreateFileToolName:
		tool = NewCreateFileTool()
	case ApplyRegexToolName:
		tool = NewApplyRegexTool()
	case ExecuteBashToolName:
		tool = NewExecuteBashTool()
	case EditFileToolName:
		tool = NewEditFileTool(r.deps.Provider, r.deps.Model)
	case WebSearchToolName:
		tool = NewWebSearchTool(r.deps.Provider)
	case GeneratePlanToolName:
		tool = NewGeneratePlanTool(r.deps.Provider, r.deps.Model)
	default:
		return fmt.Errorf("unimplemented tool: %s", specName)
	}

	r.tools[specName] = tool
	return nil
}

// RegisterWith adds every tool to an engine tool registry.
func (r *LocalToolRegistry) RegisterWith(registry *llm.ToolRegistry) {
	for _, tool := range r.tools {
		registry.Register(tool)
	}
}

// Get returns a tool by spec name.
func (r *LocalToolRegistry) Get(name string) (llm.Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names, sorted.
func (r *LocalToolRegistry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
