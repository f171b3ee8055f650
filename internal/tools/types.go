// Package tools provides the built-in local tools offered to the model
// alongside remote tool-server tools.
package tools

import "fmt"

// ToolErrorType classifies tool failures so the model can react to them.
type ToolErrorType string

const (
	ErrFileNotFound      ToolErrorType = "FILE_NOT_FOUND"
	ErrInvalidParams     ToolErrorType = "INVALID_PARAMS"
	ErrExecutionFailed   ToolErrorType = "EXECUTION_FAILED"
	ErrBinaryFile        ToolErrorType = "BINARY_FILE"
	ErrFileTooLarge      ToolErrorType = "FILE_TOO_LARGE"
	ErrUnsupportedFormat ToolErrorType = "UNSUPPORTED_FORMAT"
	ErrTimeout           ToolErrorType = "TIMEOUT"
)

// ToolError provides structured error information.
type ToolError struct {
	Type    ToolErrorType `json:"type"`
	Message string        `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewToolError creates a new ToolError.
func NewToolError(errType ToolErrorType, message string) *ToolError {
	return &ToolError{Type: errType, Message: message}
}

// NewToolErrorf creates a new ToolError with formatted message.
func NewToolErrorf(errType ToolErrorType, format string, args ...any) *ToolError {
	return &ToolError{Type: errType, Message: fmt.Sprintf(format, args...)}
}

// Tool specification names
const (
	PrintMessageToolName = "print_message"
	ReadFileToolName     = "read_file"
	CreateFileToolName   = "create_file"
	EditFileToolName     = "edit_file"
	ApplyRegexToolName   = "apply_regex"
	ExecuteBashToolName  = "execute_bash"
	WebSearchToolName    = "search_through_web"
	GeneratePlanToolName = "generate_plan"
)

// AllToolNames returns all valid tool spec names.
func AllToolNames() []string {
	return []string{
		PrintMessageToolName,
		ReadFileToolName,
		CreateFileToolName,
		EditFileToolName,
		ApplyRegexToolName,
		ExecuteBashToolName,
		WebSearchToolName,
		GeneratePlanToolName,
	}
}

var validToolNames = func() map[string]bool {
	m := make(map[string]bool)
	for _, name := range AllToolNames() {
		m[name] = true
	}
	return m
}()

// ValidToolName checks if a name is a valid tool spec name.
func ValidToolName(name string) bool {
	return validToolNames[name]
}

// needsProvider reports whether a tool makes its own model requests.
func needsProvider(name string) bool {
	switch name {
	case EditFileToolName, WebSearchToolName, GeneratePlanToolName:
		return true
	}
	return false
}
