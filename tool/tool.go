// Package tool implements the function / tool calling subsystem that lets the
// chat pipeline invoke structured capabilities (knowledge base search, archive
// lookups, history search) with schema validated arguments, consistent error
// handling and rich metadata for LLM guidance.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/internal/util"
)

// Result is the structured outcome of a tool invocation. Text is what the
// model sees as the tool message content; Sources carries any documents the
// tool consulted so the pipeline can attribute citations without the tool
// mutating shared state.
type Result struct {
	Text    string        `json:"text"`
	Sources []core.Source `json:"sources,omitempty"`
}

// TextResult wraps a plain string in a Result with no sources.
func TextResult(text string) *Result {
	return &Result{Text: text}
}

// Tool defines the interface for extending the chat pipeline with external functions.
//
// Tools are registered with the tool loop to enable function calling, allowing
// the model to perform actions beyond text generation such as knowledge base
// retrieval, archive lookups, or any other programmatic operations.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
//   - Follow consistent naming conventions
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should be descriptive and follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// This schema is used for parameter validation and LLM function calling.
	Parameters() map[string]interface{}

	// Call executes the tool with structured arguments.
	// Arguments are parsed from JSON and validated against the tool's schema.
	Call(ctx context.Context, args map[string]interface{}) (*Result, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
