package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/chatgraph/core"
	"github.com/hupe1980/chatgraph/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	assert.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	// Required only includes non-pointer, non-omitempty exported fields
	req, _ := schema["required"].([]string)
	assert.ElementsMatch(t, []string{"a"}, req)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		// Use []any to mirror possible JSON decoded schema shape
		"required": []any{"x"},
	}

	err := util.ValidateParameters(map[string]any{"x": 5}, schema)
	assert.NoError(t, err)

	err = util.ValidateParameters(map[string]any{}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Equal(t, "x", vErr.Field)
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	err = util.ValidateParameters(map[string]any{"x": "not-int"}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Contains(t, vErr.Message, "expected type integer")
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestValidateParameters_StringSliceRequired(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
		"required": []string{"query"},
	}

	err := util.ValidateParameters(map[string]any{}, schema)
	assert.Error(t, err)

	err = util.ValidateParameters(map[string]any{"query": "hello"}, schema)
	assert.NoError(t, err)
}

// -------------------- FunctionTool Tests --------------------

func echoSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	}
}

func TestFunctionTool_Success(t *testing.T) {
	echo := NewFunctionTool("echo", "Echo the text", echoSchema(),
		func(ctx context.Context, args map[string]any) (*Result, error) {
			return TextResult(args["text"].(string)), nil
		})

	res, err := echo.Call(context.Background(), map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Text)
	assert.Empty(t, res.Sources)
}

func TestFunctionTool_SourcesPropagate(t *testing.T) {
	search := NewFunctionTool("search", "Search documents", echoSchema(),
		func(ctx context.Context, args map[string]any) (*Result, error) {
			return &Result{
				Text:    "found one document",
				Sources: []core.Source{{Title: "Doc", DocumentID: "doc-1"}},
			}, nil
		})

	res, err := search.Call(context.Background(), map[string]any{"text": "q"})
	require.NoError(t, err)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "doc-1", res.Sources[0].DocumentID)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	echo := NewFunctionTool("echo", "Echo the text", echoSchema(),
		func(ctx context.Context, args map[string]any) (*Result, error) {
			return TextResult("unreachable"), nil
		})

	_, err := echo.Call(context.Background(), map[string]any{})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
	assert.Equal(t, "echo", toolErr.Tool)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	boom := NewFunctionTool("boom", "Always fails", echoSchema(),
		func(ctx context.Context, args map[string]any) (*Result, error) {
			return nil, errors.New("backend unavailable")
		})

	_, err := boom.Call(context.Background(), map[string]any{"text": "x"})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Contains(t, toolErr.Message, "backend unavailable")
}

func TestFunctionTool_CustomToolErrorForwarded(t *testing.T) {
	custom := NewFunctionTool("custom", "Returns custom error", echoSchema(),
		func(ctx context.Context, args map[string]any) (*Result, error) {
			return nil, NewToolError("custom", "quota exceeded", "QUOTA")
		})

	_, err := custom.Call(context.Background(), map[string]any{"text": "x"})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "QUOTA", toolErr.Code)
}
