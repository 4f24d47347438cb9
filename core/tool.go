package core

import (
	"context"
	"encoding/json"
)

// ResultKind classifies a tool's output so the agent loop can dispatch on it
// instead of sniffing the text for marker substrings.
type ResultKind int

const (
	// KindAnswer is a normal tool result, fed back to the model for phrasing.
	KindAnswer ResultKind = iota

	// KindStored is a store confirmation. The loop must surface this text to
	// the user verbatim, never paraphrased by the model.
	KindStored

	// KindError is a failure already converted to a user-facing string.
	KindError
)

// Result is a tool's tagged output: a kind plus the text payload.
type Result struct {
	Kind ResultKind
	Text string
}

// Tool is a named, model-invocable operation with a text contract.
// The natural-language description is load-bearing: it is the routing logic
// the model uses to decide which tool to call.
type Tool interface {
	Name() string
	Description() string

	// InputSchema returns the JSON Schema for the tool's arguments,
	// as built by the tools package helpers.
	InputSchema() map[string]interface{}

	// Invoke executes the tool. A returned error is a downstream-dependency
	// failure; the loop converts it to a fixed user-facing string and keeps
	// going. User-input rejections are returned as descriptive Result text.
	Invoke(ctx context.Context, input json.RawMessage) (Result, error)
}

// ToolDefinition describes a tool declaratively.
type ToolDefinition struct {
	ToolName        string
	ToolDescription string
	Schema          map[string]interface{}
}

// FuncTool adapts a ToolDefinition plus a function into a Tool.
type FuncTool struct {
	def ToolDefinition
	fn  func(ctx context.Context, input json.RawMessage) (Result, error)
}

// NewFuncTool creates a Tool backed by fn.
func NewFuncTool(def ToolDefinition, fn func(ctx context.Context, input json.RawMessage) (Result, error)) *FuncTool {
	return &FuncTool{def: def, fn: fn}
}

func (t *FuncTool) Name() string                        { return t.def.ToolName }
func (t *FuncTool) Description() string                 { return t.def.ToolDescription }
func (t *FuncTool) InputSchema() map[string]interface{} { return t.def.Schema }

func (t *FuncTool) Invoke(ctx context.Context, input json.RawMessage) (Result, error) {
	return t.fn(ctx, input)
}
