// Package engine runs the agent loop: a two-state machine alternating model
// inference with tool execution until the model answers without requesting
// a tool.
package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rivaldy/secondbrain-go/core"
)

const (
	// DefaultModel is used when no model override is supplied.
	DefaultModel = "claude-sonnet-4-20250514"

	defaultMaxTokens = 4096
	defaultMaxTurns  = 20

	// FallbackResponse is returned when the loop produced neither a store
	// confirmation nor an assistant message.
	FallbackResponse = "Sorry, I could not process your request."

	// toolFailureResponse replaces the output of a tool whose downstream
	// dependency failed. The loop continues as if the tool returned it.
	toolFailureResponse = "Sorry, something went wrong while looking that up. Please try again."
)

// Completer is the slice of the Anthropic client the engine needs. It is
// satisfied by *anthropic.MessageService and by scripted fakes in tests.
type Completer interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Engine executes tools requested by the model.
type Engine struct {
	client   Completer
	registry *ToolRegistry
	guard    Guardrails
	model    string
	maxTurns int
}

// Option configures the engine.
type Option func(*Engine)

// WithGuardrails installs the pre-loop message screen.
func WithGuardrails(g Guardrails) Option {
	return func(e *Engine) { e.guard = g }
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(e *Engine) { e.model = model }
}

// WithMaxTurns overrides the inference turn limit.
func WithMaxTurns(n int) Option {
	return func(e *Engine) { e.maxTurns = n }
}

// New creates an engine over the given client and tool registry.
func New(client Completer, registry *ToolRegistry, opts ...Option) *Engine {
	e := &Engine{
		client:   client,
		registry: registry,
		model:    DefaultModel,
		maxTurns: defaultMaxTurns,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's tool registry.
func (e *Engine) Registry() *ToolRegistry {
	return e.registry
}

// Input is one invocation of the loop. History is caller-supplied every
// time; the engine keeps no conversation state between calls.
type Input struct {
	// UserMessage is the new message to process.
	UserMessage string

	// History is the prior conversation. Only user and assistant turns are
	// consumed.
	History []core.Message

	// SystemPrompt is the fixed behavioral policy. It is supplied on every
	// inference step, not only the first, so it cannot be evicted or
	// overridden by accumulated messages.
	SystemPrompt string

	// MaxTokens caps the response size (default 4096).
	MaxTokens int64
}

// execution records one tool call in loop order.
type execution struct {
	tool   string
	result core.Result
}

// Run executes the loop and returns the final answer text.
//
// Answer extraction: a store confirmation (core.KindStored) is surfaced
// verbatim, in tool-call order, ahead of anything the model said about it;
// otherwise the most recent assistant text wins; otherwise the fixed
// fallback.
func (e *Engine) Run(ctx context.Context, input *Input) (string, error) {
	if e.guard != nil {
		if allowed, refusal := e.guard.Check(input.UserMessage); !allowed {
			log.Printf("[ENGINE] Guardrail refused message")
			return refusal, nil
		}
	}

	maxTokens := input.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	messages := historyToMessages(input.History)
	if input.UserMessage != "" {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(input.UserMessage)))
	}

	apiTools := e.registry.ToAPITools()

	var executions []execution
	var assistantTexts []string
	finalText := ""

	for turn := 0; turn < e.maxTurns; turn++ {
		if ctx.Err() != nil {
			return "", fmt.Errorf("agent loop: %w", ctx.Err())
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(e.model),
			MaxTokens: maxTokens,
			Messages:  messages,
			System: []anthropic.TextBlockParam{
				{Text: input.SystemPrompt},
			},
		}
		if len(apiTools) > 0 {
			params.Tools = apiTools
		}

		resp, err := e.client.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("model inference: %w", err)
		}

		var textResponse string
		var toolResults []anthropic.ContentBlockParamUnion

		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				textResponse += block.Text

			case "tool_use":
				res := e.invokeTool(ctx, block.Name, block.Input)
				executions = append(executions, execution{tool: block.Name, result: res})
				toolResults = append(toolResults,
					anthropic.NewToolResultBlock(block.ID, res.Text, res.Kind == core.KindError))
			}
		}

		if textResponse != "" {
			assistantTexts = append(assistantTexts, textResponse)
		}

		// No pending tool calls: this assistant message is the answer.
		if len(toolResults) == 0 {
			finalText = textResponse
			break
		}

		messages = append(messages, assistantParam(resp))
		messages = append(messages, anthropic.NewUserMessage(toolResults...))
	}

	// Store confirmations are surfaced exactly as the tool produced them.
	for _, exec := range executions {
		if exec.result.Kind == core.KindStored {
			return exec.result.Text, nil
		}
	}
	if finalText != "" {
		return finalText, nil
	}
	for i := len(assistantTexts) - 1; i >= 0; i-- {
		if assistantTexts[i] != "" {
			return assistantTexts[i], nil
		}
	}
	return FallbackResponse, nil
}

// invokeTool executes one requested tool, converting unknown tools and
// downstream failures to user-facing result text so the loop never aborts.
func (e *Engine) invokeTool(ctx context.Context, name string, input []byte) core.Result {
	tool, ok := e.registry.Get(name)
	if !ok {
		log.Printf("[ENGINE] Model requested unknown tool %q", name)
		return core.Result{Kind: core.KindError, Text: fmt.Sprintf("unknown tool: %s", name)}
	}

	res, err := tool.Invoke(ctx, input)
	if err != nil {
		log.Printf("[ENGINE] Tool %s failed: %v", name, err)
		return core.Result{Kind: core.KindError, Text: toolFailureResponse}
	}
	return res
}

// historyToMessages rebuilds conversation turns from caller-supplied
// history, consuming only user and assistant roles.
func historyToMessages(history []core.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, msg := range history {
		switch msg.Role {
		case core.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case core.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return messages
}

// assistantParam converts a model response into an assistant message param,
// preserving text and tool_use blocks.
func assistantParam(resp *anthropic.Message) anthropic.MessageParam {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(resp.Content))
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			blocks = append(blocks, anthropic.NewTextBlock(block.Text))
		case "tool_use":
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    block.ID,
					Name:  block.Name,
					Input: block.Input,
				},
			})
		}
	}
	return anthropic.NewAssistantMessage(blocks...)
}
