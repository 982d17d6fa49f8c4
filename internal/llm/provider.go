// Package llm is the C4 inference worker's provider abstraction: a
// portable Message/ToolCall shape plus a Provider interface implemented
// per model family, kept close to the teacher's internal/llm/provider.go
// shape but narrowed to what the inference pipeline actually needs.
package llm

import (
	"context"
	"encoding/json"
)

// ToolCall is a single function invocation requested by the model.
type ToolCall struct {
	Name string
	Args json.RawMessage
	ID   string
}

// Message is a portable chat message exchanged with any provider.
// The provider adapters in this package do not set Reasoning:
// InterceptReasoning carries API-level reasoning inside Content as
// <reasoning> tags, which PostProcess then splits back out.
type Message struct {
	Role      string // "system" | "user" | "assistant" | "tool"
	Content   string
	ToolID    string
	ToolCalls []ToolCall
	Reasoning string
}

// ReasoningRequest carries the resolved reasoning knobs translated into
// provider-native parameters by each adapter.
type ReasoningRequest struct {
	Effort    string
	MaxTokens *int
	Exclude   bool
	Enabled   bool
}

// Request is the provider-agnostic generation request built from a
// cascade.Resolved bundle and the composed message list.
type Request struct {
	Model             string
	Messages          []Message
	Temperature       *float64
	TopP              *float64
	TopK              *float64
	FrequencyPenalty  *float64
	PresencePenalty   *float64
	RepetitionPenalty *float64
	MinP              *float64
	TopA              *float64
	Seed              *int
	MaxTokens         *int
	Stop              []string
	LogitBias         map[string]float64
	ResponseFormat    string
	Reasoning         ReasoningRequest
}

// Response is the provider-agnostic completion result, prior to
// inline-tag post-processing.
type Response struct {
	Content          string
	ReasoningText    string
	ReasoningTokens  int
	PromptTokens     int
	CompletionTokens int
}

// Provider is implemented once per model family (OpenAI-shape, Anthropic,
// Gemini). Chat is the only entry point the spec requires; streaming
// delivery is a C1 chunking concern layered on top of the final content,
// not a distinct provider code path, since the spec's reasoning/tag
// post-processing needs the full response before it can run.
type Provider interface {
	Chat(ctx context.Context, req Request) (Response, error)
}
