package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/shared"
)

// OpenAIProvider implements Provider against any OpenAI chat-completions
// compatible endpoint (OpenAI itself, OpenRouter, or a self-hosted
// proxy), grounded on the teacher's internal/llm/openai/client.go
// extra-params idiom: provider-specific fields the typed SDK doesn't
// expose (here, the unified "reasoning" object) travel through
// params.SetExtraFields rather than a forked request type.
type OpenAIProvider struct {
	client openai.Client
}

// NewOpenAIProvider builds a provider pointed at baseURL (empty uses the
// SDK's default OpenAI endpoint).
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{client: openai.NewClient(opts...)}
}

func (p *OpenAIProvider) Chat(ctx context.Context, req Request) (Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: adaptMessages(req.Messages),
	}
	if req.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = param.NewOpt(*req.TopP)
	}
	if req.FrequencyPenalty != nil {
		params.FrequencyPenalty = param.NewOpt(*req.FrequencyPenalty)
	}
	if req.PresencePenalty != nil {
		params.PresencePenalty = param.NewOpt(*req.PresencePenalty)
	}
	if req.MaxTokens != nil {
		if isThinkingModel(req.Model) {
			params.MaxCompletionTokens = param.NewOpt(int64(*req.MaxTokens))
		} else {
			params.MaxTokens = param.NewOpt(int64(*req.MaxTokens))
		}
	}
	if req.Seed != nil {
		params.Seed = param.NewOpt(int64(*req.Seed))
	}
	extra := map[string]any{}
	if len(req.Stop) > 0 {
		extra["stop"] = req.Stop
	}
	if req.ResponseFormat != "" {
		extra["response_format"] = map[string]string{"type": req.ResponseFormat}
	}
	if req.Reasoning.Effort != "" || req.Reasoning.MaxTokens != nil || req.Reasoning.Enabled {
		r := map[string]any{}
		if req.Reasoning.Effort != "" {
			r["effort"] = req.Reasoning.Effort
		}
		if req.Reasoning.MaxTokens != nil {
			r["max_tokens"] = *req.Reasoning.MaxTokens
		}
		r["exclude"] = req.Reasoning.Exclude
		r["enabled"] = req.Reasoning.Enabled
		extra["reasoning"] = r
	}
	if req.TopK != nil {
		extra["top_k"] = *req.TopK
	}
	if req.RepetitionPenalty != nil {
		extra["repetition_penalty"] = *req.RepetitionPenalty
	}
	if req.MinP != nil {
		extra["min_p"] = *req.MinP
	}
	if req.TopA != nil {
		extra["top_a"] = *req.TopA
	}
	if len(req.LogitBias) > 0 {
		extra["logit_bias"] = req.LogitBias
	}
	if len(extra) > 0 {
		params.SetExtraFields(extra)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("openai chat completion: no choices returned")
	}

	choice := resp.Choices[0]
	reasoningText, reasoningDetails := extractReasoningFields(choice.Message.RawJSON())
	content := InterceptReasoning(choice.Message.Content, reasoningText, reasoningDetails)

	return Response{
		Content:          content,
		ReasoningText:    reasoningText,
		ReasoningTokens:  int(resp.Usage.CompletionTokensDetails.ReasoningTokens),
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func adaptMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		case "tool":
			out = append(out, openai.ToolMessage(m.Content, m.ToolID))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// isThinkingModel matches the "o<int>-*" family (o1-pro, o4-mini, ...)
// that rejects the legacy max_tokens parameter in favor of
// max_completion_tokens.
func isThinkingModel(model string) bool {
	model = strings.ToLower(model)
	if !strings.HasPrefix(model, "o") {
		return false
	}
	rest := model[1:]
	i := 0
	for ; i < len(rest) && rest[i] >= '0' && rest[i] <= '9'; i++ {
	}
	return i > 0 && i < len(rest) && rest[i] == '-'
}

// rawReasoningMessage mirrors the fields chat-completion converters
// silently drop from the typed SDK response: a top-level "reasoning"
// string, and/or a "reasoning_details" array carrying per-block text or
// summary fields (the shape varies by upstream provider/proxy).
type rawReasoningMessage struct {
	Reasoning        string `json:"reasoning"`
	ReasoningDetails []struct {
		Text    string `json:"text"`
		Summary string `json:"summary"`
	} `json:"reasoning_details"`
}

// extractReasoningFields pulls the unified "reasoning" string and
// "reasoning_details[].text"/".summary" entries out of a chat message's
// raw JSON, since the typed SDK response drops them (spec §4.4/§9: this
// is exactly the gap InterceptReasoning exists to close).
func extractReasoningFields(raw string) (string, []string) {
	var m rawReasoningMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return "", nil
	}
	details := make([]string, 0, len(m.ReasoningDetails))
	for _, d := range m.ReasoningDetails {
		if d.Text != "" {
			details = append(details, d.Text)
		} else if d.Summary != "" {
			details = append(details, d.Summary)
		}
	}
	return m.Reasoning, details
}
