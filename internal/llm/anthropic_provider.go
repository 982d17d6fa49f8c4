package llm

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultMaxTokens int64 = 4096

// anthropicThinkingBudget is the minimum budget Anthropic enforces for
// extended thinking; max_tokens must exceed it.
const anthropicThinkingBudget int64 = 1024

// AnthropicProvider implements Provider against the Claude Messages API,
// grounded on the teacher's internal/llm/anthropic/client.go, narrowed to
// the inference worker's Chat-only surface (no tool calling, no
// streaming: spec's personas never invoke tools).
type AnthropicProvider struct {
	sdk   anthropic.Client
	model string
}

func NewAnthropicProvider(apiKey, baseURL, model string) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(baseURL, "/")))
	}
	return &AnthropicProvider{sdk: anthropic.NewClient(opts...), model: model}
}

func (p *AnthropicProvider) Chat(ctx context.Context, req Request) (Response, error) {
	system, messages, err := adaptAnthropicMessages(req.Messages)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic chat: %w", err)
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	maxTokens := anthropicDefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = int64(*req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		System:    system,
		MaxTokens: maxTokens,
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}
	if req.Stop != nil {
		params.StopSequences = req.Stop
	}

	// The cascade's reasoning knobs map onto Anthropic's extended
	// thinking feature: any non-empty effort or explicit max tokens
	// enables it, budgeted from ReasoningBudget (spec §9's approximate
	// effort-to-token-share table).
	if req.Reasoning.Enabled || req.Reasoning.Effort != "" || req.Reasoning.MaxTokens != nil {
		budget := anthropicThinkingBudget
		if req.Reasoning.MaxTokens != nil && int64(*req.Reasoning.MaxTokens) > budget {
			budget = int64(*req.Reasoning.MaxTokens)
		} else if req.Reasoning.Effort != "" {
			if b := int64(ReasoningBudget(req.Reasoning.Effort, int(maxTokens))); b > budget {
				budget = b
			}
		}
		if params.MaxTokens <= budget {
			params.MaxTokens = budget + anthropicThinkingBudget
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}

	resp, err := p.sdk.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic chat: %w", err)
	}

	var text strings.Builder
	var thinking strings.Builder
	for _, block := range resp.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(v.Text)
		case anthropic.ThinkingBlock:
			if thinking.Len() > 0 {
				thinking.WriteString("\n\n")
			}
			thinking.WriteString(v.Thinking)
		}
	}

	content := InterceptReasoning(text.String(), thinking.String(), nil)
	promptTokens := int(resp.Usage.CacheCreationInputTokens + resp.Usage.CacheReadInputTokens + resp.Usage.InputTokens)

	return Response{
		Content:          content,
		ReasoningText:    thinking.String(),
		PromptTokens:     promptTokens,
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}

func adaptAnthropicMessages(msgs []Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam, error) {
	if len(msgs) == 0 {
		return nil, nil, fmt.Errorf("messages required")
	}
	var system []anthropic.TextBlockParam
	out := make([]anthropic.MessageParam, 0, len(msgs))

	for _, m := range msgs {
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "system":
			if strings.TrimSpace(m.Content) != "" {
				system = append(system, anthropic.TextBlockParam{Text: m.Content})
			}
		case "assistant":
			if strings.TrimSpace(m.Content) != "" {
				out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			}
		default:
			if strings.TrimSpace(m.Content) != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	}
	return system, out, nil
}
