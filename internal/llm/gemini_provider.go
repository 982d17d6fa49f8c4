package llm

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiProvider implements Provider against the Gemini GenerateContent
// API, grounded on the teacher's internal/llm/google/client.go, narrowed
// to Chat-only (no tool calling, no streaming, no image parts).
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: strings.TrimSpace(apiKey)})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Chat(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	contents, err := geminiContents(req.Messages)
	if err != nil {
		return Response{}, fmt.Errorf("gemini chat: %w", err)
	}

	cfg := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.TopP != nil {
		t := float32(*req.TopP)
		cfg.TopP = &t
	}
	if req.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*req.MaxTokens)
	}
	if shouldIncludeGeminiThoughts(model, req.Reasoning) {
		cfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return Response{}, fmt.Errorf("gemini chat: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, fmt.Errorf("gemini chat: empty response")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return Response{}, fmt.Errorf("gemini chat: blocked: %s", resp.PromptFeedback.BlockReason)
	}

	var text, thought strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Thought {
			thought.WriteString(part.Text)
			continue
		}
		text.WriteString(part.Text)
	}

	content := InterceptReasoning(text.String(), thought.String(), nil)

	usage := Response{
		Content:       content,
		ReasoningText: thought.String(),
	}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.ReasoningTokens = int(resp.UsageMetadata.ThoughtsTokenCount)
	}
	return usage, nil
}

func shouldIncludeGeminiThoughts(model string, r ReasoningRequest) bool {
	if !r.Enabled && r.Effort == "" && r.MaxTokens == nil {
		return false
	}
	m := strings.ToLower(model)
	return strings.Contains(m, "gemini-2.5") || strings.Contains(m, "gemini-3")
}

func geminiContents(msgs []Message) ([]*genai.Content, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("messages required")
	}
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.RoleUser
		text := m.Content
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "assistant":
			role = genai.RoleModel
		case "system":
			text = "[system] " + text
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, genai.NewContentFromText(text, role))
	}
	return out, nil
}
