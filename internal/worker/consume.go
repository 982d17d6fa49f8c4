// Package worker implements the inference worker (C4): it consumes
// generation jobs, invokes the resolved provider, reconciles reasoning
// fields, extracts inline thinking tags, and returns a completion
// envelope for the gateway to deliver.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tzurot/internal/cascade"
	"tzurot/internal/config"
	"tzurot/internal/db"
	"tzurot/internal/llm"
	"tzurot/internal/model"
	"tzurot/internal/queue"
)

// Consumer adapts queue.HandleFunc to the provider factory and
// diagnostic/usage repositories, grounded on the teacher's
// internal/orchestrator/handler.go Runner — generalized from an
// arbitrary named workflow to the single generate job shape spec §4.4
// names.
type Consumer struct {
	llmConfig      config.LLMConfig
	diagnostics    *db.DiagnosticLogRepo
	usage          *db.UsageLogRepo
	requestTimeout time.Duration

	// buildProvider defaults to llm.BuildProvider; tests substitute a
	// fake so Handle can be exercised without real provider credentials.
	buildProvider func(ctx context.Context, providerName, model string, cfg config.LLMConfig) (llm.Provider, error)
}

func NewConsumer(llmConfig config.LLMConfig, diagnostics *db.DiagnosticLogRepo, usage *db.UsageLogRepo, requestTimeout time.Duration) *Consumer {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	return &Consumer{
		llmConfig:      llmConfig,
		diagnostics:    diagnostics,
		usage:          usage,
		requestTimeout: requestTimeout,
		buildProvider:  llm.BuildProvider,
	}
}

// Handle implements queue.HandleFunc. A non-nil error is treated by the
// caller as a retriable failure (spec §4.4: "provider 429/5xx/timeout ->
// bounded retries with exponential backoff"); a returned GenerateResult
// with Status "error" and a nil error is a terminal, non-retriable
// outcome (config invalid / build-provider failure) reported once.
func (c *Consumer) Handle(ctx context.Context, job queue.GenerateJob) (queue.GenerateResult, error) {
	started := time.Now()

	resolved, err := cascade.UnmarshalWire(job.ResolvedConfig)
	if err != nil {
		result := queue.GenerateResult{Status: "error", ErrorKind: "ConfigInvalid", Error: fmt.Sprintf("decode resolved config: %v", err)}
		writeDiagnostic(ctx, c.diagnostics, job, llm.Response{}, "ConfigInvalid", err, time.Since(started).Milliseconds())
		return result, nil
	}

	provider, err := c.buildProvider(ctx, resolved.Provider, resolved.Model, c.llmConfig)
	if err != nil {
		result := queue.GenerateResult{Status: "error", ErrorKind: "ConfigInvalid", Error: fmt.Sprintf("build provider: %v", err)}
		writeDiagnostic(ctx, c.diagnostics, job, llm.Response{}, "ConfigInvalid", err, time.Since(started).Milliseconds())
		return result, nil
	}

	req := buildRequest(resolved, job.Messages)

	attemptCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := provider.Chat(attemptCtx, req)
	durationMillis := time.Since(started).Milliseconds()
	if err != nil {
		writeDiagnostic(ctx, c.diagnostics, job, resp, "InferenceRetriable", err, durationMillis)
		return queue.GenerateResult{}, fmt.Errorf("inference call: %w", err)
	}

	post := llm.PostProcess(resp.Content)
	if post.Content == "" && post.Thinking != "" {
		log.Ctx(ctx).Warn().
			Str("request_id", job.RequestID).
			Str("personality_id", job.PersonalityID).
			Msg("model consumed its entire budget on reasoning; no content to deliver")
	}

	if c.usage != nil {
		if err := c.usage.Insert(ctx, model.UsageLog{
			PersonalityID:    job.PersonalityID,
			UserID:           job.UserID,
			Provider:         resolved.Provider,
			Model:            resolved.Model,
			PromptTokens:     resp.PromptTokens,
			CompletionTokens: resp.CompletionTokens,
			ReasoningTokens:  resp.ReasoningTokens,
		}); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("request_id", job.RequestID).Msg("usage log insert failed")
		}
	}

	writeDiagnostic(ctx, c.diagnostics, job, resp, "", nil, durationMillis)

	return queue.GenerateResult{
		Content:          post.Content,
		ThinkingContent:  post.Thinking,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		ReasoningTokens:  resp.ReasoningTokens,
		DurationMillis:   durationMillis,
		Status:           "success",
	}, nil
}

// buildRequest translates a resolved cascade bundle into a
// provider-agnostic llm.Request, passing reasoning through as a
// top-level field per spec §4.4 ("the provider normalizes across model
// families").
func buildRequest(r cascade.Resolved, messages []llm.Message) llm.Request {
	return llm.Request{
		Model:             r.Model,
		Messages:          messages,
		Temperature:       r.Temperature,
		TopP:              r.TopP,
		TopK:              r.TopK,
		FrequencyPenalty:  r.FrequencyPenalty,
		PresencePenalty:   r.PresencePenalty,
		RepetitionPenalty: r.RepetitionPenalty,
		MinP:              r.MinP,
		TopA:              r.TopA,
		Seed:              r.Seed,
		MaxTokens:         r.MaxTokens,
		Stop:              r.Stop,
		LogitBias:         r.LogitBias,
		ResponseFormat:    r.ResponseFormat,
		Reasoning: llm.ReasoningRequest{
			Effort:    r.Reasoning.Effort,
			MaxTokens: r.Reasoning.MaxTokens,
			Exclude:   r.Reasoning.Exclude,
			Enabled:   r.Reasoning.Enabled,
		},
	}
}
