package worker

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"tzurot/internal/db"
	"tzurot/internal/llm"
	"tzurot/internal/model"
	"tzurot/internal/observability"
	"tzurot/internal/queue"
)

// writeDiagnostic persists an LlmDiagnosticLog for one inference call,
// redacting both the outbound request and the provider response before
// they touch disk, per spec §4.4 ("every request writes an
// LlmDiagnosticLog with {requestId, model, provider, durationMs,
// resolvedConfig, promptSummary, responseSummary, errorIfAny}").
// Insert failures are logged, not propagated: a missing diagnostic row
// must never fail the turn it describes.
func writeDiagnostic(ctx context.Context, repo *db.DiagnosticLogRepo, job queue.GenerateJob, resp llm.Response, errKind string, inferErr error, durationMillis int64) {
	if repo == nil {
		return
	}
	requestRaw, _ := json.Marshal(job.Messages)
	responseRaw, _ := json.Marshal(resp)

	entry := model.LlmDiagnosticLog{
		CorrelationID:    job.CorrelationID,
		PersonalityID:    job.PersonalityID,
		Provider:         job.Provider,
		Model:            job.Model,
		ResolvedConfig:   job.ResolvedConfig,
		RequestRedacted:  observability.RedactJSON(requestRaw),
		ResponseRedacted: observability.RedactJSON(responseRaw),
		ReasoningTokens:  resp.ReasoningTokens,
		ErrorKind:        errKind,
		DurationMillis:   durationMillis,
	}
	if inferErr != nil && entry.ErrorKind == "" {
		entry.ErrorKind = "InferenceRejected"
	}

	if err := repo.Insert(ctx, entry); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("request_id", job.RequestID).Msg("diagnostic log insert failed")
	}
}
