// Package memorywriter implements the Memory Writer (C5): it distills a
// finished (user turn, assistant turn) exchange into a short first-person
// memory, chunks it if it would exceed the embedding model's token
// ceiling, embeds every chunk, and persists them transactionally,
// retrying through a pending-memory queue on failure.
package memorywriter

import (
	"context"
	"fmt"
	"strings"

	"tzurot/internal/llm"
)

// trivialSummaries are responses that carry no salient information; a
// model asked to summarize an exchange with nothing worth remembering
// tends to emit one of these rather than an empty string.
var trivialSummaries = map[string]bool{
	"none":             true,
	"n/a":              true,
	"nothing":          true,
	"no new information": true,
}

// Distill asks the configured model for a short first-person summary of
// salient facts from one exchange, keyed to the persona's perspective
// (spec §4.5). Returns ("", nil) when the summary is empty or trivial,
// which callers treat as "skip this memory" rather than an error.
func Distill(ctx context.Context, provider llm.Provider, model, personaName, userContent, assistantContent string) (string, error) {
	sysPrompt := fmt.Sprintf(
		"You are %s. Write a brief first-person memory of the exchange below: "+
			"what the other person told you, what you told them, and any fact, "+
			"preference, or decision worth remembering. One or two sentences. "+
			"If nothing is worth remembering, reply with exactly: none.",
		personaName,
	)

	var userPrompt strings.Builder
	userPrompt.WriteString("User: ")
	userPrompt.WriteString(strings.TrimSpace(userContent))
	userPrompt.WriteString("\n")
	userPrompt.WriteString("You: ")
	userPrompt.WriteString(strings.TrimSpace(assistantContent))

	req := llm.Request{
		Model: model,
		Messages: []llm.Message{
			{Role: "system", Content: sysPrompt},
			{Role: "user", Content: userPrompt.String()},
		},
	}

	resp, err := provider.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("distill exchange: %w", err)
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" || trivialSummaries[strings.ToLower(strings.Trim(summary, "."))] {
		return "", nil
	}
	return summary, nil
}
