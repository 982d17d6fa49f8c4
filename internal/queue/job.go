// Package queue defines the Kafka job envelope exchanged between the
// gateway and the inference worker, grounded on the teacher's
// internal/orchestrator CommandEnvelope/ResponseEnvelope shape, narrowed
// to the single generate/reply pair the spec names (§6 Queue contract).
package queue

import (
	"encoding/json"

	"tzurot/internal/llm"
)

// GenerateJob is the job payload enqueued by the gateway and consumed by
// the inference worker. RequestID is the idempotency key (spec §4.4:
// "jobs are idempotent by request id; duplicate completions are
// discarded").
type GenerateJob struct {
	RequestID      string          `json:"request_id"`
	CorrelationID  string          `json:"correlation_id"`
	ReplyTopic     string          `json:"reply_topic,omitempty"`
	PersonalityID  string          `json:"personality_id"`
	ChannelID      string          `json:"channel_id"`
	UserID         string          `json:"user_id"`
	Provider       string          `json:"provider"`
	Model          string          `json:"model"`
	ShowThinking   bool            `json:"show_thinking"`
	ResolvedConfig json.RawMessage `json:"resolved_config"`
	Messages       []llm.Message   `json:"messages"`
}

// MemoryJob is the job payload C2 enqueues after persisting an assistant
// turn (spec §4.5 trigger); it carries only the turn id, since C5 reloads
// the full exchange from the turn log rather than duplicating content
// through the queue.
type MemoryJob struct {
	RequestID string `json:"request_id"`
	TurnID    string `json:"turn_id"`
}

// GenerateResult is the completion envelope published back to
// ReplyTopic, carrying {requestId, content, thinkingContent?,
// tokenCounts, durationMs} per spec §6.
type GenerateResult struct {
	RequestID        string `json:"request_id"`
	CorrelationID    string `json:"correlation_id"`
	Status           string `json:"status"` // "success" | "error"
	Content          string `json:"content,omitempty"`
	ThinkingContent  string `json:"thinking_content,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	ReasoningTokens  int    `json:"reasoning_tokens,omitempty"`
	DurationMillis   int64  `json:"duration_millis"`
	ErrorKind        string `json:"error_kind,omitempty"`
	Error            string `json:"error,omitempty"`
}

// TurnEnvelope is the command the edge receiver publishes for each
// routed chat event and the gateway consumes from TurnTopic: the same
// CorrelationID/ReplyTopic request/reply shape as GenerateJob one hop
// later, carrying everything handleTurn needs since C2 never re-derives
// routing from raw message text (spec §4.1 step (c)).
type TurnEnvelope struct {
	CorrelationID        string `json:"correlation_id"`
	ReplyTopic           string `json:"reply_topic,omitempty"`
	RequestID            string `json:"request_id"`
	DiscordUserID        string `json:"discord_user_id"`
	DisplayName          string `json:"display_name"`
	ChannelID            string `json:"channel_id"`
	GuildID              string `json:"guild_id,omitempty"`
	IsDM                 bool   `json:"is_dm"`
	GuildName            string `json:"guild_name,omitempty"`
	ChannelName          string `json:"channel_name,omitempty"`
	PersonalityID        string `json:"personality_id,omitempty"`
	PersonalitySlug      string `json:"personality_slug,omitempty"`
	PersonalityAlias     string `json:"personality_alias,omitempty"`
	UserMessageID        string `json:"user_message_id"`
	Content              string `json:"content"`
	ContextHeaderEnabled bool   `json:"context_header_enabled"`
}

// TurnReply is the response the gateway publishes back to a
// TurnEnvelope's ReplyTopic: either a delivery plan on success, or a
// silent/retriable/surfaced error classification on failure, matching
// corekit.Kind so the edge receiver can decide whether to retry or show
// the user a generic error (spec §7).
type TurnReply struct {
	CorrelationID   string   `json:"correlation_id"`
	Status          string   `json:"status"` // "success" | "error"
	Chunks          []string `json:"chunks,omitempty"`
	ThinkingContent string   `json:"thinking_content,omitempty"`
	ShowThinking    bool     `json:"show_thinking,omitempty"`
	ErrorKind       string   `json:"error_kind,omitempty"`
	Error           string   `json:"error,omitempty"`
}
