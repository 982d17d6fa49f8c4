// Package model defines the shared domain entities persisted and passed
// between Tzurot's edge, gateway, inference, and memory components.
package model

import "time"

// User is a Discord account known to the platform.
type User struct {
	ID          string    `json:"id"`
	DiscordID   string    `json:"discordId"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Persona groups the personalities a user has configured.
type Persona struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Personality is an activatable character: a system prompt plus an LLM
// configuration cascade layer.
type Personality struct {
	ID              string    `json:"id"`
	PersonaID       string    `json:"personaId"`
	Name            string    `json:"name"`
	Aliases         []string  `json:"aliases"`
	AvatarURL       string    `json:"avatarUrl"`
	SystemPromptID  string    `json:"systemPromptId"`
	BaseLlmConfigID string    `json:"baseLlmConfigId"`
	CreatedAt       time.Time `json:"createdAt"`
}

// SystemPrompt is a versioned prompt body attached to a Personality.
type SystemPrompt struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

// LlmConfig is one cascade layer's worth of provider/model/parameter
// overrides. Any field left at its zero value is treated as "unset" by
// the cascade fold, not as an explicit override.
type LlmConfig struct {
	ID                 string             `json:"id"`
	Provider            string             `json:"provider,omitempty"`
	Model               string             `json:"model,omitempty"`
	Temperature         *float64           `json:"temperature,omitempty"`
	TopP                *float64           `json:"topP,omitempty"`
	MaxTokens           *int               `json:"maxTokens,omitempty"`
	ReasoningEffort     string             `json:"reasoningEffort,omitempty"`
	ReasoningMaxTokens  *int               `json:"reasoningMaxTokens,omitempty"`
	ResponseFormat      string             `json:"responseFormat,omitempty"`
	AdvancedParameters  map[string]any     `json:"advancedParameters,omitempty"`
}

// UserPersonalityConfig is a per-(user, personality) override layer in
// the cascade.
type UserPersonalityConfig struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	PersonalityID string    `json:"personalityId"`
	LlmConfigID   string    `json:"llmConfigId"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ActivatedChannel records that a personality has been activated for
// free-form replies (no mention required) in a channel.
type ActivatedChannel struct {
	ID                     string    `json:"id"`
	ChannelID              string    `json:"channelId"`
	PersonalityID          string    `json:"personalityId"`
	ActivatedByUserID      string    `json:"activatedByUserId"`
	DedupSimilarityOverride *float64 `json:"dedupSimilarityOverride,omitempty"`
	CreatedAt              time.Time `json:"createdAt"`
}

// ConversationTurn is one user/assistant exchange in a channel's history,
// scoped to the personality that produced the assistant side.
type ConversationTurn struct {
	ID               string    `json:"id"`
	ChannelID        string    `json:"channelId"`
	GuildID          string    `json:"guildId"`
	PersonalityID    string    `json:"personalityId"`
	PersonaID        string    `json:"personaId"`
	UserID           string    `json:"userId"`
	UserMessageID    string    `json:"userMessageId"`
	UserContent      string    `json:"userContent"`
	AssistantContent string    `json:"assistantContent"`
	TokenCount       int       `json:"tokenCount"`
	CreatedAt        time.Time `json:"createdAt"`
}

// ConversationTombstone marks a point before which history is excluded
// from context assembly (e.g. after a /reset command).
type ConversationTombstone struct {
	ID            string    `json:"id"`
	ChannelID     string    `json:"channelId"`
	PersonalityID string    `json:"personalityId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Memory is a persisted, embedded fact distilled from conversation. Large
// source text is split across rows sharing ChunkGroupID.
type Memory struct {
	ID            string    `json:"id"`
	PersonaID     string    `json:"personaId"`
	PersonalityID string    `json:"personalityId"`
	Content       string    `json:"content"`
	Embedding     []float32 `json:"-"`
	ChunkGroupID  string    `json:"chunkGroupId"`
	ChunkIndex    int       `json:"chunkIndex"`
	TotalChunks   int       `json:"totalChunks"`
	SourceTurnID  string    `json:"sourceTurnId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PendingMemory is a turn awaiting distillation and embedding, retried
// with backoff until it succeeds or exhausts its attempt budget.
type PendingMemory struct {
	ID          string    `json:"id"`
	TurnID      string    `json:"turnId"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"lastError,omitempty"`
	NextAttempt time.Time `json:"nextAttempt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DenylistedEntity blocks a personality, user, or channel from
// participating in routing or memory recall.
type DenylistedEntity struct {
	ID         string    `json:"id"`
	EntityType string    `json:"entityType"` // "personality" | "user" | "channel"
	EntityID   string    `json:"entityId"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// LlmDiagnosticLog captures the resolved config and raw provider exchange
// for one inference call, with secrets redacted before persistence.
type LlmDiagnosticLog struct {
	ID             string    `json:"id"`
	CorrelationID  string    `json:"correlationId"`
	PersonalityID  string    `json:"personalityId"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	ResolvedConfig []byte    `json:"resolvedConfig"`
	RequestRedacted  []byte  `json:"requestRedacted"`
	ResponseRedacted []byte  `json:"responseRedacted"`
	ReasoningTokens  int     `json:"reasoningTokens"`
	ErrorKind      string    `json:"errorKind,omitempty"`
	DurationMillis int64     `json:"durationMillis"`
	CreatedAt      time.Time `json:"createdAt"`
}

// UsageLog is one billing-relevant unit of provider usage.
type UsageLog struct {
	ID               string    `json:"id"`
	PersonalityID    string    `json:"personalityId"`
	UserID           string    `json:"userId"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"promptTokens"`
	CompletionTokens int       `json:"completionTokens"`
	ReasoningTokens  int       `json:"reasoningTokens"`
	CreatedAt        time.Time `json:"createdAt"`
}
