// Package config loads process configuration shared by the edge,
// gateway, worker, and memory-writer binaries from a YAML file plus a
// .env overlay, following the teacher's LoadConfig shape.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"gopkg.in/yaml.v2"
)

// DatabaseConfig points at the shared Postgres+pgvector store (C6).
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// QueueConfig points at the Kafka brokers and topic names used for job
// dispatch between the gateway and the inference worker.
type QueueConfig struct {
	Brokers        []string `yaml:"brokers"`
	GenerateTopic  string   `yaml:"generate_topic"`
	ReplyTopic     string   `yaml:"reply_topic"`
	MemoryTopic    string   `yaml:"memory_topic"`
	// TurnTopic and TurnReplyTopic carry the C1->C2 request/reply pair,
	// mirroring GenerateTopic/ReplyTopic one hop earlier in the pipeline.
	TurnTopic      string `yaml:"turn_topic"`
	TurnReplyTopic string `yaml:"turn_reply_topic"`
	ConsumerGroup  string `yaml:"consumer_group"`
}

// RedisConfig points at the Redis instance the inference worker uses for
// job-idempotency bookkeeping (queue.RedisDedupeStore).
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// DiscordConfig carries the edge receiver's gateway credentials.
type DiscordConfig struct {
	BotToken          string `yaml:"bot_token"`
	ApplicationID     string `yaml:"application_id,omitempty"`
	ChunkDelayMillis  int    `yaml:"chunk_delay_millis"`
	DedupSimilarity   float64 `yaml:"dedup_similarity"`
	FingerprintLRUSize int    `yaml:"fingerprint_lru_size"`
	// RateLimitPerMinute bounds how many turns one Discord user may
	// trigger per minute (spec §5 Backpressure: "per-user rate-limits
	// enforced at C1").
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
	// TurnReplyDeadlineMs bounds how long client.go waits for the
	// gateway's TurnReply before surfacing a generic error to the user.
	TurnReplyDeadlineMs int `yaml:"turn_reply_deadline_ms"`
}

// ProviderConfig is one model-provider's API credentials and defaults.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// LLMConfig groups per-provider credentials keyed by provider name
// ("openai", "anthropic", "gemini").
type LLMConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// EmbeddingsConfig points at the embedding provider's HTTP endpoint.
type EmbeddingsConfig struct {
	Host       string `yaml:"host"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint,omitempty"`
	Insecure    bool   `yaml:"insecure,omitempty"`
	ServiceName string `yaml:"service_name"`
}

// WorkerConfig tunes the inference worker's concurrency and retry
// behavior.
type WorkerConfig struct {
	Concurrency      int `yaml:"concurrency"`
	MaxRetries       int `yaml:"max_retries"`
	RequestTimeoutMs int `yaml:"request_timeout_ms"`
}

// GatewayConfig tunes C2's request-scoped timeouts and default cascade
// fallbacks.
type GatewayConfig struct {
	// TurnDeadlineMs is the overall wall-clock deadline for a user turn
	// (spec §5: "beyond which C2 abandons the job... the worker may
	// still complete it, but C2 will not deliver").
	TurnDeadlineMs int `yaml:"turn_deadline_ms"`
	// EnqueueRetryMs bounds how long C2 retries a full job queue with
	// jitter before surfacing a personality-scoped error (spec §4.2
	// Failure semantics).
	EnqueueRetryMs int    `yaml:"enqueue_retry_ms"`
	ListenAddr     string `yaml:"listen_addr"`
}

// MemoryWriterConfig tunes memory distillation/embedding retry behavior.
type MemoryWriterConfig struct {
	DistillProvider    string `yaml:"distill_provider"`
	DistillModel       string `yaml:"distill_model"`
	MaxPendingAttempts int    `yaml:"max_pending_attempts"`
	RetryBackoffMs     int    `yaml:"retry_backoff_ms"`
	PollIntervalMs     int    `yaml:"poll_interval_ms"`
	BatchSize          int    `yaml:"batch_size"`
}

// Config is the top-level document loaded by every Tzurot process; each
// binary reads only the sections it needs.
type Config struct {
	LogLevel      string             `yaml:"log_level"`
	LogPath       string             `yaml:"log_path,omitempty"`
	Database      DatabaseConfig     `yaml:"database"`
	Queue         QueueConfig        `yaml:"queue"`
	Redis         RedisConfig        `yaml:"redis"`
	Discord       DiscordConfig      `yaml:"discord"`
	LLM           LLMConfig          `yaml:"llm"`
	Embeddings    EmbeddingsConfig   `yaml:"embeddings"`
	OTel          TelemetryConfig    `yaml:"otel"`
	Worker        WorkerConfig       `yaml:"worker"`
	MemoryWriter  MemoryWriterConfig `yaml:"memory_writer"`
	Gateway       GatewayConfig      `yaml:"gateway"`
}

// Load reads filename, loads a .env file from the working directory into
// the process environment (best-effort, absent is not an error), and
// fills defaults, the way the teacher's LoadConfig
// warns rather than fails on missing optional settings.
func Load(filename string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(filename)
	if err != nil {
		pterm.Error.Printf("error reading config file: %v\n", err)
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		pterm.Error.Printf("error unmarshaling config: %v\n", err)
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.Discord.ChunkDelayMillis <= 0 {
		cfg.Discord.ChunkDelayMillis = 750
		pterm.Info.Println("no discord.chunk_delay_millis specified, using default (750ms).")
	}
	if cfg.Discord.DedupSimilarity <= 0 {
		cfg.Discord.DedupSimilarity = 0.9
		pterm.Info.Println("no discord.dedup_similarity specified, using default (0.9).")
	}
	if cfg.Discord.FingerprintLRUSize <= 0 {
		cfg.Discord.FingerprintLRUSize = 1000
	}
	if cfg.Discord.RateLimitPerMinute <= 0 {
		cfg.Discord.RateLimitPerMinute = 20
	}
	if cfg.Discord.TurnReplyDeadlineMs <= 0 {
		cfg.Discord.TurnReplyDeadlineMs = 65_000
	}

	if cfg.Queue.ConsumerGroup == "" {
		cfg.Queue.ConsumerGroup = "tzurot-worker"
	}
	if cfg.Queue.GenerateTopic == "" {
		cfg.Queue.GenerateTopic = "tzurot.generate"
	}
	if cfg.Queue.ReplyTopic == "" {
		cfg.Queue.ReplyTopic = "tzurot.generate.reply"
	}
	if cfg.Queue.MemoryTopic == "" {
		cfg.Queue.MemoryTopic = "tzurot.memory.distill"
	}
	if cfg.Queue.TurnTopic == "" {
		cfg.Queue.TurnTopic = "tzurot.turn"
	}
	if cfg.Queue.TurnReplyTopic == "" {
		cfg.Queue.TurnReplyTopic = "tzurot.turn.reply"
	}

	if cfg.Embeddings.Dimensions <= 0 {
		cfg.Embeddings.Dimensions = 1536
	}

	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = 4
		pterm.Info.Println("no worker.concurrency specified, using default (4).")
	}
	if cfg.Worker.MaxRetries <= 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.RequestTimeoutMs <= 0 {
		cfg.Worker.RequestTimeoutMs = 60_000
	}

	if cfg.MemoryWriter.MaxPendingAttempts <= 0 {
		cfg.MemoryWriter.MaxPendingAttempts = 5
	}
	if cfg.MemoryWriter.RetryBackoffMs <= 0 {
		cfg.MemoryWriter.RetryBackoffMs = 30_000
	}
	if cfg.MemoryWriter.PollIntervalMs <= 0 {
		cfg.MemoryWriter.PollIntervalMs = 15_000
	}
	if cfg.MemoryWriter.BatchSize <= 0 {
		cfg.MemoryWriter.BatchSize = 20
	}
	if cfg.MemoryWriter.DistillModel == "" {
		cfg.MemoryWriter.DistillModel = "gpt-4o-mini"
		pterm.Info.Println("no memory_writer.distill_model specified, using default (gpt-4o-mini).")
	}

	if cfg.Gateway.TurnDeadlineMs <= 0 {
		cfg.Gateway.TurnDeadlineMs = 60_000
	}
	if cfg.Gateway.EnqueueRetryMs <= 0 {
		cfg.Gateway.EnqueueRetryMs = 5_000
	}
	if cfg.Gateway.ListenAddr == "" {
		cfg.Gateway.ListenAddr = ":8081"
	}

	if cfg.OTel.ServiceName == "" {
		cfg.OTel.ServiceName = "tzurot"
	}

	pterm.Success.Println("configuration loaded successfully.")
	return &cfg, nil
}
