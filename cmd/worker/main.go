// Command worker runs the inference worker (C4): it consumes generate
// jobs from Kafka, invokes the resolved provider, and publishes a
// completion envelope back to the reply topic, grounded on the teacher's
// cmd/orchestrator/main.go run() wiring.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"tzurot/internal/config"
	"tzurot/internal/db"
	"tzurot/internal/observability"
	"tzurot/internal/queue"
	"tzurot/internal/worker"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("worker")
	}
}

func run() error {
	cfgPath := getenv("TZUROT_CONFIG", "config.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	baseCtx := context.Background()

	shutdownOTel, err := observability.InitOTel(baseCtx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	if shutdownOTel != nil {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownOTel(sctx); err != nil {
				log.Warn().Err(err).Msg("otel shutdown")
			}
		}()
	}

	pool, err := db.OpenPool(baseCtx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database pool: %w", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(baseCtx, pool); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	diagnostics := db.NewDiagnosticLogRepo(pool)
	usage := db.NewUsageLogRepo(pool)

	dedupe, err := queue.NewRedisDedupeStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("connect redis dedupe store: %w", err)
	}
	defer func() {
		if err := dedupe.Close(); err != nil {
			log.Warn().Err(err).Msg("closing redis dedupe store")
		}
	}()

	producer := queue.NewProducer(cfg.Queue.Brokers)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Warn().Err(err).Msg("closing kafka producer")
		}
	}()

	requestTimeout := time.Duration(cfg.Worker.RequestTimeoutMs) * time.Millisecond
	consumer := worker.NewConsumer(cfg.LLM, diagnostics, usage, requestTimeout)

	ctx, cancel := signal.NotifyContext(baseCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info().
		Strs("brokers", cfg.Queue.Brokers).
		Str("topic", cfg.Queue.GenerateTopic).
		Str("group", cfg.Queue.ConsumerGroup).
		Int("concurrency", cfg.Worker.Concurrency).
		Msg("inference worker starting")

	return queue.StartConsumer(
		ctx,
		cfg.Queue.Brokers,
		cfg.Queue.ConsumerGroup,
		cfg.Queue.GenerateTopic,
		producer,
		dedupe,
		cfg.Queue.ReplyTopic,
		cfg.Worker.Concurrency,
		24*time.Hour,
		cfg.Worker.MaxRetries,
		consumer.Handle,
	)
}
