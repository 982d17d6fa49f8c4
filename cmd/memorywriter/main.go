// Command memorywriter runs the Memory Writer (C5): it consumes
// memory-distillation jobs from Kafka and drains the pending-memory retry
// queue on a ticker, grounded on the teacher's cmd/orchestrator/main.go
// run() wiring.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"tzurot/internal/config"
	"tzurot/internal/db"
	"tzurot/internal/llm"
	"tzurot/internal/memorywriter"
	"tzurot/internal/observability"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("memorywriter")
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

	turns := db.NewTurnRepo(pool)
	personas := db.NewPersonaRepo(pool)
	memories := db.NewMemoryRepo(pool)
	pending := db.NewPendingMemoryRepo(pool)

	provider, err := llm.BuildProvider(baseCtx, cfg.MemoryWriter.DistillProvider, cfg.MemoryWriter.DistillModel, cfg.LLM)
	if err != nil {
		return fmt.Errorf("build distillation provider: %w", err)
	}

	consumer := memorywriter.NewConsumer(turns, personas, memories, pending, provider, cfg.MemoryWriter.DistillModel, cfg.Embeddings)
	retrier := memorywriter.NewRetrier(turns, personas, memories, pending, provider, cfg.MemoryWriter, cfg.Embeddings)

	ctx, cancel := signal.NotifyContext(baseCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info().
			Strs("brokers", cfg.Queue.Brokers).
			Str("topic", cfg.Queue.MemoryTopic).
			Msg("memory writer consumer starting")
		return memorywriter.Run(gctx, cfg.Queue.Brokers, cfg.Queue.ConsumerGroup+"-memory", cfg.Queue.MemoryTopic, 2, consumer)
	})

	group.Go(func() error {
		interval := time.Duration(cfg.MemoryWriter.PollIntervalMs) * time.Millisecond
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		log.Info().Dur("interval", interval).Msg("pending-memory retry loop starting")
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if err := retrier.RunOnce(gctx); err != nil {
					log.Warn().Err(err).Msg("pending-memory retry batch failed")
				}
			}
		}
	})

	return group.Wait()
}
