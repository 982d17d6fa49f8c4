// Command gateway runs the Request Gateway (C2): it consumes turn
// envelopes from the edge receiver over Kafka, resolves the config
// cascade, assembles context, round-trips an inference job through
// Kafka, and persists the result, grounded on the teacher's
// cmd/orchestrator/main.go run() wiring and its Kafka command/response
// consumer.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"tzurot/internal/cascade"
	"tzurot/internal/config"
	"tzurot/internal/db"
	"tzurot/internal/gateway"
	"tzurot/internal/llm"
	"tzurot/internal/observability"
	"tzurot/internal/queue"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("gateway")
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

	users := db.NewUserRepo(pool)
	personalities := db.NewPersonalityRepo(pool)
	turns := db.NewTurnRepo(pool)
	memories := db.NewMemoryRepo(pool)
	llmConfigs := db.NewLlmConfigRepo(pool)
	systemPrompts := db.NewSystemPromptRepo(pool)
	userConfigs := db.NewUserPersonalityConfigRepo(pool)
	channels := db.NewActivatedChannelRepo(pool)

	resolver := cascade.NewResolver(llmConfigs, personalities, systemPrompts, userConfigs, channels)

	producer := queue.NewProducer(cfg.Queue.Brokers)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Warn().Err(err).Msg("closing kafka producer")
		}
	}()

	waiter := gateway.NewReplyWaiter()

	var tokenizer llm.Tokenizer
	if tk, err := llm.NewTiktokenTokenizer(""); err == nil {
		tokenizer = tk
	} else {
		log.Warn().Err(err).Msg("tiktoken tokenizer unavailable, falling back to char/4 estimate")
	}

	gw := gateway.New(users, personalities, turns, memories, resolver, producer, waiter, cfg.Embeddings, cfg.Queue, cfg.Gateway, tokenizer)

	ctx, cancel := signal.NotifyContext(baseCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info().
			Strs("brokers", cfg.Queue.Brokers).
			Str("topic", cfg.Queue.ReplyTopic).
			Msg("gateway reply-waiter consumer starting")
		return waiter.Run(gctx, cfg.Queue.Brokers, cfg.Queue.ConsumerGroup+"-gateway-reply", cfg.Queue.ReplyTopic)
	})

	group.Go(func() error {
		log.Info().
			Strs("brokers", cfg.Queue.Brokers).
			Str("topic", cfg.Queue.TurnTopic).
			Msg("gateway turn consumer starting")
		return gateway.RunTurnConsumer(gctx, gw, cfg.Queue.Brokers, cfg.Queue.ConsumerGroup+"-gateway-turn", cfg.Queue.TurnTopic, cfg.Queue.TurnReplyTopic)
	})

	server := &http.Server{Addr: cfg.Gateway.ListenAddr, Handler: gateway.NewHandler(gw)}
	group.Go(func() error {
		log.Info().Str("addr", cfg.Gateway.ListenAddr).Msg("gateway http server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("gateway http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(sctx)
	})

	return group.Wait()
}
