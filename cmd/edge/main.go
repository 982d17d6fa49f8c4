// Command edge runs the Edge Receiver (C1): it connects to Discord,
// fingerprints and routes inbound messages, forwards resolved turns to
// the gateway over Kafka, and delivers the resulting reply through
// per-personality webhooks, grounded on the teacher's cmd/orchestrator/
// main.go run() wiring and _examples/thrapt-picobot's channel-session
// lifecycle.
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
	"tzurot/internal/discord"
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
		log.Fatal().Err(err).Msg("edge")
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

	personalities := db.NewPersonalityRepo(pool)
	channels := db.NewActivatedChannelRepo(pool)
	denylist := db.NewDenylistRepo(pool)

	router := discord.NewRouter(personalities, channels, denylist, cfg.Discord.FingerprintLRUSize)
	fingerprint := discord.NewFingerprintCache(cfg.Discord.FingerprintLRUSize)
	rateLimit := discord.NewRateLimiter(cfg.Discord.RateLimitPerMinute)
	dedup := discord.NewOutboundDedup(cfg.Discord.DedupSimilarity, 20, 5*time.Minute)

	producer := queue.NewProducer(cfg.Queue.Brokers)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Warn().Err(err).Msg("closing kafka producer")
		}
	}()

	turnClient := discord.NewTurnClient(producer, cfg.Queue.TurnTopic, cfg.Queue.TurnReplyTopic)

	session, err := discord.NewSession(cfg, router, fingerprint, rateLimit, turnClient, nil)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}

	webhook := discord.NewWebhookManager(session.Underlying(), router, dedup, time.Duration(cfg.Discord.ChunkDelayMillis)*time.Millisecond)
	session.SetWebhookManager(webhook)

	ctx, cancel := signal.NotifyContext(baseCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info().
			Strs("brokers", cfg.Queue.Brokers).
			Str("topic", cfg.Queue.TurnReplyTopic).
			Msg("edge turn-client consumer starting")
		return turnClient.Run(gctx, cfg.Queue.Brokers, cfg.Queue.ConsumerGroup+"-edge-turn-reply")
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	log.Info().Msg("edge receiver connected to discord")

	group.Go(func() error {
		<-gctx.Done()
		return session.Close()
	})

	return group.Wait()
}
