package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/auditgate-platform/auditgate/internal/analyzer"
	"github.com/auditgate-platform/auditgate/internal/analyzer/openai"
	"github.com/auditgate-platform/auditgate/internal/analyzer/pattern"
	"github.com/auditgate-platform/auditgate/internal/api"
	"github.com/auditgate-platform/auditgate/internal/audits"
	"github.com/auditgate-platform/auditgate/internal/auth"
	"github.com/auditgate-platform/auditgate/internal/cache"
	"github.com/auditgate-platform/auditgate/internal/config"
	"github.com/auditgate-platform/auditgate/internal/database"
	"github.com/auditgate-platform/auditgate/internal/events"
	"github.com/auditgate-platform/auditgate/internal/history"
	"github.com/auditgate-platform/auditgate/internal/middleware"
	"github.com/auditgate-platform/auditgate/internal/pipeline"
	"github.com/auditgate-platform/auditgate/internal/quota"
	iredis "github.com/auditgate-platform/auditgate/internal/redis"
	"github.com/auditgate-platform/auditgate/internal/server"
	"github.com/auditgate-platform/auditgate/internal/storage"
	"github.com/auditgate-platform/auditgate/internal/subscription"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if path := os.Getenv("MIGRATIONS_PATH"); path != "" {
		if err := database.RunMigrations(cfg.DB.DSN(), path); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS
	natsClient, err := events.NewClient(ctx, cfg.NATS)
	if err != nil {
		slog.Error("connecting to nats", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	publisher := events.NewPublisher(natsClient.JetStream())

	// Quota
	tiers := quota.DefaultTiers()
	if err := quota.ValidateTiers(tiers); err != nil {
		slog.Error("invalid tier table", "error", err)
		os.Exit(1)
	}
	global := quota.NewGlobalLimiter(redisClient, cfg.Quota.GlobalPerMinute, cfg.Quota.GlobalPerHour)
	tracker := quota.NewTracker(tiers, global)

	// Result cache
	results := cache.New(cfg.Cache.Capacity, cfg.Cache.TTL)

	// Analyzers
	free := pattern.New()
	var paid analyzer.Analyzer
	if cfg.OpenAI.APIKey != "" {
		paid, err = openai.New(openai.Config{
			APIKey:     cfg.OpenAI.APIKey,
			Model:      cfg.OpenAI.Model,
			MaxTokens:  cfg.OpenAI.MaxTokens,
			SOLUSDRate: cfg.OpenAI.SOLUSDRate,
			Timeout:    cfg.OpenAI.Timeout,
		})
		if err != nil {
			slog.Error("creating paid analyzer", "error", err)
			os.Exit(1)
		}
	}

	// Subscriptions
	subRepo := subscription.NewRepository(pool)
	subSvc := subscription.NewService(subRepo, tracker, subscription.WithNotifier(publisher))
	subHandler := subscription.NewHandler(subSvc)

	// Pipeline
	pipe := pipeline.New(tracker, results, free, paid,
		pipeline.WithSubscriptions(subSvc),
		pipeline.WithNotifier(publisher),
		pipeline.WithDedupWindow(cfg.Cache.DedupWindow),
	)

	// History persistence
	historyRepo := history.NewRepository(pool)
	var reports history.Uploader
	if cfg.Storage.Enabled() {
		store, err := storage.NewReportStore(storage.Config{
			AccountID:       cfg.Storage.AccountID,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			PublicURL:       cfg.Storage.PublicURL,
		})
		if err != nil {
			slog.Error("creating report storage", "error", err)
			os.Exit(1)
		}
		reports = store
	}

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	consumer := history.NewConsumer(historyRepo, events.NewConsumerManager(natsClient.JetStream()), reports)
	go func() {
		if err := consumer.Start(consumerCtx); err != nil {
			slog.Error("history consumer stopped", "error", err)
		}
	}()

	// HTTP
	auditHandler := audits.NewHandler(pipe, historyRepo)
	submitLimiter := middleware.NewRateLimiter(redisClient, "submit", 30, 60)

	router := api.NewRouter(pool, natsClient, api.RouterConfig{
		CORSAllowedOrigins: nil,
		SubmitRateLimiter:  submitLimiter.Middleware,
	}, api.HandlerSet{
		SubmitAudit:        auditHandler.Submit,
		GetQuota:           auditHandler.GetQuota,
		ListAudits:         auditHandler.ListAudits,
		ListContractAudits: auditHandler.ListContractAudits,
		CacheStats:         auditHandler.CacheStats,

		ActivateSubscription:   subHandler.Activate,
		DeactivateSubscription: subHandler.Deactivate,
		GetSubscription:        subHandler.Get,

		AuthMiddleware: auth.Middleware(auth.NewResolver(pool)),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
