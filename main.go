package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/api"
	"github.com/dalfonso89/rate-ingestion-service/internal/config"
	"github.com/dalfonso89/rate-ingestion-service/internal/events"
	"github.com/dalfonso89/rate-ingestion-service/internal/fallback"
	"github.com/dalfonso89/rate-ingestion-service/internal/logger"
	"github.com/dalfonso89/rate-ingestion-service/internal/metrics"
	"github.com/dalfonso89/rate-ingestion-service/internal/platform"
	"github.com/dalfonso89/rate-ingestion-service/internal/ratelimit"
	"github.com/dalfonso89/rate-ingestion-service/internal/scheduler"
	"github.com/dalfonso89/rate-ingestion-service/internal/service"
	"github.com/dalfonso89/rate-ingestion-service/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)

	ctx, stop := platform.NewShutdownContext(context.Background())
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	engineMetrics := metrics.New(registry)

	// Rate store: Postgres when configured, in-memory otherwise
	var rateStore store.RateStore = store.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		db, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		if err := store.RunMigrations(db); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		rateStore = store.NewPostgresStore(db)
		logger.Info("Using Postgres rate store")
	} else {
		logger.Warn("DATABASE_URL not set, rates are kept in memory only")
	}

	var mirror fallback.Mirror
	if cfg.RedisAddr != "" {
		client, err := fallback.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, fallback cache will not survive restarts")
		} else {
			defer client.Close()
			mirror = fallback.NewRedisMirror(client)
		}
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.WithField("topic", cfg.KafkaTopic).Info("Publishing rate updates to Kafka")
	}
	defer publisher.Close()

	engine, err := service.NewEngine(cfg, service.Dependencies{
		Store:     rateStore,
		Fallback:  fallback.NewCache(mirror, logger, time.Now),
		Logger:    logger,
		Publisher: publisher,
		Metrics:   engineMetrics,
	})
	if err != nil {
		logger.Fatalf("Failed to create ingestion engine: %v", err)
	}
	if err := engine.Bootstrap(ctx); err != nil {
		logger.Fatalf("Failed to bootstrap ingestion engine: %v", err)
	}

	refreshScheduler := scheduler.New(engine, cfg.RefreshInterval, cfg.RefreshOnStart, logger)
	rateLimiter := ratelimit.NewLimiter(cfg, logger)
	defer rateLimiter.Stop()

	handlers := api.NewHandlers(api.HandlerConfig{
		Logger:       logger,
		Engine:       engine,
		Trigger:      refreshScheduler,
		RateLimiter:  rateLimiter,
		Metrics:      engineMetrics,
		Gatherer:     registry,
		BaseCurrency: cfg.BaseCurrency,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handlers.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	err = platform.Run(ctx,
		platform.ServeHTTP(server, 30*time.Second, logger),
		func(ctx context.Context) error {
			refreshScheduler.Start(ctx)
			return nil
		},
	)
	if err != nil {
		logger.Errorf("Service stopped with error: %v", err)
		return
	}

	logger.Info("Service exited")
}
