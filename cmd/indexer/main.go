package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/sectioner"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/assembler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/refresher"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service",
		"source", cfg.Source.Kind,
		"profile", cfg.Indexer.Profile,
		"workers", cfg.Indexer.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		metrics.Serve(ctx, cfg.Metrics.Port)
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	st := store.New(db)
	if err := st.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	tok, err := tokenizer.NewByName(cfg.Indexer.Profile)
	if err != nil {
		slog.Error("invalid language profile", "error", err)
		os.Exit(1)
	}
	engine := indexer.NewEngine(tok)

	// Serve the last persisted corpus until the first refresh completes.
	if _, err := consumer.New(st, engine, nil, m).Reload(ctx); err != nil {
		slog.Warn("no persisted corpus loaded", "error", err)
	}

	src, err := source.New(ctx, cfg.Source)
	if err != nil {
		slog.Error("failed to create source", "error", err)
		os.Exit(1)
	}
	asm, err := assembler.New(tok, sectioner.Options{
		StripLevelMarks: cfg.Indexer.StripLevelMarks,
		Preamble:        cfg.Indexer.Preamble,
	}, cfg.Indexer.Workers)
	if err != nil {
		slog.Error("failed to create assembler", "error", err)
		os.Exit(1)
	}
	defer asm.Release()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer producer.Close()

	ref := refresher.New(src, asm, st, engine, producer, m, refresher.Config{
		FetchTimeout: cfg.Source.FetchTimeout,
	})
	if cfg.Indexer.RefreshOnStart {
		go func() {
			if _, err := ref.Refresh(ctx); err != nil {
				slog.Error("initial refresh failed", "error", err)
			}
		}()
	}
	ref.StartLoop(ctx, cfg.Indexer.RefreshInterval)

	refreshConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RefreshRequests, ref.HandleRefreshRequest)
	defer refreshConsumer.Close()
	go func() {
		if err := refreshConsumer.Start(ctx); err != nil {
			slog.Error("refresh request consumer error", "error", err)
		}
	}()

	aggregator := analytics.NewAggregator()
	analyticsCfg := cfg.Kafka
	analyticsCfg.ConsumerGroup = cfg.Kafka.ConsumerGroup + "-analytics"
	analyticsConsumer := kafka.NewConsumer(analyticsCfg, cfg.Kafka.Topics.AnalyticsEvents, aggregator.HandleEvent())
	defer analyticsConsumer.Close()
	go func() {
		if err := analyticsConsumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping))
	checker.Register("snapshot", health.ReadyCheck(engine.Ready, "no snapshot installed"))

	mux := http.NewServeMux()
	refreshHandler := refresher.NewHandler(ref)
	mux.HandleFunc("POST /api/v1/refresh", refreshHandler.Refresh)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", refreshHandler.DeleteDocument)
	mux.HandleFunc("GET /api/v1/analytics/stats", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     middleware.Chain(mux, middleware.RequestID, middleware.Metrics(m)),
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("indexer admin API listening",
		"addr", server.Addr,
		"refresh_topic", cfg.Kafka.Topics.RefreshRequests,
		"index_complete_topic", cfg.Kafka.Topics.IndexComplete,
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("indexer service stopped")
}
