package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"partial-matching/internal/api"
	"partial-matching/internal/config"
	"partial-matching/internal/engine"
	"partial-matching/internal/fund"
	"partial-matching/internal/logging"
	"partial-matching/internal/publish"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "partial-matching:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting partial matching service", zap.Stringer("config", cfg))

	specs := fund.DefaultSpecs()
	if cfg.Funds.Specs != "" {
		if specs, err = fund.ParseSpecList(cfg.Funds.Specs); err != nil {
			return fmt.Errorf("parse fund catalog: %w", err)
		}
	}
	catalog, err := fund.NewMemoryCatalog(specs...)
	if err != nil {
		return fmt.Errorf("build fund catalog: %w", err)
	}

	var publisher publish.TradePublisher = publish.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = publish.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		logger.Info("publishing trades to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("failed to close trade publisher", zap.Error(err))
		}
	}()

	registry := engine.NewRegistry(&engine.Config{
		Shards:             cfg.Engine.RegistryShards,
		DefaultTTL:         cfg.Engine.TTL,
		CleanupInterval:    cfg.Engine.CleanupInterval,
		MaxMatchIterations: cfg.Engine.MaxMatchIterations,
		IdempotencyTTL:     cfg.Engine.IdempotencyTTL,
		AutoCreate:         cfg.Engine.AutoCreate,
	}, engine.Deps{
		NAV:       catalog.NAV,
		Publisher: publisher,
		Logger:    logger,
	})

	gin.SetMode(cfg.Server.GinMode)
	handler := api.NewHandler(registry, catalog, logger)
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewRouter(handler, logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return registry.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("stopped")
	return nil
}
