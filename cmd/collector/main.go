package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/menuwatch/internal/bootstrap"
	"github.com/samirrijal/menuwatch/internal/pkg/config"
	"github.com/samirrijal/menuwatch/internal/pkg/metrics"
)

func main() {
	cfg, err := config.Load("menuwatch-collector")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	bootstrap.Logging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown := bootstrap.Tracing(ctx, cfg.Telemetry)
	defer func() { _ = shutdown(context.Background()) }()

	store, err := bootstrap.OpenStore(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	publisher, closePublisher := bootstrap.Publisher(cfg.NATS)
	defer closePublisher()

	collector, err := bootstrap.Collector(cfg, store, publisher)
	if err != nil {
		log.Fatalf("collector: %v", err)
	}

	// Prometheus scrape endpoint
	metricsApp := fiber.New(fiber.Config{DisableStartupMessage: true})
	metricsApp.Get("/metrics", metrics.Handler())
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Collector.MetricsPort)
		slog.Info("metrics server starting", "addr", addr)
		if err := metricsApp.Listen(addr); err != nil {
			slog.Error("metrics server stopped", "error", err)
		}
	}()

	slog.Info("collector started",
		"interval", cfg.Collector.Interval().String(),
		"batch_size", cfg.Collector.BatchSize,
		"rate_per_sec", cfg.Collector.RatePerSec,
	)
	if err := collector.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("collector stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsApp.ShutdownWithContext(shutdownCtx)
	slog.Info("collector stopped")
}
