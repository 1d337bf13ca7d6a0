package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/menuwatch/internal/adapters/http"
	natsadapter "github.com/samirrijal/menuwatch/internal/adapters/nats"
	"github.com/samirrijal/menuwatch/internal/bootstrap"
	"github.com/samirrijal/menuwatch/internal/core/domain"
	"github.com/samirrijal/menuwatch/internal/core/usecases"
	"github.com/samirrijal/menuwatch/internal/pkg/config"
)

// cacheInvalidator is the durable consumer that drops cached entries after merges.
const cacheInvalidator = "api-cache-invalidator"

func main() {
	cfg, err := config.Load("menuwatch-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	bootstrap.Logging(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := bootstrap.Tracing(ctx, cfg.Telemetry)
	defer func() { _ = shutdownTracing(context.Background()) }()

	store, err := bootstrap.OpenStore(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	cache, closeCache := bootstrap.Cache(ctx, cfg.Valkey)
	defer closeCache()

	locationSvc := usecases.NewLocationService(store.Locations, store.Observations, bootstrap.CacheService(cache))

	deps := &http.Dependencies{
		Locations: locationSvc,
		DB:        store,
	}
	if cache != nil {
		deps.Cache = cache
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		deps.NATS = natsConn
		defer natsConn.Close()
	}

	if cache != nil {
		sub, closeSub := bootstrap.Subscriber(cfg.NATS)
		defer closeSub()
		if sub != nil {
			err := sub.SubscribeOutcomes(ctx, cacheInvalidator, func(ctx context.Context, o *domain.LocationOutcome) error {
				return locationSvc.ForgetOutcome(ctx, o)
			})
			if err != nil {
				slog.Warn("subscribe reconcile outcomes failed, cache relies on TTL", "error", err)
			}
		}
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "menuwatch API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
