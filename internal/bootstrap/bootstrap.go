// Package bootstrap wires configuration to adapters for the binaries in cmd/.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samirrijal/menuwatch/internal/adapters/gateway"
	natsadapter "github.com/samirrijal/menuwatch/internal/adapters/nats"
	"github.com/samirrijal/menuwatch/internal/adapters/postgres"
	"github.com/samirrijal/menuwatch/internal/adapters/sqlite"
	"github.com/samirrijal/menuwatch/internal/adapters/valkey"
	"github.com/samirrijal/menuwatch/internal/core/matching"
	"github.com/samirrijal/menuwatch/internal/core/ports"
	"github.com/samirrijal/menuwatch/internal/core/usecases"
	"github.com/samirrijal/menuwatch/internal/pkg/config"
	"github.com/samirrijal/menuwatch/internal/pkg/logging"
	"github.com/samirrijal/menuwatch/internal/pkg/telemetry"
)

// Store bundles the repositories of one backing store.
type Store struct {
	Locations    ports.LocationRepository
	Observations ports.ObservationRepository
	Items        ports.ItemRepository
	ping         func(context.Context) error
	close        func()
}

// Ping checks the store connection.
func (s *Store) Ping(ctx context.Context) error { return s.ping(ctx) }

// Close releases the store connection.
func (s *Store) Close() { s.close() }

// OpenStore connects to the configured driver.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return &Store{
			Locations:    sqlite.NewLocationRepo(db),
			Observations: sqlite.NewObservationRepo(db),
			Items:        sqlite.NewItemRepo(db),
			ping:         db.Ping,
			close:        func() { _ = db.Close() },
		}, nil
	case "postgres", "":
		db, err := postgres.New(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return &Store{
			Locations:    postgres.NewLocationRepo(db),
			Observations: postgres.NewObservationRepo(db),
			Items:        postgres.NewItemRepo(db),
			ping:         db.Ping,
			close:        db.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// MatchingConfig builds the scanner/resolver configuration.
func MatchingConfig(nb config.NearbyConfig) matching.Config {
	cfg := matching.DefaultConfig()
	if nb.MatchMeters > 0 {
		cfg.MatchMeters = nb.MatchMeters
	}
	if len(nb.IDKeys) > 0 {
		cfg.IDKeys = matching.NewKeySet(nb.IDKeys...)
	}
	if len(nb.LatKeys) > 0 {
		cfg.LatKeys = matching.NewKeySet(nb.LatKeys...)
	}
	if len(nb.LonKeys) > 0 {
		cfg.LonKeys = matching.NewKeySet(nb.LonKeys...)
	}
	return cfg
}

// Logging installs the default slog handler.
func Logging(cfg config.LogConfig) {
	logging.Setup(cfg.Level, cfg.Format)
}

// Tracing starts the OTLP exporter when enabled. The returned func is always safe to call.
func Tracing(ctx context.Context, cfg config.TelemetryConfig) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop
	}
	shutdown, err := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.TempoAddr, cfg.SampleRatio)
	if err != nil {
		slog.Warn("telemetry init failed", "error", err)
		return noop
	}
	return shutdown
}

// Publisher connects the event publisher. NATS is optional: on failure the
// returned publisher is nil and close is a no-op.
func Publisher(cfg config.NATSConfig) (ports.EventPublisher, func()) {
	if cfg.URL == "" {
		return nil, func() {}
	}
	p, err := natsadapter.NewPublisher(cfg.URL)
	if err != nil {
		slog.Warn("nats unavailable, events disabled", "error", err)
		return nil, func() {}
	}
	return p, p.Close
}

// Cache connects the Valkey cache. The cache is optional like the publisher.
func Cache(ctx context.Context, cfg config.ValkeyConfig) (*valkey.Cache, func()) {
	if cfg.Addr == "" {
		return nil, func() {}
	}
	c, err := valkey.New(cfg.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
		return nil, func() {}
	}
	if err := c.Ping(ctx); err != nil {
		slog.Warn("valkey unreachable", "error", err)
		c.Close()
		return nil, func() {}
	}
	return c, c.Close
}

// Reconciler assembles a ReconcileService and the gateway client behind it.
func Reconciler(cfg *config.Config, store *Store, cache ports.CacheService, publisher ports.EventPublisher) (*usecases.ReconcileService, *gateway.Client, error) {
	client, err := gateway.New(cfg.Gateway)
	if err != nil {
		return nil, nil, err
	}
	nearby, err := gateway.NewNearbyClient(client, cfg.Gateway, cfg.Nearby)
	if err != nil {
		return nil, nil, err
	}
	mcfg := MatchingConfig(cfg.Nearby)
	if err := mcfg.Validate(); err != nil {
		return nil, nil, err
	}
	merger := usecases.NewIdentityService(store.Locations, store.Observations, cache)
	svc := usecases.NewReconcileService(store.Locations, nearby, merger, publisher, mcfg, cfg.Nearby.Limit)
	return svc, client, nil
}

// Collector assembles a CollectorService.
func Collector(cfg *config.Config, store *Store, publisher ports.EventPublisher) (*usecases.CollectorService, error) {
	client, err := gateway.New(cfg.Gateway)
	if err != nil {
		return nil, err
	}
	menus, err := gateway.NewMenuClient(client, cfg.Gateway)
	if err != nil {
		return nil, err
	}
	classifier, err := usecases.NewItemClassifier(usecases.FamilyIcedCapp, cfg.Collector.Patterns())
	if err != nil {
		return nil, err
	}
	return usecases.NewCollectorService(store.Locations, store.Items, store.Observations, menus, publisher, classifier,
		usecases.CollectorOptions{
			BatchSize:     cfg.Collector.BatchSize,
			RatePerSec:    cfg.Collector.RatePerSec,
			CanonicalOnly: cfg.Collector.CanonicalOnly,
			Interval:      cfg.Collector.Interval(),
		}), nil
}

// CacheService adapts an optional cache to the port without a typed nil.
func CacheService(c *valkey.Cache) ports.CacheService {
	if c == nil {
		return nil
	}
	return c
}

// Subscriber connects an event subscriber. Like Publisher it is optional.
func Subscriber(cfg config.NATSConfig) (ports.EventSubscriber, func()) {
	if cfg.URL == "" {
		return nil, func() {}
	}
	s, err := natsadapter.NewSubscriber(cfg.URL)
	if err != nil {
		slog.Warn("nats subscriber unavailable", "error", err)
		return nil, func() {}
	}
	return s, s.Close
}
