package bootstrap_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/menuwatch/internal/bootstrap"
	"github.com/samirrijal/menuwatch/internal/core/domain"
	"github.com/samirrijal/menuwatch/internal/core/usecases"
	"github.com/samirrijal/menuwatch/internal/pkg/config"
)

func TestMatchingConfig(t *testing.T) {
	cfg := bootstrap.MatchingConfig(config.NearbyConfig{
		MatchMeters: 250,
		IDKeys:      []string{"restaurantNumber"},
	})
	assert.Equal(t, 250.0, cfg.MatchMeters)
	assert.True(t, cfg.IDKeys.Contains("RESTAURANTNUMBER"))
	assert.False(t, cfg.IDKeys.Contains("id"))
	assert.True(t, cfg.LatKeys.Contains("latitude"), "unset key sets keep defaults")
	require.NoError(t, cfg.Validate())

	def := bootstrap.MatchingConfig(config.NearbyConfig{})
	assert.Equal(t, 400.0, def.MatchMeters)
}

func TestOpenStore_SQLite(t *testing.T) {
	ctx := context.Background()
	store, err := bootstrap.OpenStore(ctx, config.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Locations.Upsert(ctx, &domain.Location{ID: "kgl_1", Region: "QC"}))
	n, err := store.Locations.Count(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := bootstrap.OpenStore(context.Background(), config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, err)
}

func TestOptionalServices(t *testing.T) {
	p, closeFn := bootstrap.Publisher(config.NATSConfig{})
	assert.Nil(t, p)
	closeFn()

	sub, closeSub := bootstrap.Subscriber(config.NATSConfig{})
	assert.Nil(t, sub)
	closeSub()

	c, closeCache := bootstrap.Cache(context.Background(), config.ValkeyConfig{})
	assert.Nil(t, c)
	assert.Nil(t, bootstrap.CacheService(c))
	closeCache()
}

func TestReconcilerDryRunOnEmptyRegion(t *testing.T) {
	ctx := context.Background()
	cfg, err := config.Load("bootstrap-test")
	require.NoError(t, err)
	cfg.Database = config.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:"}

	store, err := bootstrap.OpenStore(ctx, cfg.Database)
	require.NoError(t, err)
	defer store.Close()

	svc, client, err := bootstrap.Reconciler(cfg, store, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, client)

	summary, err := svc.Run(ctx, "QC", usecases.ReconcileOptions{DryRun: true})
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
}
