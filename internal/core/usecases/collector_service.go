package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/samirrijal/menuwatch/internal/core/domain"
	"github.com/samirrijal/menuwatch/internal/core/ports"
	"github.com/samirrijal/menuwatch/internal/pkg/metrics"
)

// UnknownItemID stands in for menu entries the gateway returns without an id.
const UnknownItemID = "unknown_item"

const minRatePerSec = 0.1

// CollectorOptions tune the availability poller.
type CollectorOptions struct {
	BatchSize     int
	RatePerSec    float64
	CanonicalOnly bool
	Interval      time.Duration
}

// CollectorService polls every location's menu and records availability.
type CollectorService struct {
	locations    ports.LocationRepository
	items        ports.ItemRepository
	observations ports.ObservationRepository
	menus        ports.MenuGateway
	publisher    ports.EventPublisher
	classifier   *ItemClassifier
	limiter      *rate.Limiter
	opts         CollectorOptions
	now          func() time.Time
}

// NewCollectorService creates a new CollectorService. publisher may be nil.
func NewCollectorService(
	locations ports.LocationRepository,
	items ports.ItemRepository,
	observations ports.ObservationRepository,
	menus ports.MenuGateway,
	publisher ports.EventPublisher,
	classifier *ItemClassifier,
	opts CollectorOptions,
) *CollectorService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 150
	}
	if opts.Interval < time.Minute {
		opts.Interval = time.Minute
	}
	limit := rate.Limit(max(opts.RatePerSec, minRatePerSec))
	if math.IsInf(opts.RatePerSec, 1) || opts.RatePerSec >= float64(rate.Inf) {
		limit = rate.Inf
	}
	return &CollectorService{
		locations:    locations,
		items:        items,
		observations: observations,
		menus:        menus,
		publisher:    publisher,
		classifier:   classifier,
		limiter:      rate.NewLimiter(limit, 1),
		opts:         opts,
		now:          time.Now,
	}
}

// Run collects immediately and then every Interval until ctx is cancelled.
// A failed pass is logged and the loop keeps going.
func (s *CollectorService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("collector pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs one full pass over all locations, in identifier order.
func (s *CollectorService) RunOnce(ctx context.Context) (*domain.BatchSummary, error) {
	sum := &domain.BatchSummary{StartedAt: s.now().UTC()}
	start := time.Now()
	defer func() { metrics.PollDuration.Observe(time.Since(start).Seconds()) }()

	total, err := s.locations.Count(ctx, s.opts.CanonicalOnly)
	if err != nil {
		return nil, fmt.Errorf("count locations: %w", err)
	}
	slog.Info("collector pass started", "locations", total)

	for offset := 0; offset < total; {
		batch, err := s.locations.List(ctx, s.opts.CanonicalOnly, offset, s.opts.BatchSize)
		if err != nil {
			return sum, fmt.Errorf("list locations at offset %d: %w", offset, err)
		}
		if len(batch) == 0 {
			break
		}
		for i := range batch {
			if err := s.limiter.Wait(ctx); err != nil {
				return sum, err
			}
			items, green, err := s.collectLocation(ctx, batch[i].ID)
			sum.Locations++
			if err != nil {
				sum.Failed++
				continue
			}
			sum.Items += items
			sum.Available += green
		}
		offset += len(batch)
	}

	if err := s.locations.RefreshLatest(ctx); err != nil {
		slog.Warn("latest availability refresh failed", "error", err)
	}

	sum.FinishedAt = s.now().UTC()
	slog.Info("collector pass done",
		"locations", sum.Locations,
		"failed", sum.Failed,
		"items", sum.Items,
		"available", sum.Available,
		"finished_at", sum.FinishedAt.Format(time.RFC3339),
	)
	return sum, nil
}

// collectLocation records every menu entry of one location. Entry-level
// store errors are logged and skipped; only a fetch failure fails the location.
func (s *CollectorService) collectLocation(ctx context.Context, locationID string) (int, int, error) {
	entries, err := s.menus.StoreMenu(ctx, locationID)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("fetch").Inc()
		slog.Warn("menu fetch failed", "location_id", locationID, "error", err)
		return 0, 0, err
	}

	var items, green int
	for _, e := range entries {
		itemID := strings.TrimSpace(e.ItemID)
		if itemID == "" {
			itemID = UnknownItemID
		}

		name, err := s.items.Name(ctx, itemID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			slog.Debug("item name lookup failed", "item_id", itemID, "error", err)
		}
		s.upsertItem(ctx, itemID, name)

		items++
		if e.Available {
			green++
		}

		obs := &domain.Observation{
			LocationID: locationID,
			ItemID:     itemID,
			Available:  e.Available,
			PriceCents: e.PriceCents,
			CheckedAt:  s.now().UTC(),
		}
		if err := s.record(ctx, obs); err != nil {
			metrics.FetchErrors.WithLabelValues("store").Inc()
			slog.Warn("observation insert failed",
				"location_id", locationID, "item_id", itemID, "error", err)
			continue
		}
		metrics.ChecksRecorded.WithLabelValues(strconv.FormatBool(e.Available)).Inc()
		if s.publisher != nil {
			if err := s.publisher.PublishObservation(ctx, obs); err != nil {
				slog.Debug("observation publish failed", "location_id", locationID, "error", err)
			}
		}
	}

	slog.Info(fmt.Sprintf("[%s] items:%d green:%d", locationID, items, green),
		"location_id", locationID, "items", items, "available", green)
	return items, green, nil
}

// record inserts o, creating a bare item row and retrying once when the
// item is missing.
func (s *CollectorService) record(ctx context.Context, o *domain.Observation) error {
	err := s.observations.Insert(ctx, o)
	if !errors.Is(err, domain.ErrUnknownItem) {
		return err
	}
	s.upsertItem(ctx, o.ItemID, "")
	return s.observations.Insert(ctx, o)
}

func (s *CollectorService) upsertItem(ctx context.Context, id, name string) {
	item := &domain.Item{ID: id, NameEN: name, NameFR: name, Family: s.classifier.Family(name)}
	if err := s.items.Upsert(ctx, item); err != nil {
		slog.Warn("item upsert failed", "item_id", id, "error", err)
	}
}
