package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "menuwatch",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "menuwatch",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "menuwatch",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Collector metrics
	ChecksRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "menuwatch",
		Subsystem: "collector",
		Name:      "checks_recorded_total",
		Help:      "Total item availability checks written",
	}, []string{"available"})

	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "menuwatch",
		Subsystem: "collector",
		Name:      "fetch_errors_total",
		Help:      "Total locations whose menu could not be fetched or stored",
	}, []string{"stage"})

	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "menuwatch",
		Subsystem: "collector",
		Name:      "poll_duration_seconds",
		Help:      "Duration of one full collector pass",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	// Reconciliation metrics
	ReconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "menuwatch",
		Subsystem: "reconcile",
		Name:      "outcomes_total",
		Help:      "Per-location reconciliation outcomes",
	}, []string{"outcome", "tier", "reason"})

	MatchDistance = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "menuwatch",
		Subsystem: "reconcile",
		Name:      "match_distance_meters",
		Help:      "Distance between a location and its accepted canonical candidate",
		Buckets:   []float64{5, 10, 25, 50, 100, 200, 300, 400},
	}, []string{"tier"})

	Merges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "menuwatch",
		Subsystem: "reconcile",
		Name:      "merges_total",
		Help:      "Identity merges by mode",
	}, []string{"mode"})

	// Gateway metrics
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "menuwatch",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Gateway requests by operation and result",
	}, []string{"operation", "result"})

	GatewayRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "menuwatch",
		Subsystem: "gateway",
		Name:      "retries_total",
		Help:      "Gateway transport retries",
	}, []string{"operation"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "menuwatch",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "menuwatch",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "menuwatch",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "menuwatch",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "menuwatch",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "menuwatch",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics copies pool gauges from a pgxpool.Stat-like value.
// The metrics package stays free of the database driver.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}

// ObserveOutcome records one reconciliation outcome.
func ObserveOutcome(outcome, tier, reason string, distance float64) {
	ReconcileOutcomes.WithLabelValues(outcome, tier, reason).Inc()
	if tier != "" {
		MatchDistance.WithLabelValues(tier).Observe(distance)
	}
}
