package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/menuwatch/internal/core/usecases"
)

// Pinger is a backing service the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Locations *usecases.LocationService
	NATS      *nats.Conn
	DB        Pinger
	Cache     Pinger
}
