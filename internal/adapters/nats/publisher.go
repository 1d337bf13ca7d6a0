package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/menuwatch/internal/core/domain"
)

// Subject roots.
const (
	ObservationSubject = "menuwatch.observation"
	OutcomeSubject     = "menuwatch.reconcile"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// Streams returns the stream definitions the publisher relies on.
func Streams() []nats.StreamConfig {
	return []nats.StreamConfig{
		{
			Name:      "MENU_OBSERVATIONS",
			Subjects:  []string{ObservationSubject + ".>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "MENU_RECONCILE",
			Subjects:  []string{OutcomeSubject + ".>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	for _, cfg := range Streams() {
		cfg := cfg
		if _, err := js.AddStream(&cfg); err != nil {
			// already exists; update in place
			if _, err := js.UpdateStream(&cfg); err != nil {
				conn.Close()
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishObservation publishes one availability check.
func (p *Publisher) PublishObservation(ctx context.Context, o *domain.Observation) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(ObservationSubject+"."+SubjectToken(o.LocationID), data, nats.Context(ctx))
	return err
}

// PublishOutcome publishes one reconciliation outcome.
func (p *Publisher) PublishOutcome(ctx context.Context, o *domain.LocationOutcome) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(OutcomeSubject+"."+SubjectToken(o.Region), data, nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// SubjectToken makes s safe to use as a single subject token.
func SubjectToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("menuwatch"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
