package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/menuwatch/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeOutcomes delivers every reconciliation outcome to handler under
// the durable consumer name. Failed deliveries are redelivered up to three times.
func (s *Subscriber) SubscribeOutcomes(ctx context.Context, durable string, handler func(ctx context.Context, o *domain.LocationOutcome) error) error {
	sub, err := s.js.Subscribe(OutcomeSubject+".>", func(msg *nats.Msg) {
		var o domain.LocationOutcome
		if err := json.Unmarshal(msg.Data, &o); err != nil {
			// poison message; redelivery will not help
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &o); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
		nats.DeliverNew(),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains the connection.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
