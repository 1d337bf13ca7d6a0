package http

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/menuwatch/internal/adapters/nats"
	"github.com/samirrijal/menuwatch/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to feeds.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // "observations" | "reconcile" (default: observations)
	Filter  string `json:"filter"`  // location ID for observations, region for reconcile; "" = all
}

// wsSubject maps a client request to a NATS subject.
func wsSubject(channel, filter string) (string, bool) {
	if channel == "" {
		channel = "observations"
	}
	var root string
	switch channel {
	case "observations":
		root = natsadapter.ObservationSubject
	case "reconcile":
		root = natsadapter.OutcomeSubject
		filter = strings.ToUpper(filter)
	default:
		return "", false
	}
	if strings.TrimSpace(filter) == "" {
		return root + ".>", true
	}
	return root + "." + natsadapter.SubjectToken(filter), true
}

// WebSocketHandler returns a handler that relays NATS events to connected clients.
// Clients send JSON: {"action":"subscribe","channel":"reconcile","filter":"QC"}.
// Every client starts subscribed to all observations.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		log := slog.With("remote", c.RemoteAddr().String())
		log.Info("ws client connected")

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription)

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		relay := func(msg *nats.Msg) {
			_ = writeJSON(json.RawMessage(msg.Data))
		}

		defaultSubject, _ := wsSubject("", "")
		sub, err := nc.Subscribe(defaultSubject, relay)
		if err != nil {
			log.Error("ws default subscribe failed", "error", err)
			return
		}
		subs[defaultSubject] = sub

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			subject, ok := wsSubject(m.Channel, m.Filter)
			if !ok {
				_ = writeJSON(map[string]string{"error": "unknown channel: " + m.Channel})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, relay)
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		log.Info("ws client disconnected")
	}
}
