package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/safespot/internal/adapters/nats"
	"github.com/samirrijal/safespot/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to route feeds.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Session string `json:"session"` // session id, "" = every session
}

// WebSocketHandler returns a handler that upgrades to WebSocket and relays
// route updates published on NATS to connected clients.
// Clients send JSON: {"action":"subscribe","session":"abc"}
// A session given as a query parameter (?session=abc) is subscribed on connect.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		log := slog.With("remote", c.RemoteAddr().String())
		log.Info("ws client connected")

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		subscribe := func(subject string) {
			if _, exists := subs[subject]; exists {
				_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
				return
			}
			s, err := nc.Subscribe(subject, func(msg *nats.Msg) {
				_ = writeJSON(json.RawMessage(msg.Data))
			})
			if err != nil {
				log.Warn("ws subscribe failed", "subject", subject, "error", err)
				_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
				return
			}
			subs[subject] = s
			_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})
		}

		if id := c.Query("session"); id != "" {
			subscribe(natsadapter.RouteSubject(id))
		}

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

			subject := natsadapter.SubjectRouteWildcard
			if m.Session != "" {
				subject = natsadapter.RouteSubject(m.Session)
			}

			switch m.Action {
			case "subscribe":
				subscribe(subject)
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
		log.Info("ws client disconnected", "subscriptions", len(subs))
	}
}
