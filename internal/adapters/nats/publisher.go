package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/safespot/internal/core/domain"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStreams(js); err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, js: js}, nil
}

func ensureStreams(js nats.JetStreamContext) error {
	streams := []nats.StreamConfig{
		{
			Name:      "SAFESPOT_ROUTES",
			Subjects:  []string{"safespot.route.>", "safespot.session.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "SAFESPOT_HAZARDS",
			Subjects:  []string{"safespot.hazard.>"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist; try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

func (p *Publisher) PublishRouteUpdate(ctx context.Context, update *domain.RouteUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(RouteSubject(update.SessionID), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishSessionClosed(ctx context.Context, sessionID string) error {
	_, err := p.js.Publish(ClosedSubject(sessionID), []byte(sessionID), nats.Context(ctx))
	return err
}

func (p *Publisher) PublishHazardReport(ctx context.Context, report *domain.HazardReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(HazardSubject(report.SessionID), data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for health checks.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
