package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/safespot/internal/core/domain"
	"github.com/samirrijal/safespot/internal/pkg/metrics"
)

const (
	// hazardConsumer is shared by every API instance. The hazard stream is a
	// work queue, so each report reaches one instance; reports for sessions
	// that instance does not own are dropped by the handler.
	hazardConsumer  = "hazard-processor"
	redeliveryDelay = time.Second
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// ackable is the acknowledgement surface of a JetStream message.
type ackable interface {
	Ack(opts ...nats.AckOpt) error
	NakWithDelay(delay time.Duration, opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

// SubscribeHazardReports feeds every report on safespot.hazard.> to handler.
// Undecodable reports are terminated. A handler error means the report was
// not applied, so it is redelivered; reports the handler accepted or dropped
// are acked and never replayed over newer ones.
func (s *Subscriber) SubscribeHazardReports(ctx context.Context, handler func(ctx context.Context, report *domain.HazardReport) error) error {
	sub, err := s.js.Subscribe(SubjectHazardPrefix+">", func(msg *nats.Msg) {
		handleHazardMsg(ctx, msg.Subject, msg.Data, msg, handler)
	},
		nats.Durable(hazardConsumer),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func handleHazardMsg(ctx context.Context, subject string, data []byte, msg ackable, handler func(context.Context, *domain.HazardReport) error) {
	var report domain.HazardReport
	if err := json.Unmarshal(data, &report); err != nil || report.SessionID == "" {
		slog.Warn("malformed hazard report", "subject", subject, "error", err)
		_ = msg.Term()
		return
	}
	metrics.HazardReports.WithLabelValues("nats").Inc()
	if err := handler(ctx, &report); err != nil {
		slog.Warn("hazard report not applied, redelivering", "session", report.SessionID, "error", err)
		_ = msg.NakWithDelay(redeliveryDelay)
		return
	}
	_ = msg.Ack()
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
