// Package mqttadapter ingests hazard positions published by field sensors
// over MQTT.
//
// Sensors publish to <prefix>/<session id>. The payload is either a JSON
// {"latitude": .., "longitude": ..} object or a raw NMEA sentence from the
// tracker's GPS receiver.
package mqttadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/samirrijal/safespot/internal/adapters/gpstrack"
	"github.com/samirrijal/safespot/internal/core/domain"
	"github.com/samirrijal/safespot/internal/pkg/metrics"
)

// Client is the subset of the paho client the feed needs.
type Client interface {
	Connect() mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// DefaultTopicPrefix is used when none is configured.
const DefaultTopicPrefix = "safespot/hazard"

const tokenTimeout = 10 * time.Second

// HazardFeed subscribes to sensor topics and forwards decoded reports.
type HazardFeed struct {
	client Client
	prefix string
	now    func() time.Time
}

// Dial connects to broker with automatic reconnects.
func Dial(broker, clientID string) (Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOrderMatters(false)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(tokenTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	return client, nil
}

// NewHazardFeed creates a feed on an already connected client.
func NewHazardFeed(client Client, prefix string) *HazardFeed {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &HazardFeed{client: client, prefix: prefix, now: time.Now}
}

// Subscribe forwards every decodable report to handler until Close. Reports
// that cannot be decoded are logged and dropped; MQTT has no redelivery to
// ask for.
func (f *HazardFeed) Subscribe(ctx context.Context, handler func(context.Context, *domain.HazardReport) error) error {
	topic := f.prefix + "/+"
	token := f.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		report, err := f.decode(msg.Topic(), msg.Payload())
		if err != nil {
			slog.Warn("dropping mqtt hazard report", "topic", msg.Topic(), "error", err)
			return
		}
		metrics.HazardReports.WithLabelValues("mqtt").Inc()
		if err := handler(ctx, report); err != nil {
			slog.Error("mqtt hazard report failed", "session", report.SessionID, "error", err)
		}
	})
	if !token.WaitTimeout(tokenTimeout) {
		return fmt.Errorf("mqtt subscribe %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	slog.Info("mqtt hazard feed subscribed", "topic", topic)
	return nil
}

// Close unsubscribes and disconnects.
func (f *HazardFeed) Close() {
	f.client.Unsubscribe(f.prefix + "/+").WaitTimeout(tokenTimeout)
	f.client.Disconnect(250)
}

func (f *HazardFeed) decode(topic string, payload []byte) (*domain.HazardReport, error) {
	id := strings.TrimPrefix(topic, f.prefix+"/")
	if id == "" || id == topic || strings.Contains(id, "/") {
		return nil, fmt.Errorf("unexpected topic %q", topic)
	}

	payload = bytes.TrimSpace(payload)
	var p domain.GeoPoint
	switch {
	case len(payload) == 0:
		return nil, errors.New("empty payload")
	case payload[0] == '$':
		var err error
		if p, err = gpstrack.ParseSentence(string(payload)); err != nil {
			return nil, err
		}
	default:
		var body struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		if body.Latitude == nil || body.Longitude == nil {
			return nil, errors.New("latitude and longitude are required")
		}
		p = domain.GeoPoint{Latitude: *body.Latitude, Longitude: *body.Longitude}
	}

	return &domain.HazardReport{SessionID: id, Location: p, Time: f.now()}, nil
}
