package config

import (
	"math"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 10, RequestTimeout: 15 * time.Second},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "safespot", DBName: "safespot"},
		Grid:     GridConfig{Source: "file", Name: "bilbao-old-town", Dir: "grids"},
		Routing:  RoutingConfig{RecomputeTimeout: 2 * time.Second},
		Hazard:   HazardConfig{Radius: 4, PeakPenalty: 50},
		Session:  SessionConfig{IdleTimeout: 30 * time.Minute, SweepInterval: time.Minute},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	c := validConfig()
	c.Server.Port = 0
	c.Grid.Source = "s3"
	c.Routing.Connectivity = 6
	c.Hazard.Radius = -1
	c.Session.IdleTimeout = 0

	err := c.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.port", "grid.source", "routing.connectivity", "hazard radius", "session.idle_timeout"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestValidate_DatabaseOnlyWhenUsed(t *testing.T) {
	c := validConfig()
	c.Database = DatabaseConfig{}
	if err := c.Validate(); err != nil {
		t.Fatalf("database should be optional for file grids, got %v", err)
	}

	c.Grid.Source = "postgres"
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "database.host") {
		t.Fatalf("expected database errors for postgres grids, got %v", err)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SAFESPOT_HAZARD_RADIUS", "7.5")
	t.Setenv("SAFESPOT_ROUTING_RECOMPUTE_TIMEOUT", "750ms")
	t.Setenv("SAFESPOT_GRID_NAME", "harbor")

	cfg, err := Load("safespot-api")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Hazard.Radius != 7.5 {
		t.Errorf("expected radius 7.5, got %v", cfg.Hazard.Radius)
	}
	if cfg.Routing.RecomputeTimeout != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %v", cfg.Routing.RecomputeTimeout)
	}
	if cfg.Grid.Name != "harbor" {
		t.Errorf("expected grid harbor, got %q", cfg.Grid.Name)
	}
	if cfg.Telemetry.ServiceName != "safespot-api" {
		t.Errorf("expected service name default, got %q", cfg.Telemetry.ServiceName)
	}
	if cfg.Session.IdleTimeout != 30*time.Minute {
		t.Errorf("expected default idle timeout, got %v", cfg.Session.IdleTimeout)
	}
}

func TestValidate_MQTT(t *testing.T) {
	c := validConfig()
	c.MQTT = MQTTConfig{Broker: "tcp://broker:1883", TopicPrefix: "safespot/#"}

	err := c.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"mqtt.client_id", "mqtt.topic_prefix"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}

	c.MQTT = MQTTConfig{TopicPrefix: "#"}
	if err := c.Validate(); err != nil {
		t.Fatalf("disabled mqtt should not be validated, got %v", err)
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "safespot", SSLMode: "disable"}
	if got, want := d.DSN(), "postgres://u:p@db:5432/safespot?sslmode=disable"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	d.MaxConns = 4
	if got := d.DSN(); !strings.HasSuffix(got, "&pool_max_conns=4") {
		t.Errorf("expected pool_max_conns in %q", got)
	}
}

func TestValidate_HazardField(t *testing.T) {
	c := validConfig()
	c.Hazard.LethalRadius = math.NaN()
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "lethal radius") {
		t.Fatalf("expected lethal radius error, got %v", err)
	}

	c = validConfig()
	c.Hazard.PeakPenalty = math.Inf(1)
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "peak penalty") {
		t.Fatalf("expected peak penalty error, got %v", err)
	}

	c = validConfig()
	if got := c.Hazard.Field(); got.Radius != c.Hazard.Radius || got.PeakPenalty != c.Hazard.PeakPenalty || got.LethalRadius != c.Hazard.LethalRadius {
		t.Errorf("field config does not mirror the section: %+v", got)
	}
}
