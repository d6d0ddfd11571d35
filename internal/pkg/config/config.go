package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/samirrijal/safespot/internal/core/hazard"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Grid      GridConfig      `mapstructure:"grid"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Hazard    HazardConfig    `mapstructure:"hazard"`
	Session   SessionConfig   `mapstructure:"session"`
	Geocoding GeocodingConfig `mapstructure:"geocoding"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    int           `mapstructure:"read_timeout"`
	WriteTimeout   int           `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	OpenAPIPath    string        `mapstructure:"openapi_path"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
}

// DSN builds a pgx connection string. MaxConns is passed through as
// pool_max_conns so pgxpool picks it up.
func (d DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
	if d.MaxConns > 0 {
		dsn += fmt.Sprintf("&pool_max_conns=%d", d.MaxConns)
	}
	return dsn
}

// NATSConfig configures route publishing and hazard subscriptions. An empty
// URL disables both.
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// ValkeyConfig configures the shared route cache. An empty Addr disables it.
type ValkeyConfig struct {
	Addr   string `mapstructure:"addr"`
	Prefix string `mapstructure:"prefix"`
}

// MQTTConfig configures the hazard sensor feed. An empty Broker disables it.
type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// GridConfig selects where the navigation grid is loaded from.
type GridConfig struct {
	Source string `mapstructure:"source"` // "file" or "postgres"
	Name   string `mapstructure:"name"`   // grid name in the store
	Dir    string `mapstructure:"dir"`    // directory of <name>.yaml files
}

type RoutingConfig struct {
	// Connectivity overrides the grid's own movement model when non-zero.
	Connectivity     int           `mapstructure:"connectivity"`
	RecomputeTimeout time.Duration `mapstructure:"recompute_timeout"`
}

// HazardConfig shapes the penalty field. Distances are in cells.
type HazardConfig struct {
	Radius       float64 `mapstructure:"radius"`
	PeakPenalty  float64 `mapstructure:"peak_penalty"`
	LethalRadius float64 `mapstructure:"lethal_radius"`
}

// Field converts the section into the penalty field configuration.
func (h HazardConfig) Field() hazard.Config {
	return hazard.Config{Radius: h.Radius, PeakPenalty: h.PeakPenalty, LethalRadius: h.LethalRadius}
}

type SessionConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// GeocodingConfig enables address starts. An empty APIKey disables them.
type GeocodingConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from .env, an optional config file and
// environment variables, in increasing order of precedence.
func Load(service string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, service)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Environment variables: SAFESPOT_HAZARD_RADIUS → hazard.radius
	v.SetEnvPrefix("SAFESPOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("server.openapi_path", "api/openapi.yaml")
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "safespot")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "safespot")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("nats.url", "")
	v.SetDefault("valkey.addr", "")
	v.SetDefault("valkey.prefix", "safespot:")
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", service)
	v.SetDefault("mqtt.topic_prefix", "safespot/hazard")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("grid.source", "file")
	v.SetDefault("grid.name", "bilbao-old-town")
	v.SetDefault("grid.dir", "grids")
	v.SetDefault("routing.connectivity", 0)
	v.SetDefault("routing.recompute_timeout", "2s")
	v.SetDefault("hazard.radius", 4.0)
	v.SetDefault("hazard.peak_penalty", 50.0)
	v.SetDefault("hazard.lethal_radius", 0.0)
	v.SetDefault("session.idle_timeout", "30m")
	v.SetDefault("session.sweep_interval", "1m")
	v.SetDefault("geocoding.api_key", "")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "safespot-simulation")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that required configuration fields are present and sane.
// Every problem is reported, not just the first.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "server.request_timeout must be positive")
	}

	if c.Database.Enabled || c.Grid.Source == "postgres" {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}

	if c.MQTT.Broker != "" {
		if c.MQTT.ClientID == "" {
			errs = append(errs, "mqtt.client_id is required when mqtt.broker is set")
		}
		if strings.ContainsAny(c.MQTT.TopicPrefix, "+#") {
			errs = append(errs, fmt.Sprintf("mqtt.topic_prefix must not contain wildcards, got %q", c.MQTT.TopicPrefix))
		}
	}

	switch c.Grid.Source {
	case "file":
		if c.Grid.Dir == "" {
			errs = append(errs, "grid.dir is required for file grids")
		}
	case "postgres":
	default:
		errs = append(errs, fmt.Sprintf("grid.source must be file or postgres, got %q", c.Grid.Source))
	}
	if c.Grid.Name == "" {
		errs = append(errs, "grid.name is required")
	}

	if c.Routing.Connectivity != 0 && c.Routing.Connectivity != 4 && c.Routing.Connectivity != 8 {
		errs = append(errs, fmt.Sprintf("routing.connectivity must be 4 or 8, got %d", c.Routing.Connectivity))
	}
	if c.Routing.RecomputeTimeout <= 0 {
		errs = append(errs, "routing.recompute_timeout must be positive")
	}

	if err := c.Hazard.Field().Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Session.IdleTimeout <= 0 {
		errs = append(errs, "session.idle_timeout must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		errs = append(errs, "session.sweep_interval must be positive")
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

