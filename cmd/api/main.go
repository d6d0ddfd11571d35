package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/safespot/internal/adapters/geocoding"
	"github.com/samirrijal/safespot/internal/adapters/gridfile"
	"github.com/samirrijal/safespot/internal/adapters/http"
	mqttadapter "github.com/samirrijal/safespot/internal/adapters/mqtt"
	natsadapter "github.com/samirrijal/safespot/internal/adapters/nats"
	"github.com/samirrijal/safespot/internal/adapters/postgres"
	"github.com/samirrijal/safespot/internal/adapters/valkey"
	"github.com/samirrijal/safespot/internal/core/domain"
	"github.com/samirrijal/safespot/internal/core/navgrid"
	"github.com/samirrijal/safespot/internal/core/pathfinding"
	"github.com/samirrijal/safespot/internal/core/ports"
	"github.com/samirrijal/safespot/internal/core/usecases"
	"github.com/samirrijal/safespot/internal/pkg/config"
	"github.com/samirrijal/safespot/internal/pkg/logging"
	"github.com/samirrijal/safespot/internal/pkg/metrics"
	"github.com/samirrijal/safespot/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("safespot-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("api exited", "error", err)
		log.Fatal(err)
	}
	slog.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(sctx)
			}()
		}
	}

	// Database (optional unless the grid lives there)
	var db *postgres.DB
	if cfg.Database.Enabled || cfg.Grid.Source == "postgres" {
		var err error
		db, err = postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
	}

	grid, err := loadGrid(ctx, cfg, db)
	if err != nil {
		return err
	}
	slog.Info("grid loaded", "name", grid.Name(), "rows", grid.Rows(), "cols", grid.Cols(),
		"connectivity", grid.Connectivity(), "safe_zones", len(grid.SafeZones()))

	// Cache
	var cache *valkey.Cache
	if cfg.Valkey.Addr != "" {
		cache, err = valkey.New(cfg.Valkey.Addr, cfg.Valkey.Prefix)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	// NATS
	var (
		publisher *natsadapter.Publisher
		sub       *natsadapter.Subscriber
	)
	if cfg.NATS.URL != "" {
		publisher, err = natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
			publisher = nil
		} else {
			defer publisher.Close()
		}
		sub, err = natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats subscriber unavailable", "error", err)
			sub = nil
		} else {
			defer sub.Close()
		}
	}

	// Geocoding
	var geocoder ports.Geocoder
	if cfg.Geocoding.APIKey != "" {
		g, err := geocoding.NewGoogle(cfg.Geocoding.APIKey, grid.Bounds())
		if err != nil {
			slog.Warn("geocoder unavailable", "error", err)
		} else {
			geocoder = g
		}
	}

	// Keep typed nils out of the ports.
	var (
		pubPort   ports.EventPublisher
		cachePort ports.CacheService
	)
	if publisher != nil {
		pubPort = publisher
	}
	if cache != nil {
		cachePort = cache
	}

	routes := usecases.NewRouteService(grid, pathfinding.NewEngine(), pubPort, cachePort, geocoder, usecases.Options{
		Hazard:           cfg.Hazard.Field(),
		RecomputeTimeout: cfg.Routing.RecomputeTimeout,
		IdleTimeout:      cfg.Session.IdleTimeout,
	})

	deps := &http.Dependencies{
		Routes:         routes,
		DB:             db,
		Cache:          cache,
		OpenAPIPath:    cfg.Server.OpenAPIPath,
		RequestTimeout: cfg.Server.RequestTimeout,
	}
	if publisher != nil {
		deps.NATS = publisher.Conn()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    256 * 1024,
		AppName:      "SafeSpot API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))
	http.SetupRoutes(app, deps)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		return app.Listen(addr)
	})

	g.Go(func() error {
		routes.RunSweeper(gctx, cfg.Session.SweepInterval)
		return nil
	})

	if db != nil {
		g.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					metrics.UpdateDBPoolMetrics(db.Stat())
				}
			}
		})
	}

	if sub != nil {
		if err := sub.SubscribeHazardReports(gctx, routes.HandleHazardReport); err != nil {
			slog.Warn("hazard subscription failed", "error", err)
		}
	}

	if cfg.MQTT.Broker != "" {
		client, err := mqttadapter.Dial(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			slog.Warn("mqtt unavailable", "broker", cfg.MQTT.Broker, "error", err)
		} else {
			feed := mqttadapter.NewHazardFeed(client, cfg.MQTT.TopicPrefix)
			defer feed.Close()
			if err := feed.Subscribe(gctx, routes.HandleHazardReport); err != nil {
				slog.Warn("mqtt hazard subscription failed", "error", err)
			}
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining connections...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		routes.Close(shutdownCtx)
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadGrid reads the configured grid and applies the connectivity override.
func loadGrid(ctx context.Context, cfg *config.Config, db *postgres.DB) (*navgrid.Grid, error) {
	var repo ports.GridRepository
	switch cfg.Grid.Source {
	case "postgres":
		repo = postgres.NewGridRepo(db)
	default:
		repo = gridfile.NewRepo(cfg.Grid.Dir)
	}

	spec, err := repo.LoadGrid(ctx, cfg.Grid.Name)
	if err != nil {
		return nil, fmt.Errorf("load grid %q from %s: %w", cfg.Grid.Name, cfg.Grid.Source, err)
	}
	if cfg.Routing.Connectivity != 0 {
		spec.Connectivity = domain.Connectivity(cfg.Routing.Connectivity)
	}
	grid, err := navgrid.New(*spec)
	if err != nil {
		return nil, fmt.Errorf("build grid: %w", err)
	}
	return grid, nil
}
