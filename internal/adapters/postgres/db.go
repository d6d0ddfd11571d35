package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the pgx pool shared by the grid repository and readiness checks.
type DB struct {
	Pool *pgxpool.Pool
}

// New connects and pings. Pool limits come from the DSN (pool_max_conns).
func New(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	// Grids are read once at startup; the pool mostly serves readiness pings.
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close releases pool resources.
func (db *DB) Close() {
	db.Pool.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Stat returns pool statistics for metrics export.
func (db *DB) Stat() *pgxpool.Stat {
	return db.Pool.Stat()
}
