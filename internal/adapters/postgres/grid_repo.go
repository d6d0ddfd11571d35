package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/safespot/internal/core/domain"
	"github.com/samirrijal/safespot/internal/core/navgrid"
)

// ErrGridNotFound is returned when no grid with the requested name is stored.
var ErrGridNotFound = errors.New("grid not found")

// GridRepo implements ports.GridRepository.
//
// A grid is one row in grids with traversability and cost held as parallel
// row-major arrays; its default safe zones live in grid_safe_zones.
type GridRepo struct {
	db *DB
}

func NewGridRepo(db *DB) *GridRepo { return &GridRepo{db: db} }

func (r *GridRepo) LoadGrid(ctx context.Context, name string) (*navgrid.Spec, error) {
	var (
		spec        = navgrid.Spec{Name: name}
		conn        int
		traversable []bool
		costs       []float64
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT rows, cols, origin_lat, origin_lon, cell_lat, cell_lon, connectivity, traversable, costs
		FROM grids WHERE name = $1
	`, name).Scan(&spec.Rows, &spec.Cols, &spec.Origin.Latitude, &spec.Origin.Longitude,
		&spec.CellLat, &spec.CellLon, &conn, &traversable, &costs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrGridNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("query grid %s: %w", name, err)
	}
	if len(traversable) != len(costs) {
		return nil, fmt.Errorf("grid %s: %d traversable flags for %d costs", name, len(traversable), len(costs))
	}

	spec.Connectivity = domain.Connectivity(conn)
	spec.Cells = make([]domain.GridCell, len(costs))
	for i := range costs {
		spec.Cells[i] = domain.GridCell{Traversable: traversable[i], Cost: costs[i]}
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT row_idx, col_idx FROM grid_safe_zones
		WHERE grid_name = $1 ORDER BY position
	`, name)
	if err != nil {
		return nil, fmt.Errorf("query safe zones %s: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Cell
		if err := rows.Scan(&c.Row, &c.Col); err != nil {
			return nil, err
		}
		spec.SafeZones = append(spec.SafeZones, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (r *GridRepo) SaveGrid(ctx context.Context, spec *navgrid.Spec) error {
	traversable := make([]bool, len(spec.Cells))
	costs := make([]float64, len(spec.Cells))
	for i, c := range spec.Cells {
		traversable[i] = c.Traversable
		costs[i] = c.Cost
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO grids (name, rows, cols, origin_lat, origin_lon, cell_lat, cell_lon, connectivity, traversable, costs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (name) DO UPDATE
		SET rows = EXCLUDED.rows, cols = EXCLUDED.cols,
		    origin_lat = EXCLUDED.origin_lat, origin_lon = EXCLUDED.origin_lon,
		    cell_lat = EXCLUDED.cell_lat, cell_lon = EXCLUDED.cell_lon,
		    connectivity = EXCLUDED.connectivity,
		    traversable = EXCLUDED.traversable, costs = EXCLUDED.costs,
		    updated_at = NOW()
	`, spec.Name, spec.Rows, spec.Cols, spec.Origin.Latitude, spec.Origin.Longitude,
		spec.CellLat, spec.CellLon, int(spec.Connectivity), traversable, costs)
	if err != nil {
		return fmt.Errorf("upsert grid: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM grid_safe_zones WHERE grid_name = $1`, spec.Name); err != nil {
		return fmt.Errorf("clear safe zones: %w", err)
	}

	batch := &pgx.Batch{}
	for i, z := range spec.SafeZones {
		batch.Queue(`
			INSERT INTO grid_safe_zones (grid_name, position, row_idx, col_idx)
			VALUES ($1, $2, $3, $4)
		`, spec.Name, i, z.Row, z.Col)
	}
	br := tx.SendBatch(ctx, batch)
	for range spec.SafeZones {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("batch close: %w", err)
	}

	return tx.Commit(ctx)
}
