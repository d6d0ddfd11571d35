//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	handler "github.com/samirrijal/safespot/internal/adapters/http"
	"github.com/samirrijal/safespot/internal/adapters/postgres"
	"github.com/samirrijal/safespot/internal/core/domain"
	"github.com/samirrijal/safespot/internal/core/hazard"
	"github.com/samirrijal/safespot/internal/core/navgrid"
	"github.com/samirrijal/safespot/internal/core/pathfinding"
	"github.com/samirrijal/safespot/internal/core/usecases"
	"github.com/samirrijal/safespot/internal/pkg/config"
)

// setupTestDB connects to the test database. Migrations must already be applied.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("safespot-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// walledSpec is a 5x5 grid split by a wall in column 2 that is open only on
// the top row. The safe zone sits on the far side of the wall.
func walledSpec(name string) navgrid.Spec {
	spec := navgrid.Uniform(name, 5, 5, 1)
	spec.Origin = domain.GeoPoint{Latitude: 43.255, Longitude: -2.926}
	for row := 0; row < 4; row++ {
		spec.Cells[row*5+2] = domain.GridCell{Traversable: false}
	}
	spec.SafeZones = []domain.Cell{{Row: 0, Col: 4}}
	return spec
}

func seedGrid(t *testing.T, db *postgres.DB) *navgrid.Grid {
	t.Helper()
	repo := postgres.NewGridRepo(db)
	ctx := context.Background()
	name := fmt.Sprintf("itest-%d", time.Now().UnixNano())

	spec := walledSpec(name)
	if err := repo.SaveGrid(ctx, &spec); err != nil {
		t.Fatalf("save grid: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM grids WHERE name = $1`, name)
	})

	loaded, err := repo.LoadGrid(ctx, name)
	if err != nil {
		t.Fatalf("load grid: %v", err)
	}
	g, err := navgrid.New(*loaded)
	if err != nil {
		t.Fatalf("build grid: %v", err)
	}
	return g
}

func TestGridRepo_Integration_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	g := seedGrid(t, db)

	if g.Rows() != 5 || g.Cols() != 5 {
		t.Fatalf("expected 5x5, got %dx%d", g.Rows(), g.Cols())
	}
	if g.Traversable(domain.Cell{Row: 1, Col: 2}) {
		t.Error("wall cell came back traversable")
	}
	if !g.Traversable(domain.Cell{Row: 4, Col: 2}) {
		t.Error("gap in the wall came back blocked")
	}
	if zones := g.SafeZones(); len(zones) != 1 || zones[0] != (domain.Cell{Row: 0, Col: 4}) {
		t.Errorf("unexpected safe zones %v", zones)
	}

	_, err := postgres.NewGridRepo(db).LoadGrid(context.Background(), "no-such-grid")
	if err == nil {
		t.Fatal("expected error for missing grid")
	}
}

func TestRoute_Integration_StoredGrid(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	g := seedGrid(t, db)

	svc := usecases.NewRouteService(g, pathfinding.NewEngine(), nil, nil, nil, usecases.Options{
		Hazard: hazard.Config{Radius: 1, PeakPenalty: 10},
	})
	t.Cleanup(func() { svc.Close(context.Background()) })
	app := setupApp(&handler.Dependencies{Routes: svc, DB: db, RequestTimeout: 5 * time.Second})

	startSession(t, app, "itest", at(g, 0, 0))

	code, body, _ := do(t, app, "POST", "/v1/sessions/itest/position", point(at(g, 0, 0)))
	if code != 200 {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	var resp handler.RouteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Route == nil {
		t.Fatalf("expected a route, got %s", body)
	}
	// Up to the gap, across and back down.
	if resp.Route.Cost != 12 || len(resp.Route.Path) != 13 {
		t.Errorf("expected cost 12 over 13 points, got %v over %d", resp.Route.Cost, len(resp.Route.Path))
	}

	code, body, _ = do(t, app, "GET", "/v1/ready", nil)
	if code != 200 {
		t.Fatalf("expected ready, got %d: %s", code, body)
	}
	var ready struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(body, &ready); err != nil {
		t.Fatalf("decode ready: %v", err)
	}
	if ready.Checks["database"] != "ok" {
		t.Errorf("expected database ok, got %q", ready.Checks["database"])
	}
}
