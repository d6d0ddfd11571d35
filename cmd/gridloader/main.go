// Command gridloader copies navigation grids between YAML files and Postgres.
//
//	gridloader import grids/bilbao-old-town.yaml
//	gridloader export -dir grids bilbao-old-town
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samirrijal/safespot/internal/adapters/gridfile"
	"github.com/samirrijal/safespot/internal/adapters/postgres"
	"github.com/samirrijal/safespot/internal/core/navgrid"
	"github.com/samirrijal/safespot/internal/pkg/config"
	"github.com/samirrijal/safespot/internal/pkg/logging"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n  %[1]s import [-name NAME] FILE.yaml...\n  %[1]s export [-dir DIR] NAME...\n", os.Args[0])
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.Load("safespot-gridloader")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	store := postgres.NewGridRepo(db)

	switch os.Args[1] {
	case "import":
		fs := flag.NewFlagSet("import", flag.ExitOnError)
		name := fs.String("name", "", "store under this name instead of the file's own (single file only)")
		_ = fs.Parse(os.Args[2:])
		if fs.NArg() == 0 || (*name != "" && fs.NArg() > 1) {
			usage()
		}
		for _, path := range fs.Args() {
			if err := importGrid(ctx, store, path, *name); err != nil {
				log.Fatalf("import %s: %v", path, err)
			}
		}
	case "export":
		fs := flag.NewFlagSet("export", flag.ExitOnError)
		dir := fs.String("dir", cfg.Grid.Dir, "directory to write <name>.yaml files to")
		_ = fs.Parse(os.Args[2:])
		if fs.NArg() == 0 {
			usage()
		}
		if err := os.MkdirAll(*dir, 0o755); err != nil {
			log.Fatalf("create %s: %v", *dir, err)
		}
		files := gridfile.NewRepo(*dir)
		for _, name := range fs.Args() {
			if err := exportGrid(ctx, store, files, name); err != nil {
				log.Fatalf("export %s: %v", name, err)
			}
		}
	default:
		usage()
	}
}

// importGrid validates a grid file and upserts it.
func importGrid(ctx context.Context, store *postgres.GridRepo, path, name string) error {
	spec, err := gridfile.ReadFile(path)
	if err != nil {
		return err
	}
	if name != "" {
		spec.Name = name
	}
	if spec.Name == "" {
		return errors.New("grid has no name; pass -name")
	}
	grid, err := navgrid.New(*spec)
	if err != nil {
		return fmt.Errorf("invalid grid: %w", err)
	}
	if err := store.SaveGrid(ctx, spec); err != nil {
		return err
	}
	slog.Info("grid imported", "name", spec.Name, "rows", grid.Rows(), "cols", grid.Cols(),
		"connectivity", grid.Connectivity(), "safe_zones", len(grid.SafeZones()))
	return nil
}

func exportGrid(ctx context.Context, store *postgres.GridRepo, files *gridfile.Repo, name string) error {
	spec, err := store.LoadGrid(ctx, name)
	if err != nil {
		return err
	}
	if err := files.SaveGrid(ctx, spec); err != nil {
		return err
	}
	slog.Info("grid exported", "name", name, "rows", spec.Rows, "cols", spec.Cols)
	return nil
}
