package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/safespot/internal/pkg/config"
)

const migrationsDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	cfg, err := config.Load("safespot-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	up, down, err := migrationFiles(migrationsDir)
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}

	switch os.Args[1] {
	case "up":
		apply(ctx, pool, up)
	case "down":
		apply(ctx, pool, down)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

// migrationFiles returns NNN_name.sql files in ascending order and their
// NNN_name.down.sql counterparts in descending order.
func migrationFiles(dir string) (up, down []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.IsDir() || !strings.HasSuffix(name, ".sql"):
		case strings.HasSuffix(name, ".down.sql"):
			down = append(down, filepath.Join(dir, name))
		default:
			up = append(up, filepath.Join(dir, name))
		}
	}
	sort.Strings(up)
	sort.Sort(sort.Reverse(sort.StringSlice(down)))
	return up, down, nil
}

func apply(ctx context.Context, pool *pgxpool.Pool, files []string) {
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		if _, err := pool.Exec(ctx, string(data)); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}

	log.Printf("%d migrations applied", len(files))
}
