package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMigrationFiles_Order(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"002_sessions.sql", "001_grids.sql", "001_grids.down.sql",
		"002_sessions.down.sql", "README.md",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o755); err != nil {
		t.Fatal(err)
	}

	up, down, err := migrationFiles(dir)
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}

	wantUp := []string{filepath.Join(dir, "001_grids.sql"), filepath.Join(dir, "002_sessions.sql")}
	wantDown := []string{filepath.Join(dir, "002_sessions.down.sql"), filepath.Join(dir, "001_grids.down.sql")}
	if !reflect.DeepEqual(up, wantUp) {
		t.Errorf("up: got %v, want %v", up, wantUp)
	}
	if !reflect.DeepEqual(down, wantDown) {
		t.Errorf("down: got %v, want %v", down, wantDown)
	}
}

func TestMigrationFiles_MissingDir(t *testing.T) {
	if _, _, err := migrationFiles(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
