package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestEmbeddedMigrationsOrdered(t *testing.T) {
	migrations, err := EmbeddedMigrations()
	if err != nil {
		t.Fatalf("EmbeddedMigrations: %v", err)
	}
	if len(migrations) < 3 {
		t.Fatalf("expected at least 3 migrations, got %d", len(migrations))
	}
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("migration %d has version %d", i, m.Version)
		}
		if m.SQL == "" {
			t.Errorf("migration %d is empty", m.Version)
		}
	}
	if migrations[0].Name != "locations" {
		t.Errorf("first migration name = %q", migrations[0].Name)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	m := NewMigrationManager(conn)

	n, err := m.Migrate(ctx)
	if err != nil {
		t.Fatalf("first Migrate: %v", err)
	}
	if n == 0 {
		t.Fatal("expected migrations to be applied on an empty database")
	}

	n, err = m.Migrate(ctx)
	if err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if n != 0 {
		t.Fatalf("second run applied %d migrations, want 0", n)
	}

	status, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status.Pending) != 0 || len(status.Applied) != len(status.Available) {
		t.Fatalf("unexpected status: %d applied, %d pending, %d available",
			len(status.Applied), len(status.Pending), len(status.Available))
	}
	for _, a := range status.Applied {
		if a.AppliedAt == nil || a.AppliedAt.IsZero() {
			t.Errorf("migration %d has no applied timestamp", a.Version)
		}
	}
}

func TestMigrationsFromPath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	files := map[string]string{
		"001_first.sql":  "CREATE TABLE a (id INTEGER PRIMARY KEY);",
		"002_second.sql": "CREATE TABLE b (id INTEGER PRIMARY KEY);",
		"notes.txt":      "ignored",
		"xyz_bad.sql":    "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}

	conn := openTestDB(t)
	m := NewMigrationManagerFromPath(conn, dir)

	available, err := m.Available()
	if err != nil {
		t.Fatal(err)
	}
	if len(available) != 2 {
		t.Fatalf("available = %d, want 2", len(available))
	}

	if _, err := m.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if _, err := conn.Exec("INSERT INTO b (id) VALUES (1)"); err != nil {
		t.Fatalf("table b not created: %v", err)
	}
}

func TestFailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_broken.sql"), []byte("CREATE TABLE ok (id INTEGER); NOT SQL;"), 0644); err != nil {
		t.Fatal(err)
	}

	conn := openTestDB(t)
	m := NewMigrationManagerFromPath(conn, dir)
	if _, err := m.Migrate(ctx); err == nil {
		t.Fatal("expected error from broken migration")
	}

	pending, err := m.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("broken migration should still be pending, got %d pending", len(pending))
	}
}
