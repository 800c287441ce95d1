package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xxxsen/ragkb/internal/config"
	"github.com/xxxsen/ragkb/internal/repo"
)

// OpenTestDB opens a migrated sqlite database in a temp dir.
func OpenTestDB(t *testing.T) (*repo.DB, func()) {
	t.Helper()
	dir := t.TempDir()
	conn, err := repo.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(dir, "ragkb.db"),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := repo.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

// OpenPostgresDB connects to the postgres instance named by TEST_DB_HOST, skipping otherwise.
func OpenPostgresDB(t *testing.T) (*repo.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := repo.Open(config.DatabaseConfig{
		Driver:   "postgres",
		Host:     host,
		Port:     5432,
		User:     "ragkb",
		Password: "ragkb_pass",
		DBName:   "ragkb_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := repo.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}
