package repo

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/xxxsen/ragkb/internal/config"
	"github.com/xxxsen/ragkb/internal/pkg/dbutil"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// DB carries the driver name next to the pool so repos can rebind gendry output.
type DB struct {
	*sql.DB
	Driver string
}

func (d *DB) finalize(query string, args []interface{}) (string, []interface{}) {
	return dbutil.Finalize(d.Driver, query, args)
}

func (d *DB) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	query, args = d.finalize(query, args)
	return d.ExecContext(ctx, query, args...)
}

func (d *DB) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	query, args = d.finalize(query, args)
	return d.QueryContext(ctx, query, args...)
}

func (d *DB) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	query, args = d.finalize(query, args)
	return d.QueryRowContext(ctx, query, args...)
}

func Open(cfg config.DatabaseConfig) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = dbutil.DriverSQLite
	}
	dsn := cfg.DSN
	switch driver {
	case dbutil.DriverSQLite:
		if dsn == "" {
			dsn = cfg.Path
		}
	case dbutil.DriverPostgres:
		if dsn == "" {
			sslmode := cfg.SSLMode
			if sslmode == "" {
				sslmode = "disable"
			}
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslmode)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == dbutil.DriverSQLite {
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &DB{DB: conn, Driver: driver}, nil
}

func ApplyMigrations(db *DB) error {
	dir := "migrations/" + db.Driver
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	for _, file := range files {
		content, err := fs.ReadFile(migrationsFS, dir+"/"+file)
		if err != nil {
			return err
		}
		for _, q := range strings.Split(string(content), ";") {
			q = strings.TrimSpace(q)
			if q == "" {
				continue
			}
			if _, err := db.Exec(q); err != nil {
				if strings.Contains(err.Error(), "already exists") {
					continue
				}
				return fmt.Errorf("execute query in %s: %w", file, err)
			}
		}
	}
	return nil
}
