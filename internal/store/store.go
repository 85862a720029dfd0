package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cardlens/cardlens/internal/config"
)

// Open opens the analytics database selected by cfg.Kind and verifies it
// responds before returning.
func Open(ctx context.Context, cfg config.StoreConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store dsn is required")
	}

	driver, dsn, err := driverAndDSN(cfg.Kind, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Kind, err)
	}

	if cfg.Kind == "sqlite" {
		// SQLite allows a single writer; one pooled connection avoids
		// SQLITE_BUSY under concurrent requests.
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxIdleTime > 0 {
			db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s store: %w", cfg.Kind, err)
	}

	return db, nil
}

func driverAndDSN(kind, dsn string) (string, string, error) {
	switch kind {
	case "sqlite":
		if dir := filepath.Dir(filePart(dsn)); dir != "." && dir != "" && !strings.HasPrefix(dsn, ":") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", "", fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		return "sqlite3", sqliteDSN(dsn), nil
	case "postgres":
		return "pgx", dsn, nil
	case "duckdb":
		return "duckdb", dsn, nil
	default:
		return "", "", fmt.Errorf("unsupported store kind %q", kind)
	}
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") || strings.HasPrefix(path, ":") {
		return path
	}
	return path + "?_journal_mode=WAL&_busy_timeout=5000"
}

func filePart(dsn string) string {
	if idx := strings.IndexByte(dsn, '?'); idx >= 0 {
		return dsn[:idx]
	}
	return dsn
}
