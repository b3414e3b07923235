package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a *sql.DB over a single SQLite store file.
// Each market has its own file; a DB owns exactly one of them.
type DB struct {
	SQL  *sql.DB
	Path string
}

// Open opens (creating if necessary) the SQLite store at path.
// The parent directory is created when missing. SQLite permits a single
// writer per file, so the pool is capped at one connection; the busy
// timeout covers readers overlapping a write.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping store %s: %w", path, err)
	}

	return &DB{SQL: db, Path: path}, nil
}

// OpenExisting opens the store at path only if the file already exists.
func OpenExisting(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("store file %s: %w", path, err)
	}
	return Open(path)
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	if db.SQL != nil {
		return db.SQL.Close()
	}
	return nil
}

// Ping checks if the store is accessible.
func (db *DB) Ping(ctx context.Context) error {
	return db.SQL.PingContext(ctx)
}
