package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// DB stores keys in a single kv table on Postgres (pgx) or SQLite.
type DB struct {
	Client *sqlx.DB
}

// NewPostgres opens a pooled Postgres connection and ensures the kv table exists.
func NewPostgres(connString string) (*DB, error) {
	db, err := sqlx.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return openDB(db)
}

// NewSQLite opens (creating if needed) a SQLite file and ensures the kv table exists.
func NewSQLite(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// single writer avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	return openDB(db)
}

// NewDBFromClient wraps an existing connection, e.g. a sqlmock.
func NewDBFromClient(db *sqlx.DB) *DB {
	return &DB{Client: db}
}

func openDB(db *sqlx.DB) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := db.ExecContext(ctx, kvSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{Client: db}, nil
}

// Get reads the value for key from the kv table, or ErrNotFound.
func (d *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := d.Client.GetContext(ctx, &value, d.Client.Rebind(`SELECT value FROM kv WHERE key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

// Set upserts the value for key.
func (d *DB) Set(ctx context.Context, key string, value []byte) error {
	_, err := d.Client.ExecContext(ctx, d.Client.Rebind(`
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`), key, string(value), time.Now().UTC())
	return err
}

// Delete removes the row for key.
func (d *DB) Delete(ctx context.Context, key string) error {
	_, err := d.Client.ExecContext(ctx, d.Client.Rebind(`DELETE FROM kv WHERE key = ?`), key)
	return err
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.Client.PingContext(ctx)
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
