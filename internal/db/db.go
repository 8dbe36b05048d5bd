package db

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
)

const userSchema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	player_id TEXT NOT NULL UNIQUE
);`

// OpenSQLite opens the SQLite database at path and makes sure the schema
// exists. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	pool, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	// SQLite serialises writers; one connection also keeps :memory: databases alive.
	pool.SetMaxOpenConns(1)

	if err := InitializeDB(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	slog.InfoContext(ctx, "SQLite database ready", "db.path", path)
	return pool, nil
}

// InitializeDB enables foreign keys and creates missing tables.
func InitializeDB(ctx context.Context, pool *sqlx.DB) error {
	if _, err := pool.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := pool.ExecContext(ctx, userSchema); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}
