package kvstore

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

type kvRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// SQLite is a Store backed by a single-table SQLite database.
type SQLite struct {
	db *sqlx.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at dbPath.
func OpenSQLite(ctx context.Context, dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Open(driverName, fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.DB.SetMaxOpenConns(1)

	initCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(initCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(initCtx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	log.Printf("kvstore: opened %s", dbPath)
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT key, value FROM kv WHERE key IN (?)`, keys)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []kvRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select keys: %w", err)
	}
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// Set writes all values in one transaction; either every pair lands or none.
func (s *SQLite) Set(ctx context.Context, values map[string]string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	for k, v := range values {
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO kv (key, value) VALUES (:key, :value)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			kvRow{Key: k, Value: v})
		if err != nil {
			return fmt.Errorf("upsert %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLite) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM kv WHERE key IN (?)`, keys)
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
