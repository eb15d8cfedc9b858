// Package sqlite is a storage.Backend on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/AlexZinkM/avian-backup/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	listQuery   = `SELECT natural_key, body FROM records WHERE category = ? ORDER BY seq`
	upsertQuery = `INSERT INTO records (category, natural_key, body, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (category, natural_key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`
)

// Backend stores records in one SQLite table.
type Backend struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dsn and migrates it.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := storage.Migrate(ctx, db, "sqlite3", migrations, "migrations", logger); err != nil {
		db.Close()
		return nil, err
	}
	return &Backend{db: db}, nil
}

func (b *Backend) List(ctx context.Context, category string) ([]storage.Entry, error) {
	rows, err := b.db.QueryContext(ctx, listQuery, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []storage.Entry{}
	for rows.Next() {
		var e storage.Entry
		if err := rows.Scan(&e.Key, &e.Body); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (b *Backend) Upsert(ctx context.Context, category string, entries []storage.Entry) (err error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	now := time.Now().UnixMilli()
	for _, e := range entries {
		if _, err = tx.ExecContext(ctx, upsertQuery, category, e.Key, e.Body, now); err != nil {
			return fmt.Errorf("record %q: %w", e.Key, err)
		}
	}
	return nil
}

func (b *Backend) Close() error { return b.db.Close() }
