// Package postgres is a storage.Backend on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/AlexZinkM/avian-backup/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	listQuery   = `SELECT natural_key, body FROM records WHERE category=$1 ORDER BY seq`
	upsertQuery = `INSERT INTO records (category, natural_key, body) VALUES ($1,$2,$3) ON CONFLICT (category, natural_key) DO UPDATE SET body=EXCLUDED.body, updated_at=now()`
)

// PgxPool is the subset of *pgxpool.Pool the backend uses.
// It is implemented by *pgxpool.Pool and pgxmock.PgxPoolIface.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Close()
}

// Backend stores records in one Postgres table.
type Backend struct {
	Pool PgxPool
}

// Open migrates the database at dsn and connects a pool to it.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Backend, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	err = storage.Migrate(ctx, db, "postgres", migrations, "migrations", logger)
	db.Close()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return &Backend{Pool: pool}, nil
}

func (b *Backend) List(ctx context.Context, category string) ([]storage.Entry, error) {
	rows, err := b.Pool.Query(ctx, listQuery, category)
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
	tx, err := b.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	for _, e := range entries {
		if _, err = tx.Exec(ctx, upsertQuery, category, e.Key, e.Body); err != nil {
			return fmt.Errorf("record %q: %w", e.Key, err)
		}
	}
	return nil
}

func (b *Backend) Close() error {
	b.Pool.Close()
	return nil
}
