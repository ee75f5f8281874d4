package session

import (
	"context"
	"embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Migrations holds the goose migrations for the sessions table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations.
const MigrationsDir = "migrations"

// PGExecutor is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type PGExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgGetQuery = `SELECT data FROM sessions WHERE id = $1 AND (expires_at IS NULL OR expires_at > now())`
	pgPutQuery = `INSERT INTO sessions (id, data, expires_at, updated_at) VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at, updated_at = now()`
	pgDeleteQuery        = `DELETE FROM sessions WHERE id = $1`
	pgDeleteExpiredQuery = `DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= now()`
)

// PostgresBackend stores blobs in the sessions table.
type PostgresBackend struct {
	db  PGExecutor
	now func() time.Time
}

// NewPostgresBackend stores blobs in the sessions table through db.
func NewPostgresBackend(db PGExecutor) *PostgresBackend {
	return &PostgresBackend{db: db, now: time.Now}
}

// Get returns the blob for key. Expired rows count as missing.
func (b *PostgresBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := b.db.QueryRow(ctx, pgGetQuery, key).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrBackend, err)
	}
	return blob, nil
}

// Put upserts the blob. A non-positive ttl never expires.
func (b *PostgresBackend) Put(ctx context.Context, key string, blob []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := b.now().Add(ttl)
		expiresAt = &t
	}
	if _, err := b.db.Exec(ctx, pgPutQuery, key, blob, expiresAt); err != nil {
		return errors.Join(ErrBackend, err)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.Exec(ctx, pgDeleteQuery, key); err != nil {
		return errors.Join(ErrBackend, err)
	}
	return nil
}

// DeleteExpired removes expired rows and returns how many were dropped.
func (b *PostgresBackend) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := b.db.Exec(ctx, pgDeleteExpiredQuery)
	if err != nil {
		return 0, errors.Join(ErrBackend, err)
	}
	return tag.RowsAffected(), nil
}
