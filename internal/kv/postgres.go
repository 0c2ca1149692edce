package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresOptions parameterise the Postgres-backed store.
type PostgresOptions struct {
	DSN             string
	MaxOpenConns    int
	MinIdleConns    int
	ConnMaxLifetime time.Duration
}

const (
	createKVTableSQL = `CREATE TABLE IF NOT EXISTS guardrail_kv (
        key   TEXT PRIMARY KEY,
        value BYTEA NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	getKVSQL = `SELECT value FROM guardrail_kv WHERE key = $1;`

	upsertKVSQL = `INSERT INTO guardrail_kv (key, value, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (key) DO UPDATE
    SET value = EXCLUDED.value,
        updated_at = EXCLUDED.updated_at;`

	deleteKVSQL = `DELETE FROM guardrail_kv WHERE key = $1;`

	listKVKeysSQL = `SELECT key FROM guardrail_kv WHERE key LIKE $1 ORDER BY key;`

	deleteKVPrefixSQL = `DELETE FROM guardrail_kv WHERE key LIKE $1;`
)

// Postgres is a Store backed by a single-table pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a Postgres-backed store and ensures its table exists.
func NewPostgres(ctx context.Context, opts PostgresOptions) (*Postgres, error) {
	if opts.DSN == "" {
		return nil, errors.New("kv: postgres dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxOpenConns)
	}
	if opts.MinIdleConns > 0 {
		poolConfig.MinConns = int32(opts.MinIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if _, err := pool.Exec(ctx, createKVTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure kv table: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (p *Postgres) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}

// Get returns the stored value and whether the key exists.
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, getKVSQL, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv get: %w", err)
	}
	return value, true, nil
}

// Set upserts value under key.
func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	if _, err := p.pool.Exec(ctx, upsertKVSQL, key, value); err != nil {
		return fmt.Errorf("kv set: %w", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, deleteKVSQL, key); err != nil {
		return fmt.Errorf("kv delete: %w", err)
	}
	return nil
}

// Keys lists all keys with the given prefix.
func (p *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.pool.Query(ctx, listKVKeysSQL, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("kv keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return keys, nil
}

// DeletePrefix removes every key with the given prefix.
func (p *Postgres) DeletePrefix(ctx context.Context, prefix string) error {
	if _, err := p.pool.Exec(ctx, deleteKVPrefixSQL, likePrefix(prefix)); err != nil {
		return fmt.Errorf("kv delete prefix: %w", err)
	}
	return nil
}

// likePrefix escapes LIKE metacharacters so a literal prefix match is
// performed.
func likePrefix(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return escaped + "%"
}

var _ Store = (*Postgres)(nil)
