// Package postgres provides a PostgreSQL implementation of
// storage.NonceStore so that replicas behind a load balancer share Digest
// nonce counters. It uses pgx/v5 for connection pooling.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/reqstate/pkg/storage"
)

// Store is a PostgreSQL-backed NonceStore.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.NonceStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Advance stores nc for nonce when it exceeds the stored count. The
// compare and the write happen in a single statement, so two replicas
// racing on the same count cannot both win.
func (s *Store) Advance(ctx context.Context, nonce string, nc uint64) (bool, error) {
	if err := storage.ValidateAdvance(nonce, nc); err != nil {
		return false, err
	}
	if nc > math.MaxInt64 {
		return false, storage.ErrInvalidNonce
	}

	var stored int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO digest_nonces (nonce, last_nc)
		VALUES ($1, $2)
		ON CONFLICT (nonce) DO UPDATE
			SET last_nc = EXCLUDED.last_nc, updated_at = now()
			WHERE digest_nonces.last_nc < EXCLUDED.last_nc
		RETURNING last_nc
	`, nonce, int64(nc)).Scan(&stored)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("advancing nonce count: %w", err)
	}
	return true, nil
}

// Purge deletes counters not advanced since olderThan.
func (s *Store) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM digest_nonces WHERE updated_at < $1",
		olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("purging nonces: %w", err)
	}
	return tag.RowsAffected(), nil
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
