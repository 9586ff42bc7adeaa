// Package postgres persists session intelligence contexts as single
// JSONB rows with an optimistic-concurrency version column. It is the
// durable implementation of salescontext.Backend; the in-memory one
// lives next to the store and serves tests and single-node runs.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitchline/pitchline/pkg/engine/salescontext"
)

// db is the slice of pgxpool.Pool the backend needs. Kept narrow so
// tests can substitute a fake without a running database.
type db interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Backend struct {
	db db
}

// New wraps an existing pool. The caller owns the pool's lifetime.
func New(pool *pgxpool.Pool) *Backend {
	return &Backend{db: pool}
}

// Connect opens a pool against dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

func (b *Backend) Read(ctx context.Context, sessionID string) (*salescontext.IntelligenceContext, int64, error) {
	var (
		payload []byte
		version int64
	)
	err := b.db.QueryRow(ctx,
		`SELECT payload, version FROM session_contexts WHERE session_id = $1`,
		sessionID,
	).Scan(&payload, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: read context %s: %w", sessionID, err)
	}

	var ic salescontext.IntelligenceContext
	if err := json.Unmarshal(payload, &ic); err != nil {
		return nil, 0, fmt.Errorf("postgres: decode context %s: %w", sessionID, err)
	}
	return &ic, version, nil
}

// WriteIfVersion swaps the row only when its version still equals
// expected. expected == 0 means the row must not exist yet; a
// concurrent insert loses the race and reports false, same as a stale
// update.
func (b *Backend) WriteIfVersion(ctx context.Context, sessionID string, expected int64, next *salescontext.IntelligenceContext) (bool, error) {
	payload, err := json.Marshal(next)
	if err != nil {
		return false, fmt.Errorf("postgres: encode context %s: %w", sessionID, err)
	}

	var tag pgconn.CommandTag
	if expected == 0 {
		tag, err = b.db.Exec(ctx,
			`INSERT INTO session_contexts (session_id, payload, version, updated_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (session_id) DO NOTHING`,
			sessionID, payload, next.Version,
		)
	} else {
		tag, err = b.db.Exec(ctx,
			`UPDATE session_contexts
			 SET payload = $2, version = $3, updated_at = now()
			 WHERE session_id = $1 AND version = $4`,
			sessionID, payload, next.Version, expected,
		)
	}
	if err != nil {
		return false, fmt.Errorf("postgres: write context %s: %w", sessionID, err)
	}
	return tag.RowsAffected() == 1, nil
}
