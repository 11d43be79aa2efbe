// File: internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/casperjs-driver/internal/fetcher"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS fetch_results (
    id          UUID PRIMARY KEY,
    url         TEXT NOT NULL,
    current_url TEXT,
    title       TEXT,
    content     TEXT,
    timeouts    JSONB NOT NULL DEFAULT '[]',
    complete    BOOLEAN NOT NULL,
    error       TEXT,
    duration_ms BIGINT NOT NULL,
    fetched_at  TIMESTAMPTZ NOT NULL
);`

var resultColumns = []string{
	"id", "url", "current_url", "title", "content", "timeouts",
	"complete", "error", "duration_ms", "fetched_at",
}

// Store persists fetch results to PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the fetch_results table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveResults writes results in a single transaction using COPY.
func (s *Store) SaveResults(ctx context.Context, results []fetcher.Result) error {
	if len(results) == 0 {
		return nil
	}

	rows := make([][]any, len(results))
	for i, r := range results {
		timeouts, err := json.Marshal(r.Timeouts)
		if err != nil {
			return fmt.Errorf("failed to encode timeouts for %s: %w", r.URL, err)
		}
		if r.Timeouts == nil {
			timeouts = []byte("[]")
		}
		rows[i] = []any{
			r.ID, r.URL, nullable(r.CurrentURL), nullable(r.Title), nullable(r.Content), timeouts,
			r.Complete, nullable(r.Error), r.Duration.Milliseconds(), r.FetchedAt.UTC(),
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"fetch_results"}, resultColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy fetch results: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("mismatch in copied results count: expected %d, got %d", len(rows), n)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Persisted fetch results.", zap.Int("count", len(rows)))
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
