package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vyakaran/platform/internal/domain"
)

// Postgres error codes that mean "run the whole transaction again".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// TxRunner runs a function inside a transaction and re-runs it on
// serialization failures, deadlocks and stale game state versions.
type TxRunner struct {
	pool        *pgxpool.Pool
	logger      *slog.Logger
	maxAttempts int
	baseBackoff time.Duration
}

// NewTxRunner creates a TxRunner. maxAttempts below 1 is treated as 1.
func NewTxRunner(pool *pgxpool.Pool, maxAttempts int, logger *slog.Logger) *TxRunner {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &TxRunner{
		pool:        pool,
		logger:      logger,
		maxAttempts: maxAttempts,
		baseBackoff: 10 * time.Millisecond,
	}
}

// Run executes fn in a fresh transaction per attempt. fn must be safe to
// re-run from scratch: it has to reload everything it reads through tx.
func (r *TxRunner) Run(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err = pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
			return fn(ctx, tx)
		})
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == r.maxAttempts {
			break
		}

		backoff := r.baseBackoff*time.Duration(attempt) + time.Duration(rand.Int63n(int64(r.baseBackoff)))
		r.logger.Warn("retrying transaction", "attempt", attempt, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", r.maxAttempts, err)
}

// IsRetryable reports whether err is a transient concurrency conflict.
func IsRetryable(err error) bool {
	if errors.Is(err, domain.ErrStaleState) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}
