package proxystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spindle-coref/spindle/internal/observe"
	"github.com/spindle-coref/spindle/internal/spindleerr"
)

// maxSerializationRetries bounds how many times a transaction is retried
// after a PostgreSQL serialization failure before giving up.
const maxSerializationRetries = 5

// pgSerializationFailure and pgDeadlockDetected are the SQLSTATE codes a
// consistent-read (REPEATABLE READ / SERIALIZABLE) transaction may fail
// with when it loses a conflict to a concurrent transaction (spec.md §5:
// "the losing transaction retries and observes the winner's proxy via
// locate").
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// withTxn replaces the original's "register a callback the driver invokes
// inside a retry loop" idiom (spec.md §9 design note) with a scoped
// acquisition: begin a REPEATABLE READ transaction, run fn, commit on a nil
// return or roll back otherwise, retrying the whole sequence when the
// commit fails on a serialization conflict.
func (s *Store) withTxn(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxSerializationRetries; attempt++ {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
		if err != nil {
			return fmt.Errorf("proxystore: begin transaction: %w: %w", spindleerr.ErrDB, err)
		}

		fnErr := fn(ctx, tx)
		if fnErr != nil {
			_ = tx.Rollback(ctx)
			if isSerializationFailure(fnErr) {
				lastErr = fnErr
				observe.DefaultMetrics().RecordDBRetry(ctx)
				continue
			}
			return fnErr
		}

		if err := tx.Commit(ctx); err != nil {
			if isSerializationFailure(err) {
				lastErr = err
				observe.DefaultMetrics().RecordDBRetry(ctx)
				continue
			}
			return fmt.Errorf("proxystore: commit: %w: %w", spindleerr.ErrDB, err)
		}
		return nil
	}
	return fmt.Errorf("proxystore: transaction failed after %d retries: %w: %w",
		maxSerializationRetries, spindleerr.ErrDB, lastErr)
}

// isSerializationFailure reports whether err is a PostgreSQL serialization
// failure or deadlock, both of which are safe to retry.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}

// rollbackSentinel is returned by fn inside [Store.withTxn] to request an
// explicit rollback with no error surfaced to the caller — used by Create's
// "both present and already equal" / "lone known subject" branches (spec.md
// §4.3.1), which must not write but must still report success.
type rollbackSentinel struct{}

func (rollbackSentinel) Error() string { return "proxystore: rollback requested" }

var errRollback = rollbackSentinel{}

// withRollbackOnlyTxn runs fn inside a transaction the same way [Store.withTxn]
// does, except fn may return [errRollback] to request a clean rollback that
// is not treated as a failure.
func (s *Store) withRollbackOnlyTxn(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	err := s.withTxn(ctx, fn)
	if errors.Is(err, errRollback) {
		return nil
	}
	return err
}
