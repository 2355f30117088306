package proxystore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spindle-coref/spindle/internal/idutil"
	"github.com/spindle-coref/spindle/internal/spindleerr"
)

// UpdateState implements spec.md §4.3.3 outside any enclosing transaction:
// if no state row exists for id, insert one with status DIRTY; else, if
// changed is true, mark it DIRTY and zero its flags; else, no-op. The
// operation is idempotent and safe under concurrent callers racing the same
// id, per spec.md §4.3.1's "the caller updates the state row... outside the
// transaction... must tolerate being interleaved with other updaters."
func (s *Store) UpdateState(ctx context.Context, proxyURI string, changed bool) (StateUpdateResult, error) {
	id, err := idutil.IDFromURI(proxyURI)
	if err != nil {
		return StateUnchanged, fmt.Errorf("proxystore: update state: %w", err)
	}

	var result StateUpdateResult
	err = s.withTxn(ctx, func(ctx context.Context, tx pgx.Tx) error {
		exists, err := stateExists(ctx, tx, id)
		if err != nil {
			return err
		}
		switch {
		case !exists:
			if err := insertDirtyState(ctx, tx, id); err != nil {
				return err
			}
			result = StateCreated
		case changed:
			if err := markDirty(ctx, tx, id); err != nil {
				return err
			}
			result = StateDirtied
		default:
			result = StateUnchanged
		}
		return nil
	})
	if err != nil {
		return StateUnchanged, fmt.Errorf("proxystore: update state: %w", err)
	}
	return result, nil
}

// bumpStateDirtyTx ensures a DIRTY state row exists for id, within an
// already-open transaction (used by migrate's step 6).
func (s *Store) bumpStateDirtyTx(ctx context.Context, tx pgx.Tx, id string) error {
	exists, err := stateExists(ctx, tx, id)
	if err != nil {
		return err
	}
	if exists {
		return markDirty(ctx, tx, id)
	}
	return insertDirtyState(ctx, tx, id)
}

func stateExists(ctx context.Context, tx pgx.Tx, id string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM state WHERE id = $1)`
	var exists bool
	if err := tx.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("proxystore: state exists: %w: %w", spindleerr.ErrDB, err)
	}
	return exists, nil
}

func insertDirtyState(ctx context.Context, tx pgx.Tx, id string) error {
	shortHash, err := idutil.ShortHash(id)
	if err != nil {
		return fmt.Errorf("proxystore: insert state: %w", err)
	}
	tinyHash := idutil.TinyHash(shortHash)

	const insert = `
		INSERT INTO state (id, shorthash, tinyhash, status, modified, flags)
		VALUES ($1, $2, $3, 'DIRTY', now() AT TIME ZONE 'utc', 0)
		ON CONFLICT (id) DO NOTHING`
	if _, err := tx.Exec(ctx, insert, id, shortHash, tinyHash); err != nil {
		return fmt.Errorf("proxystore: insert state: %w: %w", spindleerr.ErrDB, err)
	}
	return nil
}

func markDirty(ctx context.Context, tx pgx.Tx, id string) error {
	const update = `
		UPDATE state SET status = 'DIRTY', flags = 0, modified = now() AT TIME ZONE 'utc'
		WHERE id = $1`
	if _, err := tx.Exec(ctx, update, id); err != nil {
		return fmt.Errorf("proxystore: mark dirty: %w: %w", spindleerr.ErrDB, err)
	}
	return nil
}
