package proxystore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spindle-coref/spindle/internal/idutil"
	"github.com/spindle-coref/spindle/internal/spindleerr"
)

// Migrate merges proxy fromURI into proxy toURI per spec.md §4.3.2: upsert
// a moved record, union sameas, delete the old proxy/index rows, re-point
// every dependent table, and mark the surviving proxy's state DIRTY.
//
// Runs inside its own transaction via [Store.withTxn]; callers invoking it
// from within Create's already-open transaction should use migrateTx
// directly instead.
func (s *Store) Migrate(ctx context.Context, fromURI, toURI string) error {
	return s.withTxn(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.migrateTx(ctx, tx, fromURI, toURI)
	})
}

func (s *Store) migrateTx(ctx context.Context, tx pgx.Tx, fromURI, toURI string) error {
	fromID, err := idutil.IDFromURI(fromURI)
	if err != nil {
		return fmt.Errorf("proxystore: migrate: from: %w", err)
	}
	toID, err := idutil.IDFromURI(toURI)
	if err != nil {
		return fmt.Errorf("proxystore: migrate: to: %w", err)
	}

	// Step 2: upsert into moved keyed on from_id. The UNIQUE constraint on
	// moved.from (DESIGN.md, resolving spec.md §9's open question) lets
	// ON CONFLICT serialize concurrent migrations of the same losing proxy.
	const upsertMoved = `
		INSERT INTO moved ("from", "to") VALUES ($1, $2)
		ON CONFLICT ("from") DO UPDATE SET "to" = EXCLUDED."to"`
	if _, err := tx.Exec(ctx, upsertMoved, fromID, toID); err != nil {
		return fmt.Errorf("proxystore: migrate: upsert moved: %w: %w", spindleerr.ErrDB, err)
	}

	// Step 3: union sameas into the surviving proxy.
	const unionSameas = `
		UPDATE proxy SET sameas = sameas || (SELECT sameas FROM proxy WHERE id = $1)
		WHERE id = $2`
	if _, err := tx.Exec(ctx, unionSameas, fromID, toID); err != nil {
		return fmt.Errorf("proxystore: migrate: union sameas: %w: %w", spindleerr.ErrDB, err)
	}

	// Step 4: delete the losing proxy's proxy and index rows.
	if _, err := tx.Exec(ctx, `DELETE FROM proxy WHERE id = $1`, fromID); err != nil {
		return fmt.Errorf("proxystore: migrate: delete proxy: %w: %w", spindleerr.ErrDB, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM index WHERE id = $1`, fromID); err != nil {
		return fmt.Errorf("proxystore: migrate: delete index: %w: %w", spindleerr.ErrDB, err)
	}

	// Step 5: re-point every dependent table from fromID to toID.
	repoints := []struct {
		query string
	}{
		{`UPDATE triggers SET id = $2 WHERE id = $1`},
		{`UPDATE triggers SET triggerid = $2 WHERE triggerid = $1`},
		{`UPDATE audiences SET id = $2 WHERE id = $1`},
		{`UPDATE licenses_audiences SET id = $2 WHERE id = $1`},
		{`UPDATE licenses_audiences SET audienceid = $2 WHERE audienceid = $1`},
		{`UPDATE media SET id = $2 WHERE id = $1`},
		{`UPDATE membership SET id = $2 WHERE id = $1`},
		{`UPDATE membership SET collection = $2 WHERE collection = $1`},
		{`UPDATE index_media SET id = $2 WHERE id = $1`},
		{`UPDATE index_media SET media = $2 WHERE media = $1`},
		{`UPDATE about SET id = $2 WHERE id = $1`},
		{`UPDATE about SET about = $2 WHERE about = $1`},
	}
	for _, r := range repoints {
		if _, err := tx.Exec(ctx, r.query, fromID, toID); err != nil {
			return fmt.Errorf("proxystore: migrate: repoint (%s): %w: %w", r.query, spindleerr.ErrDB, err)
		}
	}

	// Step 6: ensure a DIRTY state row for to_id, delete from_id's.
	if err := s.bumpStateDirtyTx(ctx, tx, toID); err != nil {
		return fmt.Errorf("proxystore: migrate: bump state: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM state WHERE id = $1`, fromID); err != nil {
		return fmt.Errorf("proxystore: migrate: delete state: %w: %w", spindleerr.ErrDB, err)
	}

	return nil
}
