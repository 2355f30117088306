package proxystore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spindle-coref/spindle/internal/idutil"
	"github.com/spindle-coref/spindle/internal/spindleerr"
)

// Locate returns the proxy URI whose sameas array contains uri, or "" if no
// such proxy exists (spec.md §4.3 "locate").
func (s *Store) Locate(ctx context.Context, uri string) (string, error) {
	return s.locateTx(ctx, s.pool, uri)
}

// queryable is satisfied by both *pgxpool.Pool and pgx.Tx, letting locate be
// reused both standalone (read path) and inside a transaction (Create).
type queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Store) locateTx(ctx context.Context, q queryable, uri string) (string, error) {
	const query = `SELECT id FROM proxy WHERE $1 = ANY(sameas) LIMIT 1`
	rows, err := q.Query(ctx, query, uri)
	if err != nil {
		return "", fmt.Errorf("proxystore: locate: %w: %w", spindleerr.ErrDB, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return "", fmt.Errorf("proxystore: locate: %w: %w", spindleerr.ErrDB, err)
	}
	if len(ids) == 0 {
		return "", nil
	}
	proxyURI, err := idutil.ProxyURIFromID(s.root, ids[0])
	if err != nil {
		return "", fmt.Errorf("proxystore: locate: %w", err)
	}
	return proxyURI, nil
}

// Generate mints a fresh proxy URI for hintURI. hintURI is not used in ID
// derivation — it exists purely so callers may log provenance (spec.md
// §4.3 "generate").
func (s *Store) Generate(hintURI string) (string, error) {
	id := uuid.New()
	hex := fmt.Sprintf("%x", id[:]) // 16 bytes -> 32 hex chars, no hyphens
	return idutil.ProxyURIFromID(s.root, hex)
}

// Refs returns the external URIs subsumed by the proxy identified by
// proxyURI, unnested from its sameas array (spec.md §4.3 "refs").
func (s *Store) Refs(ctx context.Context, proxyURI string) ([]string, error) {
	id, err := idutil.IDFromURI(proxyURI)
	if err != nil {
		return nil, fmt.Errorf("proxystore: refs: %w", err)
	}
	const query = `SELECT unnest(sameas) FROM proxy WHERE id = $1`
	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("proxystore: refs: %w: %w", spindleerr.ErrDB, err)
	}
	refs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("proxystore: refs: %w: %w", spindleerr.ErrDB, err)
	}
	return refs, nil
}

// relate implements spec.md §4.3 "relate": ensure a proxy row exists for
// proxyURI, append externalURI to its sameas, and re-point triggers and
// audience rows that referenced externalURI directly. Runs inside tx; the
// caller bumps state after the enclosing transaction settles (§4.3.1).
func (s *Store) relate(ctx context.Context, tx pgx.Tx, externalURI, proxyURI string) error {
	id, err := idutil.IDFromURI(proxyURI)
	if err != nil {
		return fmt.Errorf("proxystore: relate: %w", err)
	}

	const upsert = `
		INSERT INTO proxy (id, sameas) VALUES ($1, ARRAY[$2::text])
		ON CONFLICT (id) DO UPDATE SET sameas = proxy.sameas || EXCLUDED.sameas`
	if _, err := tx.Exec(ctx, upsert, id, externalURI); err != nil {
		return fmt.Errorf("proxystore: relate: upsert proxy: %w: %w", spindleerr.ErrDB, err)
	}

	const retrigger = `UPDATE triggers SET triggerid = $1 WHERE uri = $2`
	if _, err := tx.Exec(ctx, retrigger, id, externalURI); err != nil {
		return fmt.Errorf("proxystore: relate: retrigger: %w: %w", spindleerr.ErrDB, err)
	}

	const reaudience = `UPDATE audiences SET id = $1 WHERE uri = $2`
	if _, err := tx.Exec(ctx, reaudience, id, externalURI); err != nil {
		return fmt.Errorf("proxystore: relate: reaudience: %w: %w", spindleerr.ErrDB, err)
	}

	const relicense = `UPDATE licenses_audiences SET audienceid = $1 WHERE uri = $2`
	if _, err := tx.Exec(ctx, relicense, id, externalURI); err != nil {
		return fmt.Errorf("proxystore: relate: relicense: %w: %w", spindleerr.ErrDB, err)
	}

	return nil
}
