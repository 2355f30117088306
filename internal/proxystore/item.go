package proxystore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spindle-coref/spindle/internal/idutil"
	"github.com/spindle-coref/spindle/internal/spindleerr"
)

// FetchItem returns the structured view of the proxy and index rows for
// proxyURI, or [spindleerr.ErrNotFound] if the proxy row itself is missing.
// A proxy with no matching index row still returns successfully, with
// IndexPresent set to false, per spec.md §4.8.
func (s *Store) FetchItem(ctx context.Context, proxyURI string) (*Item, error) {
	id, err := idutil.IDFromURI(proxyURI)
	if err != nil {
		return nil, fmt.Errorf("proxystore: fetch item: %w", err)
	}

	const proxyQuery = `SELECT sameas FROM proxy WHERE id = $1`
	rows, err := s.pool.Query(ctx, proxyQuery, id)
	if err != nil {
		return nil, fmt.Errorf("proxystore: fetch item: %w: %w", spindleerr.ErrDB, err)
	}
	sameasRows, err := pgx.CollectRows(rows, pgx.RowTo[[]string])
	if err != nil {
		return nil, fmt.Errorf("proxystore: fetch item: %w: %w", spindleerr.ErrDB, err)
	}
	if len(sameasRows) == 0 {
		return nil, fmt.Errorf("proxystore: fetch item %q: %w", proxyURI, spindleerr.ErrNotFound)
	}

	item := &Item{ID: id, SameAs: sameasRows[0]}

	const indexQuery = `
		SELECT classes, title, description, modified, score
		FROM index WHERE id = $1`
	idxRows, err := s.pool.Query(ctx, indexQuery, id)
	if err != nil {
		return nil, fmt.Errorf("proxystore: fetch item: %w: %w", spindleerr.ErrDB, err)
	}
	idx, err := pgx.CollectRows(idxRows, func(row pgx.CollectableRow) (IndexRow, error) {
		var ir IndexRow
		err := row.Scan(&ir.Classes, &ir.Title, &ir.Description, &ir.Modified, &ir.Score)
		return ir, err
	})
	if err != nil {
		return nil, fmt.Errorf("proxystore: fetch item: %w: %w", spindleerr.ErrDB, err)
	}
	if len(idx) > 0 {
		item.IndexPresent = true
		item.Index = idx[0]
	}

	return item, nil
}

// EnumerateMemberships projects the membership table for proxyID, capped at
// limit rows (spec.md §4.8).
func (s *Store) EnumerateMemberships(ctx context.Context, proxyID string, limit int) ([]Membership, error) {
	const query = `SELECT id, collection FROM membership WHERE id = $1 LIMIT $2`
	rows, err := s.pool.Query(ctx, query, proxyID, limit)
	if err != nil {
		return nil, fmt.Errorf("proxystore: enumerate memberships: %w: %w", spindleerr.ErrDB, err)
	}
	memberships, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Membership, error) {
		var m Membership
		err := row.Scan(&m.ID, &m.Collection)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("proxystore: enumerate memberships: %w: %w", spindleerr.ErrDB, err)
	}
	return memberships, nil
}
