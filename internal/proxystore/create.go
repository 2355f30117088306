package proxystore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/spindle-coref/spindle/internal/observe"
	"github.com/spindle-coref/spindle/internal/spindleerr"
	"github.com/spindle-coref/spindle/internal/strset"
)

// Create is the correlation primitive (spec.md §4.3.1): given one or two
// external URIs, locate their existing proxies (if any) and apply the
// table below, all inside one consistent-read transaction guarded by a
// [resilience.Breaker] retrying on serialization failure.
//
//	u1 = u2 = Some(p)                        -> (p, REFRESHED); rollback
//	uri2 absent, u1 = Some(p)                -> (p, REFRESHED); rollback
//	u1 = None, u2 = None                     -> mint p; relate both; (p, REFRESHED|MOVED); commit
//	exactly one of u1, u2 is Some(p)         -> relate the other to p; (p, REFRESHED|MOVED); commit
//	both present and distinct (u1 != u2)     -> migrate(u2 -> u1); (u2, REFRESHED|MOVED), (u1, REFRESHED|MOVED); commit
//
// The tie-break rule (spec.md §4.3.1): when both sides already have
// distinct proxies, uri1's proxy survives. survivingProxy is tracked with a
// single named variable assigned exactly once per branch, so there is no
// opportunity for the pointer-aliasing ambiguity the original's C
// implementation exhibits (spec.md §9, resolved in DESIGN.md).
//
// After the transaction settles, and only if it committed, the caller bumps
// the surviving proxy's state row (§4.3.3) outside the transaction.
func (s *Store) Create(ctx context.Context, uri1, uri2 string, changeset *strset.Set) error {
	var survivingProxy string

	err := s.breaker.Execute(func() error {
		survivingProxy = ""
		return s.withRollbackOnlyTxn(ctx, func(ctx context.Context, tx pgx.Tx) error {
			return s.createTx(ctx, tx, uri1, uri2, changeset, &survivingProxy)
		})
	})
	if err != nil {
		return fmt.Errorf("proxystore: create: %w: %w", spindleerr.ErrDB, err)
	}

	if survivingProxy != "" {
		if _, err := s.UpdateState(ctx, survivingProxy, true); err != nil {
			return fmt.Errorf("proxystore: create: %w", err)
		}
	}
	return nil
}

func (s *Store) createTx(ctx context.Context, tx pgx.Tx, uri1, uri2 string, changeset *strset.Set, survivingProxy *string) error {
	u1, err := s.locateTx(ctx, tx, uri1)
	if err != nil {
		return err
	}

	absent := uri2 == ""
	if absent {
		if u1 != "" {
			changeset.Add(u1, strset.REFRESHED)
			return errRollback
		}
		p, err := s.Generate(uri1)
		if err != nil {
			return fmt.Errorf("proxystore: create: %w", err)
		}
		if err := s.relate(ctx, tx, uri1, p); err != nil {
			return err
		}
		slog.Debug("proxystore: minted proxy for lone subject", "uri", uri1, "proxy", p)
		observe.DefaultMetrics().RecordProxyCreated(ctx)
		changeset.Add(p, strset.REFRESHED|strset.MOVED)
		*survivingProxy = p
		return nil
	}

	u2, err := s.locateTx(ctx, tx, uri2)
	if err != nil {
		return err
	}

	switch {
	case u1 != "" && u2 != "" && u1 == u2:
		changeset.Add(u1, strset.REFRESHED)
		return errRollback

	case u1 == "" && u2 == "":
		p, err := s.Generate(uri1)
		if err != nil {
			return fmt.Errorf("proxystore: create: %w", err)
		}
		if err := s.relate(ctx, tx, uri1, p); err != nil {
			return err
		}
		if err := s.relate(ctx, tx, uri2, p); err != nil {
			return err
		}
		slog.Debug("proxystore: minted proxy for new pair", "uri1", uri1, "uri2", uri2, "proxy", p)
		observe.DefaultMetrics().RecordProxyCreated(ctx)
		changeset.Add(p, strset.REFRESHED|strset.MOVED)
		*survivingProxy = p
		return nil

	case u1 != "" && u2 == "":
		if err := s.relate(ctx, tx, uri2, u1); err != nil {
			return err
		}
		changeset.Add(u1, strset.REFRESHED|strset.MOVED)
		*survivingProxy = u1
		return nil

	case u1 == "" && u2 != "":
		if err := s.relate(ctx, tx, uri1, u2); err != nil {
			return err
		}
		changeset.Add(u2, strset.REFRESHED|strset.MOVED)
		*survivingProxy = u2
		return nil

	default:
		// Both present and distinct. Tie-break: uri1's proxy survives.
		p := u1
		if err := s.migrateTx(ctx, tx, u2, p); err != nil {
			return err
		}
		slog.Debug("proxystore: migrated proxy", "from", u2, "to", p)
		observe.DefaultMetrics().RecordProxyMigrated(ctx)
		changeset.Add(u2, strset.REFRESHED|strset.MOVED)
		changeset.Add(p, strset.REFRESHED|strset.MOVED)
		*survivingProxy = p
		return nil
	}
}
