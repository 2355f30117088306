// Package queryapi provides read-only facades over the proxy store for
// presentation layers (spec.md §4.8). HTTP content-negotiation and
// presentation concerns are the caller's responsibility and are out of
// scope here (spec.md §1).
package queryapi

import (
	"context"
	"fmt"
	"time"

	"github.com/spindle-coref/spindle/internal/observe"
	"github.com/spindle-coref/spindle/internal/proxystore"
)

// API is a thin, read-only wrapper around [proxystore.Store].
type API struct {
	store *proxystore.Store
}

// New returns an API backed by store.
func New(store *proxystore.Store) *API {
	return &API{store: store}
}

// recordDuration returns a func to defer at the top of each API method,
// recording its wall time under the shared spindle.query.duration
// histogram regardless of which facade was called.
func recordDuration(ctx context.Context) func() {
	start := time.Now()
	return func() {
		observe.DefaultMetrics().QueryDuration.Record(ctx, time.Since(start).Seconds())
	}
}

// Lookup is an alias of locate: given an external URI, returns its proxy
// URI, or "" if none exists. Surfacing this as an HTTP redirect is the
// caller's concern (spec.md §4.8).
func (a *API) Lookup(ctx context.Context, externalURI string) (string, error) {
	defer recordDuration(ctx)()
	proxyURI, err := a.store.Locate(ctx, externalURI)
	if err != nil {
		return "", fmt.Errorf("queryapi: lookup: %w", err)
	}
	return proxyURI, nil
}

// Refs returns the external URIs subsumed by proxyURI.
func (a *API) Refs(ctx context.Context, proxyURI string) ([]string, error) {
	defer recordDuration(ctx)()
	refs, err := a.store.Refs(ctx, proxyURI)
	if err != nil {
		return nil, fmt.Errorf("queryapi: refs: %w", err)
	}
	return refs, nil
}

// FetchItem returns the structured view of proxyURI's proxy and index rows,
// or an error wrapping [spindleerr.ErrNotFound] if the proxy row itself is
// missing. A proxy with no index row is not a not-found condition (spec.md
// §4.8).
func (a *API) FetchItem(ctx context.Context, proxyURI string) (*proxystore.Item, error) {
	defer recordDuration(ctx)()
	item, err := a.store.FetchItem(ctx, proxyURI)
	if err != nil {
		return nil, fmt.Errorf("queryapi: fetch item: %w", err)
	}
	return item, nil
}

// EnumerateMemberships projects the membership table for proxyID, capped at limit.
func (a *API) EnumerateMemberships(ctx context.Context, proxyID string, limit int) ([]proxystore.Membership, error) {
	defer recordDuration(ctx)()
	memberships, err := a.store.EnumerateMemberships(ctx, proxyID, limit)
	if err != nil {
		return nil, fmt.Errorf("queryapi: enumerate memberships: %w", err)
	}
	return memberships, nil
}
