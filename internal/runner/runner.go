// Package runner fans independent graph updates out across a bounded pool
// of workers (spec.md §5: "Implementations MAY run multiple independent
// processors in parallel, each with its own DB connection; mutual safety is
// provided entirely by the RDBMS").
//
// Grounded on golang.org/x/sync/errgroup, already present in the teacher's
// go.mod but previously unwired in its voice pipeline.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spindle-coref/spindle/internal/correlate"
	"github.com/spindle-coref/spindle/internal/graphcache"
	"github.com/spindle-coref/spindle/internal/observe"
	"github.com/spindle-coref/spindle/internal/proxystore"
	"github.com/spindle-coref/spindle/internal/rulebase"
	"github.com/spindle-coref/spindle/internal/strip"
)

// Runner processes a batch of independent [correlate.GraphUpdate]s, bounded
// by a worker concurrency limit (spec.md §6.3's "worker_concurrency" key).
type Runner struct {
	store       *proxystore.Store
	rb          *rulebase.RuleBase
	concurrency int

	cache   *graphcache.Cache
	cacheMu sync.Mutex
}

// New returns a Runner. concurrency <= 0 is treated as 1 (fully sequential),
// matching the fact that correlation within a single graph must already be
// sequential (spec.md §5 "Ordering between operations").
func New(store *proxystore.Store, rb *rulebase.RuleBase, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{store: store, rb: rb, concurrency: concurrency, cache: graphcache.New()}
}

// Cache returns the runner's graph cache, holding the stripped form of the
// most recently correlated graphs (spec.md §4.6), keyed by graph URI. It
// holds at most [graphcache.Capacity] graphs; older ones are evicted.
func (r *Runner) Cache() *graphcache.Cache { return r.cache }

// Result pairs a processed update's URI with its outcome.
type Result struct {
	URI       string
	ChangeSet correlate.ChangeSet
	Err       error
}

// Run processes every update in updates, up to r.concurrency at a time.
// Each update's correlation is independent of the others (spec.md §5
// "Across graphs there is no ordering guarantee; the RDBMS provides
// serialisation of conflicting transactions"); Run cancels no other
// in-flight update when one fails — each update's success or failure is
// reported independently in the returned slice, in input order.
func (r *Runner) Run(ctx context.Context, updates []correlate.GraphUpdate) ([]Result, error) {
	results := make([]Result, len(updates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, update := range updates {
		i, update := i, update
		g.Go(func() error {
			cs, err := correlate.Correlate(gctx, r.store, r.rb, update)
			if err != nil {
				slog.Warn("runner: graph correlation failed", "graph", update.URI, "error", err)
			} else {
				r.strip(gctx, update)
			}
			results[i] = Result{URI: update.URI, ChangeSet: cs, Err: err}
			return nil // per-update failures are reported, not fatal to the batch
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("runner: run: %w", err)
	}
	return results, nil
}

// strip implements spec.md §4.5's "the result replaces the input graph's
// store": the successfully correlated graph is filtered down to its
// cache-predicate triples and stored under its own URI in the runner's
// cache, readable through [Runner.Cache]. Correlation itself does not read
// from this cache. The cache is single-threaded by contract (spec.md
// §4.6), so writes from concurrent workers are serialized on cacheMu.
func (r *Runner) strip(ctx context.Context, update correlate.GraphUpdate) {
	start := time.Now()
	defer func() {
		observe.DefaultMetrics().StripDuration.Record(ctx, time.Since(start).Seconds())
	}()

	stripped := strip.Strip(update.New, r.rb.CachePredicates())

	r.cacheMu.Lock()
	r.cache.Put(update.URI, stripped)
	r.cacheMu.Unlock()
}
