package proxystore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spindle-coref/spindle/internal/resilience"
	"github.com/spindle-coref/spindle/internal/spindleerr"
)

// createCoolDown is how long the Create breaker stays open — rejecting new
// correlation writes outright — before letting a probe transaction through
// again.
const createCoolDown = 10 * time.Second

// Store is the PostgreSQL-backed proxy store (C3). It holds a single
// [pgxpool.Pool] and a [resilience.Breaker] guarding the retrying Create
// transaction: a run of serialization failures past withTxn's own retry
// budget trips the breaker so a degraded database stops being hammered with
// doomed transaction attempts.
//
// All operations are safe for concurrent use; concurrency safety beyond the
// process boundary is provided entirely by the RDBMS (spec.md §5).
type Store struct {
	pool    *pgxpool.Pool
	root    string
	breaker *resilience.Breaker
}

// NewStore establishes a connection pool to the PostgreSQL database at dsn,
// runs [Migrate], and returns a ready-to-use Store. root is the proxy URI
// prefix configured via spec.md §6.3's "root" key.
func NewStore(ctx context.Context, dsn, root string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("proxystore: parse dsn: %w: %w", spindleerr.ErrConfig, err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("proxystore: create pool: %w: %w", spindleerr.ErrDB, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("proxystore: ping: %w: %w", spindleerr.ErrDB, err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("proxystore: %w", err)
	}

	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Name:          "proxystore.create",
		FailureBudget: 5,
		CoolDown:      createCoolDown,
		ProbeBudget:   1,
		OnTrip: func(name string) {
			slog.Warn("proxystore: correlation writes paused, database looks unhealthy", "breaker", name)
		},
	})

	slog.Info("proxystore: connected", "root", root)
	return &Store{pool: pool, root: root, breaker: breaker}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports whether the underlying connection pool can reach the
// database, for use as an [internal/health.Checker].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("proxystore: ping: %w: %w", spindleerr.ErrDB, err)
	}
	return nil
}

// Root returns the configured proxy URI prefix.
func (s *Store) Root() string {
	return s.root
}
