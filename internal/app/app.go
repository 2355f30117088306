// Package app wires the Spindle subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the health/readiness HTTP endpoint until the
// context is cancelled, and Shutdown tears everything down in order.
//
// For testing, inject alternate implementations via functional options
// (WithStore, WithRuleBase). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/spindle-coref/spindle/internal/config"
	"github.com/spindle-coref/spindle/internal/health"
	"github.com/spindle-coref/spindle/internal/observe"
	"github.com/spindle-coref/spindle/internal/proxystore"
	"github.com/spindle-coref/spindle/internal/queryapi"
	"github.com/spindle-coref/spindle/internal/rulebase"
	"github.com/spindle-coref/spindle/internal/runner"
)

// App owns all subsystem lifetimes, holds Spindle's query API, and serves
// the health/readiness HTTP surface.
type App struct {
	cfg *config.Config

	store       *proxystore.Store
	ruleBase    *rulebase.RuleBase
	ruleWatcher *config.RuleBaseWatcher
	runner      *runner.Runner
	query       *queryapi.API
	metrics     *observe.Metrics
	health      *health.Handler

	srv *http.Server

	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a proxy store instead of connecting one from config.
func WithStore(s *proxystore.Store) Option {
	return func(a *App) { a.store = s }
}

// WithRuleBase injects a static rule base instead of loading (and watching)
// one from config.
func WithRuleBase(rb *rulebase.RuleBase) Option {
	return func(a *App) { a.ruleBase = rb }
}

// New wires an App together: connects the proxy store, loads and watches
// the rule base, constructs the runner and query API, and prepares the
// health/readiness HTTP handler. Use Option functions to inject test
// doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, metrics: observe.DefaultMetrics()}
	for _, o := range opts {
		o(a)
	}

	// 1. Proxy store.
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// 2. Rule base (with hot-reload watcher).
	if err := a.initRuleBase(); err != nil {
		return nil, fmt.Errorf("app: init rule base: %w", err)
	}

	// 3. Runner.
	a.runner = runner.New(a.store, a.ruleBase, cfg.Server.WorkerConcurrency)

	// 4. Query API.
	a.query = queryapi.New(a.store)

	// 5. Health/readiness handler.
	a.health = health.New(health.Checker{
		Name:  "proxystore",
		Check: a.store.Ping,
	})

	// 6. HTTP server.
	a.initHTTPServer()

	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	store, err := proxystore.NewStore(ctx, a.cfg.DB, a.cfg.Root)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

func (a *App) initRuleBase() error {
	if a.ruleBase != nil {
		return nil
	}
	w, err := config.NewRuleBaseWatcher(a.cfg.RuleBase, func(old, new *rulebase.RuleBase) {
		slog.Info("app: rule base hot-swapped", "path", a.cfg.RuleBase)
		if a.runner != nil {
			a.runner = runner.New(a.store, new, a.cfg.Server.WorkerConcurrency)
		}
	})
	if err != nil {
		return err
	}
	a.ruleWatcher = w
	a.ruleBase = w.Current()
	if a.cfg.DumpRules {
		a.ruleBase.DumpSummary()
	}
	a.closers = append(a.closers, func() error {
		w.Stop()
		return nil
	})
	return nil
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()
	a.health.Register(mux)
	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	a.srv = &http.Server{
		Addr:    addr,
		Handler: observe.Middleware(a.metrics)(mux),
	}
}

// Store returns the underlying proxy store.
func (a *App) Store() *proxystore.Store { return a.store }

// Query returns the read-only query API.
func (a *App) Query() *queryapi.API { return a.query }

// Runner returns the current graph-update runner. Its value may change
// across the lifetime of the App when the rule base is hot-reloaded.
func (a *App) Runner() *runner.Runner { return a.runner }

// Run starts the health/readiness HTTP server and blocks until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("app: health/readiness server listening", "addr", a.srv.Addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("app: shutting down", "closers", len(a.closers))

		if a.srv != nil {
			if err := a.srv.Shutdown(ctx); err != nil {
				slog.Warn("app: http server shutdown error", "err", err)
			}
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("app: shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("app: closer error", "index", i, "err", err)
			}
		}

		slog.Info("app: shutdown complete")
	})
	return shutdownErr
}
