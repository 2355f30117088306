package queryapi_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spindle-coref/spindle/internal/proxystore"
	"github.com/spindle-coref/spindle/internal/queryapi"
	"github.com/spindle-coref/spindle/internal/spindleerr"
	"github.com/spindle-coref/spindle/internal/strset"
)

const testRoot = "http://example.org/"

func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("SPINDLE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SPINDLE_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestAPI(t *testing.T) (*queryapi.API, *proxystore.Store) {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS index CASCADE",
		"DROP TABLE IF EXISTS index_media CASCADE",
		"DROP TABLE IF EXISTS licenses_audiences CASCADE",
		"DROP TABLE IF EXISTS audiences CASCADE",
		"DROP TABLE IF EXISTS membership CASCADE",
		"DROP TABLE IF EXISTS media CASCADE",
		"DROP TABLE IF EXISTS about CASCADE",
		"DROP TABLE IF EXISTS triggers CASCADE",
		"DROP TABLE IF EXISTS moved CASCADE",
		"DROP TABLE IF EXISTS state CASCADE",
		"DROP TABLE IF EXISTS proxy CASCADE",
		"DROP TABLE IF EXISTS _version CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("drop schema %q: %v", stmt, err)
		}
	}

	store, err := proxystore.NewStore(ctx, dsn, testRoot)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return queryapi.New(store), store
}

func TestLookup_RoundTrip(t *testing.T) {
	api, store := newTestAPI(t)
	ctx := context.Background()

	cs := strset.New()
	if err := store.Create(ctx, "http://a.example/x", "http://b.example/y", cs); err != nil {
		t.Fatalf("Create: %v", err)
	}
	proxyURI := cs.Entries()[0].Key

	got, err := api.Lookup(ctx, "http://a.example/x")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != proxyURI {
		t.Errorf("got %q, want %q", got, proxyURI)
	}
}

func TestLookup_Miss(t *testing.T) {
	api, _ := newTestAPI(t)
	got, err := api.Lookup(context.Background(), "http://nowhere.example/z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty string for a miss, got %q", got)
	}
}

func TestFetchItem_NotFoundWraps(t *testing.T) {
	api, _ := newTestAPI(t)
	_, err := api.FetchItem(context.Background(), testRoot+"00000000000000000000000000000000#id")
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, context.Canceled) {
		t.Fatal("unexpected cancellation error")
	}
	if !errors.Is(err, spindleerr.ErrNotFound) {
		t.Errorf("expected an error wrapping ErrNotFound, got %v", err)
	}
}
