package correlate_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spindle-coref/spindle/internal/correlate"
	"github.com/spindle-coref/spindle/internal/proxystore"
	"github.com/spindle-coref/spindle/internal/rdf"
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

func newTestStore(t *testing.T) *proxystore.Store {
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
	return store
}

func TestCorrelate_EndToEnd(t *testing.T) {
	store := newTestStore(t)
	rb := mustRuleBase(t)
	ctx := context.Background()

	model := rdf.NewMemModel()
	model.Add(rdf.Statement{
		Subject:   rdf.NewResource("http://a.example/x"),
		Predicate: rdf.NewResource("http://www.w3.org/2002/07/owl#sameAs"),
		Object:    rdf.NewResource("http://b.example/y"),
	})

	changeset, err := correlate.Correlate(ctx, store, rb, correlate.GraphUpdate{
		URI: "http://graphs.example/g1",
		New: model,
	})
	if err != nil {
		t.Fatalf("Correlate: %v", err)
	}
	if len(changeset) == 0 {
		t.Fatal("expected a non-empty change-set")
	}

	var proxyURI string
	for _, e := range changeset {
		proxyURI = e.ProxyURI
	}
	refs, err := store.Refs(ctx, proxyURI)
	if err != nil {
		t.Fatalf("Refs: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs on the resulting proxy, got %v", refs)
	}
}
