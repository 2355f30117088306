package proxystore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaVersion is stamped into _version on migration, mirroring spec.md
// §6.1's "migration table _version(ident, version) tracks the applied
// schema version."
const schemaVersion = 1
const schemaIdent = "spindle_proxystore"

// ddlVersion creates the schema-version tracking table (spec.md §6.1).
const ddlVersion = `
CREATE TABLE IF NOT EXISTS _version (
    ident   TEXT PRIMARY KEY,
    version INTEGER NOT NULL
);
`

// ddlCore creates the proxy, state, and moved tables: the load-bearing
// invariant-carrying core of spec.md §3.2. moved.from is UNIQUE, resolving
// spec.md §9's open question by serializing concurrent migrations onto the
// same losing proxy at the database level (DESIGN.md).
const ddlCore = `
CREATE TABLE IF NOT EXISTS proxy (
    id      TEXT PRIMARY KEY,
    sameas  TEXT[] NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_proxy_sameas ON proxy USING GIN (sameas);

CREATE TABLE IF NOT EXISTS state (
    id         TEXT PRIMARY KEY REFERENCES proxy (id) ON DELETE CASCADE,
    shorthash  BIGINT NOT NULL,
    tinyhash   SMALLINT NOT NULL,
    status     TEXT NOT NULL DEFAULT 'DIRTY',
    modified   TIMESTAMPTZ NOT NULL DEFAULT now(),
    flags      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_state_status ON state (status);
CREATE INDEX IF NOT EXISTS idx_state_tinyhash ON state (tinyhash);

CREATE TABLE IF NOT EXISTS moved (
    "from" TEXT NOT NULL UNIQUE,
    "to"   TEXT NOT NULL
);
`

// ddlDependents creates the dependent tables re-pointed during migration
// (spec.md §4.3.2 step 5) and referenced by triggers.
const ddlDependents = `
CREATE TABLE IF NOT EXISTS triggers (
    id          TEXT NOT NULL,
    uri         TEXT NOT NULL,
    triggerid   TEXT,
    flags       INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_triggers_id ON triggers (id);
CREATE INDEX IF NOT EXISTS idx_triggers_triggerid ON triggers (triggerid);
CREATE INDEX IF NOT EXISTS idx_triggers_uri ON triggers (uri);

CREATE TABLE IF NOT EXISTS about (
    id     TEXT NOT NULL,
    about  TEXT NOT NULL,
    PRIMARY KEY (id, about)
);

CREATE TABLE IF NOT EXISTS media (
    id          TEXT NOT NULL,
    uri         TEXT NOT NULL,
    class       TEXT,
    type        TEXT,
    audienceid  TEXT
);

CREATE INDEX IF NOT EXISTS idx_media_id ON media (id);

CREATE TABLE IF NOT EXISTS index_media (
    id     TEXT NOT NULL,
    media  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_index_media_id ON index_media (id);
CREATE INDEX IF NOT EXISTS idx_index_media_media ON index_media (media);

CREATE TABLE IF NOT EXISTS membership (
    id          TEXT NOT NULL,
    collection  TEXT NOT NULL,
    PRIMARY KEY (id, collection)
);

CREATE INDEX IF NOT EXISTS idx_membership_collection ON membership (collection);

CREATE TABLE IF NOT EXISTS audiences (
    id   TEXT PRIMARY KEY,
    uri  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS licenses_audiences (
    id          TEXT NOT NULL,
    uri         TEXT NOT NULL,
    audienceid  TEXT
);

CREATE INDEX IF NOT EXISTS idx_licenses_audiences_id ON licenses_audiences (id);
CREATE INDEX IF NOT EXISTS idx_licenses_audiences_audienceid ON licenses_audiences (audienceid);

CREATE TABLE IF NOT EXISTS index (
    id            TEXT PRIMARY KEY REFERENCES proxy (id) ON DELETE CASCADE,
    classes       TEXT[] NOT NULL DEFAULT '{}',
    title         TEXT,
    description   TEXT,
    coordinates   POINT,
    modified      TIMESTAMPTZ NOT NULL DEFAULT now(),
    score         DOUBLE PRECISION NOT NULL DEFAULT 0,
    index_en      TSVECTOR
);
`

// Migrate creates or ensures all required tables, indexes, and the hstore
// extension exist, and stamps the applied schema version into _version. It
// is idempotent and safe to call on every process start, mirroring the
// teacher's postgres.Migrate.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS hstore;`,
		ddlVersion,
		ddlCore,
		ddlDependents,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("proxystore: migrate: %w", err)
		}
	}

	const stampVersion = `
		INSERT INTO _version (ident, version) VALUES ($1, $2)
		ON CONFLICT (ident) DO UPDATE SET version = EXCLUDED.version`
	if _, err := pool.Exec(ctx, stampVersion, schemaIdent, schemaVersion); err != nil {
		return fmt.Errorf("proxystore: migrate: stamp version: %w", err)
	}

	return nil
}
