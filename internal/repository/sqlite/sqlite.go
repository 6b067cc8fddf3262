// Package sqlite provides the embedded SQLite repository backend. It is the
// default backend and is what the test suites and local dry runs use, with
// ":memory:" or a file DSN.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/smonier/importContentFromJson/internal/repository"
	"github.com/smonier/importContentFromJson/internal/repository/sqlstore"
)

func init() {
	repository.Register("sqlite", func(ctx context.Context, cfg repository.Config) (repository.Service, error) {
		return New(ctx, cfg)
	})
}

var dialect = sqlstore.Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
	CreateTables: []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			uuid        TEXT PRIMARY KEY,
			path        TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL,
			node_type   TEXT NOT NULL,
			mime_type   TEXT NOT NULL DEFAULT '',
			binary_data BLOB
		)`,
		`CREATE TABLE IF NOT EXISTS node_props (
			node_uuid TEXT NOT NULL,
			name      TEXT NOT NULL,
			lang      TEXT NOT NULL DEFAULT '',
			ord       INTEGER NOT NULL DEFAULT 0,
			multi     INTEGER NOT NULL DEFAULT 0,
			value     TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_node_props_node ON node_props (node_uuid)`,
		`CREATE TABLE IF NOT EXISTS node_tags (
			node_uuid TEXT NOT NULL,
			tag       TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS node_cats (
			node_uuid     TEXT NOT NULL,
			category_uuid TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS vanity_urls (
			node_uuid TEXT NOT NULL,
			lang      TEXT NOT NULL DEFAULT '',
			url       TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS content_types (
			site_key     TEXT NOT NULL,
			name         TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			icon         TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS property_defs (
			type_name     TEXT NOT NULL,
			name          TEXT NOT NULL,
			display_name  TEXT NOT NULL DEFAULT '',
			required_type TEXT NOT NULL DEFAULT 'STRING',
			multiple      INTEGER NOT NULL DEFAULT 0,
			i18n          INTEGER NOT NULL DEFAULT 0,
			mandatory     INTEGER NOT NULL DEFAULT 0,
			constraints   TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS site_languages (
			site_key     TEXT NOT NULL,
			code         TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT ''
		)`,
	},
}

// New opens (or creates) the SQLite store at cfg.DSN and prepares the schema.
func New(ctx context.Context, cfg repository.Config) (*sqlstore.Store, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dsn, err)
	}
	// modernc.org/sqlite handles are not safe for concurrent writers; a
	// single connection also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", dsn, err)
	}

	store := sqlstore.New(db, dialect)
	if err := store.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
