// Package lims resolves sample, library and study identifiers against the
// laboratory information database.
package lims

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/metacheck/internal/models"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Config selects the database. An empty driver disables LIMS lookups.
type Config struct {
	Driver string `yaml:"driver" toml:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// Enabled reports whether a database is configured.
func (c Config) Enabled() bool { return c.Driver != "" }

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.DSN, validation.When(c.Driver != "", validation.Required)),
	)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS samples (
	internal_id      TEXT PRIMARY KEY,
	name             TEXT NOT NULL DEFAULT '',
	accession_number TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS studies (
	internal_id      TEXT PRIMARY KEY,
	name             TEXT NOT NULL DEFAULT '',
	accession_number TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS libraries (
	internal_id TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL DEFAULT 'library'
);
`

type table struct {
	name string
	// cols selects internal_id, name, accession_number, kind in that order.
	cols string
	// by maps identifier classes to the column holding them.
	by map[models.IdentifierClass]string
}

var tables = map[models.EntityType]table{
	models.EntitySample: {
		name: "samples",
		cols: "internal_id, name, accession_number, ''",
		by: map[models.IdentifierClass]string{
			models.ClassName: "name", models.ClassAccessionNumber: "accession_number", models.ClassInternalID: "internal_id",
		},
	},
	models.EntityStudy: {
		name: "studies",
		cols: "internal_id, name, accession_number, ''",
		by: map[models.IdentifierClass]string{
			models.ClassName: "name", models.ClassAccessionNumber: "accession_number", models.ClassInternalID: "internal_id",
		},
	},
	models.EntityLibrary: {
		name: "libraries",
		cols: "internal_id, name, '', kind",
		by: map[models.IdentifierClass]string{
			models.ClassName: "name", models.ClassInternalID: "internal_id",
		},
	},
}

// Client queries the laboratory database. It is safe for concurrent use.
type Client struct {
	db     *sql.DB
	driver string
}

// Open connects to the configured database.
func Open(ctx context.Context, cfg Config) (*Client, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("lims: open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("lims: ping: %w", err)
	}
	return New(db, cfg.Driver), nil
}

// New wraps an open database handle.
func New(db *sql.DB, driver string) *Client {
	return &Client{db: db, driver: driver}
}

// Close closes the underlying database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

// placeholders returns n bind parameters starting at position from.
func (c *Client) placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		if c.driver == DriverPostgres {
			ps[i] = "$" + strconv.Itoa(from+i)
		} else {
			ps[i] = "?"
		}
	}
	return strings.Join(ps, ", ")
}

// EnsureSchema creates the entity tables when they do not exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("lims: ensure schema: %w", err)
		}
	}
	return nil
}

// Insert adds or replaces an entity record.
func (c *Client) Insert(ctx context.Context, e models.Entity) error {
	t, ok := tables[e.Type]
	if !ok {
		return fmt.Errorf("lims: unknown entity type %q", e.Type)
	}
	var (
		q    string
		args []any
	)
	if e.Type == models.EntityLibrary {
		kind := e.Kind
		if kind == "" {
			kind = "library"
		}
		q = "INSERT INTO " + t.name + " (internal_id, name, kind) VALUES (" + c.placeholders(1, 3) + ")"
		args = []any{e.InternalID, e.Name, kind}
	} else {
		q = "INSERT INTO " + t.name + " (internal_id, name, accession_number) VALUES (" + c.placeholders(1, 3) + ")"
		args = []any{e.InternalID, e.Name, e.AccessionNumber}
	}
	if _, err := c.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("lims: insert %s %s: %w", e.Type, e.InternalID, err)
	}
	return nil
}

// Lookup returns the entities of the given type matching any identifier in
// ids. Each identifier class is queried against its own column; results
// are merged by internal id in order of first match.
func (c *Client) Lookup(ctx context.Context, entity models.EntityType, ids models.IdentifierSet) ([]models.Entity, error) {
	t, ok := tables[entity]
	if !ok {
		return nil, fmt.Errorf("lims: unknown entity type %q", entity)
	}
	var out []models.Entity
	seen := map[string]struct{}{}
	for _, class := range models.IdentifierClasses {
		values := ids.ByClass(class)
		col, ok := t.by[class]
		if len(values) == 0 || !ok {
			continue
		}
		q := "SELECT " + t.cols + " FROM " + t.name + " WHERE " + col + " IN (" + c.placeholders(1, len(values)) + ") ORDER BY internal_id"
		args := make([]any, len(values))
		for i, v := range values {
			args[i] = v
		}
		rows, err := c.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("lims: query %s by %s: %w", t.name, class, err)
		}
		for rows.Next() {
			e := models.Entity{Type: entity}
			if err := rows.Scan(&e.InternalID, &e.Name, &e.AccessionNumber, &e.Kind); err != nil {
				rows.Close()
				return nil, fmt.Errorf("lims: scan %s: %w", t.name, err)
			}
			if _, dup := seen[e.InternalID]; dup {
				continue
			}
			seen[e.InternalID] = struct{}{}
			out = append(out, e)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("lims: iterate %s: %w", t.name, err)
		}
	}
	return out, nil
}

// LookupAll resolves the identifier sets of every entity type present in sets.
func (c *Client) LookupAll(ctx context.Context, sets map[models.EntityType]models.IdentifierSet) ([]models.Entity, error) {
	var out []models.Entity
	for _, entity := range models.EntityTypes {
		ids, ok := sets[entity]
		if !ok || ids.IsEmpty() {
			continue
		}
		found, err := c.Lookup(ctx, entity, ids)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}
