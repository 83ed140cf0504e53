package dynamic

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/drivers/dialect"
	"github.com/honeynil/sqlkit/query"
)

// Row is one untyped row: column name to its textual value, mirroring
// sqlkit.Row's string-rendering of every cell. Callers that need a typed
// value convert it themselves; Dynamic CRUD never knows a table's Go
// shape.
type Row map[string]string

// Opt composes a read query the same way model.Opt does, kept as its own
// type since this package has no dependency on model.
type Opt func(*query.Builder)

func apply(b *query.Builder, opts []Opt) *query.Builder {
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CRUD is the runtime-discovered table-agnostic access point: select,
// insert, update, delete against a table name resolved only at call
// time. The table name is checked (identifier syntax and, optionally, a
// configured allow-list), and every column key of an Insert/Update value
// map is checked against the discovered schema, before either is spliced
// into SQL text. Field names inside Opt filters (Where and the like) are
// passed to the builder unchecked.
type CRUD struct {
	db      *sqlkit.Database
	dialect dialect.Dialect
	allowed map[string]bool // nil: any valid identifier is allowed
	cache   sync.Map        // string -> *Schema
}

// New constructs a CRUD over db. If allowedTables is non-empty, only
// those table names may be queried; an empty allowedTables permits any
// syntactically valid identifier, deferring to the database's own
// permissions.
func New(db *sqlkit.Database, allowedTables ...string) *CRUD {
	c := &CRUD{db: db, dialect: dialect.ForKind(db.DriverKind())}
	if len(allowedTables) > 0 {
		c.allowed = make(map[string]bool, len(allowedTables))
		for _, t := range allowedTables {
			c.allowed[t] = true
		}
	}
	return c
}

func (c *CRUD) checkTable(table string) error {
	if !sqlkit.IsValidIdentifier(table) {
		return fmt.Errorf("dynamic: %q is not a valid table identifier", table)
	}
	if c.allowed != nil && !c.allowed[table] {
		return fmt.Errorf("dynamic: table %q is not in the allow-list", table)
	}
	return nil
}

func (c *CRUD) checkColumns(s *Schema, values map[string]any) error {
	for name := range values {
		if !s.has(name) {
			return fmt.Errorf("dynamic: table %q has no column %q", s.Table, name)
		}
	}
	return nil
}

func (c *CRUD) newBuilder(table string) *query.Builder {
	return query.New(table).UsePlaceholder(c.dialect.Placeholder).RenderMode(query.RenderBound)
}

func scanRows(rs *sqlkit.ResultSet) ([]Row, error) {
	defer rs.Close()
	var out []Row
	for {
		r, ok, err := rs.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		row := make(Row, len(rs.Fields))
		for i, field := range rs.Fields {
			if v, present := r.Get(i); present {
				row[field] = v
			}
		}
		out = append(out, row)
	}
}

// Select runs a filtered read against table and returns every matching
// row as a string-keyed map.
func (c *CRUD) Select(ctx context.Context, table string, opts ...Opt) ([]Row, error) {
	if _, err := c.Schema(ctx, table); err != nil {
		return nil, err
	}
	b := apply(c.newBuilder(table), opts)
	sqlText, args := b.ToSQL()
	rs, err := c.db.RawQuery(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	return scanRows(rs)
}

// sortedKeys returns values's keys in a stable order, so repeated calls
// with the same map produce identical SQL text (useful for logging/
// caching, and for deterministic tests).
func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Insert inserts one row into table and returns the affected row count.
// Every key of values must name a column Schema discovered on table.
func (c *CRUD) Insert(ctx context.Context, table string, values map[string]any) (int64, error) {
	s, err := c.Schema(ctx, table)
	if err != nil {
		return 0, err
	}
	if err := c.checkColumns(s, values); err != nil {
		return 0, err
	}

	keys := sortedKeys(values)
	vals := make([]sqlkit.Value, len(keys))
	for i, k := range keys {
		vals[i] = sqlkit.ValueOf(values[k])
	}

	b := c.newBuilder(table)
	sqlText, args := b.ToInsertSQL(keys, vals)
	return c.db.RawExec(ctx, sqlText, args...)
}

// Update applies values to every row matching opts and returns the
// affected row count.
func (c *CRUD) Update(ctx context.Context, table string, values map[string]any, opts ...Opt) (int64, error) {
	s, err := c.Schema(ctx, table)
	if err != nil {
		return 0, err
	}
	if err := c.checkColumns(s, values); err != nil {
		return 0, err
	}

	keys := sortedKeys(values)
	vals := make([]sqlkit.Value, len(keys))
	for i, k := range keys {
		vals[i] = sqlkit.ValueOf(values[k])
	}

	b := apply(c.newBuilder(table), opts)
	sqlText, args := b.ToUpdateSQL(keys, vals)
	return c.db.RawExec(ctx, sqlText, args...)
}

// Delete removes every row matching opts from table and returns the
// affected row count. Dynamic CRUD never infers soft-delete semantics —
// callers that want that pass an explicit Update setting deleted_at
// instead.
func (c *CRUD) Delete(ctx context.Context, table string, opts ...Opt) (int64, error) {
	if _, err := c.Schema(ctx, table); err != nil {
		return 0, err
	}
	b := apply(c.newBuilder(table), opts)
	sqlText, args := b.ToDeleteSQL()
	return c.db.RawExec(ctx, sqlText, args...)
}

// Where composes a dynamic.Opt equivalent to query.Builder.Where, the
// common case for Select/Update/Delete callers that don't need the full
// builder surface.
func Where(field string, args ...any) Opt {
	return func(b *query.Builder) { b.Where(field, args...) }
}
