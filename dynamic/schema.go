// Package dynamic implements schema-less CRUD against a table name and
// column values discovered at runtime, for callers that don't have (or
// don't want) a compile-time Go struct for every table — admin tools,
// generic data browsers, migration scripts.
package dynamic

import (
	"context"
	"fmt"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/internal/checksum"
)

// Column describes one column of a runtime-discovered table.
type Column struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
}

// Schema is the runtime-discovered shape of one table: enough to
// validate column names before they're spliced into SQL text and to
// detect that the table changed shape since it was last discovered.
type Schema struct {
	Table    string
	Columns  []Column
	Checksum string
}

// ColumnNames returns the discovered column names in ordinal order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// has reports whether name is one of s's discovered columns.
func (s *Schema) has(name string) bool {
	for _, c := range s.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// primaryKey returns the first column flagged PRIMARY KEY, or "" if none
// was discovered (some legacy tables have no declared PK).
func (s *Schema) primaryKey() string {
	for _, c := range s.Columns {
		if c.PrimaryKey {
			return c.Name
		}
	}
	return ""
}

func calculateChecksum(cols []Column) string {
	parts := make([]string, 0, len(cols)*3)
	for _, c := range cols {
		parts = append(parts, c.Name, c.SQLType, fmt.Sprintf("%v:%v", c.Nullable, c.PrimaryKey))
	}
	return checksum.Calculate(parts...)
}

// discoverSchema queries the live catalog for table's column set. The
// query differs per dialect: MySQL/PostgreSQL expose information_schema,
// SQLite/Memory only expose PRAGMA table_info.
func (c *CRUD) discoverSchema(ctx context.Context, table string) (*Schema, error) {
	switch c.db.DriverKind() {
	case sqlkit.DriverMySQL:
		return c.discoverViaInformationSchemaMySQL(ctx, table)
	case sqlkit.DriverPostgres:
		return c.discoverViaInformationSchemaPostgres(ctx, table)
	default:
		return c.discoverViaPragma(ctx, table)
	}
}

func (c *CRUD) discoverViaInformationSchemaMySQL(ctx context.Context, table string) (*Schema, error) {
	sqlText := `SELECT column_name, data_type, is_nullable, column_key
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`
	rs, err := c.db.RawQuery(ctx, sqlText, sqlkit.StringValue(table))
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	s := &Schema{Table: table}
	for {
		row, ok, err := rs.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		name, _ := row.Get(0)
		dataType, _ := row.Get(1)
		nullable, _ := row.Get(2)
		key, _ := row.Get(3)
		s.Columns = append(s.Columns, Column{
			Name:       name,
			SQLType:    dataType,
			Nullable:   nullable == "YES",
			PrimaryKey: key == "PRI",
		})
	}
	if len(s.Columns) == 0 {
		return nil, fmt.Errorf("dynamic: table %q not found", table)
	}
	s.Checksum = calculateChecksum(s.Columns)
	return s, nil
}

func (c *CRUD) discoverViaInformationSchemaPostgres(ctx context.Context, table string) (*Schema, error) {
	colSQL := `SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = $1
		ORDER BY ordinal_position`
	rs, err := c.db.RawQuery(ctx, colSQL, sqlkit.StringValue(table))
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	s := &Schema{Table: table}
	for {
		row, ok, err := rs.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		name, _ := row.Get(0)
		dataType, _ := row.Get(1)
		nullable, _ := row.Get(2)
		s.Columns = append(s.Columns, Column{Name: name, SQLType: dataType, Nullable: nullable == "YES"})
	}
	if len(s.Columns) == 0 {
		return nil, fmt.Errorf("dynamic: table %q not found", table)
	}

	pkSQL := `SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.table_name = $1 AND tc.constraint_type = 'PRIMARY KEY'`
	pkRS, err := c.db.RawQuery(ctx, pkSQL, sqlkit.StringValue(table))
	if err != nil {
		return nil, err
	}
	defer pkRS.Close()
	pkNames := map[string]bool{}
	for {
		row, ok, err := pkRS.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		name, _ := row.Get(0)
		pkNames[name] = true
	}
	for i := range s.Columns {
		s.Columns[i].PrimaryKey = pkNames[s.Columns[i].Name]
	}

	s.Checksum = calculateChecksum(s.Columns)
	return s, nil
}

// discoverViaPragma handles SQLite and the in-memory test driver, neither
// of which exposes information_schema. PRAGMA table_info doesn't accept a
// bound parameter for the table name, so table is spliced directly; the
// caller has already validated it against sqlkit.IsValidIdentifier.
func (c *CRUD) discoverViaPragma(ctx context.Context, table string) (*Schema, error) {
	sqlText := fmt.Sprintf("PRAGMA table_info(%s)", table)
	rs, err := c.db.RawQuery(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	s := &Schema{Table: table}
	for {
		row, ok, err := rs.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		// cid, name, type, notnull, dflt_value, pk
		name, _ := row.Get(1)
		sqlType, _ := row.Get(2)
		notNull, _ := row.Get(3)
		pk, _ := row.Get(5)
		s.Columns = append(s.Columns, Column{
			Name:       name,
			SQLType:    sqlType,
			Nullable:   notNull != "1",
			PrimaryKey: pk != "" && pk != "0",
		})
	}
	if len(s.Columns) == 0 {
		return nil, fmt.Errorf("dynamic: table %q not found", table)
	}
	s.Checksum = calculateChecksum(s.Columns)
	return s, nil
}

// Schema rediscovers table's shape from the live catalog on every call,
// returns it, and stores it in the cache. When a cached entry exists and
// its checksum differs from the fresh one, a warning is logged first (not
// an error — this is observability, not migration-diffing), so a
// long-lived process notices a table
// that changed shape underneath it without this package taking on
// schema-diffing as a feature.
func (c *CRUD) Schema(ctx context.Context, table string) (*Schema, error) {
	if err := c.checkTable(table); err != nil {
		return nil, err
	}

	fresh, err := c.discoverSchema(ctx, table)
	if err != nil {
		return nil, err
	}

	if cached, ok := c.cache.Load(table); ok {
		old := cached.(*Schema)
		if old.Checksum != fresh.Checksum {
			c.db.Logger().WarnContext(ctx, "dynamic: schema drift detected",
				"table", table, "old_checksum", old.Checksum, "new_checksum", fresh.Checksum)
		}
	}
	c.cache.Store(table, fresh)
	return fresh, nil
}
