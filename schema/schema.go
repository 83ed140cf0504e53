// Package schema derives a TableSchema from a Go struct type via
// reflection and struct tags, and renders dialect-specific DDL from it.
// Go has no compile-time reflection, so derivation happens once per
// process per type and is cached rather than recomputed on every call.
package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/drivers/dialect"
	"github.com/honeynil/sqlkit/internal/naturalsort"
)

// ColumnInfo describes one derived column.
type ColumnInfo struct {
	Name          string
	FieldName     string
	FieldIndex    int
	GoType        reflect.Type
	SQLType       string // explicit type= tag override, if present
	PrimaryKey    bool
	AutoIncrement bool
	Nullable      bool
}

// TableSchema is the full derived (or discovered) shape of one table.
type TableSchema struct {
	Name        string
	Columns     []ColumnInfo
	PrimaryKey  string
	Timestamps  bool
	SoftDeletes bool
}

// ModelConfig lets a model type override table-level defaults (table
// name, primary key, timestamps, soft deletes, ignored fields) via a
// method pair instead of a struct tag, since these are type-level facts
// rather than field-level ones.
type ModelConfig struct {
	Table        string
	PrimaryKey   string
	Timestamps   bool
	SoftDeletes  bool
	IgnoreFields []string
}

// Configurable is implemented by a model struct that wants to override
// the zero-value ModelConfig defaults.
type Configurable interface {
	ModelConfig() ModelConfig
}

// Named is implemented by a model struct that wants a table name other
// than the snake_cased, pluralized type name.
type Named interface {
	TableName() string
}

// ColumnError reports that a PK/soft-delete invariant wasn't satisfied
// at derivation time.
type ColumnError struct {
	Type   reflect.Type
	Reason string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("schema: %s: %s", e.Type, e.Reason)
}

var cache sync.Map // reflect.Type -> *TableSchema

// Derive introspects T's fields once per process (cached by reflect.Type
// on repeat calls) and returns its TableSchema. T must be a struct type;
// passing anything else panics, since this is a programming error, not a
// runtime condition callers should handle.
func Derive[T any]() *TableSchema {
	var zero T
	t := reflect.TypeOf(zero)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := cache.Load(t); ok {
		return cached.(*TableSchema)
	}

	ts := deriveFromType(t)
	cache.Store(t, ts)
	return ts
}

func deriveFromType(t reflect.Type) *TableSchema {
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("schema: %s is not a struct", t))
	}

	cfg := ModelConfig{PrimaryKey: "id"}
	zero := reflect.New(t).Interface()
	if c, ok := zero.(Configurable); ok {
		userCfg := c.ModelConfig()
		if userCfg.Table != "" {
			cfg.Table = userCfg.Table
		}
		if userCfg.PrimaryKey != "" {
			cfg.PrimaryKey = userCfg.PrimaryKey
		}
		cfg.Timestamps = userCfg.Timestamps
		cfg.SoftDeletes = userCfg.SoftDeletes
		cfg.IgnoreFields = userCfg.IgnoreFields
	}

	name := cfg.Table
	if name == "" {
		if n, ok := zero.(Named); ok {
			name = n.TableName()
		} else {
			name = pluralSnake(t.Name())
		}
	}

	ignore := make(map[string]bool, len(cfg.IgnoreFields))
	for _, f := range cfg.IgnoreFields {
		ignore[f] = true
	}

	ts := &TableSchema{Name: name, PrimaryKey: cfg.PrimaryKey, Timestamps: cfg.Timestamps, SoftDeletes: cfg.SoftDeletes}

	foundPK := false
	hasDeletedAt := false
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || ignore[f.Name] {
			continue
		}
		col := columnFromField(f, i)
		if col.Name == cfg.PrimaryKey {
			col.PrimaryKey = true
			foundPK = true
			if isIntegerKind(f.Type.Kind()) {
				col.AutoIncrement = true
			}
		}
		if col.Name == "deleted_at" {
			hasDeletedAt = true
		}
		ts.Columns = append(ts.Columns, col)
	}

	if !foundPK {
		panic((&ColumnError{Type: t, Reason: fmt.Sprintf("primary key field %q not found", cfg.PrimaryKey)}).Error())
	}
	if cfg.SoftDeletes && !hasDeletedAt {
		panic((&ColumnError{Type: t, Reason: "soft_deletes requires a nullable deleted_at field"}).Error())
	}

	return ts
}

func columnFromField(f reflect.StructField, index int) ColumnInfo {
	tag := f.Tag.Get("db")
	name := snakeCase(f.Name)
	var explicitType string
	pk, auto, nullable := false, false, false

	if tag != "" && tag != "-" {
		parts := strings.Split(tag, ",")
		if parts[0] != "" {
			name = parts[0]
		}
		for _, p := range parts[1:] {
			switch {
			case p == "pk":
				pk = true
			case p == "auto":
				auto = true
			case p == "null":
				nullable = true
			case strings.HasPrefix(p, "type="):
				explicitType = strings.TrimPrefix(p, "type=")
			}
		}
	}

	if f.Type.Kind() == reflect.Ptr {
		nullable = true
	}

	return ColumnInfo{
		Name:          name,
		FieldName:     f.Name,
		FieldIndex:    index,
		GoType:        f.Type,
		SQLType:       explicitType,
		PrimaryKey:    pk,
		AutoIncrement: auto,
		Nullable:      nullable,
	}
}

func isIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

// sqlType renders d's type name for col, honoring an explicit type= tag
// override first.
func sqlType(d dialect.Dialect, col ColumnInfo) string {
	if col.SQLType != "" {
		return col.SQLType
	}

	t := col.GoType
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	fieldSuffix := strings.ToLower(col.FieldName)
	isLongText := strings.HasSuffix(fieldSuffix, "content") ||
		strings.HasSuffix(fieldSuffix, "description") ||
		strings.HasSuffix(fieldSuffix, "body")

	switch t.Kind() {
	case reflect.Int8, reflect.Uint8:
		return intType(d, "tiny")
	case reflect.Int16, reflect.Uint16:
		return intType(d, "small")
	case reflect.Int32, reflect.Uint32:
		return intType(d, "normal")
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		return intType(d, "big")
	case reflect.Float32:
		return floatType(d, false)
	case reflect.Float64:
		return floatType(d, true)
	case reflect.Bool:
		return boolType(d)
	case reflect.String:
		if isLongText {
			return textType(d)
		}
		return "VARCHAR(255)"
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return blobType(d)
		}
		return textType(d)
	default:
		return "VARCHAR(255)"
	}
}

func intType(d dialect.Dialect, width string) string {
	switch d.Name {
	case sqlkit.DriverMySQL:
		switch width {
		case "tiny":
			return "TINYINT"
		case "small":
			return "SMALLINT"
		case "normal":
			return "INT"
		default:
			return "BIGINT"
		}
	case sqlkit.DriverPostgres:
		switch width {
		case "tiny", "small":
			return "SMALLINT"
		case "normal":
			return "INTEGER"
		default:
			return "BIGINT"
		}
	default: // SQLite / Memory: type affinity collapses everything to INTEGER
		return "INTEGER"
	}
}

func floatType(d dialect.Dialect, double bool) string {
	switch d.Name {
	case sqlkit.DriverMySQL:
		if double {
			return "DOUBLE"
		}
		return "FLOAT"
	case sqlkit.DriverPostgres:
		if double {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	default:
		return "REAL"
	}
}

func boolType(d dialect.Dialect) string {
	switch d.Name {
	case sqlkit.DriverPostgres:
		return "BOOLEAN"
	default:
		return "BOOLEAN" // MySQL/SQLite alias BOOLEAN to a 1-byte integer
	}
}

func textType(d dialect.Dialect) string {
	if d.Name == sqlkit.DriverMySQL {
		return "LONGTEXT"
	}
	return "TEXT"
}

func blobType(d dialect.Dialect) string {
	switch d.Name {
	case sqlkit.DriverPostgres:
		return "BYTEA"
	case sqlkit.DriverMySQL:
		return "BLOB"
	default:
		return "BLOB"
	}
}

// autoIncrementClause renders the PK auto-increment suffix for d, or ""
// when col isn't an auto-increment PK.
func autoIncrementClause(d dialect.Dialect, col ColumnInfo, sqlTypeName string) string {
	if !col.PrimaryKey || !col.AutoIncrement {
		return ""
	}
	if d.Name == sqlkit.DriverPostgres {
		return "" // rendered via SERIAL/BIGSERIAL type substitution instead
	}
	return " " + d.AutoIncrement(sqlTypeName)
}

// postgresSerialType substitutes SERIAL/BIGSERIAL for an auto-increment
// PK's declared integer type, Postgres's idiom for auto-increment.
func postgresSerialType(sqlTypeName string) string {
	switch sqlTypeName {
	case "BIGINT":
		return "BIGSERIAL"
	default:
		return "SERIAL"
	}
}

// CreateTableSQL renders a CREATE TABLE statement for ts under d.
func (ts *TableSchema) CreateTableSQL(d dialect.Dialect) string {
	var defs []string
	for _, col := range ts.Columns {
		typeName := sqlType(d, col)
		if col.PrimaryKey && col.AutoIncrement && d.Name == sqlkit.DriverPostgres {
			typeName = postgresSerialType(typeName)
		}

		var b strings.Builder
		b.WriteString(d.QuoteIdentifier(col.Name))
		b.WriteString(" ")
		b.WriteString(typeName)
		if col.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
		}
		b.WriteString(autoIncrementClause(d, col, typeName))
		if !col.Nullable && !col.PrimaryKey {
			b.WriteString(" NOT NULL")
		}
		defs = append(defs, b.String())
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		d.QuoteIdentifier(ts.Name), strings.Join(defs, ",\n\t"))
}

// DropTableSQL renders a DROP TABLE statement for ts under d.
func (ts *TableSchema) DropTableSQL(d dialect.Dialect) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdentifier(ts.Name))
}

// ColumnNames returns the column names in field-declaration order.
func (ts *TableSchema) ColumnNames() []string {
	names := make([]string, len(ts.Columns))
	for i, c := range ts.Columns {
		names[i] = c.Name
	}
	return names
}

func pluralSnake(typeName string) string {
	s := snakeCase(typeName)
	switch {
	case strings.HasSuffix(s, "y") && !strings.HasSuffix(s, "ay") && !strings.HasSuffix(s, "ey"):
		return s[:len(s)-1] + "ies"
	case strings.HasSuffix(s, "s"), strings.HasSuffix(s, "x"), strings.HasSuffix(s, "ch"):
		return s + "es"
	default:
		return s + "s"
	}
}

// snakeCase converts a Go identifier (UserID, HTTPStatus) into
// lower_snake_case. No third-party inflection library exists in the
// examined corpus, so this is a small hand-rolled pass rather than a
// dependency.
func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
				nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
				if prevLower || (nextLower && b.Len() > 0) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sortTableNames returns names ordered with naturalsort.Compare, used by
// Migrator to apply/drop tables in a deterministic order.
func sortTableNames(names []string) []string {
	out := append([]string(nil), names...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && naturalsort.Compare(out[j-1], out[j]) > 0; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
