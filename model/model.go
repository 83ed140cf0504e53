// Package model implements the typed, Eloquent-style CRUD and aggregate
// layer on top of the query builder and the schema package's struct
// introspection.
package model

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/drivers/dialect"
	"github.com/honeynil/sqlkit/query"
	"github.com/honeynil/sqlkit/schema"
)

// defaultDBs backs Use[T]/Default[T]: Go has no process-wide generic
// static slot keyed by type, so a sync.Map keyed by reflect.Type stands
// in for the "per-model singleton set once at startup" pattern.
var defaultDBs sync.Map // reflect.Type -> *sqlkit.Database

// Use registers db as the default Database for model type T. Call once
// at startup; every subsequent Default[T]()/package-level call that
// doesn't take an explicit db uses this registration.
func Use[T any](db *sqlkit.Database) {
	defaultDBs.Store(modelType[T](), db)
}

func modelType[T any]() reflect.Type {
	var zero T
	t := reflect.TypeOf(zero)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// Model is the typed handle for T's table: every CRUD/aggregate method
// hangs off this type.
type Model[T any] struct {
	db      *sqlkit.Database
	ts      *schema.TableSchema
	dialect dialect.Dialect
}

// For builds a Model[T] bound to an explicit Database (the "explicit-db"
// call style).
func For[T any](db *sqlkit.Database) *Model[T] {
	return &Model[T]{db: db, ts: schema.Derive[T](), dialect: dialect.ForKind(db.DriverKind())}
}

// Default builds a Model[T] from the Database registered via Use[T] (the
// "implicit-db" call style). Returns ErrUseNotConfigured if none was
// registered.
func Default[T any]() (*Model[T], error) {
	v, ok := defaultDBs.Load(modelType[T]())
	if !ok {
		return nil, &sqlkit.SqlError{Kind: sqlkit.ErrUseNotConfigured, Message: fmt.Sprintf("model: Use[%s] was never called", modelType[T]())}
	}
	return For[T](v.(*sqlkit.Database)), nil
}

// Schema exposes the derived TableSchema, useful for migrators.
func (m *Model[T]) Schema() *schema.TableSchema { return m.ts }

func (m *Model[T]) newBuilder() *query.Builder {
	b := query.New(m.ts.Name).UsePlaceholder(m.dialect.Placeholder).RenderMode(query.RenderBound)
	if m.ts.SoftDeletes {
		b.WithSoftDeletes("deleted_at")
	}
	return b
}

// List is the typed result-slice wrapper. Go's garbage collector owns
// every string's backing array, so unlike a manual-memory host language
// List needs no destructor — it is a plain slice with a couple of
// read-only conveniences.
type List[T any] []*T

// First returns the first element, or (nil, false) for an empty list.
func (l List[T]) First() (*T, bool) {
	if len(l) == 0 {
		return nil, false
	}
	return l[0], true
}

// Pluck maps fn over every element.
func (l List[T]) Pluck(fn func(*T) string) []string {
	out := make([]string, len(l))
	for i, v := range l {
		out[i] = fn(v)
	}
	return out
}

func (m *Model[T]) pkColumn() schema.ColumnInfo {
	for _, c := range m.ts.Columns {
		if c.PrimaryKey {
			return c
		}
	}
	panic(fmt.Sprintf("model: %s has no primary key column", m.ts.Name))
}

// scanOne maps one ResultSet row into a fresh *T.
func (m *Model[T]) scanOne(fields []string, row sqlkit.Row) (*T, error) {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[f] = i
	}

	var out T
	rv := reflect.ValueOf(&out).Elem()
	for _, col := range m.ts.Columns {
		i, ok := idx[col.Name]
		if !ok {
			continue
		}
		s, present := row.Get(i)
		field := rv.Field(col.FieldIndex)
		if !present {
			continue
		}
		if err := assignField(field, s); err != nil {
			return nil, fmt.Errorf("model: column %q: %w", col.Name, err)
		}
	}
	return &out, nil
}

func assignField(field reflect.Value, s string) error {
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return assignField(field.Elem(), s)
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(s)
	case reflect.Bool:
		field.SetBool(s == "1" || s == "true" || s == "TRUE" || s == "t")
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Struct:
		if field.Type() == reflect.TypeOf(time.Time{}) {
			t, err := parseTime(s)
			if err != nil {
				return err
			}
			field.Set(reflect.ValueOf(t))
			return nil
		}
		return fmt.Errorf("unsupported struct field type %s", field.Type())
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.Uint8 {
			field.SetBytes([]byte(s))
			return nil
		}
		return fmt.Errorf("unsupported slice field type %s", field.Type())
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// values extracts this entity's column values in schema order, skipping
// skipCols (by column name) — used to omit an auto-increment PK from an
// INSERT, or the PK itself from an UPDATE's SET list.
func (m *Model[T]) values(entity *T, skip map[string]bool) (cols []string, vals []sqlkit.Value) {
	rv := reflect.ValueOf(entity).Elem()
	for _, col := range m.ts.Columns {
		if skip[col.Name] {
			continue
		}
		fv := rv.Field(col.FieldIndex)
		cols = append(cols, col.Name)
		vals = append(vals, fieldToValue(fv))
	}
	return cols, vals
}

func fieldToValue(fv reflect.Value) sqlkit.Value {
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return sqlkit.NullValue{}
		}
		return fieldToValue(fv.Elem())
	}
	if fv.Type() == reflect.TypeOf(time.Time{}) {
		return sqlkit.StringValue(fv.Interface().(time.Time).UTC().Format(time.RFC3339Nano))
	}
	return sqlkit.ValueOf(fv.Interface())
}

func setPK(entity any, col schema.ColumnInfo, id int64) {
	rv := reflect.ValueOf(entity).Elem()
	field := rv.Field(col.FieldIndex)
	if field.Kind() == reflect.Ptr {
		field.Set(reflect.New(field.Type().Elem()))
		field = field.Elem()
	}
	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		field.SetInt(id)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		field.SetUint(uint64(id))
	}
}

// Opt customizes a read query before execution (filters, ordering,
// pagination, WithTrashed/OnlyTrashed).
type Opt func(*query.Builder)

func apply(b *query.Builder, opts []Opt) *query.Builder {
	for _, o := range opts {
		o(b)
	}
	return b
}

func (m *Model[T]) all(ctx context.Context, opts []Opt) (List[T], error) {
	b := apply(m.newBuilder(), opts)
	sqlText, args := b.ToSQL()
	rs, err := m.db.RawQuery(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out List[T]
	for {
		row, ok, err := rs.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		entity, err := m.scanOne(rs.Fields, row)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
}

// All returns every row matching opts.
func (m *Model[T]) All(ctx context.Context, opts ...Opt) (List[T], error) {
	return m.all(ctx, opts)
}

// First returns the first row matching opts, or (nil, nil) if none.
func (m *Model[T]) First(ctx context.Context, opts ...Opt) (*T, error) {
	opts = append(opts, func(b *query.Builder) { b.Limit(1) })
	rows, err := m.all(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Find looks up a single row by primary key.
func (m *Model[T]) Find(ctx context.Context, id any) (*T, error) {
	pk := m.pkColumn()
	return m.First(ctx, func(b *query.Builder) { b.Where(pk.Name, id) })
}

// FindOrFail is Find but returns ErrModelNotFound instead of (nil, nil).
func (m *Model[T]) FindOrFail(ctx context.Context, id any) (*T, error) {
	entity, err := m.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, &sqlkit.SqlError{Kind: sqlkit.ErrModelNotFound, Message: fmt.Sprintf("%s: no row for id %v", m.ts.Name, id), Table: m.ts.Name}
	}
	return entity, nil
}

// Count returns the number of rows matching opts.
func (m *Model[T]) Count(ctx context.Context, opts ...Opt) (int64, error) {
	b := apply(m.newBuilder(), opts)
	sqlText, args := b.ToCountSQL("")
	rs, err := m.db.RawQuery(ctx, sqlText, args...)
	if err != nil {
		return 0, err
	}
	defer rs.Close()
	row, ok, err := rs.Next()
	if err != nil || !ok {
		return 0, err
	}
	s, _ := row.Get(0)
	n, _ := strconv.ParseInt(s, 10, 64)
	return n, nil
}

// Exists reports whether any row matches opts.
func (m *Model[T]) Exists(ctx context.Context, opts ...Opt) (bool, error) {
	n, err := m.Count(ctx, opts...)
	return n > 0, err
}

// Pluck returns column's raw string value across every row matching opts.
func (m *Model[T]) Pluck(ctx context.Context, column string, opts ...Opt) ([]string, error) {
	b := apply(m.newBuilder(), opts)
	b.Select(column)
	sqlText, args := b.ToSQL()
	rs, err := m.db.RawQuery(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out []string
	for {
		row, ok, err := rs.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		s, _ := row.Get(0)
		out = append(out, s)
	}
}

// GetValue returns the first matching row's value for column.
func (m *Model[T]) GetValue(ctx context.Context, column string, opts ...Opt) (string, bool, error) {
	vals, err := m.Pluck(ctx, column, append(opts, func(b *query.Builder) { b.Limit(1) })...)
	if err != nil || len(vals) == 0 {
		return "", false, err
	}
	return vals[0], true, nil
}

// Create inserts entity, populating its auto-increment primary key field
// (if any) from the driver's last-insert-id.
func (m *Model[T]) Create(ctx context.Context, entity *T) error {
	_, err := m.CreateReturningID(ctx, entity)
	return err
}

// CreateReturningID inserts entity inside its own transaction so the
// generated primary key can be read back from the same connection
// (RawExec's pooled connection is released before a caller could read
// it back), and writes it into entity's PK field.
func (m *Model[T]) CreateReturningID(ctx context.Context, entity *T) (int64, error) {
	pk := m.pkColumn()
	skip := map[string]bool{}
	if pk.AutoIncrement {
		skip[pk.Name] = true
	}
	cols, vals := m.values(entity, skip)
	b := m.newBuilder()
	sqlText, args := b.ToInsertSQL(cols, vals)

	var id int64
	err := m.db.Transaction(ctx, func(tx *sqlkit.Transaction) error {
		if _, err := tx.Exec(ctx, sqlText, args...); err != nil {
			return err
		}
		var err error
		id, err = tx.LastInsertID()
		return err
	})
	if err != nil {
		return 0, &sqlkit.SqlError{Kind: sqlkit.ErrCreateFailed, Message: err.Error(), Table: m.ts.Name}
	}
	if pk.AutoIncrement {
		setPK(entity, pk, id)
	}
	return id, nil
}

// InsertMany inserts every entity in entities as one multi-row INSERT.
func (m *Model[T]) InsertMany(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	pk := m.pkColumn()
	skip := map[string]bool{}
	if pk.AutoIncrement {
		skip[pk.Name] = true
	}

	cols, _ := m.values(entities[0], skip)

	var placeholders []string
	var args []sqlkit.Value
	n := 0
	for _, e := range entities {
		_, vals := m.values(e, skip)
		parts := make([]string, len(vals))
		for i, v := range vals {
			n++
			args = append(args, v)
			parts[i] = m.dialect.Placeholder(n)
		}
		placeholders = append(placeholders, "("+joinComma(parts)+")")
	}

	sqlText := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", m.ts.Name, joinComma(cols), joinComma(placeholders))
	_, err := m.db.RawExec(ctx, sqlText, args...)
	return err
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// Update writes every non-PK column of entity back to its row.
func (m *Model[T]) Update(ctx context.Context, entity *T) error {
	pk := m.pkColumn()
	rv := reflect.ValueOf(entity).Elem()
	idVal := fieldToValue(rv.Field(pk.FieldIndex))

	cols, vals := m.values(entity, map[string]bool{pk.Name: true})
	b := m.newBuilder().Where(pk.Name, idVal)
	sqlText, args := b.ToUpdateSQL(cols, vals)
	_, err := m.db.RawExec(ctx, sqlText, args...)
	return err
}

// UpdateWhere applies values to every row matching opts, returning the
// number of rows affected.
func (m *Model[T]) UpdateWhere(ctx context.Context, values map[string]any, opts ...Opt) (int64, error) {
	b := apply(m.newBuilder(), opts)
	cols := make([]string, 0, len(values))
	vals := make([]sqlkit.Value, 0, len(values))
	for k, v := range values {
		cols = append(cols, k)
		vals = append(vals, sqlkit.ValueOf(v))
	}
	sqlText, args := b.ToUpdateSQL(cols, vals)
	return m.db.RawExec(ctx, sqlText, args...)
}

// DeleteWhere deletes (or, for soft-delete models, marks deleted) every
// row matching opts.
func (m *Model[T]) DeleteWhere(ctx context.Context, opts ...Opt) (int64, error) {
	if m.ts.SoftDeletes {
		return m.UpdateWhere(ctx, map[string]any{"deleted_at": m.nowString()}, opts...)
	}
	b := apply(m.newBuilder(), opts)
	sqlText, args := b.ToDeleteSQL()
	return m.db.RawExec(ctx, sqlText, args...)
}

// Destroy removes a single row by primary key, honoring soft deletes.
func (m *Model[T]) Destroy(ctx context.Context, id any) error {
	pk := m.pkColumn()
	_, err := m.DeleteWhere(ctx, func(b *query.Builder) { b.Where(pk.Name, id) })
	return err
}

// SoftDelete explicitly stamps deleted_at regardless of the model's
// default Destroy behavior. If the table has no deleted_at column, the
// database rejects the UPDATE and that error is returned.
func (m *Model[T]) SoftDelete(ctx context.Context, id any) error {
	pk := m.pkColumn()
	b := m.newBuilder().WithTrashed().Where(pk.Name, id)
	sqlText, args := b.ToUpdateSQL([]string{"deleted_at"}, []sqlkit.Value{sqlkit.StringValue(m.nowString())})
	_, err := m.db.RawExec(ctx, sqlText, args...)
	return err
}

// Restore clears deleted_at for a previously soft-deleted row.
func (m *Model[T]) Restore(ctx context.Context, id any) error {
	pk := m.pkColumn()
	b := m.newBuilder().WithTrashed().Where(pk.Name, id)
	sqlText, args := b.ToUpdateSQL([]string{"deleted_at"}, []sqlkit.Value{sqlkit.NullValue{}})
	_, err := m.db.RawExec(ctx, sqlText, args...)
	return err
}

// Increment/Decrement adjust a numeric column by amount for a single row.
func (m *Model[T]) Increment(ctx context.Context, id any, column string, amount int64) error {
	return m.bump(ctx, id, column, amount)
}
func (m *Model[T]) Decrement(ctx context.Context, id any, column string, amount int64) error {
	return m.bump(ctx, id, column, -amount)
}

func (m *Model[T]) bump(ctx context.Context, id any, column string, delta int64) error {
	pk := m.pkColumn()
	sign := "+"
	abs := delta
	if delta < 0 {
		sign = "-"
		abs = -delta
	}
	sqlText := fmt.Sprintf("UPDATE %s SET %s = %s %s %d WHERE %s = %s",
		m.ts.Name, column, column, sign, abs, pk.Name, m.dialect.Placeholder(1))
	_, err := m.db.RawExec(ctx, sqlText, sqlkit.ValueOf(id))
	return err
}

// FirstOrCreate returns the first row matching attrs, or creates one from
// attrs merged with extra if none exists.
func (m *Model[T]) FirstOrCreate(ctx context.Context, attrs map[string]any, extra ...map[string]any) (*T, error) {
	opts := optsFromAttrs(attrs)
	existing, err := m.First(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	entity := newFromAttrs[T](mergeAttrs(attrs, extra...))
	if err := m.Create(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// UpdateOrCreate updates the first row matching attrs with values, or
// creates a new row from attrs merged with values if none exists.
func (m *Model[T]) UpdateOrCreate(ctx context.Context, attrs map[string]any, values map[string]any) (*T, error) {
	opts := optsFromAttrs(attrs)
	existing, err := m.First(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		entity := newFromAttrs[T](mergeAttrs(attrs, values))
		if err := m.Create(ctx, entity); err != nil {
			return nil, err
		}
		return entity, nil
	}

	pk := m.pkColumn()
	rv := reflect.ValueOf(existing).Elem()
	idVal := fieldToValue(rv.Field(pk.FieldIndex))
	if _, err := m.UpdateWhere(ctx, values, func(b *query.Builder) { b.Where(pk.Name, idVal) }); err != nil {
		return nil, err
	}
	return m.Find(ctx, idVal)
}

func optsFromAttrs(attrs map[string]any) []Opt {
	opts := make([]Opt, 0, len(attrs))
	for k, v := range attrs {
		k, v := k, v
		opts = append(opts, func(b *query.Builder) { b.Where(k, v) })
	}
	return opts
}

func mergeAttrs(a map[string]any, rest ...map[string]any) map[string]any {
	out := make(map[string]any, len(a))
	for k, v := range a {
		out[k] = v
	}
	for _, m := range rest {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func newFromAttrs[T any](attrs map[string]any) *T {
	var entity T
	rv := reflect.ValueOf(&entity).Elem()
	ts := schema.Derive[T]()
	byName := make(map[string]schema.ColumnInfo, len(ts.Columns))
	for _, c := range ts.Columns {
		byName[c.Name] = c
	}
	for k, v := range attrs {
		col, ok := byName[k]
		if !ok {
			continue
		}
		field := rv.Field(col.FieldIndex)
		assignable := reflect.ValueOf(v)
		if field.Kind() == reflect.Ptr && assignable.Type() != field.Type() {
			ptr := reflect.New(field.Type().Elem())
			ptr.Elem().Set(assignable.Convert(field.Type().Elem()))
			field.Set(ptr)
			continue
		}
		if assignable.Type().ConvertibleTo(field.Type()) {
			field.Set(assignable.Convert(field.Type()))
		}
	}
	return &entity
}

// nowString formats the Database's current time (real or, in tests, a
// fake clockwork.Clock) as the RFC3339Nano string soft-delete timestamp
// columns store.
func (m *Model[T]) nowString() string {
	return m.db.Now().UTC().Format(time.RFC3339Nano)
}
