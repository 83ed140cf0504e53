package model

import (
	"context"
	"fmt"
	"reflect"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/query"
)

// Relation is a deferred, filterable query against a related model R,
// built by HasOne/HasMany/BelongsTo and executed by Get/First/Count.
type Relation[R any] struct {
	m      *Model[R]
	opts   []Opt
	single bool
}

// HasOne builds a one-row relation: rows of R whose fkColumn equals
// parentID, limited to the first match.
func HasOne[R any](db *sqlkit.Database, fkColumn string, parentID any) *Relation[R] {
	return &Relation[R]{
		m:      For[R](db),
		opts:   []Opt{func(b *query.Builder) { b.Where(fkColumn, parentID) }},
		single: true,
	}
}

// HasMany builds a many-row relation: every row of R whose fkColumn
// equals parentID.
func HasMany[R any](db *sqlkit.Database, fkColumn string, parentID any) *Relation[R] {
	return &Relation[R]{
		m:    For[R](db),
		opts: []Opt{func(b *query.Builder) { b.Where(fkColumn, parentID) }},
	}
}

// BelongsTo builds a one-row relation pointed the other way: the row of
// R whose pkColumn equals fkValue (the child's foreign key value).
func BelongsTo[R any](db *sqlkit.Database, pkColumn string, fkValue any) *Relation[R] {
	return &Relation[R]{
		m:      For[R](db),
		opts:   []Opt{func(b *query.Builder) { b.Where(pkColumn, fkValue) }},
		single: true,
	}
}

// Where narrows the relation with an additional filter before execution.
func (r *Relation[R]) Where(field string, args ...any) *Relation[R] {
	r.opts = append(r.opts, func(b *query.Builder) { b.Where(field, args...) })
	return r
}

// OrderBy orders the relation's rows before execution.
func (r *Relation[R]) OrderBy(column string, desc bool) *Relation[R] {
	r.opts = append(r.opts, func(b *query.Builder) { b.OrderBy(column, desc) })
	return r
}

// Get executes the relation, returning every matching row (at most one
// for HasOne/BelongsTo, which add LIMIT 1).
func (r *Relation[R]) Get(ctx context.Context) (List[R], error) {
	opts := r.opts
	if r.single {
		opts = append(opts[:len(opts):len(opts)], func(b *query.Builder) { b.Limit(1) })
	}
	return r.m.All(ctx, opts...)
}

// First executes the relation, returning only its first row.
func (r *Relation[R]) First(ctx context.Context) (*R, error) {
	return r.m.First(ctx, r.opts...)
}

// Count executes the relation as a COUNT(*).
func (r *Relation[R]) Count(ctx context.Context) (int64, error) {
	return r.m.Count(ctx, r.opts...)
}

// Exists reports whether the relation has any matching row.
func (r *Relation[R]) Exists(ctx context.Context) (bool, error) {
	return r.m.Exists(ctx, r.opts...)
}

// fieldValue reads field's value off entity via reflection, stringified
// for grouping keys — eager loading only needs equality comparison, not
// a typed value, so everything collapses to its string rendering.
func fieldValue(entity any, field string) string {
	rv := reflect.ValueOf(entity)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	fv := rv.FieldByName(field)
	if !fv.IsValid() {
		panic(fmt.Sprintf("model: field %q not found on %s", field, rv.Type()))
	}
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return ""
		}
		fv = fv.Elem()
	}
	return fmt.Sprintf("%v", fv.Interface())
}

// With eager-loads R for every parent in parents with one batched query
// (WHERE fkColumn IN (...)) instead of one query per parent, then groups
// children by fkField and invokes assign once per parent.
// parentKeyField names the Go field on T holding the key children
// reference (usually the primary key); fkColumn names the database
// column on R's table holding that same key, and fkField names R's Go
// field for that column (used to group the batched result in memory).
func With[T, R any](ctx context.Context, db *sqlkit.Database, parents []*T, parentKeyField, fkColumn, fkField string, assign func(parent *T, children List[R])) error {
	if len(parents) == 0 {
		return nil
	}

	keys := make([]any, 0, len(parents))
	seen := make(map[string]bool, len(parents))
	for _, p := range parents {
		k := fieldValue(p, parentKeyField)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	childModel := For[R](db)
	children, err := childModel.All(ctx, func(b *query.Builder) { b.WhereIn(fkColumn, keys) })
	if err != nil {
		return err
	}

	grouped := make(map[string][]*R, len(keys))
	for _, c := range children {
		k := fieldValue(c, fkField)
		grouped[k] = append(grouped[k], c)
	}

	for _, p := range parents {
		k := fieldValue(p, parentKeyField)
		assign(p, grouped[k])
	}
	return nil
}
