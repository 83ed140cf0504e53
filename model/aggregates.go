package model

import (
	"context"
	"strconv"
)

func (m *Model[T]) aggregate(ctx context.Context, fn, column string, opts []Opt) (float64, error) {
	b := apply(m.newBuilder(), opts)
	sqlText, args := b.ToCountSQL(fn + "(" + column + ")")
	rs, err := m.db.RawQuery(ctx, sqlText, args...)
	if err != nil {
		return 0, err
	}
	defer rs.Close()

	row, ok, err := rs.Next()
	if err != nil || !ok {
		return 0, err
	}
	s, present := row.Get(0)
	if !present {
		return 0, nil
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f, nil
}

// Sum returns SUM(column) across rows matching opts.
func (m *Model[T]) Sum(ctx context.Context, column string, opts ...Opt) (float64, error) {
	return m.aggregate(ctx, "SUM", column, opts)
}

// Avg returns AVG(column) across rows matching opts.
func (m *Model[T]) Avg(ctx context.Context, column string, opts ...Opt) (float64, error) {
	return m.aggregate(ctx, "AVG", column, opts)
}

// Min returns MIN(column) across rows matching opts.
func (m *Model[T]) Min(ctx context.Context, column string, opts ...Opt) (float64, error) {
	return m.aggregate(ctx, "MIN", column, opts)
}

// Max returns MAX(column) across rows matching opts.
func (m *Model[T]) Max(ctx context.Context, column string, opts ...Opt) (float64, error) {
	return m.aggregate(ctx, "MAX", column, opts)
}
