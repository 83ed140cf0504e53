package sqlkit

import "fmt"

// Row is one row of a ResultSet: an ordered, nullable-string cell list
// aligned with Fields. Cells carry the driver's raw textual rendering;
// typed conversion happens in the model-mapping layer.
type Row []*string

// Get returns the cell at column index idx, or ("", false) if idx is out
// of range or the cell is NULL — callers tolerate missing columns rather
// than treating them as errors.
func (r Row) Get(idx int) (string, bool) {
	if idx < 0 || idx >= len(r) || r[idx] == nil {
		return "", false
	}
	return *r[idx], true
}

// RowProducer lazily yields the next row of a ResultSet. It returns
// (nil, false, nil) once exhausted, or a non-nil error on failure.
type RowProducer func() (Row, bool, error)

// ResultSet is field names (insertion order = column order) plus a lazy
// row producer, a row count, and a lifecycle-bound resource handle.
// Exactly one consumer is expected; Close releases the underlying
// statement/rows handle. Not restartable — a single forward pass.
type ResultSet struct {
	Fields []string
	next   RowProducer
	closer func() error
	count  int64
	done   bool
}

// NewResultSet wraps a row producer and its resource closer.
func NewResultSet(fields []string, next RowProducer, closer func() error) *ResultSet {
	return &ResultSet{Fields: fields, next: next, closer: closer}
}

// FieldIndex builds the fields→column-index cache with a single O(F·C)
// scan, letting callers map every row of a large result set in O(F)
// instead of re-scanning Fields per row per column.
func (rs *ResultSet) FieldIndex(wanted []string) map[string]int {
	idx := make(map[string]int, len(wanted))
	for _, w := range wanted {
		for i, f := range rs.Fields {
			if f == w {
				idx[w] = i
				break
			}
		}
	}
	return idx
}

// Next advances to the next row. It is safe to call after the set is
// exhausted (returns false, nil).
func (rs *ResultSet) Next() (Row, bool, error) {
	if rs.done || rs.next == nil {
		return nil, false, nil
	}
	row, ok, err := rs.next()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		rs.done = true
		return nil, false, nil
	}
	rs.count++
	return row, true, nil
}

// Count returns the number of rows consumed so far via Next.
func (rs *ResultSet) Count() int64 { return rs.count }

// Close releases the underlying statement/rows handle. Safe to call
// multiple times.
func (rs *ResultSet) Close() error {
	if rs.closer == nil {
		return nil
	}
	closer := rs.closer
	rs.closer = nil
	return closer()
}

// All drains the ResultSet into an in-memory slice of rows, for callers
// that don't need streaming (most Model/DynamicCRUD read paths).
func (rs *ResultSet) All() ([]Row, error) {
	defer rs.Close()
	var rows []Row
	for {
		row, ok, err := rs.Next()
		if err != nil {
			return nil, fmt.Errorf("sqlkit: reading result set: %w", err)
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, row)
	}
}
