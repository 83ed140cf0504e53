// Package query implements the fluent SQL composition layer: a
// QueryBuilder that never executes by itself, only renders SQL text (and,
// in bound-parameter mode, a matching argument list).
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/honeynil/sqlkit"
)

// Op is a where-clause predicate operator.
type Op string

const (
	OpEq         Op = "="
	OpNe         Op = "!="
	OpGt         Op = ">"
	OpGte        Op = ">="
	OpLt         Op = "<"
	OpLte        Op = "<="
	OpLike       Op = "LIKE"
	OpNotLike    Op = "NOT LIKE"
	OpIn         Op = "IN"
	OpNotIn      Op = "NOT IN"
	OpBetween    Op = "BETWEEN"
	OpIsNull     Op = "IS NULL"
	OpIsNotNull  Op = "IS NOT NULL"
)

// opFromString parses the string-form operators the where(field,
// op, value) call style accepts.
func opFromString(s string) (Op, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "=", "eq":
		return OpEq, true
	case "!=", "<>", "ne":
		return OpNe, true
	case ">", "gt":
		return OpGt, true
	case ">=", "gte":
		return OpGte, true
	case "<", "lt":
		return OpLt, true
	case "<=", "lte":
		return OpLte, true
	case "like":
		return OpLike, true
	case "not like":
		return OpNotLike, true
	case "in":
		return OpIn, true
	case "not in":
		return OpNotIn, true
	case "between":
		return OpBetween, true
	}
	return "", false
}

// RenderMode selects how the builder emits scalar values: as literal SQL
// (the default) or as bound placeholders collected alongside the SQL
// string.
type RenderMode int

const (
	RenderLiteral RenderMode = iota
	RenderBound
)

type whereClause struct {
	raw    string  // pre-rendered fragment, used for Raw/Column/Group clauses
	or     bool
	isLink bool // true for the synthetic leading clause of a group
}

type orderClause struct {
	column string
	desc   bool
}

type joinClause struct {
	kind string // INNER, LEFT, RIGHT
	sql  string
}

// Builder composes SELECT/INSERT/UPDATE/DELETE statements. Nothing here
// executes; Database.RawQuery/RawExec (or Model[T]) do that with the
// rendered SQL.
type Builder struct {
	table    string
	distinct bool
	selects  []string

	joins   []joinClause
	wheres  []whereClause
	groupBy []string
	having  string
	orders  []orderClause
	limit   *int
	offset  *int

	// Soft-delete gating: empty softDeleteColumn means the bound model
	// has no deleted_at column, so gating never applies.
	softDeleteColumn string
	withTrashed      bool
	onlyTrashed      bool

	mode        RenderMode
	args        []sqlkit.Value
	placeholder func(n int) string
}

// New starts a builder over table. Bound-mode placeholders default to a
// bare "?" for every position; call UsePlaceholder for dialects (Postgres)
// that number them instead.
func New(table string) *Builder {
	return &Builder{table: table, mode: RenderLiteral, placeholder: questionPlaceholder}
}

func questionPlaceholder(int) string { return "?" }

// UsePlaceholder installs the dialect's placeholder function (see
// drivers/dialect.Dialect.Placeholder) so bound-mode rendering matches
// what the underlying driver expects.
func (b *Builder) UsePlaceholder(fn func(n int) string) *Builder {
	if fn != nil {
		b.placeholder = fn
	}
	return b
}

// WithSoftDeletes marks the bound model's soft-delete column, enabling
// the default "deleted_at IS NULL" gate.
func (b *Builder) WithSoftDeletes(column string) *Builder {
	b.softDeleteColumn = column
	return b
}

// WithTrashed disables the default soft-delete gate, including both live
// and trashed rows.
func (b *Builder) WithTrashed() *Builder {
	b.withTrashed = true
	return b
}

// OnlyTrashed flips the gate to "deleted_at IS NOT NULL" and suppresses
// the default filter.
func (b *Builder) OnlyTrashed() *Builder {
	b.onlyTrashed = true
	return b
}

// RenderMode selects literal or bound-placeholder rendering.
func (b *Builder) RenderMode(mode RenderMode) *Builder {
	b.mode = mode
	return b
}

// Distinct sets SELECT DISTINCT.
func (b *Builder) Distinct() *Builder {
	b.distinct = true
	return b
}

// Select sets the column list. SelectRaw is an alias kept for call-site
// clarity; both just append to the select list.
func (b *Builder) Select(cols ...string) *Builder {
	b.selects = append(b.selects, cols...)
	return b
}

// SelectRaw appends a raw select expression, bypassing escaping — caller
// must pre-validate it themselves.
func (b *Builder) SelectRaw(expr string) *Builder {
	b.selects = append(b.selects, expr)
	return b
}

func (b *Builder) renderValue(v sqlkit.Value) string {
	if b.mode == RenderBound {
		b.args = append(b.args, v)
		return b.placeholder(len(b.args))
	}
	return v.Literal()
}

func (b *Builder) pushWhere(frag string, or bool) {
	b.wheres = append(b.wheres, whereClause{raw: frag, or: or})
}

// Where resolves call-arity: where(field,value) is a two-arg eq
// comparison; where(field,op,value) lets the caller name the operator
// (string form, parsed via opFromString).
func (b *Builder) Where(field string, args ...any) *Builder {
	return b.whereImpl(field, args, false)
}

// OrWhere is Where with OR linkage on the appended clause.
func (b *Builder) OrWhere(field string, args ...any) *Builder {
	return b.whereImpl(field, args, true)
}

func (b *Builder) whereImpl(field string, args []any, or bool) *Builder {
	var op Op
	var value any

	switch len(args) {
	case 1:
		op = OpEq
		value = args[0]
	case 2:
		if s, ok := args[0].(string); ok {
			if parsed, ok := opFromString(s); ok {
				op = parsed
				value = args[1]
				break
			}
		}
		op = OpEq
		value = args[0]
	default:
		op = OpEq
		if len(args) > 0 {
			value = args[0]
		}
	}

	frag := fmt.Sprintf("%s %s %s", field, op, b.renderValue(sqlkit.ValueOf(value)))
	b.pushWhere(frag, or)
	return b
}

// WhereRaw appends a pre-formed SQL fragment verbatim — an
// injection-risk hook; callers must pre-validate it themselves.
func (b *Builder) WhereRaw(frag string) *Builder {
	b.pushWhere(frag, false)
	return b
}

// OrWhereRaw is WhereRaw with OR linkage.
func (b *Builder) OrWhereRaw(frag string) *Builder {
	b.pushWhere(frag, true)
	return b
}

// WhereColumn compares two columns without quoting or escaping either
// side.
func (b *Builder) WhereColumn(f1 string, op Op, f2 string) *Builder {
	b.pushWhere(fmt.Sprintf("%s %s %s", f1, op, f2), false)
	return b
}

// WhereNull / WhereNotNull emit IS [NOT] NULL.
func (b *Builder) WhereNull(field string) *Builder {
	b.pushWhere(field+" IS NULL", false)
	return b
}
func (b *Builder) WhereNotNull(field string) *Builder {
	b.pushWhere(field+" IS NOT NULL", false)
	return b
}

// WhereBetween emits a BETWEEN clause.
func (b *Builder) WhereBetween(field string, lo, hi any) *Builder {
	frag := fmt.Sprintf("%s BETWEEN %s AND %s", field,
		b.renderValue(sqlkit.ValueOf(lo)), b.renderValue(sqlkit.ValueOf(hi)))
	b.pushWhere(frag, false)
	return b
}

// WhereLike / WhereNotLike cover the common LIKE cases.
func (b *Builder) WhereLike(field, pattern string) *Builder {
	b.pushWhere(fmt.Sprintf("%s LIKE %s", field, b.renderValue(sqlkit.StringValue(pattern))), false)
	return b
}
func (b *Builder) WhereNotLike(field, pattern string) *Builder {
	b.pushWhere(fmt.Sprintf("%s NOT LIKE %s", field, b.renderValue(sqlkit.StringValue(pattern))), false)
	return b
}

// whereDatePart implements whereDate/Year/Month/Day via the SQL
// extraction function named by part.
func (b *Builder) whereDatePart(part, field string, value any) *Builder {
	frag := fmt.Sprintf("%s(%s) = %s", part, field, b.renderValue(sqlkit.ValueOf(value)))
	b.pushWhere(frag, false)
	return b
}

func (b *Builder) WhereDate(field string, value any) *Builder  { return b.whereDatePart("DATE", field, value) }
func (b *Builder) WhereYear(field string, value any) *Builder  { return b.whereDatePart("YEAR", field, value) }
func (b *Builder) WhereMonth(field string, value any) *Builder { return b.whereDatePart("MONTH", field, value) }
func (b *Builder) WhereDay(field string, value any) *Builder   { return b.whereDatePart("DAY", field, value) }

func (b *Builder) renderInList(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = b.renderValue(sqlkit.ValueOf(v))
	}
	return strings.Join(parts, ", ")
}

// WhereIn / WhereNotIn render a list of values, each escaped or bound
// like any other Where value. A subquery goes through WhereInSub /
// WhereNotInSub instead.
func (b *Builder) WhereIn(field string, values []any) *Builder {
	b.pushWhere(fmt.Sprintf("%s IN (%s)", field, b.renderInList(values)), false)
	return b
}
func (b *Builder) WhereNotIn(field string, values []any) *Builder {
	b.pushWhere(fmt.Sprintf("%s NOT IN (%s)", field, b.renderInList(values)), false)
	return b
}

// WhereInSub embeds a raw subquery fragment (or sub *Builder's ToSQL) —
// another injection-risk hook; callers must pre-validate it themselves.
func (b *Builder) WhereInSub(field, subquerySQL string) *Builder {
	b.pushWhere(fmt.Sprintf("%s IN (%s)", field, subquerySQL), false)
	return b
}
func (b *Builder) WhereNotInSub(field, subquerySQL string) *Builder {
	b.pushWhere(fmt.Sprintf("%s NOT IN (%s)", field, subquerySQL), false)
	return b
}
func (b *Builder) WhereExists(subquerySQL string) *Builder {
	b.pushWhere(fmt.Sprintf("EXISTS (%s)", subquerySQL), false)
	return b
}
func (b *Builder) WhereNotExists(subquerySQL string) *Builder {
	b.pushWhere(fmt.Sprintf("NOT EXISTS (%s)", subquerySQL), false)
	return b
}

// WhereGroup captures a temporary sub-builder's clauses, composes them
// with correct AND/OR linkage, and wraps them in parentheses; the outer
// builder takes ownership of the resulting fragment. OrWhereGroup is the
// same with OR linkage into the parent.
func (b *Builder) WhereGroup(cb func(*Builder)) *Builder {
	return b.group(cb, false)
}
func (b *Builder) OrWhereGroup(cb func(*Builder)) *Builder {
	return b.group(cb, true)
}

func (b *Builder) group(cb func(*Builder), or bool) *Builder {
	offset := len(b.args)
	sub := &Builder{mode: b.mode, placeholder: func(n int) string { return b.placeholder(offset + n) }}
	cb(sub)
	frag := renderWhereClauses(sub.wheres)
	if frag == "" {
		return b
	}
	b.args = append(b.args, sub.args...)
	b.pushWhere("("+frag+")", or)
	return b
}

// Join appends a join clause verbatim (ON conditions are caller-composed
// SQL, consistent with the builder's "never quote identifiers" policy).
func (b *Builder) Join(table, on string) *Builder {
	b.joins = append(b.joins, joinClause{kind: "INNER", sql: fmt.Sprintf("INNER JOIN %s ON %s", table, on)})
	return b
}
func (b *Builder) LeftJoin(table, on string) *Builder {
	b.joins = append(b.joins, joinClause{kind: "LEFT", sql: fmt.Sprintf("LEFT JOIN %s ON %s", table, on)})
	return b
}
func (b *Builder) RightJoin(table, on string) *Builder {
	b.joins = append(b.joins, joinClause{kind: "RIGHT", sql: fmt.Sprintf("RIGHT JOIN %s ON %s", table, on)})
	return b
}

// GroupBy / Having / OrderBy / Limit / Offset complete the clause set.
func (b *Builder) GroupBy(cols ...string) *Builder {
	b.groupBy = append(b.groupBy, cols...)
	return b
}
func (b *Builder) Having(frag string) *Builder {
	b.having = frag
	return b
}
func (b *Builder) OrderBy(col string, desc bool) *Builder {
	b.orders = append(b.orders, orderClause{column: col, desc: desc})
	return b
}
func (b *Builder) Limit(n int) *Builder {
	b.limit = &n
	return b
}
func (b *Builder) Offset(n int) *Builder {
	b.offset = &n
	return b
}

func renderWhereClauses(wheres []whereClause) string {
	if len(wheres) == 0 {
		return ""
	}
	var b strings.Builder
	for i, w := range wheres {
		if i > 0 {
			if w.or {
				b.WriteString(" OR ")
			} else {
				b.WriteString(" AND ")
			}
		}
		b.WriteString(w.raw)
	}
	return b.String()
}

func (b *Builder) softDeleteFragment() (string, bool) {
	if b.softDeleteColumn == "" {
		return "", false
	}
	if b.onlyTrashed {
		return b.softDeleteColumn + " IS NOT NULL", true
	}
	if b.withTrashed {
		return "", false
	}
	return b.softDeleteColumn + " IS NULL", true
}

// renderWhere builds the full WHERE body, folding in the soft-delete
// gate.
func (b *Builder) renderWhere() string {
	wheres := b.wheres
	if frag, ok := b.softDeleteFragment(); ok {
		gate := whereClause{raw: frag}
		wheres = append([]whereClause{gate}, wheres...)
	}
	return renderWhereClauses(wheres)
}

// ToSQL renders a SELECT statement. It is idempotent: calling it twice on
// an unmutated builder produces byte-identical output.
func (b *Builder) ToSQL() (string, []sqlkit.Value) {
	var buf strings.Builder
	buf.WriteString("SELECT ")
	if b.distinct {
		buf.WriteString("DISTINCT ")
	}
	if len(b.selects) == 0 {
		buf.WriteString("*")
	} else {
		buf.WriteString(strings.Join(b.selects, ", "))
	}
	buf.WriteString(" FROM ")
	buf.WriteString(b.table)

	for _, j := range b.joins {
		buf.WriteString(" ")
		buf.WriteString(j.sql)
	}

	if where := b.renderWhere(); where != "" {
		buf.WriteString(" WHERE ")
		buf.WriteString(where)
	}

	if len(b.groupBy) > 0 {
		buf.WriteString(" GROUP BY ")
		buf.WriteString(strings.Join(b.groupBy, ", "))
	}
	if b.having != "" {
		buf.WriteString(" HAVING ")
		buf.WriteString(b.having)
	}
	if len(b.orders) > 0 {
		parts := make([]string, len(b.orders))
		for i, o := range b.orders {
			if o.desc {
				parts[i] = o.column + " DESC"
			} else {
				parts[i] = o.column + " ASC"
			}
		}
		buf.WriteString(" ORDER BY ")
		buf.WriteString(strings.Join(parts, ", "))
	}
	if b.limit != nil {
		buf.WriteString(" LIMIT ")
		buf.WriteString(strconv.Itoa(*b.limit))
	}
	if b.offset != nil {
		buf.WriteString(" OFFSET ")
		buf.WriteString(strconv.Itoa(*b.offset))
	}

	return buf.String(), b.args
}

// ToCountSQL reuses WHERE/JOIN but drops ORDER/LIMIT/OFFSET.
func (b *Builder) ToCountSQL(expr string) (string, []sqlkit.Value) {
	if expr == "" {
		expr = "COUNT(*)"
	}
	clone := *b
	clone.selects = []string{expr}
	clone.orders = nil
	clone.limit = nil
	clone.offset = nil
	return clone.ToSQL()
}

// ToInsertSQL renders an INSERT statement for a single row of columns.
func (b *Builder) ToInsertSQL(columns []string, values []sqlkit.Value) (string, []sqlkit.Value) {
	b.args = nil
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = b.renderValue(v)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		b.table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	return sql, b.args
}

// ToUpdateSQL renders an UPDATE statement gated by the builder's WHERE
// clauses (and soft-delete filter, if configured).
func (b *Builder) ToUpdateSQL(columns []string, values []sqlkit.Value) (string, []sqlkit.Value) {
	// WHERE values were bound as their clauses were added. Numbered
	// placeholders continue after them; positional "?" placeholders need
	// the SET values first, in text order.
	whereArgs := b.args
	numbered := b.placeholder(1) != b.placeholder(2)
	b.args = nil
	if numbered {
		b.args = append(b.args, whereArgs...)
	}
	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = fmt.Sprintf("%s = %s", c, b.renderValue(values[i]))
	}
	if !numbered {
		b.args = append(b.args, whereArgs...)
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, "UPDATE %s SET %s", b.table, strings.Join(sets, ", "))
	if where := b.renderWhere(); where != "" {
		buf.WriteString(" WHERE ")
		buf.WriteString(where)
	}
	return buf.String(), b.args
}

// ToDeleteSQL renders a DELETE statement gated by the builder's WHERE
// clauses.
func (b *Builder) ToDeleteSQL() (string, []sqlkit.Value) {
	var buf strings.Builder
	fmt.Fprintf(&buf, "DELETE FROM %s", b.table)
	if where := b.renderWhere(); where != "" {
		buf.WriteString(" WHERE ")
		buf.WriteString(where)
	}
	return buf.String(), b.args
}

// MapRows builds a fields→column-index cache with one O(F·C) scan over
// rs.Fields, then returns it for O(F) per-row mapping instead of
// re-scanning rs.Fields for every row.
func MapRows(rs *sqlkit.ResultSet, wantedFields []string) map[string]int {
	return rs.FieldIndex(wantedFields)
}
