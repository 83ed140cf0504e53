// Package dialect holds the strategy-struct each concrete driver fills in
// to describe its SQL surface: identifier quoting, placeholder style,
// boolean/auto-increment rendering, and native-error classification.
package dialect

import (
	"fmt"

	"github.com/honeynil/sqlkit"
)

// Dialect is the per-database strategy holder, generalized from the
// migration layer's identifier-quoting/placeholder pair into a full
// surface covering everything schema derivation and the query builder's
// dialect-sensitive rendering paths need.
type Dialect struct {
	Name sqlkit.DriverKind

	// Placeholder formats the n-th (1-based) bound parameter.
	// MySQL/SQLite: "?" regardless of n. PostgreSQL: "$1", "$2", ...
	Placeholder func(n int) string

	// QuoteIdentifier escapes a bare identifier for splicing into DDL.
	// MySQL: backticks. SQLite/PostgreSQL: double quotes.
	QuoteIdentifier func(name string) string

	// BoolLiteral renders a boolean constant in DDL/DML text.
	BoolLiteral func(b bool) string

	// AutoIncrement renders the column-level auto-increment clause for a
	// primary key column of the given SQL type name.
	AutoIncrement func(sqlType string) string

	// RandomFunc names the dialect's random-ordering function, used by
	// query builders that need ORDER BY RANDOM()-equivalents.
	RandomFunc string

	// ErrorMap maps a native error code string (as produced by the
	// driver) to this package's coarse ErrorKind. Populated by each
	// concrete driver's classify table.
	ErrorMap map[string]sqlkit.ErrorKind
}

// Classify looks up code in ErrorMap, returning ErrKindUnknown if the
// dialect doesn't recognize it.
func (d Dialect) Classify(code string) sqlkit.ErrorKind {
	if kind, ok := d.ErrorMap[code]; ok {
		return kind
	}
	return sqlkit.ErrKindUnknown
}

// SQLite is the dialect strategy for the bundled mattn/go-sqlite3 driver.
var SQLite = Dialect{
	Name:            sqlkit.DriverSQLite,
	Placeholder:     func(int) string { return "?" },
	QuoteIdentifier: quoteDouble,
	BoolLiteral:     boolAsInt,
	AutoIncrement:   func(string) string { return "AUTOINCREMENT" },
	RandomFunc:      "RANDOM()",
	// Keyed on the strings sqlite.Classify produces: the numeric base
	// code for most errors (5=BUSY, 6=LOCKED, 10=IOERR, 11=CORRUPT, 19=
	// generic CONSTRAINT), refined to a CONSTRAINT_* symbolic code when
	// the driver's extended code or message text identifies which
	// constraint fired.
	ErrorMap: map[string]sqlkit.ErrorKind{
		"5":                     sqlkit.ErrLockTimeout,
		"6":                     sqlkit.ErrLockTimeout,
		"10":                    sqlkit.ErrConnectionLost,
		"11":                    sqlkit.ErrConnectionLost,
		"19":                    sqlkit.ErrConstraintFailed,
		"CONSTRAINT_UNIQUE":     sqlkit.ErrDuplicateKey,
		"CONSTRAINT_PRIMARYKEY": sqlkit.ErrDuplicateKey,
		"CONSTRAINT_FOREIGNKEY": sqlkit.ErrForeignKey,
	},
}

// MySQL is the dialect strategy for go-sql-driver/mysql.
var MySQL = Dialect{
	Name:            sqlkit.DriverMySQL,
	Placeholder:     func(int) string { return "?" },
	QuoteIdentifier: quoteBacktick,
	BoolLiteral:     boolAsInt,
	AutoIncrement:   func(string) string { return "AUTO_INCREMENT" },
	RandomFunc:      "RAND()",
	ErrorMap: map[string]sqlkit.ErrorKind{
		"1062": sqlkit.ErrDuplicateKey,
		"1213": sqlkit.ErrDeadlockDetected,
		"1205": sqlkit.ErrLockTimeout,
		"2013": sqlkit.ErrConnectionLost,
		"2006": sqlkit.ErrServerGone,
		"1452": sqlkit.ErrForeignKey,
		"1451": sqlkit.ErrForeignKey,
		"1146": sqlkit.ErrSyntaxError,
		"1064": sqlkit.ErrSyntaxError,
		"1045": sqlkit.ErrPermissionDenied,
	},
}

// Postgres is the dialect strategy for jackc/pgx/v5 (stdlib mode).
var Postgres = Dialect{
	Name: sqlkit.DriverPostgres,
	Placeholder: func(n int) string {
		return fmt.Sprintf("$%d", n)
	},
	QuoteIdentifier: quoteDouble,
	BoolLiteral:     boolAsWord,
	AutoIncrement:   func(string) string { return "GENERATED BY DEFAULT AS IDENTITY" },
	RandomFunc:      "RANDOM()",
	ErrorMap: map[string]sqlkit.ErrorKind{
		"23505": sqlkit.ErrDuplicateKey,
		"23503": sqlkit.ErrForeignKey,
		"23514": sqlkit.ErrConstraintFailed,
		"40P01": sqlkit.ErrDeadlockDetected,
		"55P03": sqlkit.ErrLockTimeout,
		"57014": sqlkit.ErrQueryTimeout,
		"08006": sqlkit.ErrConnectionLost,
		"08003": sqlkit.ErrConnectionLost,
		"42601": sqlkit.ErrSyntaxError,
		"28P01": sqlkit.ErrPermissionDenied,
	},
}

// Memory is the in-process test dialect; it shares SQLite's rendering
// rules since drivers/memory backs onto an in-memory SQLite connection.
var Memory = Dialect{
	Name:            sqlkit.DriverMemory,
	Placeholder:     func(int) string { return "?" },
	QuoteIdentifier: quoteDouble,
	BoolLiteral:     boolAsInt,
	AutoIncrement:   func(string) string { return "AUTOINCREMENT" },
	RandomFunc:      "RANDOM()",
	ErrorMap:        map[string]sqlkit.ErrorKind{},
}

func quoteDouble(name string) string   { return `"` + name + `"` }
func quoteBacktick(name string) string { return "`" + name + "`" }
func boolAsInt(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
func boolAsWord(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// ForKind returns the built-in Dialect for kind, or the zero Dialect if
// kind names none of the four bundled dialects.
func ForKind(kind sqlkit.DriverKind) Dialect {
	switch kind {
	case sqlkit.DriverSQLite:
		return SQLite
	case sqlkit.DriverMySQL:
		return MySQL
	case sqlkit.DriverPostgres:
		return Postgres
	case sqlkit.DriverMemory:
		return Memory
	default:
		return Dialect{}
	}
}
