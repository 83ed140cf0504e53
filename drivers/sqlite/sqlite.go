// Package sqlite adapts mattn/go-sqlite3 to sqlkit.Conn.
//
// SQLite serves the single-connection "direct mode" path: sqlkit.Open
// dials exactly once and every operation serializes through that one
// connection, matching SQLite's own single-writer model. WAL journaling
// and NORMAL synchronous mode are set on open so concurrent readers don't
// block while a write is in flight.
package sqlite

import (
	"context"
	"strconv"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/drivers/dialect"
	"github.com/honeynil/sqlkit/drivers/internal/sqlconn"
)

// Open returns a sqlkit.Dialer bound to path (a file path or ":memory:"),
// with WAL mode and synchronous=NORMAL applied once per dial.
func Open(path string) sqlkit.Dialer {
	return func(ctx context.Context) (sqlkit.Conn, error) {
		dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"
		return sqlconn.Open(ctx, "sqlite3", dsn, dialect.SQLite)
	}
}

// Classify turns a *sqlite3.Error into the code string dialect.SQLite's
// ErrorMap recognizes. The base numeric code (BUSY, LOCKED, IOERR, ...)
// covers most cases; a generic CONSTRAINT code is refined from the
// extended code (UNIQUE, PRIMARY KEY, FOREIGN KEY) and, when that names
// none of them, by scanning the driver's own message text for the same
// constraint names.
func Classify(err error) (nativeCode, nativeMessage string) {
	sqliteErr, ok := err.(sqlite3.Error)
	if !ok {
		return "", err.Error()
	}
	msg := sqliteErr.Error()
	code := strconv.Itoa(int(sqliteErr.Code))
	if sqliteErr.Code == sqlite3.ErrConstraint {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique:
			return "CONSTRAINT_UNIQUE", msg
		case sqlite3.ErrConstraintForeignKey:
			return "CONSTRAINT_FOREIGNKEY", msg
		case sqlite3.ErrConstraintPrimaryKey:
			return "CONSTRAINT_PRIMARYKEY", msg
		}
		upper := strings.ToUpper(msg)
		switch {
		case strings.Contains(upper, "UNIQUE"):
			return "CONSTRAINT_UNIQUE", msg
		case strings.Contains(upper, "FOREIGN KEY"):
			return "CONSTRAINT_FOREIGNKEY", msg
		case strings.Contains(upper, "PRIMARY KEY"):
			return "CONSTRAINT_PRIMARYKEY", msg
		}
	}
	return code, msg
}

// ClassifyFunc is the sqlkit.ClassifyFunc for this dialect, passed to
// sqlkit.Open.
var ClassifyFunc = sqlconn.ClassifyFunc(dialect.SQLite, Classify)
