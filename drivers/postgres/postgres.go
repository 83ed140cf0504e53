// Package postgres adapts jackc/pgx/v5's database/sql-compatible stdlib
// mode to sqlkit.Conn.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/drivers/dialect"
	"github.com/honeynil/sqlkit/drivers/internal/sqlconn"
)

// Open returns a sqlkit.Dialer for dsn, using pgx's stdlib driver
// ("pgx") registered by the blank import above.
func Open(dsn string) sqlkit.Dialer {
	return func(ctx context.Context) (sqlkit.Conn, error) {
		return sqlconn.Open(ctx, "pgx", dsn, dialect.Postgres)
	}
}

// Classify extracts Postgres's five-character SQLSTATE code from
// *pgconn.PgError.
func Classify(err error) (nativeCode, nativeMessage string) {
	pgErr, ok := err.(*pgconn.PgError)
	if !ok {
		return "", err.Error()
	}
	return pgErr.Code, pgErr.Message
}

// ClassifyFunc is the sqlkit.ClassifyFunc for this dialect, passed to
// sqlkit.Open.
var ClassifyFunc = sqlconn.ClassifyFunc(dialect.Postgres, Classify)
