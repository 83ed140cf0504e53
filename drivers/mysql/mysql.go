// Package mysql adapts go-sql-driver/mysql to sqlkit.Conn.
package mysql

import (
	"context"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/drivers/dialect"
	"github.com/honeynil/sqlkit/drivers/internal/sqlconn"
)

// Open returns a sqlkit.Dialer for dsn, pool-backed by sqlkit.Open's
// pooled mode (never direct mode, unlike SQLite).
func Open(dsn string) sqlkit.Dialer {
	return func(ctx context.Context) (sqlkit.Conn, error) {
		return sqlconn.Open(ctx, "mysql", dsn, dialect.MySQL)
	}
}

// Classify extracts MySQL's numeric error code from *mysql.MySQLError.
func Classify(err error) (nativeCode, nativeMessage string) {
	myErr, ok := err.(*mysql.MySQLError)
	if !ok {
		return "", err.Error()
	}
	return strconv.Itoa(int(myErr.Number)), myErr.Message
}

// ClassifyFunc is the sqlkit.ClassifyFunc for this dialect, passed to
// sqlkit.Open.
var ClassifyFunc = sqlconn.ClassifyFunc(dialect.MySQL, Classify)
