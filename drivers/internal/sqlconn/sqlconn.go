// Package sqlconn is the shared database/sql-backed Conn implementation
// the three bundled dialect drivers (sqlite, mysql, postgres) each
// configure with their own dialect, placeholder style, and native-error
// classifier. It is internal to the drivers tree since its shape is an
// implementation detail of "wrap database/sql as a sqlkit.Conn", not a
// public contract.
package sqlconn

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/drivers/dialect"
)

// Classifier extracts a native error code/message pair from a
// database/sql error, in whatever form the underlying driver reports it
// (MySQL's *mysql.MySQLError.Number, pgx's *pgconn.PgError.Code, SQLite's
// sqlite3.Error.Code).
type Classifier func(err error) (nativeCode, nativeMessage string)

// Conn adapts a single database/sql connection (and optionally an open
// transaction on it) to sqlkit.Conn.
type Conn struct {
	db         *sql.DB
	conn       *sql.Conn
	tx         *sql.Tx
	dialect    dialect.Dialect
	lastResult sql.Result
}

// execQuerier is satisfied by both *sql.Conn and *sql.Tx, letting Exec
// and Query route through whichever is active without branching at every
// call site.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Open dials driverName/dsn via database/sql, reserves one dedicated
// *sql.Conn (so BEGIN/COMMIT/ROLLBACK observe a single session, matching
// the uniform Conn contract), and wraps it.
func Open(ctx context.Context, driverName, dsn string, d dialect.Dialect) (*Conn, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Conn{db: db, conn: conn, dialect: d}, nil
}

func (c *Conn) render(sql string, args []sqlkit.Value) (string, []any) {
	// The shared adapter always binds parameters (RenderBound mode
	// upstream); here we just translate sqlkit.Value into database/sql's
	// driver.Valuer-compatible any slice.
	out := make([]any, len(args))
	for i, v := range args {
		switch val := v.(type) {
		case sqlkit.NullValue:
			out[i] = nil
		case sqlkit.IntValue:
			out[i] = int64(val)
		case sqlkit.UintValue:
			out[i] = uint64(val)
		case sqlkit.FloatValue:
			out[i] = float64(val)
		case sqlkit.StringValue:
			out[i] = string(val)
		case sqlkit.BoolValue:
			out[i] = bool(val)
		case sqlkit.BytesValue:
			out[i] = []byte(val)
		default:
			out[i] = v.Literal()
		}
	}
	return sql, out
}

// active returns whichever of the open transaction or the reserved
// connection should carry the next statement.
func (c *Conn) active() execQuerier {
	if c.tx != nil {
		return c.tx
	}
	return c.conn
}

func (c *Conn) ExecContext(ctx context.Context, sqlText string, args ...sqlkit.Value) (int64, error) {
	rendered, bound := c.render(sqlText, args)
	res, err := c.active().ExecContext(ctx, rendered, bound...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	c.lastResult = res
	return n, nil
}

func (c *Conn) QueryContext(ctx context.Context, sqlText string, args ...sqlkit.Value) (*sqlkit.ResultSet, error) {
	rendered, bound := c.render(sqlText, args)
	rows, err := c.active().QueryContext(ctx, rendered, bound...)
	if err != nil {
		return nil, err
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}

	next := func() (sqlkit.Row, bool, error) {
		if !rows.Next() {
			return nil, false, rows.Err()
		}
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, false, err
		}
		row := make(sqlkit.Row, len(cols))
		for i, v := range raw {
			if v == nil {
				continue
			}
			s := stringify(v)
			row[i] = &s
		}
		return row, true, nil
	}

	return sqlkit.NewResultSet(cols, next, rows.Close), nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func (c *Conn) BeginTx(ctx context.Context) error {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	c.tx = tx
	return nil
}

func (c *Conn) Commit(ctx context.Context) error {
	if c.tx == nil {
		return fmt.Errorf("sqlconn: commit without an open transaction")
	}
	err := c.tx.Commit()
	c.tx = nil
	return err
}

func (c *Conn) Rollback(ctx context.Context) error {
	if c.tx == nil {
		return fmt.Errorf("sqlconn: rollback without an open transaction")
	}
	err := c.tx.Rollback()
	c.tx = nil
	return err
}

func (c *Conn) LastInsertID() (int64, error) {
	if c.lastResult == nil {
		return 0, fmt.Errorf("sqlconn: no prior exec result")
	}
	return c.lastResult.LastInsertId()
}

func (c *Conn) DriverKind() sqlkit.DriverKind { return c.dialect.Name }

func (c *Conn) Ping(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

func (c *Conn) Close() error {
	connErr := c.conn.Close()
	dbErr := c.db.Close()
	if connErr != nil {
		return connErr
	}
	return dbErr
}

// ClassifyFunc builds a sqlkit.ClassifyFunc from this dialect's
// Classifier, for the concrete driver package to pass into sqlkit.Open.
func ClassifyFunc(d dialect.Dialect, classify Classifier) sqlkit.ClassifyFunc {
	return func(err error) (sqlkit.ErrorKind, string, string) {
		code, msg := classify(err)
		return d.Classify(code), code, msg
	}
}
