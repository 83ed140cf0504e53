// Package memory provides an in-memory test driver, grounded on the
// in-process SQLite-backed mock pattern: a fresh ":memory:" database per
// dial, with fault-injection hooks for exercising retry and broken-
// connection paths without a live server.
package memory

import (
	"context"
	"sync"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/drivers/dialect"
	"github.com/honeynil/sqlkit/drivers/internal/sqlconn"
	"github.com/honeynil/sqlkit/drivers/sqlite"
)

// Open returns a sqlkit.Dialer backed by a fresh SQLite ":memory:"
// database, dialect-tagged DriverMemory so the facade still picks
// single-connection direct mode.
func Open() sqlkit.Dialer {
	return func(ctx context.Context) (sqlkit.Conn, error) {
		conn, err := sqlconn.Open(ctx, "sqlite3", ":memory:", dialect.Memory)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// ClassifyFunc reuses SQLite's native error classification, since
// drivers/memory is SQLite underneath.
var ClassifyFunc = sqlite.ClassifyFunc

// Faulty wraps a sqlkit.Conn and injects errors on demand, for tests that
// exercise the pool's broken-connection handling and the retry runner's
// backoff behavior without a real flaky server.
type Faulty struct {
	sqlkit.Conn

	mu          sync.Mutex
	execErr     error
	queryErr    error
	pingErr     error
	failNCalls  int
}

// NewFaulty wraps conn so its behavior can be overridden.
func NewFaulty(conn sqlkit.Conn) *Faulty {
	return &Faulty{Conn: conn}
}

// FailNextExec makes the next N ExecContext calls return err, then falls
// back to the wrapped connection.
func (f *Faulty) FailNextExec(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execErr = err
	f.failNCalls = n
}

// FailQuery makes every QueryContext call return err until cleared.
func (f *Faulty) FailQuery(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryErr = err
}

// FailPing makes every Ping call return err until cleared.
func (f *Faulty) FailPing(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

// Clear resets every injected fault.
func (f *Faulty) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execErr, f.queryErr, f.pingErr, f.failNCalls = nil, nil, nil, 0
}

func (f *Faulty) ExecContext(ctx context.Context, sql string, args ...sqlkit.Value) (int64, error) {
	f.mu.Lock()
	if f.failNCalls > 0 {
		f.failNCalls--
		err := f.execErr
		f.mu.Unlock()
		return 0, err
	}
	f.mu.Unlock()
	return f.Conn.ExecContext(ctx, sql, args...)
}

func (f *Faulty) QueryContext(ctx context.Context, sql string, args ...sqlkit.Value) (*sqlkit.ResultSet, error) {
	f.mu.Lock()
	err := f.queryErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Conn.QueryContext(ctx, sql, args...)
}

func (f *Faulty) Ping(ctx context.Context) error {
	f.mu.Lock()
	err := f.pingErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Conn.Ping(ctx)
}
