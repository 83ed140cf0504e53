package sqlkit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ClassifyFunc maps a native driver error into this package's coarse
// taxonomy plus native code/message (MySQL 1062→DuplicateKey, SQLite
// BUSY→LockTimeout, ...). Concrete drivers under
// drivers/{mysql,postgres,sqlite} each supply one.
type ClassifyFunc func(err error) (kind ErrorKind, nativeCode, nativeMessage string)

// Database is the facade user code talks to: Model[T] and DynamicCRUD
// both compose SQL with the query builder and execute it here. It picks
// pooled mode (MySQL, PostgreSQL) or a single serialized direct
// connection (SQLite) based on DriverKind.
type Database struct {
	kind     DriverKind
	pool     *Pool
	direct   *PooledConnection
	directMu sync.Mutex

	classify ClassifyFunc
	logger   Logger
	cache    Cache
	retry    RetryPolicy
	clk      clockwork.Clock
	debug    bool

	lastErr lastErrorSlot
}

// Option customizes a Database constructed by Open.
type Option func(*Database)

func WithLogger(l Logger) Option { return func(db *Database) { db.logger = l } }
func WithCache(c Cache) Option   { return func(db *Database) { db.cache = c } }
func WithRetryPolicy(p RetryPolicy) Option {
	return func(db *Database) { db.retry = p }
}

// WithDebug echoes each successfully executed SQL string via InfoContext,
// just ahead of its per-query record: after an exec returns, or when a
// query's ResultSet is closed. A statement that fails is not echoed; its
// SQL is carried by the error record instead.
func WithDebug(on bool) Option { return func(db *Database) { db.debug = on } }

// Open constructs a Database. For DriverSQLite and DriverMemory, dialer is
// called once and every operation serializes on a single connection. For
// other kinds,
// dialer backs a Pool configured by poolCfg.
func Open(ctx context.Context, kind DriverKind, dialer Dialer, classify ClassifyFunc, poolCfg PoolConfig, opts ...Option) (*Database, error) {
	db := &Database{
		kind:     kind,
		classify: classify,
		logger:   defaultLogger(),
		retry:    DefaultRetryPolicy(),
		clk:      poolCfg.normalized().Clock,
	}
	for _, opt := range opts {
		opt(db)
	}

	if kind == DriverSQLite || kind == DriverMemory {
		conn, err := dialer(ctx)
		if err != nil {
			return nil, err
		}
		now := db.clk.Now()
		db.direct = &PooledConnection{conn: conn, createdAt: now, lastUsedAt: now}
		return db, nil
	}

	db.pool = NewPool(poolCfg, dialer, db.logger)
	return db, nil
}

func (db *Database) clock() clockwork.Clock {
	if db.clk == nil {
		return clockwork.NewRealClock()
	}
	return db.clk
}

// DriverKind reports which dialect backs this Database.
func (db *Database) DriverKind() DriverKind { return db.kind }

// Logger returns the Database's configured Logger (a no-op logger if
// WithLogger was never passed to Open), for collaborators outside this
// package that need to log through the same sink, e.g. Dynamic CRUD's
// schema-drift warnings.
func (db *Database) Logger() Logger { return db.logger }

// Cache returns the Database's configured Cache, or nil if WithCache was
// never passed to Open. Callers must nil-check before use.
func (db *Database) Cache() Cache { return db.cache }

// Now returns the current time from the Database's clock — the real
// clock unless a test opened it against a fake clockwork.Clock. Callers
// that stamp timestamps (e.g. Model's soft-delete/updated_at columns)
// use this instead of time.Now() so those stamps are controllable in
// tests the same way retry backoff and keep-alive timing are.
func (db *Database) Now() time.Time { return db.clock().Now() }

// Stats returns pool occupancy; for direct (SQLite) mode it reports a
// single-connection pool shape.
func (db *Database) Stats() PoolStats {
	if db.pool != nil {
		return db.pool.Stats()
	}
	db.direct.connLock.Lock()
	defer db.direct.connLock.Unlock()
	active := 0
	if db.direct.inUse {
		active = 1
	}
	return PoolStats{Total: 1, Active: active, Idle: 1 - active}
}

func (db *Database) acquireConn(ctx context.Context) (*PooledConnection, error) {
	if db.pool != nil {
		return db.pool.Acquire(ctx)
	}
	db.directMu.Lock()
	db.direct.connLock.Lock()
	db.direct.inUse = true
	db.direct.borrowed = true
	db.direct.lastUsedAt = db.clock().Now()
	db.direct.connLock.Unlock()
	return db.direct, nil
}

func (db *Database) releaseConn(ctx context.Context, pc *PooledConnection) {
	if db.pool != nil {
		db.pool.Release(ctx, pc)
		return
	}
	pc.connLock.Lock()
	if pc.inTransaction {
		_ = pc.conn.Rollback(ctx)
		pc.inTransaction = false
	}
	pc.inUse = false
	pc.borrowed = false
	pc.connLock.Unlock()
	db.directMu.Unlock()
}

// GetLastError returns the most recently recorded SqlError detail for
// this Database handle, standing in for a thread-local slot (see
// DESIGN.md for the substitution rationale).
func (db *Database) GetLastError() *SqlError { return db.lastErr.get() }

// ClearLastError clears the last-error slot. Callers should call this
// between requests.
func (db *Database) ClearLastError() { db.lastErr.clear() }

func (db *Database) classifyErr(pc *PooledConnection, err error, sql, operation string, dur time.Duration) error {
	kind, code, msg := db.classify(err)
	detail := newSqlError(kind, err.Error(), code, msg, sql, "", operation, dur)
	db.lastErr.set(detail)
	db.logger.ErrorContext(context.Background(), "sqlkit: query failed",
		"sql", detail.SQL, "error_name", detail.Kind.String(), "elapsed_ms", detail.DurationMS)

	if pc != nil && IsConnectionError(kind) && db.pool != nil {
		db.pool.MarkBroken(pc)
	}
	return wrapSqlError(detail)
}

func (db *Database) logQuery(ctx context.Context, sql string, dur time.Duration, rowsAffected, rowsReturned int64) {
	if db.debug {
		db.logger.InfoContext(ctx, "sqlkit: sql", "sql", sql)
	}
	fields := []any{"sql", sql, "elapsed_ms", dur.Milliseconds()}
	if rowsReturned >= 0 {
		fields = append(fields, "rows_returned", rowsReturned)
	} else {
		fields = append(fields, "rows_affected", rowsAffected)
	}
	db.logger.InfoContext(ctx, "sqlkit: query", fields...)
}

// RawExec executes sql directly, retrying at most once on a
// connection-class failure (the failing connection is marked broken and
// culled on release; the retry acquires a fresh one).
func (db *Database) RawExec(ctx context.Context, sql string, args ...Value) (int64, error) {
	return db.rawExec(ctx, sql, args, true)
}

func (db *Database) rawExec(ctx context.Context, sql string, args []Value, allowRetry bool) (int64, error) {
	pc, err := db.acquireConn(ctx)
	if err != nil {
		return 0, err
	}
	start := db.clock().Now()
	n, execErr := pc.conn.ExecContext(ctx, sql, args...)
	dur := db.clock().Now().Sub(start)

	if execErr != nil {
		wrapped := db.classifyErr(pc, execErr, sql, "exec", dur)
		db.releaseConn(ctx, pc)
		if allowRetry && IsConnectionError(KindOf(wrapped)) {
			return db.rawExec(ctx, sql, args, false)
		}
		return 0, wrapped
	}

	db.logQuery(ctx, sql, dur, n, -1)
	db.releaseConn(ctx, pc)
	return n, nil
}

// RawQuery executes sql directly, with the same single-retry policy as
// RawExec.
func (db *Database) RawQuery(ctx context.Context, sql string, args ...Value) (*ResultSet, error) {
	return db.rawQuery(ctx, sql, args, true)
}

func (db *Database) rawQuery(ctx context.Context, sql string, args []Value, allowRetry bool) (*ResultSet, error) {
	pc, err := db.acquireConn(ctx)
	if err != nil {
		return nil, err
	}
	start := db.clock().Now()
	rs, queryErr := pc.conn.QueryContext(ctx, sql, args...)
	dur := db.clock().Now().Sub(start)

	if queryErr != nil {
		wrapped := db.classifyErr(pc, queryErr, sql, "query", dur)
		db.releaseConn(ctx, pc)
		if allowRetry && IsConnectionError(KindOf(wrapped)) {
			return db.rawQuery(ctx, sql, args, false)
		}
		return nil, wrapped
	}

	// rs.Next is still driven by pc's dedicated *sql.Conn: releasing pc
	// here would let another goroutine acquire and drive it concurrently
	// while these rows are still open. Hold the lease until the caller
	// closes rs, and log rows_returned against the final count instead of
	// the 0 a lazy ResultSet would report at this point.
	origCloser := rs.closer
	rs.closer = func() error {
		closeErr := origCloser()
		db.logQuery(ctx, sql, dur, -1, rs.count)
		db.releaseConn(ctx, pc)
		return closeErr
	}
	return rs, nil
}

// ExecWithContext and QueryWithContext are context-bound variant names
// for callers that expect that naming convention; every sqlkit method
// already takes a context.Context, so these simply forward.
func (db *Database) ExecWithContext(ctx context.Context, sql string, args ...Value) (int64, error) {
	return db.RawExec(ctx, sql, args...)
}
func (db *Database) QueryWithContext(ctx context.Context, sql string, args ...Value) (*ResultSet, error) {
	return db.RawQuery(ctx, sql, args...)
}

// WithRetry runs op under policy, retrying through withRetry.
func (db *Database) WithRetry(ctx context.Context, policy RetryPolicy, op func() error) error {
	return withRetry(ctx, db.clock(), policy, op)
}

// Transaction opens a Transaction, invokes fn, rolls back on any error
// (including one fn propagates), commits otherwise.
func (db *Database) Transaction(ctx context.Context, fn func(tx *Transaction) error) error {
	tx, err := BeginTransaction(ctx, db)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// TransactionWithContext names the context-bound variant explicitly; it
// observes ctx cancellation at Begin and at fn's own suspension points
// and rolls back any open transaction on cancel.
func (db *Database) TransactionWithContext(ctx context.Context, fn func(tx *Transaction) error) error {
	return db.Transaction(ctx, fn)
}

// Close shuts down the pool (or the single direct connection).
func (db *Database) Close() error {
	if db.pool != nil {
		return db.pool.Close()
	}
	if db.direct != nil {
		return db.direct.conn.Close()
	}
	return nil
}
