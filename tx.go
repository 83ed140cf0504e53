package sqlkit

import (
	"context"
)

// Transaction leases a single PooledConnection for its entire lifetime;
// every statement issued through it uses that connection exclusively.
// Commit and Rollback are idempotent guards: a second call to either
// returns ErrTransactionAlreadyDone.
type Transaction struct {
	db         *Database
	pc         *PooledConnection
	committed  bool
	rolledBack bool
}

// BeginTransaction acquires a connection from db's pool (or takes the
// single direct connection for unpooled drivers like SQLite), stamps
// in_transaction/tx_start, and issues BEGIN.
func BeginTransaction(ctx context.Context, db *Database) (*Transaction, error) {
	pc, err := db.acquireConn(ctx)
	if err != nil {
		return nil, err
	}

	pc.connLock.Lock()
	pc.inTransaction = true
	pc.txStartedAt = db.clock().Now()
	pc.connLock.Unlock()

	if err := pc.conn.BeginTx(ctx); err != nil {
		pc.connLock.Lock()
		pc.inTransaction = false
		pc.connLock.Unlock()
		wrapped := db.classifyErr(pc, err, "", "begin", 0)
		db.releaseConn(ctx, pc)
		return nil, wrapped
	}

	return &Transaction{db: db, pc: pc}, nil
}

func (tx *Transaction) finished() bool {
	return tx.committed || tx.rolledBack
}

// Commit commits the transaction and releases its connection back to
// the pool. A second call returns ErrTransactionAlreadyDone.
func (tx *Transaction) Commit(ctx context.Context) error {
	if tx.finished() {
		return wrapSqlError(newSqlError(ErrTransactionAlreadyDone, "transaction already finished", "", "", "", "", "commit", 0))
	}
	err := tx.pc.conn.Commit(ctx)
	tx.committed = true
	tx.pc.connLock.Lock()
	tx.pc.inTransaction = false
	tx.pc.connLock.Unlock()
	if err != nil {
		wrapped := tx.db.classifyErr(tx.pc, err, "", "commit", 0)
		tx.db.releaseConn(ctx, tx.pc)
		return wrapped
	}
	tx.db.releaseConn(ctx, tx.pc)
	return nil
}

// Rollback rolls back the transaction and releases its connection. A
// second call returns ErrTransactionAlreadyDone.
func (tx *Transaction) Rollback(ctx context.Context) error {
	if tx.finished() {
		return wrapSqlError(newSqlError(ErrTransactionAlreadyDone, "transaction already finished", "", "", "", "", "rollback", 0))
	}
	err := tx.pc.conn.Rollback(ctx)
	tx.rolledBack = true
	tx.pc.connLock.Lock()
	tx.pc.inTransaction = false
	tx.pc.connLock.Unlock()
	if err != nil {
		wrapped := tx.db.classifyErr(tx.pc, err, "", "rollback", 0)
		tx.db.releaseConn(ctx, tx.pc)
		return wrapped
	}
	tx.db.releaseConn(ctx, tx.pc)
	return nil
}

// Close is the drop-time guard: rolls back if neither Commit nor
// Rollback was called. Safe to call after either.
func (tx *Transaction) Close(ctx context.Context) error {
	if tx.finished() {
		return nil
	}
	return tx.Rollback(ctx)
}

// Exec routes to the leased connection exclusively.
func (tx *Transaction) Exec(ctx context.Context, sql string, args ...Value) (int64, error) {
	start := tx.db.clock().Now()
	n, err := tx.pc.conn.ExecContext(ctx, sql, args...)
	if err != nil {
		return 0, tx.db.classifyErr(tx.pc, err, sql, "exec", tx.db.clock().Now().Sub(start))
	}
	tx.db.logQuery(ctx, sql, tx.db.clock().Now().Sub(start), n, -1)
	return n, nil
}

// Query routes to the leased connection exclusively.
func (tx *Transaction) Query(ctx context.Context, sql string, args ...Value) (*ResultSet, error) {
	start := tx.db.clock().Now()
	rs, err := tx.pc.conn.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, tx.db.classifyErr(tx.pc, err, sql, "query", tx.db.clock().Now().Sub(start))
	}
	// Log rows_returned against the final count once the caller closes rs,
	// as rawQuery does; the lease itself stays with the transaction.
	dur := tx.db.clock().Now().Sub(start)
	origCloser := rs.closer
	rs.closer = func() error {
		closeErr := origCloser()
		tx.db.logQuery(ctx, sql, dur, -1, rs.count)
		return closeErr
	}
	return rs, nil
}

// LastInsertID delegates to the leased connection.
func (tx *Transaction) LastInsertID() (int64, error) {
	return tx.pc.conn.LastInsertID()
}
