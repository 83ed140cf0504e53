// Package testingkit provides fail-fast test helpers over a
// sqlkit.Database, reducing the per-test boilerplate of checking every
// error return in setup code that isn't itself under test.
package testingkit

import (
	"context"
	"strconv"
	"testing"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/drivers/memory"
	"github.com/honeynil/sqlkit/schema"
)

// Helper wraps a *sqlkit.Database with Must* methods that fail the test
// on error instead of returning it, and closes the Database automatically
// via t.Cleanup.
//
// # Usage
//
//	func TestSomething(t *testing.T) {
//	    h := testingkit.NewMemory(t)
//	    h.MustCreateAll(schema.Derive[User]())
//
//	    h.MustExec("INSERT INTO users (name) VALUES (?)", sqlkit.StringValue("ada"))
//	    rs := h.MustQuery("SELECT name FROM users")
//	    ...
//	}
type Helper struct {
	*sqlkit.Database
	t   *testing.T
	ctx context.Context
}

// NewMemory opens a fresh in-memory SQLite-backed Database and registers
// its Close with t.Cleanup.
func NewMemory(t *testing.T, opts ...sqlkit.Option) *Helper {
	t.Helper()
	ctx := context.Background()

	db, err := sqlkit.Open(ctx, sqlkit.DriverMemory, memory.Open(), memory.ClassifyFunc, sqlkit.PoolConfig{}, opts...)
	if err != nil {
		t.Fatalf("testingkit: open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return &Helper{Database: db, t: t, ctx: ctx}
}

// Context returns the background context Must* methods use.
func (h *Helper) Context() context.Context { return h.ctx }

// MustCreateAll issues CREATE TABLE IF NOT EXISTS for every table,
// failing the test on error.
func (h *Helper) MustCreateAll(tables ...*schema.TableSchema) {
	h.t.Helper()
	if err := schema.NewMigrator(h.Database, tables...).CreateAll(h.ctx); err != nil {
		h.t.Fatalf("testingkit: create schema: %v", err)
	}
}

// MustDropAll drops every table, failing the test on error.
func (h *Helper) MustDropAll(tables ...*schema.TableSchema) {
	h.t.Helper()
	if err := schema.NewMigrator(h.Database, tables...).DropAll(h.ctx); err != nil {
		h.t.Fatalf("testingkit: drop schema: %v", err)
	}
}

// MustRoundTrip creates then drops every table, the fastest check that a
// derived schema's DDL is accepted by the live dialect before a test
// exercises anything else against it.
func (h *Helper) MustRoundTrip(tables ...*schema.TableSchema) {
	h.t.Helper()
	mig := schema.NewMigrator(h.Database, tables...)
	if err := mig.CreateAll(h.ctx); err != nil {
		h.t.Fatalf("testingkit: create schema: %v", err)
	}
	if err := mig.DropAll(h.ctx); err != nil {
		h.t.Fatalf("testingkit: drop schema: %v", err)
	}
}

// MustExec runs sql via RawExec, failing the test on error and returning
// the affected row count.
func (h *Helper) MustExec(sql string, args ...sqlkit.Value) int64 {
	h.t.Helper()
	n, err := h.RawExec(h.ctx, sql, args...)
	if err != nil {
		h.t.Fatalf("testingkit: exec %q: %v", sql, err)
	}
	return n
}

// MustQuery runs sql via RawQuery, failing the test on error. The caller
// is responsible for closing the returned ResultSet.
func (h *Helper) MustQuery(sql string, args ...sqlkit.Value) *sqlkit.ResultSet {
	h.t.Helper()
	rs, err := h.RawQuery(h.ctx, sql, args...)
	if err != nil {
		h.t.Fatalf("testingkit: query %q: %v", sql, err)
	}
	return rs
}

// MustCount runs a SELECT COUNT(*) FROM table and fails the test on
// error, returning the count as a one-line assertion helper.
func (h *Helper) MustCount(table string) int64 {
	h.t.Helper()
	rs := h.MustQuery("SELECT COUNT(*) FROM " + table)
	defer rs.Close()
	row, ok, err := rs.Next()
	if err != nil || !ok {
		h.t.Fatalf("testingkit: count %s: no row (err=%v)", table, err)
	}
	s, _ := row.Get(0)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		h.t.Fatalf("testingkit: count %s: unexpected value %q", table, s)
	}
	return n
}
