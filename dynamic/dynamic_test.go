package dynamic_test

import (
	"context"
	"sync"
	"testing"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/drivers/memory"
	"github.com/honeynil/sqlkit/dynamic"
)

// capturingLogger records WarnContext calls so tests can assert on
// drift-detection logging without depending on a real slog sink.
type capturingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *capturingLogger) InfoContext(ctx context.Context, msg string, args ...any) {}
func (l *capturingLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}
func (l *capturingLogger) ErrorContext(ctx context.Context, msg string, args ...any) {}

func (l *capturingLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

func openTestDB(t *testing.T, opts ...sqlkit.Option) *sqlkit.Database {
	t.Helper()
	ctx := context.Background()
	db, err := sqlkit.Open(ctx, sqlkit.DriverMemory, memory.Open(), memory.ClassifyFunc, sqlkit.PoolConfig{}, opts...)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.RawExec(ctx, `CREATE TABLE items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		qty INTEGER
	)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func TestInsertSelectUpdateDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	c := dynamic.New(db)

	if _, err := c.Insert(ctx, "items", map[string]any{"name": "bolt", "qty": int64(10)}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := c.Select(ctx, "items", dynamic.Where("name", "bolt"))
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 1 || rows[0]["qty"] != "10" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	n, err := c.Update(ctx, "items", map[string]any{"qty": int64(20)}, dynamic.Where("name", "bolt"))
	if err != nil || n != 1 {
		t.Fatalf("update: n=%d err=%v", n, err)
	}

	rows, err = c.Select(ctx, "items", dynamic.Where("name", "bolt"))
	if err != nil || len(rows) != 1 || rows[0]["qty"] != "20" {
		t.Fatalf("update not applied: %+v, err=%v", rows, err)
	}

	n, err = c.Delete(ctx, "items", dynamic.Where("name", "bolt"))
	if err != nil || n != 1 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
	rows, err = c.Select(ctx, "items")
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected no rows after delete: %+v, err=%v", rows, err)
	}
}

func TestInsertRejectsUnknownColumn(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	c := dynamic.New(db)

	_, err := c.Insert(ctx, "items", map[string]any{"bogus": "x"})
	if err == nil {
		t.Fatal("expected an error for an unknown column")
	}
}

func TestRejectsInvalidIdentifier(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	c := dynamic.New(db)

	if _, err := c.Select(ctx, "items; DROP TABLE items"); err == nil {
		t.Fatal("expected an error for a non-identifier table name")
	}
}

func TestAllowList(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	c := dynamic.New(db, "other_table")

	if _, err := c.Select(ctx, "items"); err == nil {
		t.Fatal("expected items to be rejected, it's not in the allow-list")
	}
}

func TestSchemaDriftWarns(t *testing.T) {
	ctx := context.Background()
	logger := &capturingLogger{}
	db := openTestDB(t, sqlkit.WithLogger(logger))
	c := dynamic.New(db)

	if _, err := c.Schema(ctx, "items"); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if logger.warnCount() != 0 {
		t.Fatalf("expected no drift warning on first discovery, got %d", logger.warnCount())
	}

	if _, err := db.RawExec(ctx, "ALTER TABLE items ADD COLUMN note TEXT"); err != nil {
		t.Fatalf("alter table: %v", err)
	}

	if _, err := c.Schema(ctx, "items"); err != nil {
		t.Fatalf("schema after alter: %v", err)
	}
	if logger.warnCount() != 1 {
		t.Fatalf("expected a drift warning after the table changed shape, got %d", logger.warnCount())
	}
}
