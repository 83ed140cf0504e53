package model_test

import (
	"context"
	"testing"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/drivers/memory"
	"github.com/honeynil/sqlkit/model"
	"github.com/honeynil/sqlkit/query"
	"github.com/honeynil/sqlkit/schema"
)

type widget struct {
	ID        int64   `db:"id,pk"`
	Name      string  `db:"name"`
	Stock     int64   `db:"stock"`
	DeletedAt *string `db:"deleted_at,null"`
}

func (widget) ModelConfig() schema.ModelConfig {
	return schema.ModelConfig{Table: "widgets", PrimaryKey: "id", SoftDeletes: true}
}

func openTestDB(t *testing.T) *sqlkit.Database {
	t.Helper()
	ctx := context.Background()
	db, err := sqlkit.Open(ctx, sqlkit.DriverMemory, memory.Open(), memory.ClassifyFunc, sqlkit.PoolConfig{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mig := schema.NewMigrator(db, schema.Derive[widget]())
	if err := mig.CreateAll(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := model.For[widget](db)

	w := &widget{Name: "bolt", Stock: 10}
	id, err := m.CreateReturningID(ctx, w)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a generated id")
	}

	found, err := m.Find(ctx, id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil || found.Name != "bolt" {
		t.Fatalf("unexpected row: %+v", found)
	}
}

func TestFindOrFailMissing(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := model.For[widget](db)

	_, err := m.FindOrFail(ctx, 999)
	if err == nil {
		t.Fatal("expected ErrModelNotFound")
	}
	if sqlkit.KindOf(err) != sqlkit.ErrModelNotFound {
		t.Fatalf("expected ErrModelNotFound, got %v", sqlkit.KindOf(err))
	}
}

func TestUpdateAndDestroy(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := model.For[widget](db)

	w := &widget{Name: "nut", Stock: 5}
	id, err := m.CreateReturningID(ctx, w)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	w.Stock = 8
	if err := m.Update(ctx, w); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, err := m.Find(ctx, id)
	if err != nil || updated == nil || updated.Stock != 8 {
		t.Fatalf("update not applied: %+v, err=%v", updated, err)
	}

	if err := m.Destroy(ctx, id); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	gone, err := m.Find(ctx, id)
	if err != nil {
		t.Fatalf("find after destroy: %v", err)
	}
	if gone != nil {
		t.Fatal("expected soft-deleted row to be hidden by default")
	}

	if err := m.Restore(ctx, id); err != nil {
		t.Fatalf("restore: %v", err)
	}
	restored, err := m.Find(ctx, id)
	if err != nil || restored == nil {
		t.Fatalf("expected row visible after restore: %+v, err=%v", restored, err)
	}
}

func TestIncrementDecrement(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := model.For[widget](db)

	id, err := m.CreateReturningID(ctx, &widget{Name: "washer", Stock: 10})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.Increment(ctx, id, "stock", 5); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := m.Decrement(ctx, id, "stock", 2); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	row, err := m.Find(ctx, id)
	if err != nil || row == nil || row.Stock != 13 {
		t.Fatalf("unexpected stock: %+v, err=%v", row, err)
	}
}

func TestFirstOrCreateAndUpdateOrCreate(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := model.For[widget](db)

	created, err := m.FirstOrCreate(ctx, map[string]any{"name": "gasket"}, map[string]any{"stock": int64(3)})
	if err != nil {
		t.Fatalf("firstOrCreate: %v", err)
	}
	if created.Name != "gasket" {
		t.Fatalf("unexpected: %+v", created)
	}

	again, err := m.FirstOrCreate(ctx, map[string]any{"name": "gasket"})
	if err != nil {
		t.Fatalf("firstOrCreate second call: %v", err)
	}
	if again.ID != created.ID {
		t.Fatalf("expected same row, got %+v vs %+v", again, created)
	}

	updated, err := m.UpdateOrCreate(ctx, map[string]any{"name": "gasket"}, map[string]any{"stock": int64(99)})
	if err != nil {
		t.Fatalf("updateOrCreate: %v", err)
	}
	if updated.Stock != 99 {
		t.Fatalf("expected stock updated, got %+v", updated)
	}
}

func TestInsertManyAndAggregates(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := model.For[widget](db)

	err := m.InsertMany(ctx, []*widget{
		{Name: "a", Stock: 1},
		{Name: "b", Stock: 2},
		{Name: "c", Stock: 3},
	})
	if err != nil {
		t.Fatalf("insertMany: %v", err)
	}

	count, err := m.Count(ctx)
	if err != nil || count != 3 {
		t.Fatalf("expected 3 rows, got %d, err=%v", count, err)
	}

	sum, err := m.Sum(ctx, "stock")
	if err != nil || sum != 6 {
		t.Fatalf("expected sum 6, got %v, err=%v", sum, err)
	}

	max, err := m.Max(ctx, "stock")
	if err != nil || max != 3 {
		t.Fatalf("expected max 3, got %v, err=%v", max, err)
	}
}

func TestUseDefault(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	model.Use[widget](db)

	m, err := model.Default[widget]()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if _, err := m.CreateReturningID(ctx, &widget{Name: "screw", Stock: 1}); err != nil {
		t.Fatalf("create via default: %v", err)
	}
	exists, err := m.Exists(ctx, func(b *query.Builder) { b.Where("name", "screw") })
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("expected screw to exist")
	}
}
