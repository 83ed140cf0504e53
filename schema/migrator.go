package schema

import (
	"context"
	"fmt"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/drivers/dialect"
)

// Migrator applies or drops a fixed set of table schemas against a
// Database, in deterministic naturalsort order so createAll/dropAll
// behave identically across runs regardless of registration order.
type Migrator struct {
	db     *sqlkit.Database
	tables []*TableSchema
}

// NewMigrator builds a Migrator over tables.
func NewMigrator(db *sqlkit.Database, tables ...*TableSchema) *Migrator {
	return &Migrator{db: db, tables: tables}
}

func (m *Migrator) ordered() []*TableSchema {
	byName := make(map[string]*TableSchema, len(m.tables))
	names := make([]string, 0, len(m.tables))
	for _, t := range m.tables {
		byName[t.Name] = t
		names = append(names, t.Name)
	}
	sorted := sortTableNames(names)
	out := make([]*TableSchema, len(sorted))
	for i, n := range sorted {
		out[i] = byName[n]
	}
	return out
}

func (m *Migrator) dialectFor() dialect.Dialect {
	return dialect.ForKind(m.db.DriverKind())
}

// CreateAll issues CREATE TABLE IF NOT EXISTS for every registered table,
// in naturalsort order.
func (m *Migrator) CreateAll(ctx context.Context) error {
	d := m.dialectFor()
	for _, t := range m.ordered() {
		if _, err := m.db.RawExec(ctx, t.CreateTableSQL(d)); err != nil {
			return fmt.Errorf("schema: create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// DropAll issues DROP TABLE IF EXISTS for every registered table, in
// reverse naturalsort order (the reverse of CreateAll). The order is by
// table name only; foreign-key dependencies are not considered.
func (m *Migrator) DropAll(ctx context.Context) error {
	d := m.dialectFor()
	ordered := m.ordered()
	for i := len(ordered) - 1; i >= 0; i-- {
		t := ordered[i]
		if _, err := m.db.RawExec(ctx, t.DropTableSQL(d)); err != nil {
			return fmt.Errorf("schema: drop table %s: %w", t.Name, err)
		}
	}
	return nil
}

// RefreshAll drops and recreates every registered table.
func (m *Migrator) RefreshAll(ctx context.Context) error {
	if err := m.DropAll(ctx); err != nil {
		return err
	}
	return m.CreateAll(ctx)
}
