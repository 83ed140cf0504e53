package cli

import (
	"context"
	"testing"
)

func TestOpenDatabaseUnsupportedDriver(t *testing.T) {
	app := &App{config: &Config{Driver: "mssql", DSN: "whatever"}}
	_, err := app.openDatabase(context.Background())
	if err == nil {
		t.Fatal("expected an error for an unsupported driver")
	}
}

func TestOpenDatabaseSQLiteMemory(t *testing.T) {
	app := &App{config: &Config{Driver: DriverSQLite, DSN: ":memory:"}}
	db, err := app.openDatabase(context.Background())
	if err != nil {
		t.Fatalf("openDatabase: %v", err)
	}
	defer db.Close()
}
