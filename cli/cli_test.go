package cli

import (
	"os"
	"testing"
)

func TestLoadConfigRequiresDriverAndDSN(t *testing.T) {
	os.Unsetenv("SQLKIT_DRIVER")
	os.Unsetenv("SQLKIT_DSN")

	app := &App{config: &Config{}}
	if err := app.loadConfig(); err == nil {
		t.Fatal("expected an error when neither driver nor dsn is set")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	os.Setenv("SQLKIT_DRIVER", "sqlite")
	os.Setenv("SQLKIT_DSN", ":memory:")
	defer os.Unsetenv("SQLKIT_DRIVER")
	defer os.Unsetenv("SQLKIT_DSN")

	app := &App{config: &Config{}}
	if err := app.loadConfig(); err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if app.config.Driver != "sqlite" || app.config.DSN != ":memory:" {
		t.Fatalf("unexpected config: %+v", app.config)
	}
}

func TestGetEnvironmentNameDefault(t *testing.T) {
	app := &App{config: &Config{}}
	if app.getEnvironmentName() != "development" {
		t.Fatalf("expected default environment name 'development', got %q", app.getEnvironmentName())
	}
}
