package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFileMissing(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	app := &App{config: &Config{UseConfig: true}}
	if err := app.loadConfigFile(); err == nil {
		t.Fatal("expected an error when .sqlkit.yaml is absent")
	}
}

func TestLoadConfigFileEnvironment(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	content := `
staging:
  driver: postgres
  dsn: "postgres://staging"
  require_confirmation: true
production:
  driver: postgres
  dsn: "postgres://prod"
  require_explicit_unlock: true
`
	if err := os.WriteFile(filepath.Join(dir, ".sqlkit.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	app := &App{config: &Config{UseConfig: true, Env: "staging"}}
	if err := app.loadConfigFile(); err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}
	if app.config.Driver != "postgres" || app.config.DSN != "postgres://staging" {
		t.Fatalf("unexpected config: %+v", app.config)
	}
	if !app.requiresConfirmation() {
		t.Fatal("expected staging to require confirmation")
	}
}

func TestLoadConfigFileProductionRequiresUnlock(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(cwd)

	content := `
production:
  driver: postgres
  dsn: "postgres://prod"
  require_explicit_unlock: true
`
	if err := os.WriteFile(filepath.Join(dir, ".sqlkit.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	app := &App{config: &Config{UseConfig: true, Env: "production"}}
	if err := app.loadConfigFile(); err == nil {
		t.Fatal("expected an error: production requires --unlock-production")
	}

	app = &App{config: &Config{UseConfig: true, Env: "production", UnlockProduction: true}}
	if err := app.loadConfigFile(); err != nil {
		t.Fatalf("loadConfigFile with unlock: %v", err)
	}
}

func TestRequiresConfirmationSkippedWithYes(t *testing.T) {
	app := &App{config: &Config{Yes: true, Env: "production"}}
	if app.requiresConfirmation() {
		t.Fatal("--yes should bypass confirmation regardless of environment")
	}
}
