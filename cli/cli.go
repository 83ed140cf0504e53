// Package cli provides a command-line admin tool for sqlkit: applying
// registered table schemas, checking pool health, and inspecting a live
// table's discovered shape.
//
// Users create their own binary that registers their compile-time
// schemas and calls cli.Run().
//
// Example usage:
//
//	// cmd/dbtool/main.go
//	package main
//
//	import (
//	    "github.com/honeynil/sqlkit/cli"
//	    "github.com/honeynil/sqlkit/schema"
//	)
//
//	func main() {
//	    cli.Run(func() []*schema.TableSchema {
//	        return []*schema.TableSchema{schema.Derive[User](), schema.Derive[Order]()}
//	    })
//	}
//
// The CLI supports configuration through flags, environment variables,
// and an optional .sqlkit.yaml config file.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/honeynil/sqlkit"
	"github.com/honeynil/sqlkit/schema"
)

// SchemaProvider returns the set of table schemas the migrate commands
// operate on. Users supply this to register whatever compile-time
// structs their program models.
type SchemaProvider func() []*schema.TableSchema

// App holds the CLI application state.
type App struct {
	provider SchemaProvider
	config   *Config
	rootCmd  *cobra.Command
}

// Run starts the CLI with the given schema provider. This is the main
// entry point for users.
//
// Configuration priority:
//  1. Command-line flags (highest)
//  2. Environment variables (SQLKIT_DRIVER, SQLKIT_DSN, ...)
//  3. Config file .sqlkit.yaml (lowest, requires --use-config)
func Run(provider SchemaProvider) {
	app := &App{
		provider: provider,
		config:   &Config{},
	}

	app.rootCmd = &cobra.Command{
		Use:   "sqlkit",
		Short: "sqlkit admin CLI",
		Long: `sqlkit admin CLI - schema and pool tooling for sqlkit.Database.

Configuration priority:
  1. Command-line flags (highest)
  2. Environment variables (SQLKIT_DRIVER, SQLKIT_DSN, ...)
  3. Config file .sqlkit.yaml (lowest, requires --use-config)

Examples:
  # Apply every registered table's CREATE TABLE IF NOT EXISTS
  sqlkit migrate up

  # Drop every registered table
  sqlkit migrate down

  # Drop and recreate every registered table
  sqlkit migrate refresh

  # Print pool occupancy
  sqlkit stats

  # Probe connectivity
  sqlkit ping

  # Print a live table's discovered column shape
  sqlkit explain users`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	app.addGlobalFlags()
	app.rootCmd.AddCommand(
		app.migrateCmd(),
		app.statsCmd(),
		app.pingCmd(),
		app.explainCmd(),
	)

	if err := app.rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (app *App) addGlobalFlags() {
	flags := app.rootCmd.PersistentFlags()
	flags.StringVar(&app.config.Driver, "driver", "", "Database driver (mysql, postgres, sqlite)")
	flags.StringVar(&app.config.DSN, "dsn", "", "Database connection string")
	flags.BoolVar(&app.config.UseConfig, "use-config", false, "Enable config file (.sqlkit.yaml)")
	flags.StringVar(&app.config.Env, "env", "", "Environment from config file (development, staging, production)")
	flags.BoolVar(&app.config.UnlockProduction, "unlock-production", false, "Unlock production environment")
	flags.BoolVar(&app.config.Yes, "yes", false, "Automatic yes to prompts (for CI/CD)")
	flags.BoolVar(&app.config.JSON, "json", false, "Ignored: every command prints plain text")
}

// loadConfig loads configuration from all sources. Priority: flags >
// env > config file.
func (app *App) loadConfig() error {
	app.loadEnv()
	if app.config.UseConfig {
		if err := app.loadConfigFile(); err != nil {
			return err
		}
	}

	if app.config.Driver == "" {
		return fmt.Errorf("driver is required (use --driver or SQLKIT_DRIVER)")
	}
	if app.config.DSN == "" {
		return fmt.Errorf("dsn is required (use --dsn or SQLKIT_DSN)")
	}
	return nil
}

func (app *App) loadEnv() {
	if app.config.Driver == "" {
		if driver := os.Getenv("SQLKIT_DRIVER"); driver != "" {
			app.config.Driver = driver
		}
	}
	if app.config.DSN == "" {
		if dsn := os.Getenv("SQLKIT_DSN"); dsn != "" {
			app.config.DSN = dsn
		}
	}
}

// setupDatabase resolves configuration from flags/env/config-file and
// opens a Database against it.
func (app *App) setupDatabase(ctx context.Context) (*sqlkit.Database, error) {
	if err := app.loadConfig(); err != nil {
		return nil, err
	}
	return app.openDatabase(ctx)
}

func (app *App) getEnvironmentName() string {
	if app.config.Env == "" {
		return "development"
	}
	return app.config.Env
}
