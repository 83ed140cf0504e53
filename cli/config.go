package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the CLI.
type Config struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`

	UseConfig        bool   `yaml:"-"`
	Env              string `yaml:"-"`
	UnlockProduction bool   `yaml:"-"`
	Yes              bool   `yaml:"-"`
	JSON             bool   `yaml:"-"`

	configFile *ConfigFile
}

// ConfigFile represents the structure of .sqlkit.yaml.
type ConfigFile struct {
	ConfigLocked bool                    `yaml:"config_locked"`
	Environments map[string]*Environment `yaml:",inline"`
}

// Environment represents a single named environment's connection
// settings and safety gates.
type Environment struct {
	Driver                string `yaml:"driver"`
	DSN                   string `yaml:"dsn"`
	RequireConfirmation   bool   `yaml:"require_confirmation"`
	RequireExplicitUnlock bool   `yaml:"require_explicit_unlock"`
}

func (app *App) loadConfigFile() error {
	configPath := ".sqlkit.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: .sqlkit.yaml (use --use-config only when config file exists)")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var cf ConfigFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	app.config.configFile = &cf

	if cf.ConfigLocked {
		return fmt.Errorf("config file is locked for safety; remove 'config_locked: true' or use flags/env vars instead")
	}

	if app.config.Env != "" {
		env, ok := cf.Environments[app.config.Env]
		if !ok {
			return fmt.Errorf("environment %q not found in config file", app.config.Env)
		}
		if env.RequireExplicitUnlock && !app.config.UnlockProduction {
			return fmt.Errorf("environment %q requires --unlock-production", app.config.Env)
		}
		if app.config.Driver == "" {
			app.config.Driver = env.Driver
		}
		if app.config.DSN == "" {
			app.config.DSN = env.DSN
		}
	}

	return nil
}

// requiresConfirmation reports whether the active environment is
// configured to require an interactive confirmation before a
// destructive operation (migrate down/refresh).
func (app *App) requiresConfirmation() bool {
	if app.config.Yes {
		return false
	}
	if app.config.configFile == nil || app.config.Env == "" {
		return false
	}
	env, ok := app.config.configFile.Environments[app.config.Env]
	if !ok {
		return false
	}
	return env.RequireConfirmation
}
