package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/joip/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config, err := r.loadOrCreateConfig(configPath)
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	states, err := shared.MigrationStatus(db)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}
	for _, s := range states {
		r.logger.Debug("migration", "version", s.Version, "name", s.Name, "applied", s.Applied)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writePlain("✓ Database ready at %s (%d migration(s))\n", config.Database.Path, len(states))
}

// SetupConfig writes config.toml, filling in Reddit client credentials when given.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config, err := r.loadOrCreateConfig(configPath)
	if err != nil {
		return err
	}

	changed := false
	if id := cmd.String("client-id"); id != "" {
		config.Reddit.ClientID = id
		changed = true
	}
	if secret := cmd.String("client-secret"); secret != "" {
		config.Reddit.ClientSecret = secret
		changed = true
	}
	if key := cmd.String("api-key"); key != "" {
		config.Server.APIKey = key
		changed = true
	}

	if changed {
		if err := shared.SaveConfig(configPath, config); err != nil {
			return err
		}
		r.logger.Info("config updated", "path", configPath)
	}

	r.writePlain("✓ Config at %s\n", configPath)
	if !config.HasRedditCredentials() {
		r.writePlainln("Next steps:")
		r.writePlain("1. Create a Reddit app at https://www.reddit.com/prefs/apps\n")
		r.writePlain("2. Run 'joip setup config --client-id ID --client-secret SECRET'\n")
	}
	return nil
}

// loadOrCreateConfig loads configPath, creating it from the embedded template when missing.
func (r *Runner) loadOrCreateConfig(configPath string) (*shared.Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		return config, shared.ApplyEnv(config)
	}

	r.logger.Info("config file not found, creating from template", "path", configPath)
	if err := shared.CreateConfigFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to create config file: %w", err)
	}
	r.logger.Info("config file created", "path", configPath)

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return config, shared.ApplyEnv(config)
}
