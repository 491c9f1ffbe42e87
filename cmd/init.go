package cmd

import (
	"context"
	"fmt"

	"github.com/rubiojr/vendorscout/pkg/config"
	"github.com/rubiojr/vendorscout/pkg/storage"
	"github.com/urfave/cli/v3"
)

// InitCommand creates the init command
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a configuration template and create the database",
		Action: func(ctx context.Context, c *cli.Command) error {
			return initConfig(ctx, c.String("config"))
		},
	}
}

// initConfig writes the config template and migrates a fresh database.
func initConfig(ctx context.Context, configPath string) error {
	cfg, err := config.GetDefaultConfig()
	if err != nil {
		return err
	}
	if err := cfg.SaveTemplateConfig(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration initialized at %s\n", configPath)

	conn, err := storage.OpenAndMigrate(ctx, cfg.DBPath())
	if err != nil {
		return err
	}
	defer conn.Close()
	fmt.Printf("Database ready at %s\n", cfg.DBPath())
	return nil
}
