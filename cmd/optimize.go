package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rubiojr/vendorscout/pkg/storage"
	"github.com/urfave/cli/v3"
)

// OptimizeCommand creates the optimize command
func OptimizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "optimize",
		Usage: "Optimize the database and prune expired search calls",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-prune",
				Usage: "Skip pruning expired search-call rows",
				Value: false,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return optimizeAll(ctx, c.String("config"), !c.Bool("no-prune"))
		},
	}
}

// optimizeAll runs PRAGMA optimize, a WAL checkpoint and, optionally, the
// expired search-call sweep.
func optimizeAll(ctx context.Context, configPath string, prune bool) error {
	a, err := openApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println("Running PRAGMA optimize and WAL checkpoint...")
	if err := storage.Optimize(ctx, a.db); err != nil {
		return fmt.Errorf("optimizing database: %w", err)
	}
	fmt.Println("✓ optimize completed")

	if prune {
		n, err := a.stats.PruneExpired(ctx, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("✓ pruned %d expired search calls\n", n)
	}
	return nil
}
