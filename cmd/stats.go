package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
)

// StatsCommand creates the stats command
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show search-call and location statistics",
		Action: func(ctx context.Context, c *cli.Command) error {
			return showStats(ctx, c.String("config"))
		},
	}
}

func showStats(ctx context.Context, configPath string) error {
	a, err := openApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	now := time.Now()
	st, err := a.stats.Stats(ctx, now)
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}
	n, err := a.locations.Count(ctx)
	if err != nil {
		return err
	}
	freshness, err := a.locations.Freshness(ctx, now, freshnessThreshold(a.cfg))
	if err != nil {
		return err
	}

	fmt.Print(formatCacheStats(st, n, freshness))
	return nil
}
