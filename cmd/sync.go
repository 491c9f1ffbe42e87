package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rubiojr/vendorscout/pkg/locsync"
	"github.com/urfave/cli/v3"
)

// SyncCommand creates the sync command
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Refresh the location taxonomy from the geo-data provider",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "scope",
				Usage: "Which locations to keep: all or country (defaults to the configured scope)",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Sync even when stored locations are fresh",
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "Read provider entries from a JSON file (optionally gzipped) instead of the endpoint",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the sync result as JSON",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return syncLocations(ctx, c.String("config"), c.String("scope"), c.String("file"), c.Bool("force"), c.Bool("json"))
		},
	}
}

func syncLocations(ctx context.Context, configPath, scopeFlag, file string, force, asJSON bool) error {
	a, err := openApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if scopeFlag == "" {
		scopeFlag = a.cfg.Locations.SyncScope
	}
	scope, err := locsync.ParseScope(scopeFlag)
	if err != nil {
		return err
	}

	syncer := a.syncer
	if file != "" {
		a.cfg.Provider.LocationsFile = file
		syncer = locsync.New(a.locations, providerSource(a.cfg),
			locsync.WithCountry(a.cfg.Locations.Country, a.cfg.Locations.DefaultCode),
			locsync.WithFreshnessThreshold(freshnessThreshold(a.cfg)),
			locsync.WithMetrics(a.metrics),
		)
	}

	res, err := syncer.Sync(ctx, scope, force)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Print(formatSyncResult(res))
	return nil
}
