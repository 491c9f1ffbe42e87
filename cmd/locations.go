package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
)

// LocationsCommand creates the locations command
func LocationsCommand() *cli.Command {
	return &cli.Command{
		Name:      "locations",
		Usage:     "Search stored states and cities by name",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of locations",
				Value: 10,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return searchLocations(ctx, c.String("config"), strings.Join(c.Args().Slice(), " "), c.Int("limit"))
		},
	}
}

func searchLocations(ctx context.Context, configPath, query string, limit int) error {
	a, err := openApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.locations.Search(ctx, query, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println(noDataStyle.Render(fmt.Sprintf("No locations match %q (queries need at least 2 characters).", query)))
		return nil
	}

	for _, r := range records {
		state := ""
		if r.StateCode != nil {
			state = ", " + *r.StateCode
		}
		fmt.Printf("%-10d %-6s %s%s\n", r.Code, r.Type, r.Name, state)
	}
	return nil
}
