package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rubiojr/vendorscout/pkg/search"
	"github.com/urfave/cli/v3"
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search vendors across all configured sources",
		ArgsUsage: "<keyword>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "location",
				Aliases:  []string{"l"},
				Usage:    `Location, e.g. "Austin, Texas"`,
				Required: true,
			},
			&cli.StringFlag{
				Name:  "subcategory",
				Usage: "Exact subcategory filter",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the raw JSON response",
			},
			&cli.BoolFlag{
				Name:  "no-pager",
				Usage: "Disable pager and output directly to terminal",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			req := search.Request{
				Keyword:     c.Args().First(),
				Location:    c.String("location"),
				Subcategory: c.String("subcategory"),
			}
			return searchVendors(ctx, c.String("config"), req, c.Bool("json"), c.Bool("no-pager"))
		},
	}
}

func searchVendors(ctx context.Context, configPath string, req search.Request, asJSON, noPager bool) error {
	a, err := openApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.search.Search(ctx, req)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	output := formatSearchOutput(req, resp)
	if noPager || !isTerminal() {
		fmt.Print(output)
		return nil
	}
	return displayWithPager(output)
}
