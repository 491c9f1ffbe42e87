package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
)

// ResolveCommand creates the resolve command
func ResolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve a free-text location to a provider location code",
		ArgsUsage: `"City, State"`,
		Action: func(ctx context.Context, c *cli.Command) error {
			text := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("a location is required")
			}
			return resolveLocation(ctx, c.String("config"), text)
		},
	}
}

func resolveLocation(ctx context.Context, configPath, text string) error {
	a, err := openApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	r := a.resolver.Resolve(ctx, text)
	fmt.Printf("%s → %d (%s)\n", text, r.Code, r.Level)
	return nil
}
