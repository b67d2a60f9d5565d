package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/birbbrain/internal"
	pkgconfig "github.com/starford/birbbrain/pkg/config"
)

const searchLimit = 20

// options loads the config file and turns the global flags into application options.
func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithJobsPath(cmd.String("jobs")),
		internal.WithVaultPath(cmd.String("vault")),
	}, nil
}

type entrypoint func(ctx context.Context, opts ...internal.Option) error

func action(name string, fn entrypoint) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		opts, err := options(cmd)
		if err != nil {
			return err
		}
		if err := fn(ctx, opts...); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
}

func search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("search: query is required")
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	// Keep stdout for results.
	opts = append(opts, internal.WithLogOutput(os.Stderr))
	return internal.Search(ctx, query, searchLimit, opts...)
}

func main() {
	cmd := &cli.Command{
		Name:    "birbbrain",
		Usage:   "Archive social-media threads and the repositories, articles and papers they link into a Markdown vault",
		Version: internal.Version,
		Action:  action("run", internal.Run),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("BIRBBRAIN_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Usage:   "CSV job source; doublestar globs allowed (overrides jobs.path)",
				Sources: cli.EnvVars("BIRBBRAIN_JOBS"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Vault directory (overrides vault.path)",
				Sources: cli.EnvVars("BIRBBRAIN_VAULT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Process the job source once",
				Action: action("run", internal.Run),
			},
			{
				Name:   "watch",
				Usage:  "Process the job source now and whenever it changes",
				Action: action("watch", internal.Watch),
			},
			{
				Name:   "serve",
				Usage:  "Serve the vault and ingestion over HTTP",
				Action: action("serve", internal.Serve),
			},
			{
				Name:      "search",
				Usage:     "Full-text search across the vault",
				ArgsUsage: "<query>",
				Action:    search,
			},
			{
				Name:   "mcp",
				Usage:  "Expose the vault to MCP clients over stdio",
				Action: action("mcp", internal.ServeMCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
