package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/cardsync/internal"
	pkgconfig "github.com/starford/cardsync/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func appOptions(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := appOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := appOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, opts...); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

// withRuntime opens the vault, builds the indexes once and runs fn.
func withRuntime(ctx context.Context, cmd *cli.Command, fn func(context.Context, *internal.Runtime) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(cfg.App, os.Stderr)

	rt, err := internal.Open(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.Service.Rebuild(ctx); err != nil {
		return fmt.Errorf("index build: %w", err)
	}
	return fn(ctx, rt)
}

func requireArgs(cmd *cli.Command, n int) ([]string, error) {
	if cmd.Args().Len() != n {
		return nil, fmt.Errorf("%s: expected %d argument(s): %s", cmd.Name, n, cmd.ArgsUsage)
	}
	return cmd.Args().Slice(), nil
}

func refs(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	note := args[0]
	return withRuntime(ctx, cmd, func(ctx context.Context, rt *internal.Runtime) error {
		results, err := rt.Service.ScanReferences(note)
		if err != nil {
			return err
		}
		if !cmd.Bool("pick") {
			printReferences(os.Stdout, note, results)
			return nil
		}
		chosen, ok, err := pickReference(note, results)
		if err != nil || !ok {
			return err
		}
		res, err := rt.Service.UpsertCard(ctx, chosen, note, false)
		if err != nil {
			return err
		}
		printUpsert(os.Stdout, res)
		return nil
	})
}

func card(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 2)
	if err != nil {
		return err
	}
	return withRuntime(ctx, cmd, func(ctx context.Context, rt *internal.Runtime) error {
		res, err := rt.Service.UpsertCard(ctx, args[0], args[1], false)
		if err != nil {
			return err
		}
		printUpsert(os.Stdout, res)
		return nil
	})
}

func adjust(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	return withRuntime(ctx, cmd, func(_ context.Context, rt *internal.Runtime) error {
		n, err := rt.Service.AdjustGroups(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s %d group(s) adjusted in %s\n", okMark, n, args[0])
		return nil
	})
}

func trail(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1)
	if err != nil {
		return err
	}
	return withRuntime(ctx, cmd, func(_ context.Context, rt *internal.Runtime) error {
		crumbs, err := rt.Service.Breadcrumbs(args[0])
		if err != nil {
			return err
		}
		nb, err := rt.Service.Neighbors(args[0])
		if err != nil {
			return err
		}
		printTrail(os.Stdout, crumbs, nb)
		return nil
	})
}

func main() {
	cmd := &cli.Command{
		Name:    "cardsync",
		Usage:   "Keep note cards on canvases in sync with their notes and navigate note hierarchies",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Build the indexes, watch the vault and serve the HTTP API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "refs",
				Usage:     "List canvases that reference a note",
				ArgsUsage: "<note>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "pick", Usage: "Choose a canvas interactively and create or sync the card there"},
				},
				Action: refs,
			},
			{
				Name:      "card",
				Usage:     "Create or sync the card for a note in a canvas",
				ArgsUsage: "<canvas> <note>",
				Action:    card,
			},
			{
				Name:      "adjust",
				Usage:     "Snap single-card group frames to their cards",
				ArgsUsage: "<canvas>",
				Action:    adjust,
			},
			{
				Name:      "trail",
				Usage:     "Show breadcrumbs and prev/next neighbours of a note",
				ArgsUsage: "<note>",
				Action:    trail,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
