package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/montanetech/codeix-sub000/internal/diag"
	"github.com/montanetech/codeix-sub000/internal/engine"
	"github.com/montanetech/codeix-sub000/internal/events"
	"github.com/montanetech/codeix-sub000/internal/mcpserver"
	"github.com/montanetech/codeix-sub000/internal/searchdb"
)

func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Config file path (default: .codeix.kdl in the project root)",
		},
		&cli.StringSliceFlag{
			Name:  "include",
			Usage: "Include files matching glob patterns (overrides config)",
		},
		&cli.StringSliceFlag{
			Name:  "exclude",
			Usage: "Exclude files matching glob patterns (appended to config)",
		},
	}
}

func buildEngine(c *cli.Context, dbMode searchdb.Mode, watch bool) (*engine.Engine, error) {
	root := c.Args().First()
	if root == "" {
		root = "."
	}

	eng, err := engine.New(engine.Options{
		Root:        root,
		ConfigPath:  c.String("config"),
		DBMode:      dbMode,
		WatchEnable: watch,
		Include:     c.StringSlice("include"),
		Exclude:     c.StringSlice("exclude"),
	})
	if err != nil {
		return nil, fmt.Errorf("initialize engine: %w", err)
	}

	return eng, nil
}

func buildCommand(c *cli.Context) error {
	// build is a one-shot scan that only ever writes a bundle; it never
	// serves ranked-text search, so the index is built in build-only
	// mode to halve memory on large scans (spec.md §2, §6).
	eng, err := buildEngine(c, searchdb.ModeBuildOnly, false)
	if err != nil {
		return err
	}
	eng.Start(events.CacheModeReindex)
	eng.FlushAll()
	eng.Shutdown()

	fmt.Printf("Indexed %s\n", eng.Root)
	return nil
}

func serveCommand(c *cli.Context) error {
	eng, err := buildEngine(c, searchdb.ModeFull, c.Bool("watch"))
	if err != nil {
		return err
	}

	cacheMode := events.CacheModeLoad
	if c.Bool("reindex") {
		cacheMode = events.CacheModeReindex
	}
	eng.Start(cacheMode)

	if c.Bool("watch") {
		go eng.RunLoop()
	}

	diag.SetMCPMode(true)
	server := mcpserver.New(eng)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	err = server.Run(ctx)
	eng.Shutdown()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// stdinIsPiped reports whether os.Stdin is not an interactive terminal,
// the signal the §1/§6 CLI contract uses to pick "serve" as the
// default when no subcommand is given.
func stdinIsPiped() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice == 0
}

func defaultAction(c *cli.Context) error {
	if stdinIsPiped() {
		// Run the serve subcommand itself rather than serveCommand
		// directly, so its own flags (and their defaults, notably
		// --watch) are parsed the same way an explicit
		// "codeix serve" invocation would get them.
		return c.App.Command("serve").Run(c)
	}
	return cli.ShowAppHelp(c)
}

func main() {
	app := &cli.App{
		Name:   "codeix",
		Usage:  "Multi-project source-code indexer and MCP query server",
		Action: defaultAction,
		Commands: []*cli.Command{
			{
				Name:      "build",
				Usage:     "Walk a project root, build its index, and write its bundle to disk",
				ArgsUsage: "[path]",
				Flags:     rootFlags(),
				Action:    buildCommand,
			},
			{
				Name:      "serve",
				Usage:     "Discover a project root and serve its query surface over MCP on stdio",
				ArgsUsage: "[path]",
				Flags: append(rootFlags(),
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Keep watching for live filesystem changes after initial discovery",
						Value: true,
					},
					&cli.BoolFlag{
						Name:  "reindex",
						Usage: "Force a full re-walk instead of loading an existing bundle",
					},
				),
				Action: serveCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
