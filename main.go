package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/dtnitsch/plugin-stats/internal/history"
	"github.com/dtnitsch/plugin-stats/internal/update"
	"github.com/dtnitsch/plugin-stats/internal/version"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "plugin-stats",
		Usage:   "keep a README section in sync with TRMNL plugin statistics",
		Version: version.String(),
		// Running without a subcommand performs an update
		Flags:  update.Flags(),
		Action: update.UpdateAction,
		Commands: []*cli.Command{
			{
				Name:   "update",
				Usage:  "fetch plugin stats and rewrite the README section",
				Flags:  update.Flags(),
				Action: update.UpdateAction,
			},
			{
				Name:   "history",
				Usage:  "show runs recorded with --history-db",
				Flags:  history.Flags(),
				Action: history.HistoryAction,
			},
		},
	}
}
