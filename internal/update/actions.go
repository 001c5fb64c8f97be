package update

import (
	"log/slog"
	"os"
	"time"

	"github.com/dtnitsch/plugin-stats/models"
	"github.com/dtnitsch/plugin-stats/pkg/config"
	"github.com/dtnitsch/plugin-stats/pkg/console"
	"github.com/dtnitsch/plugin-stats/pkg/fetcher"
	"github.com/dtnitsch/plugin-stats/pkg/images"
	"github.com/dtnitsch/plugin-stats/pkg/readme"
	"github.com/urfave/cli/v2"
)

// Flags returns the flags accepted by the update command.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   config.DefaultPath,
			Usage:   "plugin config file (KEY=VALUE .env format, or .yaml)",
			EnvVars: []string{"PLUGIN_STATS_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "readme",
			Aliases: []string{"r"},
			Value:   readme.DefaultPath,
			Usage:   "markdown document to update",
			EnvVars: []string{"PLUGIN_STATS_README"},
		},
		&cli.StringFlag{
			Name:  "plugins",
			Usage: "comma-separated plugin IDs, overrides PLUGIN_IDS from the config file",
		},
		&cli.StringFlag{
			Name:  "section-title",
			Usage: "section heading, overrides SECTION_TITLE",
		},
		&cli.StringFlag{
			Name:  "images-dir",
			Usage: "directory for downloaded images, overrides IMAGES_DIR",
		},
		&cli.BoolFlag{
			Name:  "skip-images",
			Usage: "link remote image URLs instead of downloading them",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Value: fetcher.DefaultTimeout,
			Usage: "timeout for each plugin metadata request",
		},
		&cli.DurationFlag{
			Name:  "image-timeout",
			Value: images.DefaultTimeout,
			Usage: "timeout for each image download",
		},
		&cli.StringFlag{
			Name:    "base-url",
			Value:   fetcher.DefaultBaseURL,
			Usage:   "recipes API base URL",
			EnvVars: []string{"PLUGIN_STATS_BASE_URL"},
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "cache raw API responses in this directory",
		},
		&cli.DurationFlag{
			Name:  "cache-ttl",
			Value: time.Hour,
			Usage: "max age of cached API responses (0 = never expire)",
		},
		&cli.StringFlag{
			Name:    "history-db",
			Usage:   "record runs and statistics in this SQLite database",
			EnvVars: []string{"PLUGIN_STATS_HISTORY_DB"},
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "print the updated document to stdout instead of writing it",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "only print errors",
		},
	}
}

// NewLogger builds the JSON stderr logger shared by all commands.
func NewLogger(quiet bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if quiet {
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// OptionsFromContext resolves command flags into Options.
func OptionsFromContext(c *cli.Context) Options {
	opts := Options{
		RunConfig: models.RunConfig{
			ConfigPath:   c.String("config"),
			ReadmePath:   c.String("readme"),
			SkipImages:   c.Bool("skip-images"),
			DryRun:       c.Bool("dry-run"),
			Timeout:      c.Duration("timeout"),
			ImageTimeout: c.Duration("image-timeout"),
			BaseURL:      c.String("base-url"),
			CacheDir:     c.String("cache-dir"),
			CacheTTL:     c.Duration("cache-ttl"),
			HistoryDB:    c.String("history-db"),
		},
		SectionTitle: c.String("section-title"),
		ImagesDir:    c.String("images-dir"),
		Out:          c.App.Writer,
	}
	if c.IsSet("plugins") {
		opts.PluginIDs = config.ParsePluginIDs(c.String("plugins"))
	}
	return opts
}

func UpdateAction(c *cli.Context) error {
	quiet := c.Bool("quiet")
	logger := NewLogger(quiet)
	opts := OptionsFromContext(c)

	// Progress goes to stderr when stdout carries the document
	progressOut := c.App.Writer
	if opts.DryRun {
		progressOut = c.App.ErrWriter
	}
	printer := console.NewPrinter(progressOut, quiet)

	_, err := Run(c.Context, logger, printer, opts)
	if err != nil {
		logger.Error("update failed", "error", err)
		return cli.Exit(err.Error(), 1)
	}
	return nil
}
