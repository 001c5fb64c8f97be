package update

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dtnitsch/plugin-stats/models"
	"github.com/dtnitsch/plugin-stats/pkg/caching"
	"github.com/dtnitsch/plugin-stats/pkg/config"
	"github.com/dtnitsch/plugin-stats/pkg/console"
	"github.com/dtnitsch/plugin-stats/pkg/db"
	"github.com/dtnitsch/plugin-stats/pkg/fetcher"
	"github.com/dtnitsch/plugin-stats/pkg/images"
	"github.com/dtnitsch/plugin-stats/pkg/readme"
	"github.com/dtnitsch/plugin-stats/pkg/render"
	"github.com/dtnitsch/plugin-stats/pkg/storage"
)

// LoadConfig reads the config file and applies flag overrides.
func LoadConfig(opts Options, printer *console.Printer) (models.PluginConfig, error) {
	cfg, found, err := config.Load(opts.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if !found {
		printer.Warn("%s file not found. Using default configuration.", opts.ConfigPath)
	}

	if len(opts.PluginIDs) > 0 {
		cfg.PluginIDs = opts.PluginIDs
	}
	if opts.SectionTitle != "" {
		cfg.SectionTitle = opts.SectionTitle
	}
	if opts.ImagesDir != "" {
		cfg.ImagesDir = opts.ImagesDir
	}
	return cfg, nil
}

// Run executes one update: fetch every plugin in order, render, rewrite the document.
// Per-plugin failures never abort the run; only document I/O errors are returned.
func Run(ctx context.Context, logger *slog.Logger, printer *console.Printer, opts Options) (*Summary, error) {
	cfg, err := LoadConfig(opts, printer)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Config: cfg}

	if len(cfg.PluginIDs) == 0 {
		printer.Error("No plugin IDs found in %s", opts.ConfigPath)
		return summary, nil
	}
	printer.List("Tracking %d plugins: %s", len(cfg.PluginIDs), strings.Join(cfg.PluginIDs, ", "))

	store := &storage.Storage{}
	fetcherOpts := []fetcher.Option{
		fetcher.WithBaseURL(opts.BaseURL),
		fetcher.WithTimeout(opts.Timeout),
		fetcher.WithLogger(logger),
	}
	if opts.CacheDir != "" {
		cache, err := caching.NewCache(opts.CacheDir, opts.CacheTTL)
		if err != nil {
			logger.Warn("Response cache disabled", "cache_dir", opts.CacheDir, "error", err)
		} else {
			fetcherOpts = append(fetcherOpts, fetcher.WithCache(cache))
		}
	}
	f := fetcher.NewFetcher(fetcherOpts...)

	var downloader *images.Downloader
	if !opts.SkipImages {
		downloader = images.NewDownloader(f, store, cfg.ImagesDir, opts.ImageTimeout, logger)
	}

	history := openHistory(logger, opts, cfg)
	if history != nil {
		defer history.Close()
		summary.RunID = history.runID
	}

	fragments := make([]string, 0, len(cfg.PluginIDs))
	for i, pluginID := range cfg.PluginIDs {
		if ctx.Err() != nil {
			break
		}
		printer.Fetch("Fetching data for plugin %s...", pluginID)
		result := processPlugin(ctx, logger, printer, f, downloader, opts.ReadmePath, pluginID)
		summary.Results = append(summary.Results, result)
		fragments = append(fragments, result.Fragment)
		history.record(i, result)
	}

	// An interrupted run would replace good statistics with placeholders.
	if err := ctx.Err(); err != nil {
		logger.Warn("Update interrupted, document left unchanged", "readme", opts.ReadmePath, "error", err)
		printer.Error("Update interrupted: %s left unchanged", opts.ReadmePath)
		return summary, fmt.Errorf("update interrupted: %w", err)
	}

	body := render.Join(fragments)
	updater := readme.NewUpdater(store, opts.ReadmePath)

	if opts.DryRun {
		doc, err := updater.Render(body, cfg.SectionTitle)
		if err != nil {
			return summary, err
		}
		summary.Document = doc
		if opts.Out != nil {
			fmt.Fprint(opts.Out, doc)
		}
	} else {
		if err := updater.Update(body, cfg.SectionTitle); err != nil {
			return summary, err
		}
		summary.Written = true
	}

	success, failed := summary.Counts()
	history.finish(success, failed)
	logger.Info("Update finished", "readme", updater.Path(), "success", success, "failed", failed, "dry_run", opts.DryRun)

	if summary.Written {
		printer.Success("%s updated successfully with plugin statistics!", updater.Path())
	} else {
		printer.Success("Dry run complete: %s left unchanged", updater.Path())
	}
	printer.Plain("%d plugins rendered, %d unavailable", success, failed)
	return summary, nil
}

func processPlugin(ctx context.Context, logger *slog.Logger, printer *console.Printer, f *fetcher.Fetcher, downloader *images.Downloader, readmePath, pluginID string) Result {
	result := Result{PluginID: pluginID}

	record, err := f.FetchPlugin(ctx, pluginID)
	if err != nil {
		logger.Error("❌ Error fetching plugin data", "plugin_id", pluginID, "url", f.PluginURL(pluginID), "error", err)
		printer.Error("Error fetching plugin data for %s: %v", pluginID, err)
		result.Error = err
	}
	result.Record = record

	if downloader != nil {
		result.Images, result.Artifacts = downloader.DownloadWithArtifacts(ctx, pluginID, record)
		if record != nil {
			if record.IconURL != "" && result.Images.Icon == "" {
				printer.Warn("Could not download icon for %s, using remote URL", pluginID)
			}
			if record.ScreenshotURL != "" && result.Images.Screenshot == "" {
				printer.Warn("Could not download screenshot for %s, using remote URL", pluginID)
			}
		}
	}

	fragment, err := render.Section(record, pluginID, linkPaths(readmePath, result.Images))
	if err != nil {
		logger.Error("❌ Error rendering plugin section", "plugin_id", pluginID, "error", err)
		fragment = render.Placeholder(pluginID)
	}
	result.Fragment = fragment
	return result
}

// linkPaths makes local image paths relative to the document's directory,
// so links resolve wherever the README lives.
func linkPaths(readmePath string, paths models.ImagePaths) models.ImagePaths {
	return models.ImagePaths{
		Icon:       relativeTo(filepath.Dir(readmePath), paths.Icon),
		Screenshot: relativeTo(filepath.Dir(readmePath), paths.Screenshot),
	}
}

func relativeTo(baseDir, target string) string {
	if target == "" {
		return ""
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return target
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return target
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return target
	}
	return rel
}

// historyRecorder writes run data to the optional history database.
// A nil recorder is a no-op.
type historyRecorder struct {
	db     *db.DB
	runID  int64
	logger *slog.Logger
}

func openHistory(logger *slog.Logger, opts Options, cfg models.PluginConfig) *historyRecorder {
	if opts.HistoryDB == "" {
		return nil
	}
	database, err := db.Open(opts.HistoryDB)
	if err != nil {
		logger.Warn("History database unavailable", "path", opts.HistoryDB, "error", err)
		return nil
	}
	runID, err := database.CreateRun(opts.ConfigPath, opts.ReadmePath, cfg.SectionTitle, len(cfg.PluginIDs), opts.DryRun)
	if err != nil {
		logger.Warn("Failed to create history run", "error", err)
		_ = database.Close()
		return nil
	}
	return &historyRecorder{db: database, runID: runID, logger: logger}
}

func (h *historyRecorder) record(position int, r Result) {
	if h == nil {
		return
	}
	if err := h.db.RecordSnapshot(h.runID, position, r.PluginID, r.Record, r.Error); err != nil {
		h.logger.Warn("Failed to record snapshot", "plugin_id", r.PluginID, "error", err)
	}
	for _, a := range r.Artifacts {
		if err := h.db.RecordImageArtifact(h.runID, a); err != nil {
			h.logger.Warn("Failed to record image artifact", "plugin_id", r.PluginID, "path", a.FilePath, "error", err)
		}
	}
}

func (h *historyRecorder) finish(success, failed int) {
	if h == nil {
		return
	}
	if err := h.db.FinishRun(h.runID, success, failed); err != nil {
		h.logger.Warn("Failed to finish history run", "run_id", h.runID, "error", err)
	}
}

func (h *historyRecorder) Close() {
	if h == nil {
		return
	}
	_ = h.db.Close()
}
