// Package images keeps local copies of plugin icons and screenshots.
package images

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"github.com/dtnitsch/plugin-stats/internal/common"
	"github.com/dtnitsch/plugin-stats/models"
	"github.com/dtnitsch/plugin-stats/pkg/fetcher"
	"github.com/dtnitsch/plugin-stats/pkg/storage"
)

const (
	DefaultExt     = ".png"
	DefaultTimeout = 15 * time.Second
)

// Downloader fetches image URLs referenced by a PluginRecord into dir.
type Downloader struct {
	fetcher *fetcher.Fetcher
	store   *storage.Storage
	dir     string
	timeout time.Duration
	logger  *slog.Logger
}

func NewDownloader(f *fetcher.Fetcher, store *storage.Storage, dir string, timeout time.Duration, logger *slog.Logger) *Downloader {
	if dir == "" {
		dir = models.DefaultImagesDir
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Downloader{fetcher: f, store: store, dir: dir, timeout: timeout, logger: logger}
}

// Extension returns the file extension of the URL's path, or DefaultExt.
// Query strings and fragments are ignored.
func Extension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DefaultExt
	}
	ext := path.Ext(u.Path)
	if ext == "" || ext == "." {
		return DefaultExt
	}
	return ext
}

// ImagePath returns <dir>/<pluginID>_<kind><ext>.
func ImagePath(dir, pluginID string, kind models.ImageKind, rawURL string) string {
	return filepath.Join(dir, pluginID+"_"+string(kind)+Extension(rawURL))
}

// DownloadWithArtifacts saves both images for a plugin and returns their local
// paths plus a description of every file written.
// A nil record yields empty results without any request.
func (d *Downloader) DownloadWithArtifacts(ctx context.Context, pluginID string, record *models.PluginRecord) (models.ImagePaths, []models.ImageArtifact) {
	var paths models.ImagePaths
	if record == nil {
		return paths, nil
	}

	var artifacts []models.ImageArtifact
	if a, ok := d.downloadOne(ctx, pluginID, models.ImageKindIcon, record.IconURL); ok {
		paths.Icon = a.FilePath
		artifacts = append(artifacts, a)
	}
	if a, ok := d.downloadOne(ctx, pluginID, models.ImageKindScreenshot, record.ScreenshotURL); ok {
		paths.Screenshot = a.FilePath
		artifacts = append(artifacts, a)
	}
	return paths, artifacts
}

func (d *Downloader) downloadOne(ctx context.Context, pluginID string, kind models.ImageKind, rawURL string) (models.ImageArtifact, bool) {
	if rawURL == "" {
		return models.ImageArtifact{}, false
	}

	cleaned, err := common.CleanURL(rawURL)
	if err != nil {
		d.logger.Warn("⚠️ Skipping image with invalid URL", "plugin_id", pluginID, "kind", kind, "url", rawURL, "error", err)
		return models.ImageArtifact{}, false
	}

	data, err := d.fetcher.GetBytes(ctx, cleaned, d.timeout)
	if err != nil {
		d.logger.Warn("⚠️ Failed to download image", "plugin_id", pluginID, "kind", kind, "url", cleaned, "error", err)
		return models.ImageArtifact{}, false
	}

	filePath := ImagePath(d.dir, pluginID, kind, cleaned)
	if err := d.store.SaveFile(filePath, data); err != nil {
		d.logger.Warn("⚠️ Failed to save image", "plugin_id", pluginID, "kind", kind, "path", filePath, "error", err)
		return models.ImageArtifact{}, false
	}

	d.logger.Info("Downloaded image", "plugin_id", pluginID, "kind", kind, "path", filePath, "size_bytes", len(data))
	return models.ImageArtifact{
		PluginID:    pluginID,
		Kind:        kind,
		SourceURL:   cleaned,
		FilePath:    filePath,
		ContentHash: common.ContentHash(data),
		SizeBytes:   int64(len(data)),
	}, true
}
