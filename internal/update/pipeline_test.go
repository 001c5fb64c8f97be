package update

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dtnitsch/plugin-stats/models"
	"github.com/dtnitsch/plugin-stats/pkg/console"
	"github.com/dtnitsch/plugin-stats/pkg/db"
	"github.com/dtnitsch/plugin-stats/pkg/readme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// marketplace fakes the recipes API and the image CDN.
type marketplace struct {
	*httptest.Server
	mu       sync.Mutex
	requests []string
}

func newMarketplace(t *testing.T) *marketplace {
	t.Helper()
	m := &marketplace{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, r.URL.Path)
		m.mu.Unlock()

		switch r.URL.Path {
		case "/recipes/12345.json":
			fmt.Fprintf(w, `{"data":{"name":"Weather Now","icon_url":"%[1]s/cdn/icon.jpg","screenshot_url":"%[1]s/cdn/render","author_bio":{"description":"<p>Current conditions.</p>"},"stats":{"installs":1234,"forks":7}}}`, m.URL)
		case "/recipes/777.json":
			fmt.Fprint(w, `{"data":{"stats":{"installs":5}}}`)
		case "/cdn/icon.jpg":
			_, _ = w.Write([]byte("jpeg"))
		case "/cdn/render":
			_, _ = w.Write([]byte("png"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *marketplace) requested(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.requests {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}

type fixture struct {
	dir     string
	opts    Options
	out     *bytes.Buffer
	console *bytes.Buffer
	market  *marketplace
}

func newFixture(t *testing.T, configContent string) *fixture {
	t.Helper()
	dir := t.TempDir()
	m := newMarketplace(t)

	configPath := filepath.Join(dir, "plugins.env")
	if configContent != "" {
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))
	}

	fx := &fixture{dir: dir, out: &bytes.Buffer{}, console: &bytes.Buffer{}, market: m}
	fx.opts = Options{
		RunConfig: models.RunConfig{
			ConfigPath:   configPath,
			ReadmePath:   filepath.Join(dir, "README.md"),
			Timeout:      2 * time.Second,
			ImageTimeout: 2 * time.Second,
			BaseURL:      m.URL + "/recipes",
		},
		ImagesDir: filepath.Join(dir, "images"),
		Out:       fx.out,
	}
	return fx
}

func (fx *fixture) run(t *testing.T) *Summary {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	summary, err := Run(context.Background(), logger, console.NewPrinter(fx.console, false), fx.opts)
	require.NoError(t, err)
	return summary
}

func (fx *fixture) readme(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(fx.opts.ReadmePath)
	require.NoError(t, err)
	return string(data)
}

func TestRun_UpdatesReadme(t *testing.T) {
	fx := newFixture(t, "PLUGIN_IDS=12345, broken ,777\nSECTION_TITLE=Our Plugins\n")
	require.NoError(t, os.WriteFile(fx.opts.ReadmePath, []byte("# My Project\n\nIntro.\n"), 0o644))

	summary := fx.run(t)
	require.Len(t, summary.Results, 3)
	assert.True(t, summary.Written)

	success, failed := summary.Counts()
	assert.Equal(t, 2, success)
	assert.Equal(t, 1, failed)

	content := fx.readme(t)
	assert.True(t, strings.HasPrefix(content, "# My Project\n\nIntro.\n\n\n"+readme.StartMarker+"\n## Our Plugins\n"))
	assert.Contains(t, content, "[Weather Now](https://usetrmnl.com/recipes/12345)")
	assert.Contains(t, content, "| Installs | 1,234 |")
	assert.Contains(t, content, "| Forks | 7 |")
	assert.Contains(t, content, "Current conditions.")
	assert.Contains(t, content, "\n<!-- Plugin data unavailable for broken -->\n")
	assert.Contains(t, content, "[Unknown Plugin](https://usetrmnl.com/recipes/777)")
	assert.Contains(t, content, "| Installs | 5 |")

	assert.Contains(t, content, `<img src="images/12345_icon.jpg"`)
	assert.Contains(t, content, "![Plugin screenshot](images/12345_screenshot.png)")
	assert.FileExists(t, filepath.Join(fx.opts.ImagesDir, "12345_icon.jpg"))
	assert.FileExists(t, filepath.Join(fx.opts.ImagesDir, "12345_screenshot.png"))

	// Fragments keep config order
	assert.Less(t, strings.Index(content, "Weather Now"), strings.Index(content, "unavailable for broken"))
	assert.Less(t, strings.Index(content, "unavailable for broken"), strings.Index(content, "Unknown Plugin"))

	assert.Contains(t, fx.console.String(), "📋 Tracking 3 plugins: 12345, broken, 777")
	assert.Contains(t, fx.console.String(), "✅")
	assert.Contains(t, fx.console.String(), "2 plugins rendered, 1 unavailable")
}

func TestRun_FailedFetchMakesNoImageRequests(t *testing.T) {
	fx := newFixture(t, "PLUGIN_IDS=broken\n")
	summary := fx.run(t)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, "<!-- Plugin data unavailable for broken -->", summary.Results[0].Fragment)
	assert.Error(t, summary.Results[0].Error)
	assert.Empty(t, fx.market.requested("/cdn/"))
	assert.Contains(t, fx.console.String(), "❌")
}

func TestRun_NoPluginIDsLeavesDocumentAlone(t *testing.T) {
	fx := newFixture(t, "SECTION_TITLE=Stats\n")

	summary := fx.run(t)
	assert.Empty(t, summary.Results)
	assert.False(t, summary.Written)
	assert.NoFileExists(t, fx.opts.ReadmePath)
	assert.Empty(t, fx.market.requested("/"))
	assert.Contains(t, fx.console.String(), "❌ No plugin IDs found")
}

func TestRun_MissingConfigWarnsAndExits(t *testing.T) {
	fx := newFixture(t, "")

	summary := fx.run(t)
	assert.False(t, summary.Written)
	assert.Equal(t, models.DefaultSectionTitle, summary.Config.SectionTitle)
	assert.Contains(t, fx.console.String(), "file not found. Using default configuration.")
	assert.NoFileExists(t, fx.opts.ReadmePath)
}

func TestRun_PluginsFlagOverridesConfig(t *testing.T) {
	fx := newFixture(t, "")
	fx.opts.PluginIDs = []string{"777"}

	summary := fx.run(t)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "777", summary.Results[0].PluginID)
	assert.True(t, summary.Written)
}

func TestRun_SecondRunReplacesInPlace(t *testing.T) {
	fx := newFixture(t, "PLUGIN_IDS=12345,777\n")

	fx.run(t)
	first := fx.readme(t)
	fx.run(t)
	second := fx.readme(t)

	assert.Equal(t, 1, strings.Count(second, readme.StartMarker))
	assert.Equal(t, 1, strings.Count(second, readme.EndMarker))
	assert.Equal(t, stripTimestamp(first), stripTimestamp(second))
}

func stripTimestamp(doc string) string {
	lines := strings.Split(doc, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if !strings.HasPrefix(l, "*Last updated: ") {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

func TestRun_SkipImagesUsesRemoteURLs(t *testing.T) {
	fx := newFixture(t, "PLUGIN_IDS=12345\n")
	fx.opts.SkipImages = true

	fx.run(t)
	assert.Contains(t, fx.readme(t), `<img src="`+fx.market.URL+`/cdn/icon.jpg"`)
	assert.Empty(t, fx.market.requested("/cdn/"))
	assert.NoDirExists(t, fx.opts.ImagesDir)
}

func TestRun_DryRunPrintsDocument(t *testing.T) {
	fx := newFixture(t, "PLUGIN_IDS=777\n")
	require.NoError(t, os.WriteFile(fx.opts.ReadmePath, []byte("# Keep\n"), 0o644))
	fx.opts.DryRun = true

	summary := fx.run(t)
	assert.False(t, summary.Written)
	assert.Equal(t, "# Keep\n", fx.readme(t))
	assert.Equal(t, summary.Document, fx.out.String())
	assert.Contains(t, fx.out.String(), readme.StartMarker)
}

func TestRun_RecordsHistory(t *testing.T) {
	fx := newFixture(t, "PLUGIN_IDS=12345,broken\n")
	fx.opts.HistoryDB = filepath.Join(fx.dir, "history.db")

	summary := fx.run(t)
	require.NotZero(t, summary.RunID)

	database, err := db.Open(fx.opts.HistoryDB)
	require.NoError(t, err)
	defer database.Close()

	run, err := database.GetRun(summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, 2, run.PluginCount)
	assert.Equal(t, 1, run.SuccessCount)
	assert.Equal(t, 1, run.FailedCount)

	snapshots, err := database.GetRunSnapshots(summary.RunID)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.EqualValues(t, 1234, snapshots[0].Installs)
	assert.False(t, snapshots[1].Success)
	assert.NotEmpty(t, snapshots[1].ErrorMessage)

	n, err := database.CountImageArtifacts(summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRun_CacheAvoidsSecondRequest(t *testing.T) {
	fx := newFixture(t, "PLUGIN_IDS=777\n")
	fx.opts.CacheDir = filepath.Join(fx.dir, "cache")
	fx.opts.CacheTTL = time.Hour

	fx.run(t)
	fx.run(t)
	assert.Len(t, fx.market.requested("/recipes/"), 1)
}

func TestRun_ImageLinksRelativeToReadme(t *testing.T) {
	fx := newFixture(t, "PLUGIN_IDS=12345\n")
	fx.opts.ReadmePath = filepath.Join(fx.dir, "docs", "README.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(fx.opts.ReadmePath), 0o755))

	fx.run(t)
	content := fx.readme(t)
	assert.Contains(t, content, `<img src="../images/12345_icon.jpg"`)
	assert.Contains(t, content, "![Plugin screenshot](../images/12345_screenshot.png)")
	assert.FileExists(t, filepath.Join(fx.dir, "images", "12345_icon.jpg"))
}

func TestLinkPaths(t *testing.T) {
	tests := []struct {
		name   string
		readme string
		paths  models.ImagePaths
		want   models.ImagePaths
	}{
		{
			name:   "same directory",
			readme: "README.md",
			paths:  models.ImagePaths{Icon: filepath.Join("images", "1_icon.png")},
			want:   models.ImagePaths{Icon: filepath.Join("images", "1_icon.png")},
		},
		{
			name:   "readme in subdirectory",
			readme: filepath.Join("docs", "README.md"),
			paths: models.ImagePaths{
				Icon:       filepath.Join("images", "1_icon.png"),
				Screenshot: filepath.Join("images", "1_screenshot.jpg"),
			},
			want: models.ImagePaths{
				Icon:       filepath.Join("..", "images", "1_icon.png"),
				Screenshot: filepath.Join("..", "images", "1_screenshot.jpg"),
			},
		},
		{
			name:   "no local copies",
			readme: filepath.Join("docs", "README.md"),
			want:   models.ImagePaths{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, linkPaths(tt.readme, tt.paths))
		})
	}
}

func TestRun_CancelledContextLeavesDocumentUnchanged(t *testing.T) {
	fx := newFixture(t, "PLUGIN_IDS=12345,777\n")
	fx.run(t)
	before := fx.readme(t)
	require.Contains(t, before, "Weather Now")
	requests := len(fx.market.requested("/recipes/"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	summary, err := Run(ctx, logger, console.NewPrinter(fx.console, false), fx.opts)

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, summary.Written)
	assert.Equal(t, before, fx.readme(t))
	assert.Len(t, fx.market.requested("/recipes/"), requests)
	assert.Contains(t, fx.console.String(), "Update interrupted")
}
