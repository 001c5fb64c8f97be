// Package readme rewrites the marker-delimited statistics region of a markdown file.
package readme

import (
	"fmt"
	"strings"
	"time"

	"github.com/dtnitsch/plugin-stats/pkg/storage"
)

const (
	StartMarker     = "<!-- PLUGIN_STATS_START -->"
	EndMarker       = "<!-- PLUGIN_STATS_END -->"
	DefaultPath     = "README.md"
	DefaultDocument = "# Project README\n\n"
	TimestampLayout = "2006-01-02 15:04:05 UTC"
)

// BuildRegion assembles the full region, markers included.
func BuildRegion(title, body string, now time.Time) string {
	return fmt.Sprintf("%s\n## %s\n\n*Last updated: %s*\n\n%s\n%s",
		StartMarker, title, now.UTC().Format(TimestampLayout), body, EndMarker)
}

// findRegion returns the span from the first start marker through the first
// end marker that follows it.
func findRegion(content string) (start, end int, ok bool) {
	start = strings.Index(content, StartMarker)
	if start < 0 {
		return 0, 0, false
	}
	afterStart := start + len(StartMarker)
	rel := strings.Index(content[afterStart:], EndMarker)
	if rel < 0 {
		return 0, 0, false
	}
	return start, afterStart + rel + len(EndMarker), true
}

// Apply replaces the existing region with region, or appends region when the
// document has no complete marker pair. Complete pairs after the first one are
// dropped so the document ends up with exactly one region.
func Apply(content, region string) string {
	start, end, ok := findRegion(content)
	if !ok {
		return content + "\n\n" + region + "\n"
	}
	return content[:start] + region + dropRegions(content[end:])
}

func dropRegions(rest string) string {
	for {
		start, end, ok := findRegion(rest)
		if !ok {
			return rest
		}
		rest = strings.TrimRight(rest[:start], "\n") + rest[end:]
	}
}

// CountRegions reports how many complete marker pairs content holds.
func CountRegions(content string) int {
	n := 0
	for {
		_, end, ok := findRegion(content)
		if !ok {
			return n
		}
		n++
		content = content[end:]
	}
}

// Updater reads, rewrites and saves one document.
type Updater struct {
	store *storage.Storage
	path  string
	now   func() time.Time
}

func NewUpdater(store *storage.Storage, path string) *Updater {
	if path == "" {
		path = DefaultPath
	}
	return &Updater{store: store, path: path, now: time.Now}
}

func (u *Updater) Path() string {
	return u.path
}

// Render returns the updated document without writing it.
func (u *Updater) Render(body, title string) (string, error) {
	data, _, err := u.store.ReadFileOr(u.path, []byte(DefaultDocument))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", u.path, err)
	}
	return Apply(string(data), BuildRegion(title, body, u.now())), nil
}

// Update rewrites the document in place. The write is not atomic.
func (u *Updater) Update(body, title string) error {
	updated, err := u.Render(body, title)
	if err != nil {
		return err
	}
	if err := u.store.SaveFile(u.path, []byte(updated)); err != nil {
		return fmt.Errorf("failed to write %s: %w", u.path, err)
	}
	return nil
}
