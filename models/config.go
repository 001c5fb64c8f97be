// Package models defines data structures shared by the update pipeline.
package models

import "time"

const (
	DefaultSectionTitle = "🚀 Plugin Statistics"
	DefaultImagesDir    = "images"
)

// PluginConfig is loaded once at startup and passed explicitly to every stage.
type PluginConfig struct {
	PluginIDs    []string `yaml:"plugin_ids"`
	SectionTitle string   `yaml:"section_title"`
	ImagesDir    string   `yaml:"images_dir"`
}

// DefaultPluginConfig returns the configuration used when no config file exists.
func DefaultPluginConfig() PluginConfig {
	return PluginConfig{
		PluginIDs:    []string{},
		SectionTitle: DefaultSectionTitle,
		ImagesDir:    DefaultImagesDir,
	}
}

// RunConfig holds runtime options for the update command.
// All values come from CLI flags.
type RunConfig struct {
	ConfigPath   string
	ReadmePath   string
	SkipImages   bool
	DryRun       bool
	Timeout      time.Duration
	ImageTimeout time.Duration
	BaseURL      string
	CacheDir     string
	CacheTTL     time.Duration
	HistoryDB    string
}
