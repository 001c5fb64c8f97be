// Package config loads the plugin list and section settings from disk.
package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dtnitsch/plugin-stats/models"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "plugins.env"

const (
	KeyPluginIDs    = "PLUGIN_IDS"
	KeySectionTitle = "SECTION_TITLE"
	KeyImagesDir    = "IMAGES_DIR"
)

// Load reads the config file at path. A missing file is not an error:
// the default config is returned with found=false.
func Load(path string) (models.PluginConfig, bool, error) {
	cfg := models.DefaultPluginConfig()

	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, false, nil
	}
	if err != nil {
		return cfg, false, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = ParseYAML(data)
	default:
		cfg, err = ParseEnv(data)
	}
	if err != nil {
		return models.DefaultPluginConfig(), true, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, true, nil
}

// ParseEnv parses the line-oriented KEY=VALUE format.
// Blank lines, lines starting with '#', lines without '=' and unknown keys are skipped.
func ParseEnv(data []byte) (models.PluginConfig, error) {
	cfg := models.DefaultPluginConfig()

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case KeyPluginIDs:
			cfg.PluginIDs = ParsePluginIDs(value)
		case KeySectionTitle:
			if value != "" {
				cfg.SectionTitle = value
			}
		case KeyImagesDir:
			if value != "" {
				cfg.ImagesDir = value
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("failed to scan config: %w", err)
	}

	return cfg, nil
}

// yamlConfig accepts plugin_ids either as a list or as a comma-separated string.
type yamlConfig struct {
	PluginIDs    yaml.Node `yaml:"plugin_ids"`
	SectionTitle string    `yaml:"section_title"`
	ImagesDir    string    `yaml:"images_dir"`
}

// ParseYAML parses the YAML flavour of the config file.
func ParseYAML(data []byte) (models.PluginConfig, error) {
	cfg := models.DefaultPluginConfig()

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, err
	}

	switch raw.PluginIDs.Kind {
	case yaml.ScalarNode:
		cfg.PluginIDs = ParsePluginIDs(raw.PluginIDs.Value)
	case yaml.SequenceNode:
		var ids []string
		if err := raw.PluginIDs.Decode(&ids); err != nil {
			return cfg, fmt.Errorf("plugin_ids: %w", err)
		}
		cfg.PluginIDs = ParsePluginIDs(strings.Join(ids, ","))
	case 0:
		// key absent
	default:
		return cfg, fmt.Errorf("plugin_ids: expected a list or a comma-separated string")
	}

	if title := strings.TrimSpace(raw.SectionTitle); title != "" {
		cfg.SectionTitle = title
	}
	if dir := strings.TrimSpace(raw.ImagesDir); dir != "" {
		cfg.ImagesDir = dir
	}
	return cfg, nil
}

// ParsePluginIDs splits a comma-separated list, trimming entries and dropping empties.
func ParsePluginIDs(value string) []string {
	ids := []string{}
	for _, id := range strings.Split(value, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
