package update

import (
	"io"

	"github.com/dtnitsch/plugin-stats/models"
)

// Options are the resolved flags for one update run.
type Options struct {
	models.RunConfig

	// Overrides applied on top of the config file when non-empty.
	PluginIDs    []string
	SectionTitle string
	ImagesDir    string

	// Out receives the rendered document in dry-run mode.
	Out io.Writer
}

// Result holds the outcome for one plugin.
type Result struct {
	PluginID  string
	Record    *models.PluginRecord
	Error     error
	Images    models.ImagePaths
	Artifacts []models.ImageArtifact
	Fragment  string
}

// Summary describes a finished run.
type Summary struct {
	Config   models.PluginConfig
	Results  []Result
	Document string
	Written  bool
	RunID    int64
}

func (s *Summary) Counts() (success, failed int) {
	for _, r := range s.Results {
		if r.Record != nil {
			success++
		} else {
			failed++
		}
	}
	return success, failed
}
