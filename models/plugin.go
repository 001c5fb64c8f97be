package models

// PluginResponse is the envelope returned by the recipes endpoint.
type PluginResponse struct {
	Data *PluginRecord `json:"data"`
}

// PluginRecord is the marketplace payload for one plugin.
// It only lives for the duration of a single loop iteration.
type PluginRecord struct {
	Name          string    `json:"name"`
	IconURL       string    `json:"icon_url"`
	ScreenshotURL string    `json:"screenshot_url"`
	AuthorBio     AuthorBio `json:"author_bio"`
	Stats         Stats     `json:"stats"`
}

type AuthorBio struct {
	Description string `json:"description"`
}

type Stats struct {
	Installs int64 `json:"installs"`
	Forks    int64 `json:"forks"`
}
