package models

// ImageKind names the two images a plugin can reference.
type ImageKind string

const (
	ImageKindIcon       ImageKind = "icon"
	ImageKindScreenshot ImageKind = "screenshot"
)

// ImagePaths holds local copies of a plugin's images.
// An empty field means there is no local copy.
type ImagePaths struct {
	Icon       string
	Screenshot string
}

// ImageArtifact describes one image written to disk.
type ImageArtifact struct {
	PluginID    string
	Kind        ImageKind
	SourceURL   string
	FilePath    string
	ContentHash string
	SizeBytes   int64
}
