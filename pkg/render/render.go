// Package render turns plugin records into markdown fragments for the README.
package render

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/plugin-stats/models"
	"github.com/dtnitsch/plugin-stats/pkg/fetcher"
	"github.com/dustin/go-humanize"
)

const (
	DefaultName        = "Unknown Plugin"
	DefaultDescription = "No description available"
)

const sectionTemplate = `## {{if .Icon}}<img src="{{.Icon}}" alt="Plugin icon" width="32"/> {{end}}[{{.Name}}]({{.PageURL}})
{{if .Screenshot}}
![Plugin screenshot]({{.Screenshot}})
{{- end}}
### Description
{{.Description}}

### 📊 Statistics

| Metric | Value |
|--------|-------|
| Installs | {{comma .Installs}} |
| Forks | {{comma .Forks}} |

---
`

var tmpl = template.Must(template.New("section").Funcs(template.FuncMap{
	"comma": humanize.Comma,
}).Parse(sectionTemplate))

// sectionData is the flattened view the template renders.
type sectionData struct {
	Name        string
	PageURL     string
	Icon        string
	Screenshot  string
	Description string
	Installs    int64
	Forks       int64
}

// Placeholder is emitted for plugins whose data could not be fetched.
// Automated checks grep for this exact string.
func Placeholder(pluginID string) string {
	return fmt.Sprintf("<!-- Plugin data unavailable for %s -->", pluginID)
}

// Section renders one plugin. Local image paths win over remote URLs.
func Section(record *models.PluginRecord, pluginID string, paths models.ImagePaths) (string, error) {
	if record == nil {
		return Placeholder(pluginID), nil
	}

	data := sectionData{
		Name:        strings.TrimSpace(record.Name),
		PageURL:     fetcher.PageURL(pluginID),
		Icon:        imageSource(paths.Icon, record.IconURL),
		Screenshot:  imageSource(paths.Screenshot, record.ScreenshotURL),
		Description: PlainText(record.AuthorBio.Description),
		Installs:    record.Stats.Installs,
		Forks:       record.Stats.Forks,
	}
	if data.Name == "" {
		data.Name = DefaultName
	}
	if data.Description == "" {
		data.Description = DefaultDescription
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render plugin %s: %w", pluginID, err)
	}
	return buf.String(), nil
}

func imageSource(localPath, remoteURL string) string {
	if localPath != "" {
		return filepath.ToSlash(localPath)
	}
	return strings.TrimSpace(remoteURL)
}

// Join concatenates fragments separated by a blank line.
func Join(fragments []string) string {
	trimmed := make([]string, 0, len(fragments))
	for _, f := range fragments {
		trimmed = append(trimmed, strings.Trim(f, "\n"))
	}
	return strings.Join(trimmed, "\n\n")
}

var (
	htmlTag    = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
	lineBreak  = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockClose = regexp.MustCompile(`(?i)</(p|div|li|h[1-6])>`)
)

// PlainText flattens rich-text descriptions into markdown-safe text.
// Input without HTML tags is only trimmed.
func PlainText(description string) string {
	description = strings.TrimSpace(description)
	if !htmlTag.MatchString(description) {
		return description
	}

	description = lineBreak.ReplaceAllString(description, "\n")
	description = blockClose.ReplaceAllString(description, "$0\n")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
	if err != nil {
		return htmlTag.ReplaceAllString(description, "")
	}
	doc.Find("script, style").Remove()

	var paragraphs []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
