package common

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"
)

// ContentHash computes the SHA256 of data as a hex string.
func ContentHash(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// CleanURL trims copy-paste artifacts from a URL taken from API data
// and checks that it is an absolute http(s) URL.
func CleanURL(rawURL string) (string, error) {
	cleaned := strings.TrimSpace(rawURL)
	cleaned = strings.Trim(cleaned, `"'<>`)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "", fmt.Errorf("empty URL")
	}
	if strings.Contains(cleaned, " ") {
		cleaned = strings.ReplaceAll(cleaned, " ", "%20")
	}

	parsed, err := url.Parse(cleaned)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URL %q has no host", rawURL)
	}
	return cleaned, nil
}
