// Package fetcher retrieves plugin metadata and image bytes from the marketplace.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dtnitsch/plugin-stats/models"
	"github.com/dtnitsch/plugin-stats/pkg/caching"
)

const (
	DefaultBaseURL = "https://usetrmnl.com/recipes"
	DefaultTimeout = 10 * time.Second
)

var (
	// ErrStatus is wrapped by errors for non-2xx responses.
	ErrStatus = errors.New("unexpected status code")
	// ErrMissingData means the payload had no "data" object.
	ErrMissingData = errors.New("response has no data object")
)

type Fetcher struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
	cache   *caching.Cache
	logger  *slog.Logger
}

type Option func(*Fetcher)

func WithBaseURL(baseURL string) Option {
	return func(f *Fetcher) {
		if baseURL != "" {
			f.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithCache makes FetchPlugin consult c before going to the network.
func WithCache(c *caching.Cache) Option {
	return func(f *Fetcher) { f.cache = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  &http.Client{},
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// PluginURL returns the metadata endpoint for a plugin id.
func (f *Fetcher) PluginURL(pluginID string) string {
	return fmt.Sprintf("%s/%s.json", f.baseURL, url.PathEscape(pluginID))
}

// PageURL returns the public marketplace page for a plugin id.
func PageURL(pluginID string) string {
	return fmt.Sprintf("%s/%s", DefaultBaseURL, url.PathEscape(pluginID))
}

// GetBytes performs a GET bounded by timeout and returns the full body.
func (f *Fetcher) GetBytes(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return bodyBytes, nil
}

// FetchPlugin retrieves and decodes the metadata for one plugin.
func (f *Fetcher) FetchPlugin(ctx context.Context, pluginID string) (*models.PluginRecord, error) {
	if strings.TrimSpace(pluginID) == "" {
		return nil, fmt.Errorf("empty plugin id")
	}

	pluginURL := f.PluginURL(pluginID)
	if f.cache != nil {
		if body, ok := f.cache.Get(pluginURL); ok {
			record, err := DecodePlugin(body)
			if err == nil {
				f.logger.Info("Using cached plugin data", "plugin_id", pluginID)
				return record, nil
			}
			_ = f.cache.Delete(pluginURL) // Corrupt entry, refetch
		}
	}

	body, err := f.GetBytes(ctx, pluginURL, f.timeout)
	if err != nil {
		return nil, err
	}

	record, err := DecodePlugin(body)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Set(pluginURL, body); err != nil {
			f.logger.Warn("Failed to cache plugin data", "plugin_id", pluginID, "error", err)
		}
	}
	return record, nil
}

// DecodePlugin parses a recipes payload. Only the presence of "data" is checked.
func DecodePlugin(body []byte) (*models.PluginRecord, error) {
	var resp models.PluginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse plugin JSON: %w", err)
	}
	if resp.Data == nil {
		return nil, ErrMissingData
	}
	return resp.Data, nil
}
