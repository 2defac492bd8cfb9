// Package settings fetches per-workspace bot configuration from the intern
// settings service. Any transport failure or non-OK response degrades to the
// single built-in default; configuration problems never surface to a contact
// as an error.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/my21staff/SarahEngine/internal/models"
)

// Defaults for the settings client.
const (
	// DefaultFetchTimeout bounds each settings request.
	DefaultFetchTimeout = 5 * time.Second
	// DefaultCacheTTL is how long a fetched configuration is reused.
	DefaultCacheTTL = 5 * time.Minute
)

// Opts holds configuration options for the settings client.
type Opts struct {
	BaseURL    string
	HTTPClient *http.Client
	CacheTTL   time.Duration
}

// Option defines a configuration option for the settings client.
type Option func(*Opts)

// WithBaseURL sets the base URL of the intern settings service.
func WithBaseURL(baseURL string) Option {
	return func(o *Opts) { o.BaseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = client }
}

// WithCacheTTL sets how long fetched settings are cached per workspace.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.CacheTTL = ttl }
}

type cachedSettings struct {
	settings  models.WorkspaceBotSettings
	fetchedAt time.Time
}

// Client fetches WorkspaceBotSettings with a small per-workspace TTL cache.
// A nil Client is usable and always returns the defaults.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cacheTTL   time.Duration

	mu    sync.RWMutex
	cache map[string]cachedSettings
}

// NewClient creates a settings client. A base URL is required.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		slog.Error("settings.NewClient: base URL not set")
		return nil, fmt.Errorf("settings base URL not set")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultFetchTimeout}
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		cacheTTL:   ttl,
		cache:      make(map[string]cachedSettings),
	}, nil
}

// Fetch returns the bot settings for a workspace. It never fails: transport
// errors, non-OK statuses, and malformed bodies all degrade to
// models.DefaultWorkspaceBotSettings.
func (c *Client) Fetch(ctx context.Context, workspaceID string) models.WorkspaceBotSettings {
	if c == nil || workspaceID == "" {
		return models.DefaultWorkspaceBotSettings()
	}

	c.mu.RLock()
	cached, ok := c.cache[workspaceID]
	c.mu.RUnlock()
	if ok && time.Since(cached.fetchedAt) < c.cacheTTL {
		return cached.settings
	}

	fetched, err := c.fetch(ctx, workspaceID)
	if err != nil {
		slog.Warn("settings.Fetch: falling back to defaults", "error", err, "workspace_id", workspaceID)
		return models.DefaultWorkspaceBotSettings()
	}

	c.mu.Lock()
	c.cache[workspaceID] = cachedSettings{settings: fetched, fetchedAt: time.Now()}
	c.mu.Unlock()
	return fetched
}

// fetch performs the raw HTTP request without fallback semantics.
func (c *Client) fetch(ctx context.Context, workspaceID string) (models.WorkspaceBotSettings, error) {
	endpoint := fmt.Sprintf("%s/api/workspaces/%s/intern-config", c.baseURL, workspaceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.WorkspaceBotSettings{}, fmt.Errorf("failed to build settings request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.WorkspaceBotSettings{}, fmt.Errorf("settings request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return models.WorkspaceBotSettings{}, fmt.Errorf("settings service returned status %d", resp.StatusCode)
	}

	var settings models.WorkspaceBotSettings
	if err := json.NewDecoder(resp.Body).Decode(&settings); err != nil {
		return models.WorkspaceBotSettings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	settings.WorkspaceID = workspaceID
	applyDefaults(&settings)
	return settings, nil
}

// applyDefaults fills omitted fields from the default configuration so a
// sparse workspace document still yields a complete settings object.
func applyDefaults(s *models.WorkspaceBotSettings) {
	defaults := models.DefaultWorkspaceBotSettings()
	if s.Persona.Name == "" {
		s.Persona.Name = defaults.Persona.Name
	}
	if s.Persona.Style == "" {
		s.Persona.Style = defaults.Persona.Style
	}
	if s.Persona.Language == "" {
		s.Persona.Language = defaults.Persona.Language
	}
	if len(s.Persona.ToneTags) == 0 {
		s.Persona.ToneTags = defaults.Persona.ToneTags
	}
	if s.Persona.GreetingStyle == "" {
		s.Persona.GreetingStyle = defaults.Persona.GreetingStyle
	}
	if s.Behavior.AutoRespond == nil {
		s.Behavior.AutoRespond = defaults.Behavior.AutoRespond
	}
	if len(s.Behavior.HandoffKeywords) == 0 {
		s.Behavior.HandoffKeywords = defaults.Behavior.HandoffKeywords
	}
	if s.Behavior.QuietHoursStart == "" {
		s.Behavior.QuietHoursStart = defaults.Behavior.QuietHoursStart
	}
	if s.Behavior.QuietHoursEnd == "" {
		s.Behavior.QuietHoursEnd = defaults.Behavior.QuietHoursEnd
	}
	if s.Behavior.MaxMessagesBeforeHum == 0 {
		s.Behavior.MaxMessagesBeforeHum = defaults.Behavior.MaxMessagesBeforeHum
	}
	if s.Response.MaxLength == 0 {
		s.Response.MaxLength = defaults.Response.MaxLength
	}
	if s.Response.EmojiLevel == "" {
		s.Response.EmojiLevel = defaults.Response.EmojiLevel
	}
	if s.Response.ReplyDelay == "" {
		s.Response.ReplyDelay = defaults.Response.ReplyDelay
	}
}
