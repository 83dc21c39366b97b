package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Provider environments
const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"
)

// Built-in endpoint defaults per environment. Both can be overridden
// explicitly, which the tests and local tile servers rely on.
const (
	SandboxBaseURL    = "https://sandbox.apis.eagleview.com"
	ProductionBaseURL = "https://apis.eagleview.com"

	SandboxTokenURL    = "https://sandbox.apicenter.eagleview.com/oauth2/default/v1/token"
	ProductionTokenURL = "https://apicenter.eagleview.com/oauth2/default/v1/token"
)

// Config holds the full runtime configuration for the aerial imagery
// service and CLI. Values come from the environment, optionally overlaid
// by a TOML file pointed at by AERIAL_CONFIG_FILE.
type Config struct {
	// Provider credentials
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`

	// Environment selects the provider endpoints: "sandbox" or "production"
	Environment string `toml:"environment"`

	// Optional explicit endpoint overrides
	BaseURL  string `toml:"base_url"`
	TokenURL string `toml:"token_url"`

	// Imagery defaults
	DefaultZoom int    `toml:"default_zoom"`
	GridSize    int    `toml:"grid_size"`
	TileFormat  string `toml:"tile_format"`
	TileQuality int    `toml:"tile_quality"`

	// Concurrency and quota protection
	MaxWorkers     int           `toml:"max_workers"`
	TilesPerSecond int           `toml:"tiles_per_second"`
	RequestTimeout time.Duration `toml:"-"`
	CacheEntries   int           `toml:"cache_entries"`

	// Service settings
	ListenAddr string `toml:"listen_addr"`

	// Telemetry (optional)
	PostHogKey  string `toml:"posthog_key"`
	PostHogHost string `toml:"posthog_host"`
}

// Default returns the built-in defaults before any environment or file
// values are applied.
func Default() *Config {
	return &Config{
		Environment:    EnvProduction,
		DefaultZoom:    19,
		GridSize:       4,
		TileFormat:     "IMAGE_FORMAT_JPEG",
		TileQuality:    90,
		MaxWorkers:     16,
		TilesPerSecond: 25,
		RequestTimeout: 45 * time.Second,
		CacheEntries:   2048,
		ListenAddr:     ":4600",
		PostHogHost:    "https://us.i.posthog.com",
	}
}

// Load builds a Config from defaults, an optional TOML file
// (AERIAL_CONFIG_FILE) and environment variables, in that order of
// precedence (environment wins).
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("AERIAL_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.ClientID = getenv("EAGLEVIEW_CLIENT_ID", cfg.ClientID)
	cfg.ClientSecret = getenv("EAGLEVIEW_CLIENT_SECRET", cfg.ClientSecret)
	cfg.Environment = getenv("EAGLEVIEW_ENVIRONMENT", cfg.Environment)
	cfg.BaseURL = getenv("EAGLEVIEW_BASE_URL", cfg.BaseURL)
	cfg.TokenURL = getenv("EAGLEVIEW_TOKEN_URL", cfg.TokenURL)

	cfg.DefaultZoom = getint("AERIAL_DEFAULT_ZOOM", cfg.DefaultZoom)
	cfg.GridSize = getint("AERIAL_GRID_SIZE", cfg.GridSize)
	cfg.TileQuality = getint("AERIAL_TILE_QUALITY", cfg.TileQuality)
	cfg.MaxWorkers = getint("AERIAL_MAX_WORKERS", cfg.MaxWorkers)
	cfg.TilesPerSecond = getint("AERIAL_TILES_PER_SECOND", cfg.TilesPerSecond)
	cfg.CacheEntries = getint("AERIAL_CACHE_ENTRIES", cfg.CacheEntries)
	cfg.ListenAddr = getenv("AERIAL_LISTEN_ADDR", cfg.ListenAddr)
	cfg.PostHogKey = getenv("AERIAL_POSTHOG_KEY", cfg.PostHogKey)
	cfg.PostHogHost = getenv("AERIAL_POSTHOG_HOST", cfg.PostHogHost)

	if secs := getint("AERIAL_REQUEST_TIMEOUT_SECONDS", 0); secs > 0 {
		cfg.RequestTimeout = time.Duration(secs) * time.Second
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that have a constrained domain.
func (c *Config) Validate() error {
	if c.Environment != EnvSandbox && c.Environment != EnvProduction {
		return fmt.Errorf("invalid environment %q: must be %q or %q", c.Environment, EnvSandbox, EnvProduction)
	}
	if c.GridSize < 1 {
		return fmt.Errorf("grid size %d must be at least 1", c.GridSize)
	}
	if c.TileQuality < 1 || c.TileQuality > 100 {
		return fmt.Errorf("tile quality %d out of range [1, 100]", c.TileQuality)
	}
	return nil
}

// IsConfigured reports whether provider credentials are present. When
// false the pipeline is never constructed and callers fall back to an
// alternative imagery source.
func (c *Config) IsConfigured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// ResolvedBaseURL returns the explicit BaseURL override or the
// environment default.
func (c *Config) ResolvedBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Environment == EnvSandbox {
		return SandboxBaseURL
	}
	return ProductionBaseURL
}

// ResolvedTokenURL returns the explicit TokenURL override or the
// environment default.
func (c *Config) ResolvedTokenURL() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	if c.Environment == EnvSandbox {
		return SandboxTokenURL
	}
	return ProductionTokenURL
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
