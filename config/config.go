// Package config holds motofit's runtime configuration.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/motofit/models"
)

// Config holds every tunable of the service and the CLI.
type Config struct {
	Catalog CatalogConfig `koanf:"catalog"`
	Server  ServerConfig  `koanf:"server"`
	Results ResultsConfig `koanf:"results"`
	Logging LoggingConfig `koanf:"logging"`
}

// CatalogConfig controls where the catalog comes from and how it is loaded.
type CatalogConfig struct {
	Source          string        `koanf:"source"` // local path or http(s) URL
	Timeout         time.Duration `koanf:"timeout"`
	MaxRetries      int           `koanf:"max_retries"`
	RetryBackoff    time.Duration `koanf:"retry_backoff"`
	RetryBackoffMax time.Duration `koanf:"retry_backoff_max"`
	UserAgent       string        `koanf:"user_agent"`
	Workers         int           `koanf:"workers"`
	BatchSize       int           `koanf:"batch_size"`
	BufferSize      int           `koanf:"buffer_size"`
	RefreshInterval time.Duration `koanf:"refresh_interval"` // 0 disables reloads
	ProgressLog     time.Duration `koanf:"progress_log"`     // 0 disables progress logging
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ResultsConfig controls pagination, caching and session state.
type ResultsConfig struct {
	PageSize        int           `koanf:"page_size"`
	CacheSize       int           `koanf:"cache_size"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	SessionCapacity int           `koanf:"session_capacity"`
	SessionTTL      time.Duration `koanf:"session_ttl"`
	RequiredColumns []string      `koanf:"required_columns"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // auto, text, json
}

// DefaultConfig returns defaults suited to the bundled demo catalog.
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Source:          "data/motofit_demo.csv",
			Timeout:         10 * time.Second,
			MaxRetries:      2,
			RetryBackoff:    200 * time.Millisecond,
			RetryBackoffMax: 2 * time.Second,
			UserAgent:       "motofit/1.0 (+https://github.com/aluiziolira/motofit)",
			Workers:         4,
			BatchSize:       64,
			BufferSize:      512,
			RefreshInterval: 0,
			ProgressLog:     5 * time.Second,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{},
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
		},
		Results: ResultsConfig{
			PageSize:        9,
			CacheSize:       256,
			CacheTTL:        5 * time.Minute,
			SessionCapacity: 10000,
			SessionTTL:      2 * time.Hour,
			RequiredColumns: []string{
				string(models.ColumnBrand),
				string(models.ColumnModel),
				string(models.ColumnPrice),
				string(models.ColumnSeatHeight),
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if err := c.Catalog.validate(); err != nil {
		return err
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if c.Server.RateLimitRequests < 0 {
		return fmt.Errorf("rate limit requests cannot be negative")
	}
	if c.Server.RateLimitRequests > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	if c.Results.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.Results.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}
	if c.Results.SessionCapacity <= 0 {
		return fmt.Errorf("session capacity must be positive")
	}
	if c.Results.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if _, err := c.Results.Columns(); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be debug, info, warn, or error")
	}
	switch c.Logging.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("log format must be auto, text, or json")
	}
	return nil
}

func (c *CatalogConfig) validate() error {
	if c.Source == "" {
		return fmt.Errorf("catalog source cannot be empty")
	}
	if IsRemote(c.Source) {
		parsedURL, err := url.Parse(c.Source)
		if err != nil {
			return fmt.Errorf("invalid catalog URL: %w", err)
		}
		if parsedURL.Host == "" {
			return fmt.Errorf("catalog URL must include a host")
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive")
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("refresh interval cannot be negative")
	}
	if c.ProgressLog < 0 {
		return fmt.Errorf("progress log interval cannot be negative")
	}
	return nil
}

// Columns resolves RequiredColumns into catalog columns.
func (r ResultsConfig) Columns() ([]models.Column, error) {
	known := models.AllColumns()
	out := make([]models.Column, 0, len(r.RequiredColumns))
	for _, name := range r.RequiredColumns {
		col := models.Column(strings.ToLower(strings.TrimSpace(name)))
		found := false
		for _, k := range known {
			if k == col {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown required column %q", name)
		}
		out = append(out, col)
	}
	return out, nil
}

// IsRemote reports whether a catalog source is an http(s) URL.
func IsRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
