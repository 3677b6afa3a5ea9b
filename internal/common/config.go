package common

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Site        SiteConfig      `toml:"site"`
	Crawl       CrawlConfig     `toml:"crawl"`
	Storage     StorageConfig   `toml:"storage"`
	Embedding   EmbeddingConfig `toml:"embedding"`
	Webhook     WebhookConfig   `toml:"webhook"`
	Analytics   AnalyticsConfig `toml:"analytics"`
	Logging     LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// SiteConfig describes the target site the sidecar fronts
type SiteConfig struct {
	URL         string `toml:"url" validate:"required,url"`
	Lang        string `toml:"lang"`
	Description string `toml:"description"`
}

// Name returns the site name derived from the site URL host
func (s SiteConfig) Name() string {
	u, err := url.Parse(s.URL)
	if err != nil {
		return s.URL
	}
	return u.Host
}

type CrawlConfig struct {
	Interval int `toml:"interval" validate:"gt=0"` // Seconds between re-crawls
	MaxPages int `toml:"max_pages" validate:"gt=0"`
}

type StorageConfig struct {
	Badger        BadgerConfig `toml:"badger"`
	TombstonePath string       `toml:"tombstone_path"` // JSON file recording deleted URLs
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type EmbeddingConfig struct {
	Provider string `toml:"provider"` // "local" or "openai"
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"` // Only used by the openai provider
}

type WebhookConfig struct {
	Secret string `toml:"secret"` // Empty disables webhook auth
}

type AnalyticsConfig struct {
	Provider string `toml:"provider"` // "none", "umami", or "ga4"
	URL      string `toml:"url"`
	SiteID   string `toml:"site_id"`
	APIKey   string `toml:"api_key"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Site: SiteConfig{
			Lang: "en",
		},
		Crawl: CrawlConfig{
			Interval: 3600,
			MaxPages: 500,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/index",
			},
			TombstonePath: "./data/tombstones.json",
		},
		Embedding: EmbeddingConfig{
			Provider: "local",
			Model:    "all-MiniLM-L6-v2",
		},
		Analytics: AnalyticsConfig{
			Provider: "none",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if siteURL := os.Getenv("SITE_URL"); siteURL != "" {
		config.Site.URL = siteURL
	}
	if lang := os.Getenv("SITE_LANG"); lang != "" {
		config.Site.Lang = lang
	}
	if description := os.Getenv("SITE_DESCRIPTION"); description != "" {
		config.Site.Description = description
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if interval := os.Getenv("CRAWL_INTERVAL"); interval != "" {
		if i, err := strconv.Atoi(interval); err == nil {
			config.Crawl.Interval = i
		}
	}
	if maxPages := os.Getenv("MAX_PAGES"); maxPages != "" {
		if m, err := strconv.Atoi(maxPages); err == nil {
			config.Crawl.MaxPages = m
		}
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		config.Embedding.Model = model
	}
	if provider := os.Getenv("EMBEDDING_PROVIDER"); provider != "" {
		config.Embedding.Provider = provider
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.Embedding.APIKey = key
	}
	if secret := os.Getenv("OPENFEEDER_WEBHOOK_SECRET"); secret != "" {
		config.Webhook.Secret = secret
	}
	if provider := os.Getenv("ANALYTICS_PROVIDER"); provider != "" {
		config.Analytics.Provider = provider
	}
	if analyticsURL := os.Getenv("ANALYTICS_URL"); analyticsURL != "" {
		config.Analytics.URL = analyticsURL
	}
	if siteID := os.Getenv("ANALYTICS_SITE_ID"); siteID != "" {
		config.Analytics.SiteID = siteID
	}
	if apiKey := os.Getenv("ANALYTICS_API_KEY"); apiKey != "" {
		config.Analytics.APIKey = apiKey
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		config.Storage.Badger.Path = dataDir + "/index"
		config.Storage.TombstonePath = dataDir + "/tombstones.json"
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks the configuration for required values
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
