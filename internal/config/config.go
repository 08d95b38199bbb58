// ABOUTME: Configuration loading and parsing for coven-feeds
// ABOUTME: Supports TOML, YAML and JSON files with environment variable expansion and duration parsing

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults applied when a value is absent from the config file.
const (
	DefaultPostFormat   = "$title\n\n$url"
	DefaultURLCacheSize = 1000
	DefaultInterval     = 15 * time.Minute
	DefaultFetchTimeout = 30 * time.Second
	DefaultStoragePath  = "cache"
	DefaultMetricsAddr  = "127.0.0.1:9464"
	DefaultMetricsPath  = "/metrics"

	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config represents the complete coven-feeds configuration
type Config struct {
	General GeneralConfig `toml:"general" yaml:"general" json:"general"`
	Matrix  MatrixConfig  `toml:"matrix" yaml:"matrix" json:"matrix"`
	Storage StorageConfig `toml:"storage" yaml:"storage" json:"storage"`
	Metrics MetricsConfig `toml:"metrics" yaml:"metrics" json:"metrics"`
	Logging LoggingConfig `toml:"logging" yaml:"logging" json:"logging"`
	Feeds   []FeedConfig  `toml:"feeds" yaml:"feeds" json:"feeds"`
}

// GeneralConfig holds process-wide settings
type GeneralConfig struct {
	// OwnerID is the room that receives operator notices (malformed items, feed failures)
	OwnerID string `toml:"owner_id" yaml:"owner_id" json:"owner_id"`
	Debug   bool   `toml:"debug" yaml:"debug" json:"debug"`
	// DryRun logs rendered posts instead of sending them
	DryRun    bool   `toml:"dry_run" yaml:"dry_run" json:"dry_run"`
	UserAgent string `toml:"user_agent" yaml:"user_agent" json:"user_agent"`

	Interval     time.Duration `toml:"-" yaml:"-" json:"-"`
	FetchTimeout time.Duration `toml:"-" yaml:"-" json:"-"`

	// Raw string values for unmarshaling
	IntervalRaw     string `toml:"interval" yaml:"interval" json:"interval"`
	FetchTimeoutRaw string `toml:"fetch_timeout" yaml:"fetch_timeout" json:"fetch_timeout"`
}

// MatrixConfig holds Matrix account configuration
type MatrixConfig struct {
	Homeserver  string `toml:"homeserver" yaml:"homeserver" json:"homeserver"`
	UserID      string `toml:"user_id" yaml:"user_id" json:"user_id"`
	AccessToken string `toml:"access_token" yaml:"access_token" json:"access_token"`
	Username    string `toml:"username" yaml:"username" json:"username"`
	Password    string `toml:"password" yaml:"password" json:"password"`
	RecoveryKey string `toml:"recovery_key" yaml:"recovery_key" json:"recovery_key"`
}

// StorageConfig selects where URL caches are kept
type StorageConfig struct {
	Backend string `toml:"backend" yaml:"backend" json:"backend"` // file, sqlite
	// Path is the cache directory for the file backend or the database file for sqlite
	Path string `toml:"path" yaml:"path" json:"path"`
	// LedgerPath is an optional SQLite database for the delivery ledger when using the file backend
	LedgerPath string `toml:"ledger_path" yaml:"ledger_path" json:"ledger_path"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled" json:"enabled"`
	Addr    string `toml:"addr" yaml:"addr" json:"addr"`
	Path    string `toml:"path" yaml:"path" json:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level" json:"level"`
	Format string `toml:"format" yaml:"format" json:"format"`
}

// FeedConfig describes one feed and the chat it is posted to
type FeedConfig struct {
	URL        string `toml:"url" yaml:"url" json:"url"`
	ChatID     string `toml:"chat_id" yaml:"chat_id" json:"chat_id"`
	PostFormat string `toml:"post_format" yaml:"post_format" json:"post_format"`
	// URLCacheSize is a pointer so an explicit 0 survives defaulting
	URLCacheSize *int `toml:"url_cache_size" yaml:"url_cache_size" json:"url_cache_size"`
}

// CacheSize returns the configured URL cache capacity.
func (f FeedConfig) CacheSize() int {
	if f.URLCacheSize == nil {
		return DefaultURLCacheSize
	}
	return *f.URLCacheSize
}

// Load reads a configuration file from the given path and returns a parsed Config.
// The format is chosen by extension: .toml, .yaml/.yml or .json.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(filepath.Ext(path), data)
}

// Parse decodes config data in the format named by ext (".toml", ".yaml",
// ".yml" or ".json"), then applies defaults and validates it.
func Parse(ext string, data []byte) (*Config, error) {
	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := decode(strings.ToLower(ext), expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func decode(ext, data string, cfg *Config) error {
	switch ext {
	case ".toml":
		_, err := toml.Decode(data, cfg)
		return err
	case ".yaml", ".yml":
		return yaml.Unmarshal([]byte(data), cfg)
	case ".json":
		return json.Unmarshal([]byte(data), cfg)
	default:
		return fmt.Errorf("unsupported config format %q (use .toml, .yaml or .json)", ext)
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.General.IntervalRaw != "" {
		cfg.General.Interval, err = time.ParseDuration(cfg.General.IntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing interval %q: %w", cfg.General.IntervalRaw, err)
		}
	}

	if cfg.General.FetchTimeoutRaw != "" {
		cfg.General.FetchTimeout, err = time.ParseDuration(cfg.General.FetchTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing fetch_timeout %q: %w", cfg.General.FetchTimeoutRaw, err)
		}
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.Interval == 0 {
		cfg.General.Interval = DefaultInterval
	}
	if cfg.General.FetchTimeout == 0 {
		cfg.General.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.General.Debug && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendFile
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
		if cfg.Storage.Backend == BackendSQLite {
			cfg.Storage.Path = filepath.Join(DefaultStoragePath, "feeds.db")
		}
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	for i := range cfg.Feeds {
		if cfg.Feeds[i].PostFormat == "" {
			cfg.Feeds[i].PostFormat = DefaultPostFormat
		}
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if len(c.Feeds) == 0 {
		return fmt.Errorf("at least one feed is required")
	}

	seen := make(map[[2]string]bool, len(c.Feeds))
	for i, f := range c.Feeds {
		if f.URL == "" {
			return fmt.Errorf("feeds[%d].url is required", i)
		}
		u, err := url.Parse(f.URL)
		if err != nil {
			return fmt.Errorf("feeds[%d].url is not a valid URL: %w", i, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("feeds[%d].url must use http or https scheme", i)
		}
		if f.ChatID == "" {
			return fmt.Errorf("feeds[%d].chat_id is required", i)
		}
		if f.CacheSize() < 0 {
			return fmt.Errorf("feeds[%d].url_cache_size must not be negative", i)
		}
		// Each pair owns one cache; two entries would race on it
		key := [2]string{f.ChatID, f.URL}
		if seen[key] {
			return fmt.Errorf("feeds[%d] duplicates feed %s for chat %s", i, f.URL, f.ChatID)
		}
		seen[key] = true
	}

	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("storage.backend must be %q or %q", BackendFile, BackendSQLite)
	}

	if c.General.Interval < 0 {
		return fmt.Errorf("general.interval must be positive")
	}
	if c.General.FetchTimeout < 0 {
		return fmt.Errorf("general.fetch_timeout must be positive")
	}

	// Dry runs never talk to Matrix
	if c.General.DryRun {
		return nil
	}

	if c.Matrix.Homeserver == "" {
		return fmt.Errorf("matrix.homeserver is required")
	}
	hs, err := url.Parse(c.Matrix.Homeserver)
	if err != nil {
		return fmt.Errorf("matrix.homeserver is not a valid URL: %w", err)
	}
	if hs.Scheme != "http" && hs.Scheme != "https" {
		return fmt.Errorf("matrix.homeserver must use http or https scheme")
	}
	if c.Matrix.AccessToken == "" && (c.Matrix.Username == "" || c.Matrix.Password == "") {
		return fmt.Errorf("matrix.access_token or matrix.username and matrix.password are required")
	}
	if c.Matrix.AccessToken != "" && c.Matrix.UserID == "" {
		return fmt.Errorf("matrix.user_id is required with matrix.access_token")
	}

	return nil
}
