package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for redgrab.
type Config struct {
	// Reddit API access
	Reddit RedditConfig `yaml:"reddit" json:"reddit"`

	// Download pipeline settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output tree settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Archive mode settings
	Archive ArchiveConfig `yaml:"archive" json:"archive"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// RedditConfig holds reddit API credentials and client settings.
type RedditConfig struct {
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password" json:"password"`
	UserAgent    string `yaml:"user_agent" json:"user_agent"`
	// RequestInterval spaces listing API calls (token bucket refill).
	RequestInterval time.Duration `yaml:"request_interval" json:"request_interval"`
	// PostLimit caps how many posts one listing call asks for.
	PostLimit int `yaml:"post_limit" json:"post_limit"`
}

// DownloadConfig holds settings for the download pipeline.
type DownloadConfig struct {
	// MaxWaitTime is the cumulative retry budget per fetch.
	MaxWaitTime time.Duration `yaml:"max_wait_time" json:"max_wait_time"`
	// RetryInterval is the fixed sleep between fetch retries.
	RetryInterval time.Duration `yaml:"retry_interval" json:"retry_interval"`
	// NoDuplicates skips writing a file whose content hash was already
	// written this run.
	NoDuplicates bool `yaml:"no_duplicates" json:"no_duplicates"`
	// HardLink replaces duplicate writes with hard links to the first copy.
	HardLink bool `yaml:"hard_link" json:"hard_link"`
	// SearchExisting pre-seeds the dedup ledger by hashing the output tree.
	SearchExisting bool `yaml:"search_existing" json:"search_existing"`
	// ScanWorkers bounds the pre-existing-file hash scan pool.
	ScanWorkers int `yaml:"scan_workers" json:"scan_workers"`

	ExcludedExtensions []string `yaml:"excluded_extensions" json:"excluded_extensions"`
	ExcludedDomains    []string `yaml:"excluded_domains" json:"excluded_domains"`
	SkipSubreddits     []string `yaml:"skip_subreddits" json:"skip_subreddits"`
	ExcludeIDs         []string `yaml:"exclude_ids" json:"exclude_ids"`
	// ExcludeIDFile points at a newline-separated file of post IDs to skip.
	ExcludeIDFile string `yaml:"exclude_id_file" json:"exclude_id_file"`
	// SeenFile persists processed post IDs across runs. Empty disables it.
	SeenFile string `yaml:"seen_file" json:"seen_file"`
}

// OutputConfig holds output tree configuration.
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	FileScheme    string `yaml:"file_scheme" json:"file_scheme"`
	FolderScheme  string `yaml:"folder_scheme" json:"folder_scheme"`
}

// ArchiveConfig holds archive-mode configuration.
type ArchiveConfig struct {
	Format string `yaml:"format" json:"format"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Reddit: RedditConfig{
			UserAgent:       "redgrab (by /u/redgrab)",
			RequestInterval: time.Second,
			PostLimit:       100,
		},
		Download: DownloadConfig{
			MaxWaitTime:   120 * time.Second,
			RetryInterval: 60 * time.Second,
			ScanWorkers:   4,
		},
		Output: OutputConfig{
			BaseDirectory: "./downloads",
			FileScheme:    "{REDDITOR}_{TITLE}_{POSTID}",
			FolderScheme:  "{SUBREDDIT}",
		},
		Archive: ArchiveConfig{
			Format: "json",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration: defaults, then an optional yaml
// file, then environment variables, then command-line overrides.
func Load(path string, flags map[string]interface{}) (*Config, error) {
	// A .env file is honored when present, matching local dev workflows.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	cfg.applyFlags(flags)

	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file. An empty path falls
// back to the standard locations; a missing file is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations.
func (c *Config) findConfigFile() string {
	locations := []string{
		".redgrab.yaml",
		".redgrab.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "redgrab", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "redgrab", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".redgrab.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// LoadFromEnv loads configuration from REDGRAB_* environment variables.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("REDGRAB_CLIENT_ID"); v != "" {
		c.Reddit.ClientID = v
	}
	if v := os.Getenv("REDGRAB_CLIENT_SECRET"); v != "" {
		c.Reddit.ClientSecret = v
	}
	if v := os.Getenv("REDGRAB_USERNAME"); v != "" {
		c.Reddit.Username = v
	}
	if v := os.Getenv("REDGRAB_PASSWORD"); v != "" {
		c.Reddit.Password = v
	}
	if v := os.Getenv("REDGRAB_USER_AGENT"); v != "" {
		c.Reddit.UserAgent = v
	}
	if v := os.Getenv("REDGRAB_OUTPUT_DIR"); v != "" {
		c.Output.BaseDirectory = v
	}
	if v := os.Getenv("REDGRAB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("REDGRAB_MAX_WAIT_TIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid REDGRAB_MAX_WAIT_TIME: %w", err)
		}
		c.Download.MaxWaitTime = d
	}
	if v := os.Getenv("REDGRAB_SCAN_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid REDGRAB_SCAN_WORKERS: %q", v)
		}
		c.Download.ScanWorkers = n
	}
	return nil
}

// applyFlags applies command-line overrides on top of everything else.
func (c *Config) applyFlags(flags map[string]interface{}) {
	for key, value := range flags {
		switch key {
		case "output":
			c.Output.BaseDirectory = value.(string)
		case "file-scheme":
			c.Output.FileScheme = value.(string)
		case "folder-scheme":
			c.Output.FolderScheme = value.(string)
		case "no-duplicates":
			c.Download.NoDuplicates = value.(bool)
		case "hard-link":
			c.Download.HardLink = value.(bool)
		case "search-existing":
			c.Download.SearchExisting = value.(bool)
		case "max-wait-time":
			c.Download.MaxWaitTime = value.(time.Duration)
		case "skip-extension":
			c.Download.ExcludedExtensions = value.([]string)
		case "skip-domain":
			c.Download.ExcludedDomains = value.([]string)
		case "skip-subreddit":
			c.Download.SkipSubreddits = value.([]string)
		case "exclude-id":
			c.Download.ExcludeIDs = value.([]string)
		case "exclude-id-file":
			c.Download.ExcludeIDFile = value.(string)
		case "archive-format":
			c.Archive.Format = value.(string)
		case "log-level":
			c.Logging.Level = value.(string)
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.FileScheme == "" {
		errs = append(errs, errors.New("file name scheme is required"))
	}
	if c.Download.MaxWaitTime <= 0 {
		errs = append(errs, errors.New("max wait time must be positive"))
	}
	if c.Download.RetryInterval <= 0 {
		errs = append(errs, errors.New("retry interval must be positive"))
	}
	if c.Download.ScanWorkers <= 0 {
		errs = append(errs, errors.New("scan workers must be positive"))
	}
	if c.Download.NoDuplicates && c.Download.HardLink {
		errs = append(errs, errors.New("no_duplicates and hard_link are mutually exclusive"))
	}
	switch strings.ToLower(c.Archive.Format) {
	case "json", "yaml":
	default:
		errs = append(errs, fmt.Errorf("unsupported archive format: %s", c.Archive.Format))
	}

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}

	return nil
}
