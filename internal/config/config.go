// Package config provides configuration management for the NUI producer pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrNoSources                = errors.New("at least one source is required")
	ErrSourceMissingURL         = errors.New("url is required")
	ErrSourceMissingCountryCode = errors.New("country_code is required")
	ErrNoEnabledSources         = errors.New("at least one source must be enabled")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("retry.timeout_sec must be at least 1")
	ErrInvalidMaxBody           = errors.New("crawler.max_body_kb must be at least 1")
	ErrInvalidMaxKeywords       = errors.New("crawler.max_keywords must be non-negative")
	ErrInvalidCrawlConcurrency  = errors.New("crawler.concurrency must be at least 1")
	ErrMissingOutputPath        = errors.New("output.base_path or output.path is required")
	ErrInvalidOutputFormat      = errors.New("output.format must be one of: json, jsonl, csv, ntriples, markdown")
	ErrMissingStorePath         = errors.New("store.path is required when the store is enabled")
	ErrMissingNATSURL           = errors.New("publish.nats_url is required when publishing is enabled")
	ErrMissingSubject           = errors.New("publish.subject is required when publishing is enabled")
	ErrInvalidConcurrency       = errors.New("publish.concurrency must be at least 1")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat         = errors.New("logging.format must be 'text' or 'json'")
)

// Output formats understood by the sink package.
const (
	FormatJSON     = "json"
	FormatJSONL    = "jsonl"
	FormatCSV      = "csv"
	FormatNTriples = "ntriples"
	FormatMarkdown = "markdown"
)

var formatExtensions = map[string]string{
	FormatJSON:     "json",
	FormatJSONL:    "jsonl",
	FormatCSV:      "csv",
	FormatNTriples: "nt",
	FormatMarkdown: "md",
}

// Environment variables that override file settings.
const (
	EnvNATSURL   = "NUI_NATS_URL"
	EnvLogLevel  = "NUI_LOG_LEVEL"
	EnvStorePath = "NUI_STORE_PATH"
)

// Config represents the complete pipeline configuration.
type Config struct {
	Crawler CrawlerConfig `yaml:"crawler"`
	Record  RecordConfig  `yaml:"record"`
	Output  OutputConfig  `yaml:"output"`
	Store   StoreConfig   `yaml:"store"`
	Publish PublishConfig `yaml:"publish"`
}

// CrawlerConfig contains crawler-specific settings.
type CrawlerConfig struct {
	UserAgent   string         `yaml:"user_agent"`
	Sources     []SourceConfig `yaml:"sources"`
	Logging     LoggingConfig  `yaml:"logging"`
	Retry       RetryPolicy    `yaml:"retry"`
	MaxBodyKb   int            `yaml:"max_body_kb"`
	MaxKeywords int            `yaml:"max_keywords"`
	Concurrency int            `yaml:"concurrency"`
}

// SourceConfig is one document to crawl together with the attribution the
// crawler cannot derive from the page itself.
type SourceConfig struct {
	URL               string   `yaml:"url"`
	File              string   `yaml:"file"`
	SourceDomain      string   `yaml:"source_domain"`
	CountryCode       string   `yaml:"country_code"`
	StateProvinceCode string   `yaml:"state_province_code"`
	BackupURLs        []string `yaml:"backup_urls"`
	Keywords          []string `yaml:"keywords"`
	Enabled           bool     `yaml:"enabled"`
}

// IsLocalFile returns true if the page body is read from a local snapshot.
func (s *SourceConfig) IsLocalFile() bool {
	return s.File != ""
}

// GetSource returns the file path if local, or URL if remote.
func (s *SourceConfig) GetSource() string {
	if s.IsLocalFile() {
		return s.File
	}

	return s.URL
}

// GetAllURLs returns all URLs (primary + backups) for a source.
func (s *SourceConfig) GetAllURLs() []string {
	urls := []string{s.URL}
	urls = append(urls, s.BackupURLs...)

	return urls
}

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RecordConfig controls entry construction.
type RecordConfig struct {
	// StrictValidation opts into field checks; off by default so any text is accepted.
	StrictValidation bool `yaml:"strict_validation"`
	SchemaCheck      bool `yaml:"schema_check"`
}

// OutputConfig defines where serialized entries are written.
type OutputConfig struct {
	BasePath    string `yaml:"base_path"`
	Format      string `yaml:"format"`
	Path        string `yaml:"path"`
	PrettyPrint bool   `yaml:"pretty_print"`
}

// StoreConfig configures the SQLite entry store.
type StoreConfig struct {
	Path    string `yaml:"path"`
	Enabled bool   `yaml:"enabled"`
}

// PublishConfig configures the NATS publisher.
type PublishConfig struct {
	NATSURL     string `yaml:"nats_url"`
	Subject     string `yaml:"subject"`
	Concurrency int    `yaml:"concurrency"`
	Enabled     bool   `yaml:"enabled"`
}

// Default returns a configuration with every setting populated except sources.
func Default() *Config {
	return &Config{
		Crawler: CrawlerConfig{
			UserAgent: "PWIC-NUI-Crawler/1.0",
			Retry: RetryPolicy{
				MaxAttempts:       3,
				InitialDelayMs:    500,
				MaxDelayMs:        30000,
				BackoffMultiplier: 2.0,
				TimeoutSec:        30,
			},
			Logging:     LoggingConfig{Level: "info", Format: "text"},
			MaxBodyKb:   2048,
			MaxKeywords: 20,
			Concurrency: 4,
		},
		Record: RecordConfig{SchemaCheck: true},
		Output: OutputConfig{BasePath: "./out", Format: FormatJSONL},
		Store:  StoreConfig{Path: "./data"},
		Publish: PublishConfig{
			NATSURL:     "nats://localhost:4222",
			Subject:     "nui.entries",
			Concurrency: 5,
		},
	}
}

// LoadConfig loads configuration from YAML file. Values missing from the
// file keep their Default value; environment overrides are applied last.
// The result is not validated: only crawl needs sources, so callers pick
// Validate or ValidateOutput.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.ApplyEnv()

	return cfg, nil
}

// ApplyEnv overrides settings from NUI_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvNATSURL); v != "" {
		c.Publish.NATSURL = v
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Crawler.Logging.Level = v
	}

	if v := os.Getenv(EnvStorePath); v != "" {
		c.Store.Path = v
	}
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Check crawler config
	if len(c.Crawler.Sources) == 0 {
		return ErrNoSources
	}

	enabledCount := 0

	for i, src := range c.Crawler.Sources {
		// File sources still need the URL they describe.
		if src.URL == "" {
			return fmt.Errorf("%w: source[%d]", ErrSourceMissingURL, i)
		}

		if src.CountryCode == "" {
			return fmt.Errorf("%w: source[%d]", ErrSourceMissingCountryCode, i)
		}

		if src.Enabled {
			enabledCount++
		}
	}

	if enabledCount == 0 {
		return ErrNoEnabledSources
	}

	if err := c.Crawler.Retry.Validate(); err != nil {
		return err
	}

	if c.Crawler.MaxBodyKb < 1 {
		return ErrInvalidMaxBody
	}

	if c.Crawler.MaxKeywords < 0 {
		return ErrInvalidMaxKeywords
	}

	if c.Crawler.Concurrency < 1 {
		return ErrInvalidCrawlConcurrency
	}

	if err := c.ValidateOutput(); err != nil {
		return err
	}

	if c.Store.Enabled && c.Store.Path == "" {
		return ErrMissingStorePath
	}

	if c.Publish.Enabled {
		if c.Publish.NATSURL == "" {
			return ErrMissingNATSURL
		}

		if c.Publish.Subject == "" {
			return ErrMissingSubject
		}

		if c.Publish.Concurrency < 1 {
			return ErrInvalidConcurrency
		}
	}

	return c.Crawler.Logging.Validate()
}

// Validate checks the retry policy bounds.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if rp.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if rp.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if rp.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	return nil
}

// ValidateOutput checks the output section on its own; every command but
// crawl runs with it instead of Validate.
func (c *Config) ValidateOutput() error {
	if c.Output.BasePath == "" && c.Output.Path == "" {
		return ErrMissingOutputPath
	}

	if !IsValidFormat(c.Output.Format) {
		return ErrInvalidOutputFormat
	}

	return nil
}

// Validate checks the logging level and format.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return ErrInvalidLogLevel
	}

	if l.Format != "" && l.Format != "text" && l.Format != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

// IsValidFormat reports whether format names a supported output format.
func IsValidFormat(format string) bool {
	_, ok := formatExtensions[format]

	return ok
}

// GetEnabledSources returns only enabled sources.
func (c *Config) GetEnabledSources() []SourceConfig {
	var enabled []SourceConfig

	for _, src := range c.Crawler.Sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}

	return enabled
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// GetOutputPath returns output.path when set, otherwise {base_path}/nui.{ext}.
func (c *Config) GetOutputPath() string {
	if c.Output.Path != "" {
		return c.Output.Path
	}

	return filepath.Join(c.Output.BasePath, "nui."+formatExtensions[c.Output.Format])
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Sources: %d, MaxAttempts: %d, Output: %s (%s), Store: %t, Publish: %t}",
		len(c.Crawler.Sources),
		c.Crawler.Retry.MaxAttempts,
		c.GetOutputPath(),
		c.Output.Format,
		c.Store.Enabled,
		c.Publish.Enabled,
	)
}
