package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the CivitAI downloader
type Config struct {
	// CivitAI API key, also resolvable through the auth store
	APIKey string `yaml:"api_key" json:"api_key"`

	// Root directory downloads are written under
	DownloadDir string `yaml:"download_dir" json:"download_dir"`

	// HTTP client settings
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Retry policy for transient API and download failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Rate limiting for outgoing API requests
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// HTTPConfig holds HTTP client configuration
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// RetryConfig holds retry policy configuration
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
}

// UnmarshalYAML accepts duration strings like "30s" for the timeout.
func (h *HTTPConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Timeout string `yaml:"timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("invalid http timeout: %w", err)
		}
		h.Timeout = d
	}
	return nil
}

// MarshalYAML renders the timeout as a duration string.
func (h HTTPConfig) MarshalYAML() (interface{}, error) {
	return map[string]string{"timeout": h.Timeout.String()}, nil
}

// UnmarshalYAML accepts duration strings for the backoff bounds and keeps
// unmentioned fields at their current values.
func (r *RetryConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MaxAttempts    *int     `yaml:"max_attempts"`
		InitialBackoff string   `yaml:"initial_backoff"`
		MaxBackoff     string   `yaml:"max_backoff"`
		Multiplier     *float64 `yaml:"multiplier"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.MaxAttempts != nil {
		r.MaxAttempts = *raw.MaxAttempts
	}
	if raw.InitialBackoff != "" {
		d, err := time.ParseDuration(raw.InitialBackoff)
		if err != nil {
			return fmt.Errorf("invalid initial backoff: %w", err)
		}
		r.InitialBackoff = d
	}
	if raw.MaxBackoff != "" {
		d, err := time.ParseDuration(raw.MaxBackoff)
		if err != nil {
			return fmt.Errorf("invalid max backoff: %w", err)
		}
		r.MaxBackoff = d
	}
	if raw.Multiplier != nil {
		r.Multiplier = *raw.Multiplier
	}
	return nil
}

// MarshalYAML renders the backoff bounds as duration strings.
func (r RetryConfig) MarshalYAML() (interface{}, error) {
	return map[string]interface{}{
		"max_attempts":    r.MaxAttempts,
		"initial_backoff": r.InitialBackoff.String(),
		"max_backoff":     r.MaxBackoff.String(),
		"multiplier":      r.Multiplier,
	}, nil
}

// RateLimitConfig holds request pacing configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DownloadDir: "./downloads",
		HTTP: HTTPConfig{
			Timeout: 30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// UserConfigDir returns the per-user configuration directory, ~/.civitdl.
func UserConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".civitdl"
	}
	return filepath.Join(home, ".civitdl")
}

// UserConfigPath returns the per-user configuration file path.
func UserConfigPath() string {
	return filepath.Join(UserConfigDir(), "config.json")
}

// LoadFromUserConfig merges the per-user JSON config file, if present.
func (c *Config) LoadFromUserConfig(path string) error {
	if path == "" {
		path = UserConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read user config: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse user config: %w", err)
	}
	return nil
}

// SaveUserConfig writes the API key and download directory to the per-user
// JSON config file with owner-only permissions.
func (c *Config) SaveUserConfig(path string) error {
	if path == "" {
		path = UserConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	doc := map[string]string{
		"api_key":      c.APIKey,
		"download_dir": c.DownloadDir,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if apiKey := os.Getenv("CIVITDL_API_KEY"); apiKey != "" {
		c.APIKey = apiKey
	}
	if downloadDir := os.Getenv("CIVITDL_DOWNLOAD_DIR"); downloadDir != "" {
		c.DownloadDir = downloadDir
	}
	if timeout := os.Getenv("CIVITDL_HTTP_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			c.HTTP.Timeout = d
		}
	}
	if attempts := os.Getenv("CIVITDL_RETRY_ATTEMPTS"); attempts != "" {
		var val int
		fmt.Sscanf(attempts, "%d", &val)
		if val > 0 {
			c.Retry.MaxAttempts = val
		}
	}
	if rpm := os.Getenv("CIVITDL_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if logLevel := os.Getenv("CIVITDL_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("CIVITDL_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
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

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".civitdl.yaml",
		".civitdl.yml",
		filepath.Join(home, ".config", "civitdl", "config.yaml"),
		filepath.Join(home, ".config", "civitdl", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.DownloadDir == "" {
		errs = append(errs, errors.New("download directory is required"))
	}

	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("HTTP timeout must be positive"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry attempts must be positive"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if apiKey, ok := flags["api-key"].(string); ok && apiKey != "" {
		c.APIKey = apiKey
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.DownloadDir = outputDir
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if verbose, ok := flags["verbose"].(bool); ok && verbose {
		c.Logging.Level = "debug"
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > YAML config file > User config > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	home, _ := os.UserHomeDir()
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(home, ".civitdl.env"))

	// Start with defaults
	config := DefaultConfig()

	// Merge the per-user config file
	if err := config.LoadFromUserConfig(""); err != nil {
		return nil, err
	}

	// Load from YAML config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
