package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DownloadDir != "./downloads" {
		t.Errorf("Expected default download dir ./downloads, got %s", cfg.DownloadDir)
	}
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("Unexpected default timeout: %v", cfg.HTTP.Timeout)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Unexpected default retry attempts: %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Unexpected default log level: %s", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CIVITDL_API_KEY", "env-key")
	t.Setenv("CIVITDL_DOWNLOAD_DIR", "/tmp/media")
	t.Setenv("CIVITDL_LOG_LEVEL", "debug")
	t.Setenv("CIVITDL_RETRY_ATTEMPTS", "5")

	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if cfg.APIKey != "env-key" {
		t.Errorf("Expected API key from env, got %q", cfg.APIKey)
	}
	if cfg.DownloadDir != "/tmp/media" {
		t.Errorf("Expected download dir from env, got %q", cfg.DownloadDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level from env, got %q", cfg.Logging.Level)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("Expected retry attempts from env, got %d", cfg.Retry.MaxAttempts)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
api_key: yaml-key
download_dir: /data/civitai
retry:
  max_attempts: 7
logging:
  level: warn
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.APIKey != "yaml-key" {
		t.Errorf("Expected API key from file, got %q", cfg.APIKey)
	}
	if cfg.Retry.MaxAttempts != 7 {
		t.Errorf("Expected retry attempts from file, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected log level from file, got %q", cfg.Logging.Level)
	}
	// Untouched values keep defaults.
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout to survive partial file, got %v", cfg.HTTP.Timeout)
	}
}

func TestLoadFromFileParsesDurations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
http:
  timeout: 45s
retry:
  initial_backoff: 500ms
  max_backoff: 2m
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.HTTP.Timeout != 45*time.Second {
		t.Errorf("Expected 45s timeout, got %v", cfg.HTTP.Timeout)
	}
	if cfg.Retry.InitialBackoff != 500*time.Millisecond {
		t.Errorf("Expected 500ms initial backoff, got %v", cfg.Retry.InitialBackoff)
	}
	if cfg.Retry.MaxBackoff != 2*time.Minute {
		t.Errorf("Expected 2m max backoff, got %v", cfg.Retry.MaxBackoff)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Expected default max attempts, got %d", cfg.Retry.MaxAttempts)
	}
}

func TestLoadFromFileRejectsBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("http:\n  timeout: fast\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err == nil {
		t.Error("Expected error for unparsable duration")
	}
}

func TestUserConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := DefaultConfig()
	cfg.APIKey = "saved-key"
	cfg.DownloadDir = "/data/dl"
	if err := cfg.SaveUserConfig(path); err != nil {
		t.Fatalf("SaveUserConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded := DefaultConfig()
	if err := loaded.LoadFromUserConfig(path); err != nil {
		t.Fatalf("LoadFromUserConfig failed: %v", err)
	}
	if loaded.APIKey != "saved-key" {
		t.Errorf("Expected saved API key, got %q", loaded.APIKey)
	}
	if loaded.DownloadDir != "/data/dl" {
		t.Errorf("Expected saved download dir, got %q", loaded.DownloadDir)
	}

	data, _ := os.ReadFile(path)
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("User config is not valid JSON: %v", err)
	}
	if _, ok := doc["api_key"]; !ok {
		t.Error("Expected api_key field in user config")
	}
}

func TestLoadFromUserConfigMissingFile(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.LoadFromUserConfig(filepath.Join(t.TempDir(), "nope.json")); err != nil {
		t.Errorf("Missing user config should not be an error: %v", err)
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"api-key": "flag-key",
		"output":  "/flag/out",
		"verbose": true,
	})

	if cfg.APIKey != "flag-key" {
		t.Errorf("Expected flag API key, got %q", cfg.APIKey)
	}
	if cfg.DownloadDir != "/flag/out" {
		t.Errorf("Expected flag output dir, got %q", cfg.DownloadDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected verbose flag to raise log level, got %q", cfg.Logging.Level)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("CIVITDL_API_KEY", "env-key")
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("", map[string]interface{}{"api-key": "flag-key"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIKey != "flag-key" {
		t.Errorf("Expected flag to override env, got %q", cfg.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"empty download dir", func(c *Config) { c.DownloadDir = "" }, true},
		{"zero timeout", func(c *Config) { c.HTTP.Timeout = 0 }, true},
		{"zero retry attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, true},
		{"bad multiplier", func(c *Config) { c.Retry.Multiplier = 0.5 }, true},
		{"zero rate limit", func(c *Config) { c.RateLimit.RequestsPerMinute = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig()
			test.mutate(cfg)
			err := cfg.Validate()
			if test.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !test.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}
