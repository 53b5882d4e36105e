package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"civitdl/pkg/config"
	"civitdl/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage civitdl configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (CIVITDL_*)
  - Configuration file
  - Per-user config (~/.civitdl/config.json)
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.civitdl.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the current configuration including values from all sources.

Sensitive values like the API key will be masked for security.`,
	Run: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields
  - Value types and ranges
  - Path accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	// Determine config file path
	configPath := configFile
	if configPath == "" {
		configPath = ".civitdl.yaml"
	}

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	// Create example configuration
	exampleConfig := `# civitdl configuration file
#
# This file contains all available configuration options.
# You can also use environment variables prefixed with CIVITDL_
# For example: CIVITDL_API_KEY, CIVITDL_DOWNLOAD_DIR

# CivitAI API key (optional here)
# Prefer 'civitdl auth login' for secure storage instead of
# writing the key into this file.
api_key: ""

# Root directory downloads are written under
# Each collection or post gets its own subdirectory
download_dir: "./downloads"

# HTTP client configuration
http:
  # Request timeout
  timeout: 30s

# Rate limiting for outgoing API requests
rate_limit:
  # Requests per minute
  # Range: 1-300
  requests_per_minute: 120

# Retry configuration for transient failures
retry:
  # Maximum number of attempts (including the first)
  # Range: 1-10
  max_attempts: 3

  # Initial backoff duration
  initial_backoff: 1s

  # Maximum backoff duration
  max_backoff: 30s

  # Backoff multiplier
  multiplier: 2.0

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path (optional)
  # Leave empty to log to stderr only
  file: ""
`

	// Write configuration file
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the configuration file to taste")
	fmt.Println("2. Run 'civitdl config validate' to check the configuration")
	fmt.Println("3. Store your API key with 'civitdl auth login'")
	fmt.Println("4. Start downloading with 'civitdl run --collection <id>'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	// Load configuration
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Create a sanitized version for display
	displayCfg := *cfg

	// Mask the API key
	if displayCfg.APIKey != "" {
		if len(displayCfg.APIKey) > 8 {
			displayCfg.APIKey = displayCfg.APIKey[:4] + "..." + displayCfg.APIKey[len(displayCfg.APIKey)-4:]
		} else {
			displayCfg.APIKey = "***"
		}
	}

	// Convert to YAML for display
	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	// Show configuration sources
	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (CIVITDL_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (not specified)")
	}
	fmt.Printf("4. Per-user config: %s\n", config.UserConfigPath())
	fmt.Println("5. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	// Check if config file is specified
	if configFile == "" {
		// Try to find config file in common locations
		possiblePaths := []string{
			".civitdl.yaml",
			".civitdl.yml",
			filepath.Join(os.Getenv("HOME"), ".config", "civitdl", "config.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "civitdl", "config.yml"),
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			ui.PrintError("No configuration file found", "Specify a file with --config flag")
			os.Exit(1)
		}
	}

	ui.PrintInfo("Validating configuration", configFile)

	// Try to load and validate configuration
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	// Perform additional validation checks
	warnings := []string{}
	errs := []string{}

	// Check API key availability
	if cfg.APIKey == "" {
		warnings = append(warnings, "No API key in configuration (stored credentials will be used if present)")
	}

	// Check paths
	if cfg.DownloadDir != "" {
		if err := os.MkdirAll(cfg.DownloadDir, 0755); err != nil {
			errs = append(errs, fmt.Sprintf("Cannot create download directory: %v", err))
		}
	}

	// Check logging file path
	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(dir, 0755); err != nil {
			errs = append(errs, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	// Check value ranges
	if cfg.Retry.MaxAttempts < 1 || cfg.Retry.MaxAttempts > 10 {
		errs = append(errs, "max_attempts must be between 1 and 10")
	}
	if cfg.RateLimit.RequestsPerMinute < 1 || cfg.RateLimit.RequestsPerMinute > 300 {
		errs = append(errs, "requests_per_minute must be between 1 and 300")
	}
	if cfg.Retry.InitialBackoff > cfg.Retry.MaxBackoff {
		errs = append(errs, "initial_backoff must not exceed max_backoff")
	}

	// Display results
	if len(errs) > 0 {
		ui.PrintError("Configuration has errors:", "")
		for _, e := range errs {
			fmt.Printf("  - %s\n", e)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:", "")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	// Show summary
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Download directory: %s\n", cfg.DownloadDir)
	fmt.Printf("  HTTP timeout: %s\n", cfg.HTTP.Timeout)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Max retries: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
