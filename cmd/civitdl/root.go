package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"civitdl/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "civitdl",
	Short: "Download media and metadata from CivitAI collections and posts",
	Long: `civitdl is a command-line tool for downloading media from CivitAI
collections and posts, together with their metadata: prompts, generation
parameters, tags and engagement stats.

Features:
  - Complete collection and post downloads with pagination
  - Per-item and aggregate JSON metadata documents
  - Idempotent re-runs: existing files are skipped, metadata is refreshed
  - Secure API key storage using the system keychain
  - Automatic retry with exponential backoff
  - Dry-run mode to preview a download`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}
		if verbose {
			logLevel = "debug"
		}

		// Don't show logo for certain commands
		if cmd.Name() != "version" && cmd.Name() != "help" && cmd.Name() != "completion" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .civitdl.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	// Version template
	rootCmd.SetVersionTemplate(`civitdl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
