package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"civitdl/pkg/auth"
	"civitdl/pkg/civitai"
	"civitdl/pkg/config"
	"civitdl/pkg/downloader"
	"civitdl/pkg/errors"
	"civitdl/pkg/logger"
	"civitdl/pkg/ratelimit"
	"civitdl/pkg/retry"
	"civitdl/pkg/ui"
)

var (
	// Run command flags
	collectionIDs []int64
	postIDs       []int64
	outputDir     string
	accountName   string
	apiKeyFlag    string
	noMetadata    bool
	dryRun        bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Download media from collections or posts",
	Long: `Download all media from one or more CivitAI collections or posts.

Each target gets its own directory under the output root, named after its
ID and title. Media files are accompanied by JSON metadata documents with
prompts, generation parameters, tags and stats, plus one aggregate
document per target.

An API key is required. It is resolved from, in order:
  - The --api-key flag
  - The CIVITDL_API_KEY environment variable or config file
  - The credential store (use 'civitdl auth login' to store a key)

Re-running against the same output directory skips media files that
already exist; metadata documents are always refreshed.`,
	Example: `  # Download a collection
  civitdl run --collection 12345

  # Download several posts to a specific directory
  civitdl run --post 111 --post 222 --output ./media

  # Preview without writing anything
  civitdl run --collection 12345 --dry-run

  # Media only, no metadata documents
  civitdl run --collection 12345 --no-metadata`,
	Run: runDownload,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int64SliceVar(&collectionIDs, "collection", nil, "collection ID to download (repeatable)")
	runCmd.Flags().Int64SliceVar(&postIDs, "post", nil, "post ID to download (repeatable)")
	runCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output root directory (default: configured download dir)")
	runCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
	runCmd.Flags().StringVar(&apiKeyFlag, "api-key", "", "CivitAI API key (overrides stored credentials)")
	runCmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "skip writing metadata documents")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "enumerate items without downloading or writing")

	runCmd.MarkFlagsMutuallyExclusive("collection", "post")
	runCmd.MarkFlagsOneRequired("collection", "post")
}

func runDownload(cmd *cobra.Command, args []string) {
	for _, id := range append(append([]int64{}, collectionIDs...), postIDs...) {
		if id <= 0 {
			ui.PrintError("Invalid target ID", fmt.Sprintf("%d (IDs must be positive)", id))
			os.Exit(1)
		}
	}

	// Build flags map from command line
	flags := make(map[string]interface{})
	if apiKeyFlag != "" {
		flags["api-key"] = apiKeyFlag
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}
	if verbose {
		flags["verbose"] = true
	}

	// Load configuration
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Initialize logger
	logger.Initialize(&cfg.Logging)
	logger.WithField("version", version).Info("civitdl starting")

	apiKey, err := resolveAPIKey(cfg)
	if err != nil {
		ui.PrintError("No CivitAI API key found", "")
		fmt.Println("\nTo store a key securely, run:")
		fmt.Println("  civitdl auth login")
		fmt.Println("\nYou can also set an environment variable:")
		fmt.Println("  export CIVITDL_API_KEY=your_api_key")
		os.Exit(1)
	}

	// Build targets in command-line order: collections first, then posts
	var targets []civitai.Target
	for _, id := range collectionIDs {
		targets = append(targets, civitai.CollectionTarget(id))
	}
	for _, id := range postIDs {
		targets = append(targets, civitai.PostTarget(id))
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.Retry.MaxAttempts
	retryCfg.Backoff = &retry.ExponentialBackoff{
		BaseDelay:    cfg.Retry.InitialBackoff,
		MaxDelay:     cfg.Retry.MaxBackoff,
		Multiplier:   cfg.Retry.Multiplier,
		JitterFactor: 0.1,
	}

	client := civitai.NewClient(apiKey, cfg.HTTP.Timeout, retryCfg, logger.GetLogger())
	client.SetLimiter(ratelimit.NewSlidingWindow(cfg.RateLimit.RequestsPerMinute, time.Minute))
	dl := downloader.New(client, cfg.DownloadDir, downloader.Options{
		SkipMetadata: noMetadata,
		DryRun:       dryRun,
	}, logger.GetLogger())

	if dryRun {
		ui.PrintHighlight("[DRY RUN]")
	}

	failedTargets := 0
	for _, target := range targets {
		summary, err := dl.Process(target)
		if err != nil {
			if errors.IsAuth(err) {
				// A rejected key fails every remaining target the same way
				ui.PrintError("Authentication failed", err.Error())
				fmt.Println("\nCheck your API key, or store a new one with 'civitdl auth login'.")
				os.Exit(1)
			}
			failedTargets++
			ui.PrintError(fmt.Sprintf("Failed to process %s", target.String()), err.Error())
			continue
		}

		ui.PrintTargetSummary(target.String(), summary.TotalItems, summary.Downloaded,
			summary.SkippedExisting, summary.SkippedDryRun, summary.Failed)
		if summary.TargetDocErr != nil {
			ui.PrintWarning(fmt.Sprintf("Aggregate metadata for %s could not be written: %v",
				target.String(), summary.TargetDocErr))
		}
	}

	if failedTargets > 0 {
		ui.PrintWarning(fmt.Sprintf("%d of %d targets could not be processed", failedTargets, len(targets)))
	} else {
		ui.PrintSuccess("All targets processed")
	}
}

// resolveAPIKey finds the API key: flag and environment first (already in
// the config), then the credential store, then first-run interactive setup.
func resolveAPIKey(cfg *config.Config) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}

	manager, err := auth.NewManager()
	if err == nil {
		if accountName != "" {
			account, err := manager.Retrieve(accountName)
			if err != nil {
				ui.PrintError("Account not found", accountName)
				ui.PrintInfo("Available accounts", "Use 'civitdl auth list' to see stored accounts")
				os.Exit(1)
			}
			logger.WithField("account", account.Name).Info("Using stored credentials")
			return account.APIKey, nil
		}

		if account, err := manager.RetrieveDefault(); err == nil {
			logger.WithField("account", account.Name).Info("Using stored credentials")
			return account.APIKey, nil
		}
	}

	// First run: offer interactive setup
	if config.NeedsSetup(cfg) {
		if err := config.RunSetup(cfg); err != nil {
			return "", err
		}
		return cfg.APIKey, nil
	}

	return "", fmt.Errorf("no API key configured")
}
