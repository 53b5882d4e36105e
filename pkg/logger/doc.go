// Package logger provides a structured logging interface for the CivitAI downloader.
//
// It wraps the zerolog library to provide a clean, easy-to-use API with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output with colors
// - File output
// - Context support for request tracing
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "civitdl/pkg/logger"
//
//	// Initialize the global logger
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File: "/var/log/civitdl.log",
//	}
//	err := logger.Initialize(cfg)
//
//	// Use the global logger
//	logger.Info("Application started")
//	logger.WithField("target", "collection/42").Info("Processing target")
//	logger.WithError(err).Error("Failed to download image")
//
// Advanced Usage:
//
//	// Create a logger instance with fields
//	log := logger.GetLogger().
//	    WithField("component", "downloader").
//	    WithField("run_id", runID)
//
//	// Use structured logging
//	log.InfoWithFields("Download completed", map[string]interface{}{
//	    "file": "1234.jpg",
//	    "size": 1024000,
//	    "duration": time.Second * 5,
//	})
//
// The logger supports the following configuration options:
// - Level: Log level (debug, info, warn, error, fatal)
// - File: Path to log file (empty for console only)
package logger
