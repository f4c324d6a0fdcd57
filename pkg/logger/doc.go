// Package logger provides a structured logging interface for the harvest pipeline.
//
// It wraps the zerolog library to provide a clean, easy-to-use API with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output with colors
// - Optional file output
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "pinharvest/pkg/logger"
//
//	// Initialize the global logger
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File: "/var/log/pinharvest.log",
//	}
//	err := logger.Initialize(cfg)
//
//	// Use the global logger
//	logger.Info("Harvest run started")
//	logger.WithField("target", "kitchen-board").Info("Target opened")
//	logger.WithError(err).Error("Media fetch failed")
//
// Advanced Usage:
//
//	// Create a logger instance with fields
//	log := logger.GetLogger().
//	    WithField("component", "collector").
//	    WithField("run_id", runID)
//
//	// Use structured logging
//	log.InfoWithFields("Media saved", map[string]interface{}{
//	    "url":      ref.SourceURL,
//	    "size":     size,
//	    "duration": time.Second * 5,
//	})
//
// The pipeline-shaped helpers (LogAuthStrategy, LogCollectProgress and the
// component lifecycle pair) log recurring events with a consistent field set.
package logger
