package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application startup banner
func PrintBanner(config *Config, logger arbor.ILogger) {
	version := GetVersion()

	// Service URL
	serviceURL := fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)

	// Create banner with custom styling - GREEN for hunt
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(80)

	// Visual banner still prints to stdout for startup aesthetics
	fmt.Printf("\n")
	b.PrintTopLine()
	b.PrintCenteredText("HUNT")
	b.PrintCenteredText("Job Catalog Ingestion and Matching")
	b.PrintSeparatorLine()
	b.PrintKeyValue("Version", version, 15)
	b.PrintKeyValue("Environment", config.Environment, 15)
	b.PrintKeyValue("Service URL", serviceURL, 15)
	b.PrintBottomLine()
	fmt.Printf("\n")

	// Log structured startup information through Arbor
	logger.Info().
		Str("version", version).
		Str("environment", config.Environment).
		Str("service_url", serviceURL).
		Msg("Application started")

	// Print configuration details to console
	fmt.Printf("📋 Configuration:\n")
	fmt.Printf("   • Web Interface: %s\n", serviceURL)
	fmt.Printf("   • Database: %s\n", config.Storage.SQLite.Path)

	// Show log file path if available
	if loggerWithPath, ok := interface{}(logger).(interface{ GetLogFilePath() string }); ok {
		if logFilePath := loggerWithPath.GetLogFilePath(); logFilePath != "" {
			fmt.Printf("   • Log File: %s\n", logFilePath)
		}
	}
	fmt.Printf("\n")

	printCapabilities(config, logger)
	fmt.Printf("\n")
}

// printCapabilities displays the system capabilities
func printCapabilities(config *Config, logger arbor.ILogger) {
	fmt.Printf("🎯 Enabled Features:\n")

	enabledSources := config.Discovery.EnabledSources
	if len(enabledSources) > 0 {
		fmt.Printf("   • Company discovery (%d source(s) enabled)\n", len(enabledSources))
	} else {
		fmt.Printf("   • No discovery sources enabled (configure in hunt.toml)\n")
	}

	fmt.Printf("   • Local SQLite catalog with full-text search\n")
	fmt.Printf("   • Embeddings: %s (dim %d)\n", config.Embeddings.Model, config.Embeddings.Dimension)
	fmt.Printf("   • LLM extraction provider: %s\n", config.LLM.DefaultProvider)
	if config.Scheduler.Enabled {
		fmt.Printf("   • Scheduler: every %d hour(s)\n", config.Scheduler.IntervalHours)
	} else {
		fmt.Printf("   • Scheduler: stopped (start via admin API)\n")
	}

	// Log capabilities through Arbor
	logger.Info().
		Strs("discovery_sources", enabledSources).
		Str("storage", "sqlite_fts5").
		Str("embedding_model", config.Embeddings.Model).
		Str("llm_provider", config.LLM.DefaultProvider).
		Bool("scheduler_enabled", config.Scheduler.Enabled).
		Msg("System capabilities")
}

// PrintShutdownBanner displays the application shutdown banner
func PrintShutdownBanner(logger arbor.ILogger) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(42)

	// Visual banner to stdout
	b.PrintTopLine()
	b.PrintCenteredText("SHUTTING DOWN")
	b.PrintCenteredText("HUNT")
	b.PrintBottomLine()
	fmt.Println()

	// Log shutdown through Arbor
	logger.Info().Msg("Application shutting down")
}

// PrintColorizedMessage prints a message with specified color and logs through Arbor
func PrintColorizedMessage(color, message string, logger arbor.ILogger) {
	fmt.Printf("%s%s%s\n", color, message, banner.ColorReset)
}

// PrintSuccess prints a success message in green and logs it
func PrintSuccess(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorGreen, fmt.Sprintf("✓ %s", message), logger)
	logger.Info().Str("type", "success").Msg(message)
}

// PrintError prints an error message in red and logs it
func PrintError(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorRed, fmt.Sprintf("✗ %s", message), logger)
	logger.Error().Str("type", "error").Msg(message)
}

// PrintWarning prints a warning message in yellow and logs it
func PrintWarning(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorYellow, fmt.Sprintf("⚠ %s", message), logger)
	logger.Warn().Str("type", "warning").Msg(message)
}
