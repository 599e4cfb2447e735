package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile     string
	logLevel    string
	logFormat   string
	maxParallel int
	noCache     bool
)

var rootCmd = &cobra.Command{
	Use:   "gofresh",
	Short: "Database reset orchestrator",
	Long: `A CLI tool that resets a relational database to a clean schema state:
drops every table in foreign-key dependency order (in parallel waves where
safe), re-applies migrations, and optionally seeds.

Features:
  - FK-aware drop ordering with automatic cycle breaking
  - Adaptive parallelism from database size and host resources
  - Optional compressed and encrypted pre-reset backups
  - Learned duration predictions from previous runs
  - Postgres, MySQL and SQLite support`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "gofresh.yaml",
		"Path to configuration file")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Planner overrides
	rootCmd.PersistentFlags().IntVar(&maxParallel, "parallel", 0,
		"Override maximum parallel drops per wave")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false,
		"Disable the pattern cache for this run")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel    string
	LogFormat   string
	MaxParallel int
	NoCache     bool
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:    logLevel,
		LogFormat:   logFormat,
		MaxParallel: maxParallel,
		NoCache:     noCache,
	}
}
