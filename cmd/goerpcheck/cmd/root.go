package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goerpcheck/internal/config"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile       string
	logLevel      string
	logFormat     string
	deleteRetries int
	maxAttempts   int
	headed        bool
)

// outputWriter is used for printing output, can be overridden in tests
var outputWriter io.Writer = os.Stdout

func setOutputWriter(w io.Writer) {
	outputWriter = w
}

func resetOutputWriter() {
	outputWriter = os.Stdout
}

var rootCmd = &cobra.Command{
	Use:   "goerpcheck",
	Short: "Browser-driven CRUD verification for ERP web applications",
	Long: `A CLI tool that drives an ERP web UI through a real browser to create,
update and delete records from test data files, and reports what happened
to every record.

Features:
  - Configurable page objects per entity (selectors only, no code)
  - Lookup resolution through list-box, paginated, ARIA, virtual-scroll
    and type-ahead strategies with bounded disclosure
  - Preflight checks that skip records with missing data or wrong state
  - Delete retries with existence re-verification
  - Batch dependencies ordered with Kahn's algorithm
  - Console and JSON summaries, optional database cross-check`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "goerpcheck.yaml",
		"Path to configuration file")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	rootCmd.PersistentFlags().IntVar(&deleteRetries, "retries", 0,
		"Override delete retries per record")
	rootCmd.PersistentFlags().IntVar(&maxAttempts, "max-attempts", 0,
		"Override maximum disclosure steps per lookup")
	rootCmd.PersistentFlags().BoolVar(&headed, "headed", false,
		"Show the browser window")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel      string
	LogFormat     string
	DeleteRetries int
	MaxAttempts   int
	Headed        bool
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:      logLevel,
		LogFormat:     logFormat,
		DeleteRetries: deleteRetries,
		MaxAttempts:   maxAttempts,
		Headed:        headed,
	}
}

// loadConfig loads the configuration file and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	o := GetCLIOverrides()
	cfg.ApplyOverrides(o.LogLevel, o.LogFormat, o.DeleteRetries, o.MaxAttempts, o.Headed)
	return cfg, nil
}
