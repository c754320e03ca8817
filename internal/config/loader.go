package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path.
// It supports YAML files, loads a sibling .env file when present and
// performs environment variable substitution.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	loadDotEnv(filepath.Join(filepath.Dir(configPath), ".env"))

	cfg, err := LoadFromViper(v)
	if err != nil {
		return nil, err
	}

	// Relative data files are resolved against the config file location
	baseDir := filepath.Dir(configPath)
	for name, batch := range cfg.Batches {
		if batch.Data != "" && !filepath.IsAbs(batch.Data) {
			batch.Data = filepath.Join(baseDir, batch.Data)
			cfg.Batches[name] = batch
		}
	}

	return cfg, nil
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := substituteEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("failed to substitute environment variables: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads KEY=VALUE pairs from path. Variables already present in
// the environment are not overwritten; a missing file is not an error.
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) error {
	cfg.App.BaseURL = expandEnvVar(cfg.App.BaseURL)
	cfg.App.StorageState = expandEnvVar(cfg.App.StorageState)
	cfg.App.Login.Username = expandEnvVar(cfg.App.Login.Username)
	cfg.App.Login.Password = expandEnvVar(cfg.App.Login.Password)

	cfg.Database.Host = expandEnvVar(cfg.Database.Host)
	cfg.Database.User = expandEnvVar(cfg.Database.User)
	cfg.Database.Password = expandEnvVar(cfg.Database.Password)
	cfg.Database.Database = expandEnvVar(cfg.Database.Database)

	for name, batch := range cfg.Batches {
		batch.Data = expandEnvVar(batch.Data)
		cfg.Batches[name] = batch
	}

	cfg.Report.Output = expandEnvVar(cfg.Report.Output)
	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// GetBatch retrieves a specific batch configuration by name.
func (c *Config) GetBatch(name string) (*BatchConfig, error) {
	batch, exists := c.Batches[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("batch %q not found in configuration", name)
	}
	return &batch, nil
}

// GetEntity retrieves a specific entity page definition by name.
func (c *Config) GetEntity(name string) (*EntityConfig, error) {
	entity, exists := c.Entities[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("entity %q not found in configuration", name)
	}
	return &entity, nil
}

// ListBatches returns all batch names defined in the configuration.
func (c *Config) ListBatches() []string {
	batches := make([]string, 0, len(c.Batches))
	for name := range c.Batches {
		batches = append(batches, name)
	}
	return batches
}

// ApplyOverrides applies CLI flag overrides to the global configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat string, deleteRetries, maxAttempts int, headed bool) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if deleteRetries > 0 {
		c.Processing.DeleteRetries = deleteRetries
	}
	if maxAttempts > 0 {
		c.Resolver.MaxDisclosureAttempts = maxAttempts
	}
	if headed {
		c.Browser.Headless = false
	}
}
