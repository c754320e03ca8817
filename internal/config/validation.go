package config

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Operations supported by a batch.
const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// StrategyNames lists the lookup strategies a field may reference.
var StrategyNames = []string{
	"row_filter",
	"list_box_row",
	"paginated_text",
	"aria_option",
	"virtual_scroll",
	"type_ahead",
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	// Validate application settings
	if err := c.validateApp(); err != nil {
		errors = append(errors, err...)
	}

	// Validate browser settings
	if err := c.validateBrowser(); err != nil {
		errors = append(errors, err...)
	}

	// Validate resolver settings
	if err := c.validateResolver(); err != nil {
		errors = append(errors, err...)
	}

	// Validate entities
	for _, name := range sortedKeys(c.Entities) {
		entity := c.Entities[name]
		if err := c.validateEntity(name, &entity); err != nil {
			errors = append(errors, err...)
		}
	}

	// Validate batches
	if len(c.Batches) == 0 {
		errors = append(errors, ValidationError{
			Field:   "batches",
			Message: "at least one batch must be defined",
		})
	}
	for _, name := range sortedKeys(c.Batches) {
		batch := c.Batches[name]
		if err := c.validateBatch(name, &batch); err != nil {
			errors = append(errors, err...)
		}
	}

	// Validate processing settings
	if err := validateProcessing("processing", &c.Processing); err != nil {
		errors = append(errors, err...)
	}

	// Validate database if enabled
	if c.Database.Enabled {
		if err := c.validateDatabase("database", &c.Database); err != nil {
			errors = append(errors, err...)
		}
	}

	// Validate report settings
	if err := c.validateReport(); err != nil {
		errors = append(errors, err...)
	}

	// Validate logging settings
	if err := c.validateLogging(); err != nil {
		errors = append(errors, err...)
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "app.base_url",
			Message: "base_url is required",
		})
	} else if !strings.HasPrefix(c.App.BaseURL, "http://") && !strings.HasPrefix(c.App.BaseURL, "https://") {
		errors = append(errors, ValidationError{
			Field:   "app.base_url",
			Message: "base_url must start with http:// or https://",
		})
	}

	if c.App.Login.Username != "" && c.App.Login.Password == "" {
		errors = append(errors, ValidationError{
			Field:   "app.login.password",
			Message: "password is required when username is set",
		})
	}

	return errors
}

func (c *Config) validateBrowser() ValidationErrors {
	var errors ValidationErrors

	validEngines := map[string]bool{"chromium": true, "firefox": true, "webkit": true, "": true}
	if !validEngines[c.Browser.Engine] {
		errors = append(errors, ValidationError{
			Field:   "browser.engine",
			Message: "engine must be 'chromium', 'firefox', or 'webkit'",
		})
	}

	if c.Browser.TimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "browser.timeout_seconds",
			Message: "timeout_seconds cannot be negative",
		})
	}

	if c.Browser.SlowMoMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "browser.slow_mo_ms",
			Message: "slow_mo_ms cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateResolver() ValidationErrors {
	var errors ValidationErrors

	if c.Resolver.MaxDisclosureAttempts <= 0 {
		errors = append(errors, ValidationError{
			Field:   "resolver.max_disclosure_attempts",
			Message: "max_disclosure_attempts must be positive",
		})
	}

	if c.Resolver.MaxPages <= 0 {
		errors = append(errors, ValidationError{
			Field:   "resolver.max_pages",
			Message: "max_pages must be positive",
		})
	}

	if c.Resolver.ScrollDelta <= 0 {
		errors = append(errors, ValidationError{
			Field:   "resolver.scroll_delta",
			Message: "scroll_delta must be positive",
		})
	}

	if c.Resolver.SettleTimeoutMs < 0 || c.Resolver.SettleDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "resolver.settle",
			Message: "settle_timeout_ms and settle_delay_ms cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateEntity(name string, entity *EntityConfig) ValidationErrors {
	var errors ValidationErrors
	prefix := fmt.Sprintf("entities.%s", name)

	if entity.Path == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".path",
			Message: "path is required",
		})
	}

	if entity.Rows == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".rows",
			Message: "rows selector is required",
		})
	}

	seen := make(map[string]bool)
	for i, field := range entity.Fields {
		fieldPrefix := fmt.Sprintf("%s.fields[%d]", prefix, i)
		if field.Name == "" {
			errors = append(errors, ValidationError{
				Field:   fieldPrefix + ".name",
				Message: "name is required",
			})
		} else if seen[field.Name] {
			errors = append(errors, ValidationError{
				Field:   fieldPrefix + ".name",
				Message: fmt.Sprintf("duplicate field %q", field.Name),
			})
		}
		seen[field.Name] = true

		if field.Selector == "" && field.Lookup == nil {
			errors = append(errors, ValidationError{
				Field:   fieldPrefix + ".selector",
				Message: "selector or lookup is required",
			})
		}

		if field.Lookup != nil {
			if err := validateLookup(fieldPrefix+".lookup", field.Lookup); err != nil {
				errors = append(errors, err...)
			}
		}
	}

	if c.Database.Enabled && entity.Table != "" && entity.NameColumn == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".name_column",
			Message: "name_column is required when table is set",
		})
	}

	return errors
}

func validateLookup(prefix string, lookup *LookupConfig) ValidationErrors {
	var errors ValidationErrors

	known := false
	for _, s := range StrategyNames {
		if lookup.Strategy == s {
			known = true
			break
		}
	}
	if !known {
		errors = append(errors, ValidationError{
			Field:   prefix + ".strategy",
			Message: fmt.Sprintf("strategy must be one of: %s", strings.Join(StrategyNames, ", ")),
		})
	}

	if lookup.Item == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".item",
			Message: "item selector is required",
		})
	}

	if lookup.Strategy == "paginated_text" && lookup.Next == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".next",
			Message: "next selector is required for paginated_text",
		})
	}

	if lookup.Strategy == "type_ahead" && lookup.Filter == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".filter",
			Message: "filter selector is required for type_ahead",
		})
	}

	return errors
}

func (c *Config) validateBatch(name string, batch *BatchConfig) ValidationErrors {
	var errors ValidationErrors
	prefix := fmt.Sprintf("batches.%s", name)

	if batch.Entity == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".entity",
			Message: "entity is required",
		})
	} else if _, err := c.GetEntity(batch.Entity); err != nil {
		errors = append(errors, ValidationError{
			Field:   prefix + ".entity",
			Message: fmt.Sprintf("entity %q is not defined", batch.Entity),
		})
	}

	switch batch.Operation {
	case OperationCreate, OperationUpdate, OperationDelete:
	default:
		errors = append(errors, ValidationError{
			Field:   prefix + ".operation",
			Message: "operation must be 'create', 'update', or 'delete'",
		})
	}

	if batch.Data == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".data",
			Message: "data file is required",
		})
	}

	for _, dep := range batch.DependsOn {
		if strings.EqualFold(dep, name) {
			errors = append(errors, ValidationError{
				Field:   prefix + ".depends_on",
				Message: "batch cannot depend on itself",
			})
			continue
		}
		if _, err := c.GetBatch(dep); err != nil {
			errors = append(errors, ValidationError{
				Field:   prefix + ".depends_on",
				Message: fmt.Sprintf("batch %q is not defined", dep),
			})
		}
	}

	if batch.Processing != nil {
		if err := validateProcessing(prefix+".processing", batch.Processing); err != nil {
			errors = append(errors, err...)
		}
	}

	return errors
}

func validateProcessing(prefix string, p *ProcessingConfig) ValidationErrors {
	var errors ValidationErrors

	if p.DeleteRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".delete_retries",
			Message: "delete_retries cannot be negative",
		})
	}

	if p.SuccessTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".success_timeout_seconds",
			Message: "success_timeout_seconds cannot be negative",
		})
	}

	if p.SleepSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".sleep_seconds",
			Message: "sleep_seconds cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errors ValidationErrors

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateReport() ValidationErrors {
	var errors ValidationErrors

	validFormats := map[string]bool{"console": true, "json": true, "both": true, "": true}
	if !validFormats[c.Report.Format] {
		errors = append(errors, ValidationError{
			Field:   "report.format",
			Message: "format must be 'console', 'json', or 'both'",
		})
	}

	if (c.Report.Format == "json" || c.Report.Format == "both") && c.Report.Output == "" {
		errors = append(errors, ValidationError{
			Field:   "report.output",
			Message: "output path is required for json reports",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
