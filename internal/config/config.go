// Package config provides configuration structures and loading for goerpcheck.
package config

// Config represents the complete application configuration.
type Config struct {
	App        AppConfig               `yaml:"app" mapstructure:"app"`
	Browser    BrowserConfig           `yaml:"browser" mapstructure:"browser"`
	Resolver   ResolverConfig          `yaml:"resolver" mapstructure:"resolver"`
	Processing ProcessingConfig        `yaml:"processing" mapstructure:"processing"`
	Entities   map[string]EntityConfig `yaml:"entities" mapstructure:"entities"`
	Batches    map[string]BatchConfig  `yaml:"batches" mapstructure:"batches"`
	Database   DatabaseConfig          `yaml:"database" mapstructure:"database"`
	Report     ReportConfig            `yaml:"report" mapstructure:"report"`
	Logging    LoggingConfig           `yaml:"logging" mapstructure:"logging"`
}

// AppConfig describes the application under test.
type AppConfig struct {
	BaseURL      string      `yaml:"base_url" mapstructure:"base_url"`
	StorageState string      `yaml:"storage_state" mapstructure:"storage_state"` // authentication artifact reused across runs
	Login        LoginConfig `yaml:"login" mapstructure:"login"`
}

// LoginConfig describes the login form used to produce the storage state.
type LoginConfig struct {
	Path             string `yaml:"path" mapstructure:"path"`
	Username         string `yaml:"username" mapstructure:"username"`
	Password         string `yaml:"password" mapstructure:"password"`
	UsernameSelector string `yaml:"username_selector" mapstructure:"username_selector"`
	PasswordSelector string `yaml:"password_selector" mapstructure:"password_selector"`
	SubmitSelector   string `yaml:"submit_selector" mapstructure:"submit_selector"`
	SuccessSelector  string `yaml:"success_selector" mapstructure:"success_selector"`
}

// BrowserConfig represents browser launch settings.
type BrowserConfig struct {
	Engine         string  `yaml:"engine" mapstructure:"engine"` // chromium, firefox, webkit
	Headless       bool    `yaml:"headless" mapstructure:"headless"`
	SlowMoMs       int     `yaml:"slow_mo_ms" mapstructure:"slow_mo_ms"`
	TimeoutSeconds float64 `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	ViewportWidth  int     `yaml:"viewport_width" mapstructure:"viewport_width"`
	ViewportHeight int     `yaml:"viewport_height" mapstructure:"viewport_height"`
	SkipInstall    bool    `yaml:"skip_install" mapstructure:"skip_install"`
}

// ResolverConfig represents element resolution settings shared by all strategies.
type ResolverConfig struct {
	MaxDisclosureAttempts int     `yaml:"max_disclosure_attempts" mapstructure:"max_disclosure_attempts"`
	MaxPages              int     `yaml:"max_pages" mapstructure:"max_pages"` // cap for paginated lookups
	ScrollDelta           int     `yaml:"scroll_delta" mapstructure:"scroll_delta"`
	RowClickOffsetX       float64 `yaml:"row_click_offset_x" mapstructure:"row_click_offset_x"`
	RowClickOffsetY       float64 `yaml:"row_click_offset_y" mapstructure:"row_click_offset_y"`
	SettleTimeoutMs       int     `yaml:"settle_timeout_ms" mapstructure:"settle_timeout_ms"`
	SettleDelayMs         int     `yaml:"settle_delay_ms" mapstructure:"settle_delay_ms"`
}

// ProcessingConfig represents batch processing settings.
type ProcessingConfig struct {
	DeleteRetries         int     `yaml:"delete_retries" mapstructure:"delete_retries"`
	SuccessTimeoutSeconds float64 `yaml:"success_timeout_seconds" mapstructure:"success_timeout_seconds"`
	FailOnSkipped         bool    `yaml:"fail_on_skipped" mapstructure:"fail_on_skipped"`
	SleepSeconds          float64 `yaml:"sleep_seconds" mapstructure:"sleep_seconds"`
}

// EntityConfig is the page-object description of one ERP entity listing.
type EntityConfig struct {
	Path          string        `yaml:"path" mapstructure:"path"`
	Rows          string        `yaml:"rows" mapstructure:"rows"`     // selector of the listing rows
	Search        string        `yaml:"search" mapstructure:"search"` // server-side filter input
	NewButton     string        `yaml:"new_button" mapstructure:"new_button"`
	SaveButton    string        `yaml:"save_button" mapstructure:"save_button"`
	DeleteButton  string        `yaml:"delete_button" mapstructure:"delete_button"`
	ConfirmButton string        `yaml:"confirm_button" mapstructure:"confirm_button"`
	BackButton    string        `yaml:"back_button" mapstructure:"back_button"`
	Form          string        `yaml:"form" mapstructure:"form"`   // selector that is visible once the edit form is open
	Toast         string        `yaml:"toast" mapstructure:"toast"` // success indicator
	ToastText     string        `yaml:"toast_text" mapstructure:"toast_text"`
	Fields        []FieldConfig `yaml:"fields" mapstructure:"fields"`
	Table         string        `yaml:"table" mapstructure:"table"`             // backend table for verification
	NameColumn    string        `yaml:"name_column" mapstructure:"name_column"` // backend column holding the label
}

// FieldConfig maps a record field to a form control.
type FieldConfig struct {
	Name     string        `yaml:"name" mapstructure:"name"`
	Selector string        `yaml:"selector" mapstructure:"selector"`
	Lookup   *LookupConfig `yaml:"lookup,omitempty" mapstructure:"lookup"`
}

// LookupConfig describes a lookup field resolved through a selection strategy.
type LookupConfig struct {
	Strategy     string `yaml:"strategy" mapstructure:"strategy"`
	Trigger      string `yaml:"trigger" mapstructure:"trigger"` // control that opens the popup
	Root         string `yaml:"root" mapstructure:"root"`
	Item         string `yaml:"item" mapstructure:"item"`
	Next         string `yaml:"next" mapstructure:"next"`
	Filter       string `yaml:"filter" mapstructure:"filter"`
	SelectedAttr string `yaml:"selected_attr" mapstructure:"selected_attr"`
	Exact        bool   `yaml:"exact" mapstructure:"exact"`
}

// BatchConfig represents one batch of record operations.
type BatchConfig struct {
	Entity     string            `yaml:"entity" mapstructure:"entity"`
	Operation  string            `yaml:"operation" mapstructure:"operation"` // create, update, delete
	Data       string            `yaml:"data" mapstructure:"data"`
	Required   []string          `yaml:"required" mapstructure:"required"`
	LabelField string            `yaml:"label_field" mapstructure:"label_field"`
	Flags      map[string]bool   `yaml:"flags" mapstructure:"flags"`
	DependsOn  []string          `yaml:"depends_on" mapstructure:"depends_on"`
	Processing *ProcessingConfig `yaml:"processing,omitempty" mapstructure:"processing"`
}

// DatabaseConfig represents the optional ERP database used for backend verification.
type DatabaseConfig struct {
	Enabled            bool   `yaml:"enabled" mapstructure:"enabled"`
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// ReportConfig represents summary reporting settings.
type ReportConfig struct {
	Format string `yaml:"format" mapstructure:"format"` // console, json, both
	Output string `yaml:"output" mapstructure:"output"` // JSON report path
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// Feature flag names understood by the batch layer.
const (
	FlagManualCodes = "manual_codes"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			StorageState: ".auth/state.json",
			Login: LoginConfig{
				Path:             "/login",
				UsernameSelector: "input[name='username']",
				PasswordSelector: "input[type='password']",
				SubmitSelector:   "button[type='submit']",
			},
		},
		Browser: BrowserConfig{
			Engine:         "chromium",
			Headless:       true,
			TimeoutSeconds: 30,
			ViewportWidth:  1280,
			ViewportHeight: 720,
		},
		Resolver: ResolverConfig{
			MaxDisclosureAttempts: 10,
			MaxPages:              50,
			ScrollDelta:           300,
			RowClickOffsetX:       10,
			RowClickOffsetY:       5,
			SettleTimeoutMs:       2000,
			SettleDelayMs:         250,
		},
		Processing: ProcessingConfig{
			DeleteRetries:         2,
			SuccessTimeoutSeconds: 10,
			FailOnSkipped:         false,
			SleepSeconds:          0,
		},
		Database: DatabaseConfig{
			Enabled:            false,
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     2,
			MaxIdleConnections: 1,
		},
		Report: ReportConfig{
			Format: "console",
			Output: "goerpcheck-report.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// GetBatchProcessing returns the processing config for a batch by name, falling back to global if not set.
func (c *Config) GetBatchProcessing(batchName string) ProcessingConfig {
	batch, err := c.GetBatch(batchName)
	if err != nil {
		return c.Processing
	}
	return batch.GetBatchProcessing(c.Processing)
}

// GetBatchProcessing returns the processing config for a batch, falling back to global if not set.
func (bc *BatchConfig) GetBatchProcessing(global ProcessingConfig) ProcessingConfig {
	if bc.Processing == nil {
		return global
	}

	result := global
	if bc.Processing.DeleteRetries > 0 {
		result.DeleteRetries = bc.Processing.DeleteRetries
	}
	if bc.Processing.SuccessTimeoutSeconds > 0 {
		result.SuccessTimeoutSeconds = bc.Processing.SuccessTimeoutSeconds
	}
	if bc.Processing.SleepSeconds > 0 {
		result.SleepSeconds = bc.Processing.SleepSeconds
	}
	result.FailOnSkipped = bc.Processing.FailOnSkipped || global.FailOnSkipped
	return result
}

// Flag reports whether the named feature flag is enabled for the batch.
func (bc *BatchConfig) Flag(name string) bool {
	if bc.Flags == nil {
		return false
	}
	return bc.Flags[name]
}

// Field returns the field definition with the given name.
func (ec *EntityConfig) Field(name string) (FieldConfig, bool) {
	for _, f := range ec.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldConfig{}, false
}
