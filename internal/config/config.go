// Package config handles loading and validation of the tenant configuration
// file. The YAML document is checked against an embedded CUE schema before
// decoding, so shape errors surface as ConfigErrors ahead of any I/O.
//
// No other package reads ambient environment state. Secrets (API key, SMTP
// credentials, webhook token) are resolved here through env var names the
// config file declares.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Error represents an invalid or unusable tenant configuration.
// Configuration errors are fatal and always precede warehouse or network I/O.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Message, e.Err)
	}
	return "config: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Entity describes how one GraphQL entity is extracted: where its query
// lives, where records and page info sit in the response, and which
// variables carry pagination and window bounds.
type Entity struct {
	QueryFile             string `yaml:"query_file"`
	RootPath              string `yaml:"root_path"`
	PageInfoPath          string `yaml:"page_info_path"`
	FirstVariable         string `yaml:"first_variable"`
	AfterVariable         string `yaml:"after_variable"`
	UpdatedAfterVariable  string `yaml:"updated_after_variable"`
	UpdatedBeforeVariable string `yaml:"updated_before_variable"`
	UpdatedAtField        string `yaml:"updated_at_field"`
}

// Thresholds holds the alert rule thresholds.
type Thresholds struct {
	YardTimeMinutes     int     `yaml:"yard_time_minutes"`
	LoadVariancePercent float64 `yaml:"load_variance_percent"`
	LateDeliveryMinutes int     `yaml:"late_delivery_minutes"`
	AROverdueAmount     float64 `yaml:"ar_overdue_amount"`
}

// Email configures the email notifier. Credentials are looked up from the
// named env vars at send time, never stored in the file.
type Email struct {
	Enabled     bool     `yaml:"enabled"`
	SMTPHost    string   `yaml:"smtp_host"`
	SMTPPort    int      `yaml:"smtp_port"`
	Sender      string   `yaml:"sender"`
	Recipients  []string `yaml:"recipients"`
	UsernameEnv string   `yaml:"username_env"`
	PasswordEnv string   `yaml:"password_env"`
}

// Webhook configures the webhook notifier.
type Webhook struct {
	Enabled        bool   `yaml:"enabled"`
	URL            string `yaml:"url"`
	BearerTokenEnv string `yaml:"bearer_token_env"`
}

// Config is the explicit configuration value object threaded into every
// component constructor.
type Config struct {
	TenantName         string            `yaml:"tenant_name"`
	Timezone           string            `yaml:"timezone"`
	GraphQLEndpoint    string            `yaml:"graphql_endpoint"`
	APIKeyEnv          string            `yaml:"api_key_env"`
	TimeoutSeconds     int               `yaml:"timeout_seconds"`
	PageSize           int               `yaml:"page_size"`
	MaxPages           int               `yaml:"max_pages"`
	SyncWindowDays     int               `yaml:"sync_window_days"`
	DispatchSLAMinutes int               `yaml:"dispatch_sla_minutes"`
	WarehousePath      string            `yaml:"warehouse_path"`
	OutputDir          string            `yaml:"output_dir"`
	SharedDrivePath    string            `yaml:"shared_drive_path"`
	Entities           map[string]Entity `yaml:"entities"`
	Alerts             Thresholds        `yaml:"alerts"`
	Email              Email             `yaml:"email"`
	Webhook            Webhook           `yaml:"webhook"`
}

// Default creates a Config carrying the documented defaults. Load starts
// from this value so absent keys keep their defaults after decoding.
func Default() Config {
	return Config{
		TenantName:         "sample-tenant",
		Timezone:           "America/Chicago",
		APIKeyEnv:          "FASTWEIGH_API_KEY",
		TimeoutSeconds:     45,
		PageSize:           500,
		MaxPages:           2000,
		SyncWindowDays:     1,
		DispatchSLAMinutes: 90,
		WarehousePath:      "data/ops_intelligence.db",
		OutputDir:          "output",
		Alerts: Thresholds{
			YardTimeMinutes:     75,
			LoadVariancePercent: 5.0,
			LateDeliveryMinutes: 30,
			AROverdueAmount:     10000.0,
		},
		Email: Email{
			SMTPPort:    587,
			UsernameEnv: "SMTP_USERNAME",
			PasswordEnv: "SMTP_PASSWORD",
		},
	}
}

// Load reads, validates, and decodes the tenant configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("reading %s", path), Err: err}
	}
	return Parse(path, data)
}

// Parse validates raw YAML against the embedded schema and decodes it.
// The filename is used only for error positions.
func Parse(filename string, data []byte) (*Config, error) {
	if err := validateSchema(filename, data); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &Error{Message: "parsing config", Err: err}
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validateSchema unifies the YAML document with the embedded CUE schema.
func validateSchema(filename string, data []byte) error {
	cuectx := cuecontext.New()

	schema := cuectx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return &Error{Message: "compiling config schema", Err: err}
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return &Error{Message: "parsing config", Err: err}
	}

	value := cuectx.BuildFile(file)
	if err := value.Err(); err != nil {
		return &Error{Message: "building config value", Err: err}
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return &Error{Message: fmt.Sprintf("invalid tenant configuration in %s", filename), Err: err}
	}
	return nil
}

// validate enforces the invariants the schema cannot express structurally.
func validate(cfg *Config) error {
	if cfg.GraphQLEndpoint == "" {
		return &Error{Message: "graphql_endpoint is required"}
	}
	if len(cfg.Entities) == 0 {
		return &Error{Message: "at least one entity is required"}
	}
	if cfg.SyncWindowDays <= 0 {
		return &Error{Message: fmt.Sprintf("sync_window_days must be positive, got %d", cfg.SyncWindowDays)}
	}
	if cfg.PageSize <= 0 {
		return &Error{Message: fmt.Sprintf("page_size must be positive, got %d", cfg.PageSize)}
	}
	if cfg.MaxPages <= 0 {
		return &Error{Message: fmt.Sprintf("max_pages must be positive, got %d", cfg.MaxPages)}
	}
	for name, e := range cfg.Entities {
		if e.QueryFile == "" || e.RootPath == "" || e.PageInfoPath == "" {
			return &Error{Message: fmt.Sprintf("entity %q needs query_file, root_path, and page_info_path", name)}
		}
	}
	return nil
}

// EntityNames returns the configured entity names. Callers that need a
// stable order sort the result themselves.
func (c *Config) EntityNames() []string {
	names := make([]string, 0, len(c.Entities))
	for name := range c.Entities {
		names = append(names, name)
	}
	return names
}

// ResolveEntities checks that every requested entity exists in the config.
// A nil or empty request means all configured entities.
func (c *Config) ResolveEntities(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return c.EntityNames(), nil
	}
	for _, name := range requested {
		if _, ok := c.Entities[name]; !ok {
			return nil, &Error{Message: fmt.Sprintf("entity %q is not configured", name)}
		}
	}
	return requested, nil
}

// WindowSize returns the sync window duration.
func (c *Config) WindowSize() time.Duration {
	return time.Duration(c.SyncWindowDays) * 24 * time.Hour
}

// Timeout returns the per-network-call timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// APIKey resolves the GraphQL API key from the configured env var.
func (c *Config) APIKey() (string, error) {
	key := os.Getenv(c.APIKeyEnv)
	if key == "" {
		return "", &Error{Message: fmt.Sprintf("missing API key in env var %q", c.APIKeyEnv)}
	}
	return key, nil
}

// Apply an entity's variable-name defaults without mutating the stored copy.
func (e Entity) WithDefaults() Entity {
	if e.FirstVariable == "" {
		e.FirstVariable = "first"
	}
	if e.AfterVariable == "" {
		e.AfterVariable = "after"
	}
	if e.UpdatedAfterVariable == "" {
		e.UpdatedAfterVariable = "updatedAfter"
	}
	if e.UpdatedBeforeVariable == "" {
		e.UpdatedBeforeVariable = "updatedBefore"
	}
	if e.UpdatedAtField == "" {
		e.UpdatedAtField = "lastUpdatedAt"
	}
	return e
}
