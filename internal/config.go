package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/metacheck/internal/checker"
	"github.com/starford/metacheck/internal/identifier"
	"github.com/starford/metacheck/internal/lanelet"
	"github.com/starford/metacheck/internal/lims"
	"github.com/starford/metacheck/internal/reconcile"
	"github.com/starford/metacheck/internal/storage"
	"github.com/starford/metacheck/internal/validator"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Storage drivers.
const (
	StorageFS = "fs"
	StorageS3 = "s3"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app" toml:"app"`
	Storage StorageConfig     `yaml:"storage" toml:"storage"`
	LIMS    lims.Config       `yaml:"lims" toml:"lims"`
	Results ResultsConfig     `yaml:"results" toml:"results"`
	Auth    AuthConfig        `yaml:"auth" toml:"auth"`
	Rules   RulesConfig       `yaml:"rules" toml:"rules"`
	Policy  reconcile.Policy  `yaml:"policy" toml:"policy"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.LIMS.Validate(); err != nil {
		return fmt.Errorf("lims: %w", err)
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	return c.Auth.Validate()
}

// EngineRules assembles the rule sets of the check engine.
func (c *Config) EngineRules() reconcile.Rules {
	return reconcile.Rules{
		Identifiers: c.Rules.Identifiers,
		Validation:  c.Rules.Validation,
		Conventions: c.Rules.Conventions,
		Policy:      c.Policy,
	}
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel    slog.Level `yaml:"log_level" toml:"log_level"`
	HTTP        HTTPConfig `yaml:"http" toml:"http"`
	Concurrency int        `yaml:"concurrency" toml:"concurrency"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(256)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig selects and configures the archive backend.
type StorageConfig struct {
	Driver string           `yaml:"driver" toml:"driver"`
	FS     FSConfig         `yaml:"fs" toml:"fs"`
	S3     storage.S3Config `yaml:"s3" toml:"s3"`
}

// FSConfig holds the root directory of a local archive.
type FSConfig struct {
	Root string `yaml:"root" toml:"root"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(StorageFS, StorageS3)),
	); err != nil {
		return err
	}
	switch c.Driver {
	case StorageFS:
		return validation.ValidateStruct(&c.FS,
			validation.Field(&c.FS.Root, validation.Required),
		)
	default:
		return validation.ValidateStruct(&c.S3,
			validation.Field(&c.S3.Bucket, validation.Required),
			validation.Field(&c.S3.SecretAccessKey, validation.Required.When(c.S3.AccessKeyID != "")),
		)
	}
}

// ResultsConfig holds the run history database. An empty path disables
// persistence.
type ResultsConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// RulesConfig holds the naming and format conventions of the archive.
type RulesConfig struct {
	Identifiers identifier.Rules    `yaml:"identifiers" toml:"identifiers"`
	Validation  validator.Rules     `yaml:"validation" toml:"validation"`
	Conventions lanelet.Conventions `yaml:"conventions" toml:"conventions"`
}

// Validate validates the rules.
func (c *RulesConfig) Validate() error {
	if err := c.Validation.Validate(); err != nil {
		return err
	}
	if err := c.Conventions.Validate(); err != nil {
		return err
	}
	if _, err := identifier.New(c.Identifiers); err != nil {
		return err
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
			Concurrency: checker.DefaultConcurrency,
		},
		Storage: StorageConfig{
			Driver: StorageFS,
			FS: FSConfig{
				Root: "./archive",
			},
		},
		Results: ResultsConfig{
			Path: "./metacheck.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Rules: RulesConfig{
			Validation: validator.DefaultRules(),
		},
		Policy: reconcile.DefaultPolicy(),
	}
}
