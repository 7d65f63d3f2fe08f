package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dagaz/internal/query"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Journal JournalConfig     `yaml:"journal"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Journal.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
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

// JournalConfig holds the store location and the query-engine defaults the
// core accepts from its environment.
type JournalConfig struct {
	DatabasePath string `yaml:"database_path"`
	// WeekdayOrigin selects which weekday is numbered zero (0 = Monday).
	WeekdayOrigin int `yaml:"weekday_origin"`
	// DefaultTagMode is the neutral tag mode of new filter sessions.
	DefaultTagMode string `yaml:"default_tag_mode"`
	// DefaultDateMode is the neutral date mode of new filter sessions.
	DefaultDateMode string `yaml:"default_date_mode"`
}

// Validate validates the journal configuration.
func (c *JournalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DatabasePath, validation.Required),
		validation.Field(&c.WeekdayOrigin, validation.Min(0), validation.Max(6)),
		validation.Field(&c.DefaultTagMode, validation.Required,
			validation.In("any_of", "at_least", "only", "untagged")),
		validation.Field(&c.DefaultDateMode, validation.Required,
			validation.In("continuous", "intervals")),
	)
}

// TagMode returns the parsed default tag mode. Call after Validate.
func (c *JournalConfig) TagMode() (query.TagMode, error) {
	return query.ParseTagMode(c.DefaultTagMode)
}

// DateMode returns the parsed default date mode. Call after Validate.
func (c *JournalConfig) DateMode() (query.DateMode, error) {
	return query.ParseDateMode(c.DefaultDateMode)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Journal: JournalConfig{
			DatabasePath:    "./dagaz.db",
			WeekdayOrigin:   0,
			DefaultTagMode:  "any_of",
			DefaultDateMode: "continuous",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
