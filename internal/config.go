package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Content     ContentConfig     `yaml:"content"`
	Credentials CredentialsConfig `yaml:"credentials"`
	History     HistoryConfig     `yaml:"history"`
	Session     SessionConfig     `yaml:"session"`
	Bootstrap   BootstrapConfig   `yaml:"bootstrap"`
	API         APIConfig         `yaml:"api"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Content.Validate(); err != nil {
		return err
	}
	if err := c.Credentials.Validate(); err != nil {
		return err
	}
	if err := c.History.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if err := c.Bootstrap.Validate(); err != nil {
		return err
	}
	return c.API.Validate()
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

// ContentConfig points at the directory holding documents and images.
type ContentConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// CredentialsConfig holds the path of the username -> hash mapping file.
type CredentialsConfig struct {
	Path string `yaml:"path"`
	// BcryptCost defaults to bcrypt.DefaultCost when zero.
	BcryptCost int `yaml:"bcrypt_cost"`
}

// Validate validates the credentials configuration.
func (c *CredentialsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.BcryptCost, validation.Min(0), validation.Max(31)),
	)
}

// HistoryConfig holds the path of the file name -> snapshots mapping file.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the history configuration.
func (c *HistoryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SessionConfig controls the signed session cookie.
//
// An empty Secret makes Run generate a random one, so sessions do not
// survive a restart.
type SessionConfig struct {
	Secret     string        `yaml:"secret"`
	CookieName string        `yaml:"cookie_name"`
	MaxAge     time.Duration `yaml:"max_age"`
}

// Validate validates the session configuration.
func (c *SessionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CookieName, validation.Required),
		validation.Field(&c.MaxAge, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.Secret, validation.When(c.Secret != "", validation.Length(16, 0))),
	)
}

// BootstrapConfig lists users registered once at startup. Users that
// already exist are left untouched.
type BootstrapConfig struct {
	Users []BootstrapUser `yaml:"users"`
}

// Validate validates the bootstrap configuration.
func (c *BootstrapConfig) Validate() error {
	for i := range c.Users {
		if err := c.Users[i].Validate(); err != nil {
			return fmt.Errorf("bootstrap user %d: %w", i, err)
		}
	}
	return nil
}

// BootstrapUser is a seeded credential.
type BootstrapUser struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Validate validates a seeded credential.
func (u *BootstrapUser) Validate() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Username, validation.Required),
		validation.Field(&u.Password, validation.Required),
	)
}

// APIConfig controls the JSON API under /api.
type APIConfig struct {
	// AllowedOrigins enables CORS for these origins. Empty disables CORS.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Validate validates the API configuration.
func (c *APIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AllowedOrigins, validation.Each(validation.Required, is.URL)),
	)
}

// MetricsConfig controls the Prometheus endpoint at /metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 4567,
			},
		},
		Content: ContentConfig{
			Dir: "./data",
		},
		Credentials: CredentialsConfig{
			Path: "./users.yml",
		},
		History: HistoryConfig{
			Path: "./history.yml",
		},
		Session: SessionConfig{
			CookieName: "folio_session",
			MaxAge:     12 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
