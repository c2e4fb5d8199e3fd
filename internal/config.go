package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/outliner/internal/persist"
	"github.com/starford/outliner/internal/recovery"
	"github.com/starford/outliner/internal/writechan"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Platforms.
const (
	PlatformDesktop = "desktop"
	PlatformIOS     = persist.PlatformIOS
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	Recovery  RecoveryConfig    `yaml:"recovery"`
	Autosave  AutosaveConfig    `yaml:"autosave"`
	Channel   ChannelConfig     `yaml:"channel"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Workspace.Validate(); err != nil {
		return err
	}
	if err := c.Recovery.Validate(); err != nil {
		return err
	}
	if err := c.Autosave.Validate(); err != nil {
		return err
	}
	if err := c.Channel.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// Settings translates the configuration into coordinator settings.
func (c *Config) Settings() persist.Settings {
	return persist.Settings{
		OwnedName:       c.Workspace.OwnedName,
		Platform:        c.Workspace.Platform,
		RecoveryKey:     c.Recovery.Key,
		RecoveryDelay:   c.Autosave.RecoveryDelay,
		DurableInterval: c.Autosave.DurableInterval,
		SafetyTimeout:   c.Channel.SafetyTimeout,
	}
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

// WorkspaceConfig locates the owned store and the optional external file.
//
// Open, when set, names an outline file on disk that is opened at startup
// and saved back in place. Watch reloads it when another program changes
// it while there are no unsaved edits.
type WorkspaceConfig struct {
	Path      string `yaml:"path"`
	OwnedName string `yaml:"owned_name"`
	ExportDir string `yaml:"export_dir"`
	Platform  string `yaml:"platform"`
	Open      string `yaml:"open"`
	Watch     bool   `yaml:"watch"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	if c.Platform == "" {
		c.Platform = PlatformDesktop
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.OwnedName, validation.Required),
		validation.Field(&c.Platform, validation.In(PlatformDesktop, PlatformIOS)),
	)
}

// RecoveryConfig holds the recovery slot database settings. Quota bounds
// the compressed draft size in bytes; zero means unbounded.
type RecoveryConfig struct {
	Path  string `yaml:"path"`
	Key   string `yaml:"key"`
	Quota int64  `yaml:"quota"`
}

// Validate validates the recovery configuration.
func (c *RecoveryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Key, validation.Required),
		validation.Field(&c.Quota, validation.Min(int64(0))),
	)
}

// AutosaveConfig holds autosave timings. A negative DurableInterval turns
// the periodic owned-store save off.
type AutosaveConfig struct {
	RecoveryDelay   time.Duration `yaml:"recovery_delay"`
	DurableInterval time.Duration `yaml:"durable_interval"`
}

// Validate validates the autosave configuration.
func (c *AutosaveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RecoveryDelay, validation.Required, validation.Min(100*time.Millisecond)),
		validation.Field(&c.DurableInterval, validation.Required),
	)
}

// ChannelConfig holds write channel timeouts.
type ChannelConfig struct {
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	SafetyTimeout time.Duration `yaml:"safety_timeout"`
}

// Validate validates the channel configuration.
func (c *ChannelConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.WriteTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.SafetyTimeout, validation.Required, validation.Min(time.Millisecond)),
	); err != nil {
		return err
	}
	if c.SafetyTimeout < c.WriteTimeout {
		return fmt.Errorf("channel: safety_timeout %s is shorter than write_timeout %s", c.SafetyTimeout, c.WriteTimeout)
	}
	return nil
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
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
		Workspace: WorkspaceConfig{
			Path:      "./workspace",
			OwnedName: persist.DefaultOwnedName,
			ExportDir: "exports",
			Platform:  PlatformDesktop,
			Watch:     true,
		},
		Recovery: RecoveryConfig{
			Path:  "./outliner.db",
			Key:   recovery.DefaultKey,
			Quota: 5 << 20,
		},
		Autosave: AutosaveConfig{
			RecoveryDelay:   persist.DefaultRecoveryDelay,
			DurableInterval: persist.DefaultDurableInterval,
		},
		Channel: ChannelConfig{
			WriteTimeout:  writechan.DefaultTimeout,
			SafetyTimeout: persist.DefaultSafetyTimeout,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
