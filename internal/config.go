package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/cardsync/internal/cards"
	"github.com/starford/cardsync/internal/measure"
	"github.com/starford/cardsync/internal/view"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Vault   VaultConfig       `yaml:"vault"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Index   IndexConfig       `yaml:"index"`
	Cards   CardsConfig       `yaml:"cards"`
	Measure MeasureConfig     `yaml:"measure"`
	View    ViewConfig        `yaml:"view"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Vault, &c.SQLite, &c.Auth, &c.Index, &c.Cards, &c.Measure, &c.View,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level      `yaml:"log_level"`
	LogFile   string          `yaml:"log_file"`
	LogRotate LogRotateConfig `yaml:"log_rotate"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.LogRotate.Validate(); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// LogRotateConfig bounds the log file when LogFile is set.
type LogRotateConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

// Validate validates the rotation settings.
func (c *LogRotateConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxBackups, validation.Min(0)),
		validation.Field(&c.MaxAgeDays, validation.Min(0)),
	)
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

// VaultConfig holds the path to the vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
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

// IndexConfig controls the batched reference index build.
type IndexConfig struct {
	BatchSize int           `yaml:"batch_size"`
	BatchIdle time.Duration `yaml:"batch_idle"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.BatchIdle, validation.Min(time.Duration(0))),
	)
}

// CardsConfig controls card creation and sync.
type CardsConfig struct {
	GroupSynthesis   bool    `yaml:"group_synthesis"`
	SyncSize         bool    `yaml:"sync_size"`
	SizePolicy       string  `yaml:"size_policy"`
	Gap              float64 `yaml:"gap"`
	DefaultX         float64 `yaml:"default_x"`
	DefaultY         float64 `yaml:"default_y"`
	Tolerance        float64 `yaml:"tolerance"`
	FingerprintGuard bool    `yaml:"fingerprint_guard"`
}

// Validate validates the cards configuration.
func (c *CardsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SizePolicy, validation.Required,
			validation.In(string(measure.PolicyMeasured), string(measure.PolicySquare))),
		validation.Field(&c.Gap, validation.Min(0.0)),
		validation.Field(&c.Tolerance, validation.Min(0.0)),
	)
}

// Options returns the engine settings.
func (c *CardsConfig) Options() cards.Options {
	return cards.Options{
		GroupSynthesis: c.GroupSynthesis,
		SyncSize:       c.SyncSize,
		Gap:            c.Gap,
		DefaultX:       c.DefaultX,
		DefaultY:       c.DefaultY,
		Tolerance:      c.Tolerance,
	}
}

// MeasureConfig controls the off-screen text measurement.
type MeasureConfig struct {
	MinWidth    float64 `yaml:"min_width"`
	MaxWidth    float64 `yaml:"max_width"`
	TitleMargin float64 `yaml:"title_margin"`
	FontSize    float64 `yaml:"font_size"`
	LineSpacing float64 `yaml:"line_spacing"`
	Padding     float64 `yaml:"padding"`
	BlockGap    float64 `yaml:"block_gap"`
	CacheSize   int     `yaml:"cache_size"`
}

// Validate validates the measure configuration.
func (c *MeasureConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MinWidth, validation.Required, validation.Min(1.0)),
		validation.Field(&c.MaxWidth, validation.Required, validation.Min(1.0)),
		validation.Field(&c.TitleMargin, validation.Min(0.0)),
		validation.Field(&c.FontSize, validation.Required, validation.Min(1.0)),
		validation.Field(&c.LineSpacing, validation.Required, validation.Min(1.0)),
		validation.Field(&c.Padding, validation.Min(0.0)),
		validation.Field(&c.BlockGap, validation.Min(0.0)),
		validation.Field(&c.CacheSize, validation.Min(0)),
	); err != nil {
		return err
	}
	if c.MinWidth > c.MaxWidth {
		return fmt.Errorf("measure: min_width %v exceeds max_width %v", c.MinWidth, c.MaxWidth)
	}
	return nil
}

// Service returns the measuring service settings for the given policy.
func (c *MeasureConfig) Service(policy string) measure.Config {
	return measure.Config{
		MinWidth:    c.MinWidth,
		MaxWidth:    c.MaxWidth,
		TitleMargin: c.TitleMargin,
		Policy:      measure.Policy(policy),
		CacheSize:   c.CacheSize,
	}
}

// Font returns the typography settings.
func (c *MeasureConfig) Font() measure.FontConfig {
	return measure.FontConfig{
		Size:        c.FontSize,
		LineSpacing: c.LineSpacing,
		Padding:     c.Padding,
		BlockGap:    c.BlockGap,
	}
}

// ViewConfig bounds the wait for a canvas view to become ready.
type ViewConfig struct {
	ReadyAttempts int           `yaml:"ready_attempts"`
	ReadyInterval time.Duration `yaml:"ready_interval"`
}

// Validate validates the view configuration.
func (c *ViewConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ReadyAttempts, validation.Required, validation.Min(1)),
		validation.Field(&c.ReadyInterval, validation.Required),
	)
}

// Focus returns the readiness budget.
func (c *ViewConfig) Focus() view.Config {
	return view.Config{Attempts: c.ReadyAttempts, Interval: c.ReadyInterval}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	m := measure.DefaultConfig()
	f := measure.DefaultFontConfig()
	o := cards.DefaultOptions()
	v := view.DefaultConfig()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			LogRotate: LogRotateConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./cardsync.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Index: IndexConfig{
			BatchSize: 5,
			BatchIdle: 20 * time.Millisecond,
		},
		Cards: CardsConfig{
			GroupSynthesis:   o.GroupSynthesis,
			SyncSize:         o.SyncSize,
			SizePolicy:       string(measure.PolicyMeasured),
			Gap:              o.Gap,
			DefaultX:         o.DefaultX,
			DefaultY:         o.DefaultY,
			Tolerance:        o.Tolerance,
			FingerprintGuard: true,
		},
		Measure: MeasureConfig{
			MinWidth:    m.MinWidth,
			MaxWidth:    m.MaxWidth,
			TitleMargin: m.TitleMargin,
			FontSize:    f.Size,
			LineSpacing: f.LineSpacing,
			Padding:     f.Padding,
			BlockGap:    f.BlockGap,
			CacheSize:   m.CacheSize,
		},
		View: ViewConfig{
			ReadyAttempts: v.Attempts,
			ReadyInterval: v.Interval,
		},
	}
}
