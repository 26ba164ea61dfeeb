// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/pagechain/api/schemas"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Animation() AnimationConfig
	Click() ClickConfig
	Identifier() IdentifierConfig
	PageObject() PageObjectConfig

	SetBrowserHeadless(bool)
	SetBrowserDriver(string)
	SetAnimationEnabled(bool)
	SetClickStrict(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	BrowserCfg    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	AnimationCfg  AnimationConfig  `mapstructure:"animation" yaml:"animation"`
	ClickCfg      ClickConfig      `mapstructure:"click" yaml:"click"`
	IdentifierCfg IdentifierConfig `mapstructure:"identifier" yaml:"identifier"`
	PageObjectCfg PageObjectConfig `mapstructure:"pageobject" yaml:"pageobject"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig       { return c.BrowserCfg }
func (c *Config) Animation() AnimationConfig   { return c.AnimationCfg }
func (c *Config) Click() ClickConfig           { return c.ClickCfg }
func (c *Config) Identifier() IdentifierConfig { return c.IdentifierCfg }
func (c *Config) PageObject() PageObjectConfig { return c.PageObjectCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)  { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserDriver(d string)  { c.BrowserCfg.Driver = d }
func (c *Config) SetAnimationEnabled(b bool) { c.AnimationCfg.Enabled = b }
func (c *Config) SetClickStrict(b bool)      { c.ClickCfg.Strict = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// Supported page-scripting backends.
const (
	DriverChromedp   = "chromedp"
	DriverPlaywright = "playwright"
)

// BrowserConfig holds settings for the browser the page objects drive.
type BrowserConfig struct {
	Driver            string        `mapstructure:"driver" yaml:"driver"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	RemoteURL         string        `mapstructure:"remote_url" yaml:"remote_url"`
	Install           bool          `mapstructure:"install" yaml:"install"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	OperationTimeout  time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
}

// AnimationConfig drives the visual cursor. When Enabled is false the sequencer snaps.
type AnimationConfig struct {
	Enabled  bool                      `mapstructure:"enabled" yaml:"enabled"`
	Pointer  schemas.PointerAnimation  `mapstructure:"pointer" yaml:"pointer"`
	Keyboard schemas.KeyboardAnimation `mapstructure:"keyboard" yaml:"keyboard"`
}

// Schema converts the file representation into the wire shape consumed by the sequencer.
func (a AnimationConfig) Schema() schemas.AnimationConfig {
	if !a.Enabled {
		return schemas.AnimationConfig{Disabled: true}
	}
	pointer := a.Pointer
	keyboard := a.Keyboard
	return schemas.AnimationConfig{Pointer: &pointer, Keyboard: &keyboard}
}

// ClickConfig tunes click confirmation.
type ClickConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Strict  bool          `mapstructure:"strict" yaml:"strict"`
	Confirm bool          `mapstructure:"confirm" yaml:"confirm"`
}

// IdentifierConfig tunes identifier extraction from the page address.
type IdentifierConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// PageObjectConfig configures the produced page object surface.
type PageObjectConfig struct {
	Attribute             string  `mapstructure:"attribute" yaml:"attribute"`
	InstrumentedAttribute string  `mapstructure:"instrumented_attribute" yaml:"instrumented_attribute"`
	Pace                  float64 `mapstructure:"pace" yaml:"pace"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagechain")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.driver", DriverChromedp)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.install", false)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 800)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.operation_timeout", "10s")

	// -- Animation --
	v.SetDefault("animation.enabled", true)
	v.SetDefault("animation.pointer.duration_ms", 350.0)
	v.SetDefault("animation.pointer.transition_style", "cubic-bezier(0.22, 1, 0.36, 1)")
	v.SetDefault("animation.pointer.click_delay_ms", 50.0)
	v.SetDefault("animation.keyboard.type_delay_ms", 25.0)

	// -- Click confirmation --
	v.SetDefault("click.timeout", "2s")
	v.SetDefault("click.strict", true)
	v.SetDefault("click.confirm", true)

	// -- Identifier extraction --
	v.SetDefault("identifier.timeout", "10s")
	v.SetDefault("identifier.poll_interval", "100ms")

	// -- Page objects --
	v.SetDefault("pageobject.attribute", "data-testid")
	v.SetDefault("pageobject.instrumented_attribute", "data-pagechain-instrumented")
	v.SetDefault("pageobject.pace", 1.0)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.LoggerCfg.LogFile != "" {
		expanded, err := homedir.Expand(cfg.LoggerCfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to expand logger.log_file: %w", err)
		}
		cfg.LoggerCfg.LogFile = expanded
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.BrowserCfg.Driver) {
	case DriverChromedp, DriverPlaywright:
	default:
		return fmt.Errorf("browser.driver must be %q or %q, got %q", DriverChromedp, DriverPlaywright, c.BrowserCfg.Driver)
	}
	if c.ClickCfg.Timeout <= 0 {
		return fmt.Errorf("click.timeout must be a positive duration")
	}
	if c.IdentifierCfg.Timeout <= 0 {
		return fmt.Errorf("identifier.timeout must be a positive duration")
	}
	if c.IdentifierCfg.PollInterval <= 0 {
		return fmt.Errorf("identifier.poll_interval must be a positive duration")
	}
	if strings.TrimSpace(c.PageObjectCfg.Attribute) == "" {
		return fmt.Errorf("pageobject.attribute is required")
	}
	if err := c.AnimationCfg.Validate(); err != nil {
		return fmt.Errorf("animation configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the animation settings.
func (a *AnimationConfig) Validate() error {
	if !a.Enabled {
		return nil
	}
	if a.Pointer.DurationMs < 0 {
		return fmt.Errorf("pointer.duration_ms must not be negative")
	}
	if a.Pointer.ClickDelayMs < 0 {
		return fmt.Errorf("pointer.click_delay_ms must not be negative")
	}
	if a.Keyboard.TypeDelayMs < 0 {
		return fmt.Errorf("keyboard.type_delay_ms must not be negative")
	}
	return nil
}
