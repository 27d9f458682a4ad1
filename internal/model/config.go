package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LocalConfig holds settings for the on-device store.
type LocalConfig struct {
	// Path is the SQLite file backing the local key-value medium.
	Path string `mapstructure:"path" yaml:"path"`
}

// RemoteConfig holds settings for the hosted relational backend.
type RemoteConfig struct {
	// Driver is "postgres" or "sqlite". Empty means no backend is configured.
	Driver string `mapstructure:"driver" yaml:"driver"`

	// DSN is the driver-specific connection string.
	DSN string `mapstructure:"dsn" yaml:"dsn"`

	// HealthIntervalSec is how often reachability is probed.
	HealthIntervalSec int `mapstructure:"health_interval_sec" yaml:"health_interval_sec"`
}

// Configured reports whether a backend has been set up at all.
func (r RemoteConfig) Configured() bool {
	return r.Driver != "" && r.DSN != ""
}

// AuthConfig holds settings for verifying session tokens.
type AuthConfig struct {
	// JWTSecret verifies HS256 session tokens. When empty, tokens are
	// decoded without verification and trusted as issued by the backend.
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

// OptimisticConfig bounds how long an optimistic mutation may stay pending.
type OptimisticConfig struct {
	TimeoutMS int `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

// Timeout returns the rollback bound as a duration.
func (o OptimisticConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutMS) * time.Millisecond
}

// IntervalConfig holds a refresh cadence in seconds.
type IntervalConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
}

// Interval returns the cadence as a duration.
func (i IntervalConfig) Interval() time.Duration {
	return time.Duration(i.IntervalSec) * time.Second
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Local       LocalConfig      `mapstructure:"local" yaml:"local"`
	Remote      RemoteConfig     `mapstructure:"remote" yaml:"remote"`
	Auth        AuthConfig       `mapstructure:"auth" yaml:"auth"`
	Optimistic  OptimisticConfig `mapstructure:"optimistic" yaml:"optimistic"`
	Reminders   IntervalConfig   `mapstructure:"reminders" yaml:"reminders"`
	Suggestions IntervalConfig   `mapstructure:"suggestions" yaml:"suggestions"`
	Display     DisplayConfig    `mapstructure:"display" yaml:"display"`
}

// ConfigDir returns ~/.config/chronicle, falling back to the working directory.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "chronicle")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/chronicle/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Local: LocalConfig{
			Path: filepath.Join(ConfigDir(), "local.db"),
		},
		Remote: RemoteConfig{
			HealthIntervalSec: 30,
		},
		Optimistic:  OptimisticConfig{TimeoutMS: 10000},
		Reminders:   IntervalConfig{IntervalSec: 300},
		Suggestions: IntervalConfig{IntervalSec: 600},
		Display:     DisplayConfig{Theme: "default"},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Values may be overridden by CHRONICLE_* environment variables, e.g.
// CHRONICLE_REMOTE_DSN. If the file does not exist, defaults plus
// environment overrides are returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("chronicle")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultAppConfig()
	v.SetDefault("local.path", def.Local.Path)
	v.SetDefault("remote.driver", "")
	v.SetDefault("remote.dsn", "")
	v.SetDefault("remote.health_interval_sec", def.Remote.HealthIntervalSec)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("optimistic.timeout_ms", def.Optimistic.TimeoutMS)
	v.SetDefault("reminders.interval_sec", def.Reminders.IntervalSec)
	v.SetDefault("suggestions.interval_sec", def.Suggestions.IntervalSec)
	v.SetDefault("display.theme", def.Display.Theme)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Optimistic.TimeoutMS <= 0 {
		cfg.Optimistic.TimeoutMS = def.Optimistic.TimeoutMS
	}
	if cfg.Remote.HealthIntervalSec <= 0 {
		cfg.Remote.HealthIntervalSec = def.Remote.HealthIntervalSec
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("local", cfg.Local)
	v.Set("remote", cfg.Remote)
	v.Set("auth", cfg.Auth)
	v.Set("optimistic", cfg.Optimistic)
	v.Set("reminders", cfg.Reminders)
	v.Set("suggestions", cfg.Suggestions)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
