// Package config provides Viper-based configuration loading for the roll
// automation service.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// RedisConfig holds settings for the item-flag and settings-override store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// RollsConfig holds the global roll automation settings. Per-item flags
// override the three auto-roll toggles.
type RollsConfig struct {
	AutoRollCheck  bool `mapstructure:"auto_roll_check"`
	AutoRollDamage bool `mapstructure:"auto_roll_damage"`
	AutoRollOther  bool `mapstructure:"auto_roll_other"`
	// RollMode is the default visibility: "publicroll", "gmroll", "blindroll" or "selfroll".
	RollMode string `mapstructure:"roll_mode"`
	// DialogModifier names the modifier key that opens the bonus/critical dialog.
	DialogModifier string `mapstructure:"dialog_modifier"`
	// Locale selects the message catalogue, e.g. "en-US".
	Locale string `mapstructure:"locale"`
}

// StorageConfig selects the backends for messages and item flags.
type StorageConfig struct {
	// Messages is "memory" or "postgres".
	Messages string `mapstructure:"messages"`
	// Flags is "memory" or "redis".
	Flags string `mapstructure:"flags"`
}

// AnimationConfig holds the dice-animation websocket hub settings.
type AnimationConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (a AnimationConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// ScriptingConfig holds Lua scripting settings.
type ScriptingConfig struct {
	// DialogScript is a Lua file defining damage_dialog; empty disables the scripted dialog.
	DialogScript     string `mapstructure:"dialog_script"`
	InstructionLimit int    `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Rolls     RollsConfig     `mapstructure:"rolls"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Animation AnimationConfig `mapstructure:"animation"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
}

// Validate checks all configuration invariants. Database and Redis settings
// are only checked when the storage section selects them.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateStorage(c.Storage); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Storage.Messages == "postgres" {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c.Storage.Flags == "redis" {
		if err := validateRedis(c.Redis); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateRolls(c.Rolls); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAnimation(c.Animation); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Scripting.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("scripting.instruction_limit must be >= 0, got %d", c.Scripting.InstructionLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRedis(r RedisConfig) error {
	var errs []string
	if r.Addr == "" {
		errs = append(errs, "redis.addr must not be empty")
	}
	if r.DB < 0 {
		errs = append(errs, fmt.Sprintf("redis.db must be >= 0, got %d", r.DB))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateStorage(s StorageConfig) error {
	var errs []string
	if s.Messages != "memory" && s.Messages != "postgres" {
		errs = append(errs, fmt.Sprintf("storage.messages must be one of [memory, postgres], got %q", s.Messages))
	}
	if s.Flags != "memory" && s.Flags != "redis" {
		errs = append(errs, fmt.Sprintf("storage.flags must be one of [memory, redis], got %q", s.Flags))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRolls(r RollsConfig) error {
	var errs []string
	validModes := map[string]bool{"publicroll": true, "gmroll": true, "blindroll": true, "selfroll": true}
	if !validModes[r.RollMode] {
		errs = append(errs, fmt.Sprintf("rolls.roll_mode must be one of [publicroll, gmroll, blindroll, selfroll], got %q", r.RollMode))
	}
	validKeys := map[string]bool{"shiftKey": true, "altKey": true, "ctrlKey": true, "metaKey": true}
	if !validKeys[r.DialogModifier] {
		errs = append(errs, fmt.Sprintf("rolls.dialog_modifier must be one of [shiftKey, altKey, ctrlKey, metaKey], got %q", r.DialogModifier))
	}
	if r.Locale == "" {
		errs = append(errs, "rolls.locale must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAnimation(a AnimationConfig) error {
	var errs []string
	if a.Host == "" {
		errs = append(errs, "animation.host must not be empty")
	}
	if a.Port < 1 || a.Port > 65535 {
		errs = append(errs, fmt.Sprintf("animation.port must be 1-65535, got %d", a.Port))
	}
	if a.WriteTimeout < 0 {
		errs = append(errs, "animation.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path loads defaults and
// environment overrides only.
//
// Precondition: path must be empty or a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with MULTIROLL_ prefix
	v.SetEnvPrefix("MULTIROLL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	if v == nil {
		return Config{}, errors.New("config: nil viper instance")
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults installs every default value on v.
func SetDefaults(v *viper.Viper) {
	setDefaults(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "multiroll")
	v.SetDefault("database.password", "multiroll")
	v.SetDefault("database.name", "multiroll")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("rolls.auto_roll_check", true)
	v.SetDefault("rolls.auto_roll_damage", true)
	v.SetDefault("rolls.auto_roll_other", false)
	v.SetDefault("rolls.roll_mode", "publicroll")
	v.SetDefault("rolls.dialog_modifier", "shiftKey")
	v.SetDefault("rolls.locale", "en-US")

	v.SetDefault("storage.messages", "memory")
	v.SetDefault("storage.flags", "memory")

	v.SetDefault("animation.host", "127.0.0.1")
	v.SetDefault("animation.port", 30001)
	v.SetDefault("animation.write_timeout", "5s")

	v.SetDefault("scripting.instruction_limit", 100000)
}
