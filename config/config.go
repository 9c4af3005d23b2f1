// Package config loads runtime settings from the environment through Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config groups the application settings.
type Config struct {
	App    AppConfig
	Store  StoreConfig
	Report ReportConfig
	Auth   AuthConfig
}

// AppConfig is general application configuration.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver       string // sqlite or memory
	Path         string // sqlite file, ":memory:" allowed
	SeedDefaults bool
}

// ReportConfig controls calendar evaluation of windows and reports.
type ReportConfig struct {
	Timezone string
}

// Location resolves the configured timezone.
func (c ReportConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("report timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// AuthConfig holds credential hashing settings.
type AuthConfig struct {
	BcryptCost int
}

// Load reads configuration from environment variables, and optionally from
// config/config.env and .env in the working directory. Both files are read
// when present; .env overrides config/config.env and the environment
// overrides both.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("env")

	for _, file := range []string{"config/config.env", ".env"} {
		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "laundry-ledger"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Driver:       strings.ToLower(getString(v, "STORE_DRIVER", DriverSQLite)),
			Path:         getString(v, "STORE_PATH", "rol.db"),
			SeedDefaults: getBool(v, "SEED_DEFAULTS", true),
		},
		Report: ReportConfig{
			Timezone: getString(v, "REPORT_TIMEZONE", "Local"),
		},
		Auth: AuthConfig{
			BcryptCost: getInt(v, "BCRYPT_COST", bcrypt.DefaultCost),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the program cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverMemory, c.Store.Driver)
	}
	if c.Store.Driver == DriverSQLite && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required for the sqlite driver")
	}
	if _, err := c.Report.Location(); err != nil {
		return err
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.Auth.BcryptCost)
	}
	return nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if !v.IsSet(key) {
		return def
	}
	if s, ok := v.Get(key).(string); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return def
		}
		return n
	}
	return v.GetInt(key)
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if !v.IsSet(key) {
		return def
	}
	if s, ok := v.Get(key).(string); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return def
		}
		return b
	}
	return v.GetBool(key)
}
