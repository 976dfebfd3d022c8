// Package config loads process configuration from config.toml, .env and
// DAIRY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Log        LogConfig
	HTTP       HTTPConfig
	Collection CollectionConfig
	Scheduler  SchedulerConfig
	Reconcile  ReconcileConfig
}

// AppConfig holds application-specific settings.
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// StatementTimeout bounds every transaction; zero disables it.
	StatementTimeout time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string
	Development bool
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	IdempotencyTTL  time.Duration
}

// CollectionConfig holds intake window settings.
type CollectionConfig struct {
	// Timezone is the IANA zone the windows are expressed in.
	Timezone string
}

// Location resolves Timezone.
func (c CollectionConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// SchedulerConfig holds worker job schedules in cron syntax.
type SchedulerConfig struct {
	Enabled          bool
	AutoCloseCron    string
	StatusRefresh    string
	IdempotencyPurge string
	JobTimeout       time.Duration
}

// ReconcileConfig holds storage reconciliation settings.
type ReconcileConfig struct {
	Tolerance float64
}

// Load reads configuration. Priority, highest first: DAIRY_* environment
// variables (a .env file in the working directory is loaded into the
// environment first), config.toml, built-in defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/dairyops")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper builds the config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("DAIRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	applyDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			URL:              v.GetString("database.url"),
			MaxConns:         v.GetInt32("database.max_conns"),
			MinConns:         v.GetInt32("database.min_conns"),
			ConnMaxLifetime:  v.GetDuration("database.conn_max_lifetime"),
			ConnMaxIdleTime:  v.GetDuration("database.conn_max_idle_time"),
			StatementTimeout: v.GetDuration("database.statement_timeout"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			IdempotencyTTL:  v.GetDuration("http.idempotency_ttl"),
		},
		Collection: CollectionConfig{
			Timezone: v.GetString("collection.timezone"),
		},
		Scheduler: SchedulerConfig{
			Enabled:          v.GetBool("scheduler.enabled"),
			AutoCloseCron:    v.GetString("scheduler.auto_close_cron"),
			StatusRefresh:    v.GetString("scheduler.status_refresh_cron"),
			IdempotencyPurge: v.GetString("scheduler.idempotency_purge_cron"),
			JobTimeout:       v.GetDuration("scheduler.job_timeout"),
		},
		Reconcile: ReconcileConfig{
			Tolerance: v.GetFloat64("reconcile.tolerance"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dairyops")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)
	v.SetDefault("database.statement_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.idempotency_ttl", 24*time.Hour)

	v.SetDefault("collection.timezone", "Africa/Nairobi")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.auto_close_cron", "*/5 * * * *")
	v.SetDefault("scheduler.status_refresh_cron", "15 0 * * *")
	v.SetDefault("scheduler.idempotency_purge_cron", "@hourly")
	v.SetDefault("scheduler.job_timeout", 2*time.Minute)

	v.SetDefault("reconcile.tolerance", 0.01)
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required (DAIRY_DATABASE_URL)")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns %d exceeds max_conns %d", c.Database.MinConns, c.Database.MaxConns)
	}
	if _, err := c.Collection.Location(); err != nil {
		return fmt.Errorf("collection.timezone: %w", err)
	}
	if c.Reconcile.Tolerance < 0 {
		return errors.New("reconcile.tolerance cannot be negative")
	}
	if c.Scheduler.Enabled {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		for key, spec := range map[string]string{
			"scheduler.auto_close_cron":        c.Scheduler.AutoCloseCron,
			"scheduler.status_refresh_cron":    c.Scheduler.StatusRefresh,
			"scheduler.idempotency_purge_cron": c.Scheduler.IdempotencyPurge,
		} {
			if _, err := parser.Parse(spec); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	return nil
}

// IsProduction reports whether the app runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
