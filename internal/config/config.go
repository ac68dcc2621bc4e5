// Package config loads pipeline configuration from a YAML file and
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jonesrussell/checkpoint-ingestor/internal/database"
	"github.com/jonesrussell/checkpoint-ingestor/internal/logger"
)

// Default application configuration values.
const (
	defaultHTTPTimeout       = 20 * time.Second
	defaultGeocodeDelay      = 150 * time.Millisecond
	defaultGeocodeProvider   = "mapbox"
	defaultTimezone          = "America/New_York"
	defaultAggregatorSource  = "ovi-checkpoint-aggregator"
	defaultScheduleSpec      = "0 3,15 * * *"
	defaultScrapeRegion      = "Ohio"
	defaultScrapeTableID     = "checkpoint-table"
	defaultSourcesFile       = "sources.yml"
	defaultMaxFeedSources    = 25
	defaultMaxItemsPerSource = 10
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig       `mapstructure:"app"`
	Logger   logger.Config   `mapstructure:"logger"`
	Database database.Config `mapstructure:"database"`
	Scrape   ScrapeConfig    `mapstructure:"scrape"`
	Geocode  GeocodeConfig   `mapstructure:"geocode"`
	Feeds    FeedsConfig     `mapstructure:"feeds"`
	Schedule ScheduleConfig  `mapstructure:"schedule"`
}

// AppConfig holds application identity and shared runtime settings.
type AppConfig struct {
	Name             string        `mapstructure:"name"`
	Environment      string        `mapstructure:"environment"`
	Debug            bool          `mapstructure:"debug"`
	Timezone         string        `mapstructure:"timezone"`
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
	AggregatorSource string        `mapstructure:"aggregator_source"`
}

// ScrapeConfig holds the checkpoint table source settings.
type ScrapeConfig struct {
	ContentAPIURL string `mapstructure:"content_api_url"`
	PageURL       string `mapstructure:"page_url"`
	TableID       string `mapstructure:"table_id"`
	Region        string `mapstructure:"region"`
	SourceName    string `mapstructure:"source_name"`
}

// GeocodeConfig holds geocoding provider settings.
type GeocodeConfig struct {
	Provider string        `mapstructure:"provider"`
	Token    string        `mapstructure:"token"`
	Delay    time.Duration `mapstructure:"delay"`
}

// FeedsConfig holds feed extraction settings.
type FeedsConfig struct {
	SourcesFile       string `mapstructure:"sources_file"`
	MaxSources        int    `mapstructure:"max_sources"`
	MaxItemsPerSource int    `mapstructure:"max_items_per_source"`
}

// ScheduleConfig holds the cron schedule for unattended runs.
type ScheduleConfig struct {
	Spec string `mapstructure:"spec"`
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database.dbname is required")
	}
	if c.Scrape.ContentAPIURL == "" && c.Scrape.PageURL == "" {
		return fmt.Errorf("scrape requires content_api_url or page_url")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Load reads configuration from .env, the config file, and environment
// variables. Environment variables take precedence over the file; a missing
// config file is fine as long as required values arrive another way.
func Load(configFile string) (*Config, error) {
	// Ignore a missing .env file.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is not an error.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment variables: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Logger.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// setDefaults applies production-safe default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app", map[string]any{
		"name":              "checkpoint-ingestor",
		"environment":       "production",
		"debug":             false,
		"timezone":          defaultTimezone,
		"http_timeout":      defaultHTTPTimeout.String(),
		"aggregator_source": defaultAggregatorSource,
	})

	v.SetDefault("logger", map[string]any{
		"level":  "info",
		"format": "json",
	})

	v.SetDefault("database", map[string]any{
		"host":    database.DefaultHost,
		"port":    database.DefaultPort,
		"user":    database.DefaultUser,
		"dbname":  database.DefaultDBName,
		"sslmode": database.DefaultSSLMode,
	})

	v.SetDefault("scrape", map[string]any{
		"table_id": defaultScrapeTableID,
		"region":   defaultScrapeRegion,
	})

	v.SetDefault("geocode", map[string]any{
		"provider": defaultGeocodeProvider,
		"delay":    defaultGeocodeDelay.String(),
	})

	v.SetDefault("feeds", map[string]any{
		"sources_file":         defaultSourcesFile,
		"max_sources":          defaultMaxFeedSources,
		"max_items_per_source": defaultMaxItemsPerSource,
	})

	v.SetDefault("schedule", map[string]any{
		"spec": defaultScheduleSpec,
	})
}

// bindEnvVars binds secrets and connection settings to well-known
// environment variable names.
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"database.host":     "DB_HOST",
		"database.port":     "DB_PORT",
		"database.user":     "DB_USER",
		"database.password": "DB_PASSWORD",
		"database.dbname":   "DB_NAME",
		"database.sslmode":  "DB_SSLMODE",
		"geocode.token":     "MAPBOX_TOKEN",
		"logger.level":      "LOG_LEVEL",
		"logger.format":     "LOG_FORMAT",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	return nil
}
