package config

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the top-level syncd configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Slack      SlackConfig      `mapstructure:"slack"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Shutdown   ShutdownConfig   `mapstructure:"shutdown"`
}

// ServerConfig contains admin HTTP server settings.
type ServerConfig struct {
	Host string `mapstructure:"host" default:"0.0.0.0"`
	Port int    `mapstructure:"port" default:"8080"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" default:"5432"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database" default:"slack_sync"`
	SSLMode  string `mapstructure:"ssl_mode" default:"disable"`
}

// SlackConfig contains the upstream Slack Web API client settings.
type SlackConfig struct {
	BotToken string `mapstructure:"bot_token" validate:"required"`
	// BaseURL is overridable for tests; the default is the public Web API.
	BaseURL            string        `mapstructure:"base_url" default:"https://slack.com/api"`
	MinRequestInterval time.Duration `mapstructure:"min_request_interval" default:"1200ms"`
	MaxRetries         int           `mapstructure:"max_retries" default:"5"`
	HistoryPageSize    int           `mapstructure:"history_page_size" default:"200"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" default:"30s"`
}

// SyncConfig contains the channel sync engine and run coordinator settings.
type SyncConfig struct {
	// LookbackDays seeds the watermarks on a channel's first sync.
	LookbackDays int `mapstructure:"lookback_days" default:"30"`
	// MaxPagesPerChannel bounds per-invocation work in each direction so a
	// single large channel cannot starve the rest of the chunk.
	MaxPagesPerChannel int `mapstructure:"max_pages_per_channel" default:"10"`
	// ChannelsPerChunk bounds how many channels one invocation processes.
	ChannelsPerChunk int `mapstructure:"channels_per_chunk" default:"8"`
	// LeaseDuration must exceed realistic invocation time or a live worker's
	// lease will be reclaimed out from under it.
	LeaseDuration time.Duration `mapstructure:"lease_duration" default:"4m"`
}

// AnalyticsConfig contains the response-time engine settings.
type AnalyticsConfig struct {
	// LookaheadDays is how many days past the anchor day a staff reply may
	// still land and be credited to an anchor-day partner message.
	LookaheadDays int `mapstructure:"lookahead_days" default:"3"`
}

// MonitoringConfig contains metrics exposure settings.
type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled" default:"true"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level" default:"info"`
	Format     string `mapstructure:"format" default:"json"`
	OutputPath string `mapstructure:"output_path" default:"stdout"`
}

// ShutdownConfig contains graceful shutdown settings.
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout" default:"30s"`
}

// Load reads configuration from a YAML file and the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Fill zero-valued fields from struct tags, then validate required ones.
	if err := defaults.Set(&config); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}
