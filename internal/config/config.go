// Package config provides configuration management for tvplay using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. TVPLAY_SERVER_PORT.
const EnvPrefix = "TVPLAY"

// Default configuration values.
const (
	defaultServerPort         = 8080
	defaultServerTimeout      = 30 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultPlaylistTimeout    = 60 * time.Second
	defaultPlaylistMaxSize    = "50MB"
	defaultDASHLiveDelay      = 3 * time.Second
	defaultTimeUpdateInterval = 250 * time.Millisecond
)

// Playlist sources.
const (
	SourceSample = "sample"
	SourceFile   = "file"
	SourceURL    = "url"
)

// View modes.
const (
	ViewList = "list"
	ViewGrid = "grid"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Playlist PlaylistConfig `mapstructure:"playlist"`
	Player   PlayerConfig   `mapstructure:"player"`
	UI       UIConfig       `mapstructure:"ui"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
	// RedactURLs masks credentials embedded in logged playlist and stream URLs.
	RedactURLs bool `mapstructure:"redact_urls"`
}

// PlaylistConfig controls where the channel list is loaded from.
type PlaylistConfig struct {
	Source    string        `mapstructure:"source"` // sample, file, url
	URL       string        `mapstructure:"url"`
	File      string        `mapstructure:"file"`
	MaxSize   ByteSize      `mapstructure:"max_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	// RefreshCron re-fetches a URL playlist on a 6-field cron schedule. Empty disables.
	RefreshCron string `mapstructure:"refresh_cron"`
}

// PlayerConfig holds player core settings.
type PlayerConfig struct {
	Autoplay           bool          `mapstructure:"autoplay"`
	InitialVolume      float64       `mapstructure:"initial_volume"`
	EnableHLS          bool          `mapstructure:"enable_hls"`
	EnableDASH         bool          `mapstructure:"enable_dash"`
	DASHLiveDelay      time.Duration `mapstructure:"dash_live_delay"`
	TimeUpdateInterval time.Duration `mapstructure:"time_update_interval"`
}

// UIConfig holds presentation hints.
type UIConfig struct {
	ViewMode string `mapstructure:"view_mode"` // list, grid
}

// Load reads configuration from file, environment and defaults.
// A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/tvplay")
		v.AddConfigPath("$HOME/.tvplay")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return Decode(v)
}

// Decode unmarshals and validates the settings held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", 0) // SSE streams are long-lived
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", "")
	v.SetDefault("logging.redact_urls", true)

	v.SetDefault("playlist.source", SourceSample)
	v.SetDefault("playlist.url", "")
	v.SetDefault("playlist.file", "")
	v.SetDefault("playlist.max_size", defaultPlaylistMaxSize)
	v.SetDefault("playlist.timeout", defaultPlaylistTimeout)
	v.SetDefault("playlist.user_agent", "")
	v.SetDefault("playlist.refresh_cron", "")

	v.SetDefault("player.autoplay", true)
	v.SetDefault("player.initial_volume", 1.0)
	v.SetDefault("player.enable_hls", true)
	v.SetDefault("player.enable_dash", true)
	v.SetDefault("player.dash_live_delay", defaultDASHLiveDelay)
	v.SetDefault("player.time_update_interval", defaultTimeUpdateInterval)

	v.SetDefault("ui.view_mode", ViewList)
}

// Defaults returns the default settings as a nested map, for `config dump`.
func Defaults() map[string]any {
	v := viper.New()
	SetDefaults(v)
	return v.AllSettings()
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if !slices.Contains([]string{"json", "text"}, c.Logging.Format) {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	switch c.Playlist.Source {
	case SourceSample:
	case SourceFile:
		if c.Playlist.File == "" {
			return fmt.Errorf("playlist.file is required when playlist.source is %q", SourceFile)
		}
	case SourceURL:
		if c.Playlist.URL == "" {
			return fmt.Errorf("playlist.url is required when playlist.source is %q", SourceURL)
		}
	default:
		return fmt.Errorf("playlist.source must be one of: sample, file, url")
	}
	if c.Playlist.MaxSize < 0 {
		return fmt.Errorf("playlist.max_size must not be negative")
	}
	if c.Playlist.RefreshCron != "" {
		if _, err := CronParser.Parse(c.Playlist.RefreshCron); err != nil {
			return fmt.Errorf("playlist.refresh_cron: %w", err)
		}
	}

	if c.Player.InitialVolume < 0 || c.Player.InitialVolume > 1 {
		return fmt.Errorf("player.initial_volume must be between 0 and 1")
	}
	if c.Player.DASHLiveDelay < 0 {
		return fmt.Errorf("player.dash_live_delay must not be negative")
	}
	if c.Player.TimeUpdateInterval <= 0 {
		return fmt.Errorf("player.time_update_interval must be positive")
	}

	if c.UI.ViewMode != ViewList && c.UI.ViewMode != ViewGrid {
		return fmt.Errorf("ui.view_mode must be one of: list, grid")
	}
	return nil
}

// CronParser accepts 5- or 6-field (optional leading seconds) cron expressions
// and descriptors such as "@hourly".
var CronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
