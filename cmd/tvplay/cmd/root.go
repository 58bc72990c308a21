// Package cmd implements the CLI commands for tvplay.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/tvplay/internal/config"
	"github.com/jmylchreest/tvplay/internal/observability"
	"github.com/jmylchreest/tvplay/internal/version"
)

// cfgFile holds the config file path from CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "tvplay",
	Short:   "IPTV playlist viewer and headless player",
	Version: version.Short(),
	Long: `tvplay loads M3U playlists from a file, a URL or the built-in sample,
groups and searches their channels, and plays them through a headless player
core that handles HLS, DASH and progressive streams.

It can run as an HTTP/SSE service or be driven from the command line.`,
	SilenceUsage: true,
	// PersistentPreRunE is set in init() to avoid initialization cycle
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initLogging()
	}

	// The log flags are not bound to viper: they only override the
	// config/env values when explicitly set.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or $HOME/.tvplay.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	rootCmd.PersistentFlags().String("source", config.SourceSample, "playlist source (sample, file, url)")
	rootCmd.PersistentFlags().String("url", "", "playlist URL; implies --source url")
	rootCmd.PersistentFlags().String("file", "", "playlist file; implies --source file")
	mustBindPFlag("playlist.source", rootCmd.PersistentFlags().Lookup("source"))
	mustBindPFlag("playlist.url", rootCmd.PersistentFlags().Lookup("url"))
	mustBindPFlag("playlist.file", rootCmd.PersistentFlags().Lookup("file"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/tvplay")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.tvplay")
		}
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Error reading config file:", err)
	}
}

// loadConfig decodes the merged flag, env, file and default settings.
// --url and --file select their source unless --source is given too.
func loadConfig() (*config.Config, error) {
	flags := rootCmd.PersistentFlags()
	if !flags.Changed("source") {
		switch {
		case flags.Changed("url"):
			viper.Set("playlist.source", config.SourceURL)
		case flags.Changed("file"):
			viper.Set("playlist.source", config.SourceFile)
		}
	}
	cfg, err := config.Decode(viper.GetViper())
	if err != nil {
		return nil, err
	}
	applyLogFlags(&cfg.Logging)
	return cfg, nil
}

// initLogging configures the default slog logger.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-format), only if explicitly provided
//  2. Environment variables (TVPLAY_LOGGING_LEVEL, TVPLAY_LOGGING_FORMAT)
//  3. Config file values
//  4. Built-in defaults (info, text)
func initLogging() error {
	logCfg := config.LoggingConfig{
		Level:      viper.GetString("logging.level"),
		Format:     viper.GetString("logging.format"),
		AddSource:  viper.GetBool("logging.add_source"),
		TimeFormat: viper.GetString("logging.time_format"),
		RedactURLs: viper.GetBool("logging.redact_urls"),
	}
	applyLogFlags(&logCfg)

	observability.SetDefault(observability.NewLoggerWithWriter(logCfg, os.Stderr))
	return nil
}

func applyLogFlags(logCfg *config.LoggingConfig) {
	flags := rootCmd.PersistentFlags()
	if flags.Changed("log-level") {
		logCfg.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		logCfg.Format, _ = flags.GetString("log-format")
	}

	logCfg.Level = strings.ToLower(logCfg.Level)
	logCfg.Format = strings.ToLower(logCfg.Format)
	if logCfg.Level == "" {
		logCfg.Level = "info"
	}
	if logCfg.Level == "warning" {
		logCfg.Level = "warn"
	}
	if logCfg.Format == "" {
		logCfg.Format = "text"
	}
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding fails.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}
