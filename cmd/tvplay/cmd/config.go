package cmd

import (
	"fmt"
	"io"
	"reflect"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/tvplay/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing tvplay configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  tvplay config dump > config.yaml

With --effective the merged configuration (flags, environment, config file
and defaults) is printed instead.

Environment variables use the TVPLAY_ prefix and underscores for nesting.
Example: server.port -> TVPLAY_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)

	configDumpCmd.Flags().Bool("effective", false, "print the merged configuration instead of the defaults")
}

// toMap converts a config struct to a map keyed by its mapstructure tags so
// that the YAML output round-trips through Load. Durations and byte sizes
// marshal to their human-readable text forms.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Name
		}

		switch v := field.Interface().(type) {
		case config.ByteSize:
			result[key] = v.String()
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	effective, _ := cmd.Flags().GetBool("effective")

	var cfg *config.Config
	var err error
	if effective {
		cfg, err = loadConfig()
	} else {
		v := viper.New()
		config.SetDefaults(v)
		cfg, err = config.Decode(v)
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	return writeConfig(cmd.OutOrStdout(), cfg, !effective)
}

func writeConfig(w io.Writer, cfg *config.Config, header bool) error {
	yamlData, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if header {
		fmt.Fprintln(w, "# tvplay Configuration File")
		fmt.Fprintln(w, "# ==========================")
		fmt.Fprintln(w, "#")
		fmt.Fprintln(w, "# All values shown below are defaults.")
		fmt.Fprintln(w, "# Duration format: 250ms, 30s, 5m")
		fmt.Fprintln(w, "# Size format: 512KB, 50MB")
		fmt.Fprintln(w, "#")
		fmt.Fprintln(w, "# Environment variable overrides:")
		fmt.Fprintln(w, "#   TVPLAY_SERVER_HOST, TVPLAY_SERVER_PORT")
		fmt.Fprintln(w, "#   TVPLAY_PLAYLIST_SOURCE, TVPLAY_PLAYLIST_URL, TVPLAY_PLAYLIST_FILE")
		fmt.Fprintln(w, "#   TVPLAY_LOGGING_LEVEL, TVPLAY_LOGGING_FORMAT")
		fmt.Fprintln(w, "#   etc.")
		fmt.Fprintln(w, "#")
		fmt.Fprintln(w)
	}
	_, err = w.Write(yamlData)
	return err
}
