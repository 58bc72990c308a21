package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/tvplay/internal/media"
	"github.com/jmylchreest/tvplay/internal/streamtype"
)

var detectCmd = &cobra.Command{
	Use:   "detect <url>",
	Short: "Classify a stream URL",
	Long: `Report the stream type, guessed codec and container of a URL, and
whether the player has a playback path for it.`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the media formats the player claims to support",
	RunE:  runFormats,
}

func init() {
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(formatsCmd)

	detectCmd.Flags().Bool("json", false, "print the result as JSON")
	formatsCmd.Flags().Bool("native-hls", false, "probe as an element with native HLS support")
}

func runDetect(cmd *cobra.Command, args []string) error {
	info := streamtype.Detect(args[0])
	out := cmd.OutOrStdout()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return json.NewEncoder(out).Encode(struct {
			streamtype.Info
			Supported bool `json:"supported"`
		}{info, info.Type.Supported()})
	}

	fmt.Fprintf(out, "Type:      %s\n", info.Type)
	if info.Codec != "" {
		fmt.Fprintf(out, "Codec:     %s\n", info.Codec)
	}
	if info.Container != "" {
		fmt.Fprintf(out, "Container: %s\n", info.Container)
	}
	fmt.Fprintf(out, "Live:      %t\n", info.IsLive)
	fmt.Fprintf(out, "Supported: %t\n", info.Type.Supported())
	return nil
}

func runFormats(cmd *cobra.Command, args []string) error {
	nativeHLS, _ := cmd.Flags().GetBool("native-hls")
	el := media.NewHeadless(media.HeadlessConfig{Logger: slog.Default(), NativeHLS: nativeHLS})
	defer el.Close()

	formats := streamtype.SupportedFormats(el)
	out := cmd.OutOrStdout()
	if len(formats) == 0 {
		fmt.Fprintln(out, "No supported formats detected.")
		return nil
	}
	for _, f := range formats {
		fmt.Fprintf(out, "  %s\n", f)
	}
	return nil
}
