package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/tvplay/internal/catalog"
	"github.com/jmylchreest/tvplay/internal/models"
	"github.com/jmylchreest/tvplay/internal/playlist"
	"github.com/jmylchreest/tvplay/internal/streamtype"
	"github.com/jmylchreest/tvplay/pkg/format"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List the channels of a playlist",
	Long: `Load the configured playlist and print its channels grouped by
group-title, in playlist order.

Examples:
  tvplay channels --url http://example.com/list.m3u --search news
  tvplay channels --file list.m3u --view grid
  tvplay channels --search sport --export sport.m3u`,
	RunE: runChannels,
}

func init() {
	rootCmd.AddCommand(channelsCmd)

	channelsCmd.Flags().String("search", "", "only show channels whose name or group matches")
	channelsCmd.Flags().String("view", "", "view mode (list, grid); defaults to ui.view_mode")
	channelsCmd.Flags().String("export", "", "write the matching channels as M3U to this file (- for stdout)")
	channelsCmd.Flags().Bool("json", false, "print the groups as JSON")
}

func runChannels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := slog.Default()

	search, _ := cmd.Flags().GetString("search")
	export, _ := cmd.Flags().GetString("export")
	asJSON, _ := cmd.Flags().GetBool("json")
	viewFlag, _ := cmd.Flags().GetString("view")
	if viewFlag == "" {
		viewFlag = cfg.UI.ViewMode
	}
	view, err := catalog.ParseViewMode(viewFlag)
	if err != nil {
		return err
	}

	res, err := newPlaylistLoader(cfg, logger).Load(cmd.Context(), playlistRequest(cfg.Playlist))
	if err != nil {
		return err
	}
	channels := catalog.Filter(res.Channels, search)
	out := cmd.OutOrStdout()

	if export != "" {
		return exportChannels(out, export, channels)
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(catalog.Group(channels))
	}

	if len(channels) == 0 {
		if search != "" {
			fmt.Fprintf(out, "No channels match %q.\n", search)
		} else {
			fmt.Fprintln(out, "No channels in playlist.")
		}
		return nil
	}

	for _, group := range catalog.Group(channels) {
		fmt.Fprintf(out, "%s (%s)\n", group.Name, format.Number(int64(len(group.Channels))))
		switch view {
		case catalog.ViewGrid:
			printGrid(out, group.Channels, view.Columns())
		default:
			printList(out, group.Channels)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "%s of %s channels\n",
		format.Number(int64(len(channels))), format.Number(int64(len(res.Channels))))
	return nil
}

func printList(w io.Writer, channels []models.Channel) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, ch := range channels {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", ch.Name, streamtype.Detect(ch.URL).Type, ch.URL)
	}
	_ = tw.Flush()
}

func printGrid(w io.Writer, channels []models.Channel, columns int) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i := 0; i < len(channels); i += columns {
		end := min(i+columns, len(channels))
		names := make([]string, 0, columns)
		for _, ch := range channels[i:end] {
			names = append(names, ch.Name)
		}
		fmt.Fprintf(tw, "  %s\n", strings.Join(names, "\t"))
	}
	_ = tw.Flush()
}

func exportChannels(stdout io.Writer, path string, channels []models.Channel) error {
	if path == "-" {
		return playlist.Export(stdout, channels)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	if err := playlist.Export(f, channels); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing export file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing export file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Exported %d channels to %s\n", len(channels), path)
	return nil
}

// findChannel resolves a channel by id or case-insensitive name.
func findChannel(channels []models.Channel, ref string) (models.Channel, bool) {
	for _, ch := range channels {
		if ch.ID == ref {
			return ch, true
		}
	}
	for _, ch := range channels {
		if strings.EqualFold(ch.Name, ref) {
			return ch, true
		}
	}
	return models.Channel{}, false
}
