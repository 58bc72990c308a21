package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/tvplay/internal/app"
	"github.com/jmylchreest/tvplay/internal/config"
	"github.com/jmylchreest/tvplay/internal/models"
	"github.com/jmylchreest/tvplay/internal/player"
	"github.com/jmylchreest/tvplay/pkg/format"
)

var playCmd = &cobra.Command{
	Use:   "play <channel>",
	Short: "Play one channel headlessly and log its state",
	Long: `Play a channel with the headless player core and log every state
change until interrupted, until --duration elapses, or until playback fails.

The channel is a channel ID or name from the configured playlist, or a
stream URL.

Examples:
  tvplay play "BBC One"
  tvplay play --url http://example.com/list.m3u "Sky News" --duration 30s
  tvplay play https://example.com/live/index.m3u8`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

var errPlaybackFailed = errors.New("playback failed")

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().Duration("duration", 0, "stop after this long (0 plays until interrupted)")
	playCmd.Flags().Float64("volume", 1, "initial volume from 0 to 1")
	playCmd.Flags().Bool("autoplay", true, "start playback as soon as the stream is ready")
}

// applyPlayFlags overrides player settings with flags the user set. The
// keys are shared with serve, so they are not bound through viper.
func applyPlayFlags(cmd *cobra.Command, cfg *config.Config) {
	if f := cmd.Flags().Lookup("volume"); f.Changed {
		cfg.Player.InitialVolume, _ = cmd.Flags().GetFloat64("volume")
	}
	if f := cmd.Flags().Lookup("autoplay"); f.Changed {
		cfg.Player.Autoplay, _ = cmd.Flags().GetBool("autoplay")
	}
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyPlayFlags(cmd, cfg)
	if cfg.Player.InitialVolume < 0 || cfg.Player.InitialVolume > 1 {
		return errors.New("--volume must be between 0 and 1")
	}
	logger := slog.Default()
	duration, _ := cmd.Flags().GetDuration("duration")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	rt := newRuntime(cfg, logger)
	defer rt.close()

	sub := rt.app.Hub().Subscribe()
	defer rt.app.Hub().Unsubscribe(sub.ID)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	appErr := make(chan error, 1)
	go func() {
		appErr <- rt.app.Run(runCtx)
	}()

	if err := startPlayback(ctx, rt, args[0]); err != nil {
		cancelRun()
		<-appErr
		return err
	}

	err = watchPlayback(ctx, logger, sub)
	cancelRun()
	<-appErr
	return err
}

// startPlayback plays a URL directly, or looks the channel up in the
// configured playlist.
func startPlayback(ctx context.Context, rt *runtime, ref string) error {
	if strings.Contains(ref, "://") {
		return rt.app.Play(ctx, models.Channel{URL: ref})
	}

	if _, err := rt.loadConfigured(ctx); err != nil {
		return err
	}
	ch, ok := findChannel(rt.app.Catalog().Channels(), ref)
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrChannelNotFound, ref)
	}
	_, err := rt.app.SelectChannel(ctx, ch.ID)
	return err
}

// watchPlayback logs state transitions until ctx ends or playback errors.
func watchPlayback(ctx context.Context, logger *slog.Logger, sub *app.Subscriber) error {
	var last player.Status
	var lastTime float64
	for {
		select {
		case <-ctx.Done():
			logger.Info("playback stopped")
			return nil
		case ev, ok := <-sub.Events:
			if !ok {
				return nil
			}
			if ev.Type != app.EventPlayerState || ev.Status == nil {
				continue
			}
			st := *ev.Status

			if st.State != last.State || st.Backend != last.Backend || st.Notice != last.Notice {
				attrs := []any{
					slog.String("state", st.State.String()),
					slog.String("backend", string(st.Backend)),
				}
				if st.Channel != nil {
					attrs = append(attrs, slog.String("channel", st.Channel.Name))
				}
				if st.Notice != "" {
					attrs = append(attrs, slog.String("notice", st.Notice))
				}
				if len(st.Levels) > 0 {
					attrs = append(attrs, slog.Int("levels", len(st.Levels)))
				}
				logger.Info("player state", attrs...)
			}
			if u := ev.Update; u != nil && u.Quality != nil && *u.Quality != "" {
				logger.Info("quality", slog.String("level", *u.Quality))
			}
			if s := ev.State; s != nil && s.CurrentTime-lastTime >= 5 {
				lastTime = s.CurrentTime
				logger.Info("position",
					slog.String("time", format.Clock(s.CurrentTime)),
					slog.String("duration", format.Clock(s.Duration)))
			}
			last = st

			if st.State == player.StateErrored {
				return fmt.Errorf("%w: %s", errPlaybackFailed, st.Error)
			}
		}
	}
}
