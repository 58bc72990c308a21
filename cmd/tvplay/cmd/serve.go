package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/tvplay/internal/config"
	internalhttp "github.com/jmylchreest/tvplay/internal/http"
	"github.com/jmylchreest/tvplay/internal/http/handlers"
	"github.com/jmylchreest/tvplay/internal/scheduler"
	"github.com/jmylchreest/tvplay/internal/version"
)

// refreshJob is the scheduler job that reloads the configured playlist.
const refreshJob = "playlist_refresh"

var errNoChannels = errors.New("no channels loaded")

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tvplay server",
	Long: `Start the tvplay HTTP server and player core.

The server provides:
- REST API for playlists, channels, navigation and player controls
- Server-Sent Events of player state changes at /api/v1/events
- Prometheus metrics at /metrics
- Health and readiness probes
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("refresh-cron", "", "Reload the playlist on this cron schedule")
	serveCmd.Flags().Bool("autoplay", true, "Start playback as soon as a stream is ready")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("playlist.refresh_cron", serveCmd.Flags().Lookup("refresh-cron"))
	mustBindPFlag("player.autoplay", serveCmd.Flags().Lookup("autoplay"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := newRuntime(cfg, logger)
	defer rt.close()

	if _, err := rt.loadConfigured(ctx); err != nil {
		logger.Warn("initial playlist load failed, starting with an empty channel list",
			slog.String("error", err.Error()))
	}

	sched := scheduler.NewScheduler().WithLogger(logger)
	refresh := func(ctx context.Context) error {
		_, err := rt.loadConfigured(ctx)
		return err
	}
	if cfg.Playlist.RefreshCron != "" {
		if cfg.Playlist.Source == config.SourceSample {
			logger.Warn("playlist.refresh_cron ignored for the sample playlist")
		} else {
			if err := sched.AddJob(refreshJob, cfg.Playlist.RefreshCron, refresh); err != nil {
				return fmt.Errorf("scheduling playlist refresh: %w", err)
			}
			refresh = func(ctx context.Context) error {
				return sched.Trigger(ctx, refreshJob)
			}
		}
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	server := internalhttp.NewServer(internalhttp.ServerConfigFrom(cfg.Server), logger, version.Version)

	healthHandler := handlers.NewHealthHandler(version.Version).
		WithCheck("player", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			return rt.app.Player().Sync(ctx)
		}).
		WithCheck("playlist", func(context.Context) error {
			if rt.app.Catalog().Len() == 0 {
				return errNoChannels
			}
			return nil
		})
	healthHandler.Register(server.API())

	handlers.NewFormatsHandler(rt.element).Register(server.API())
	handlers.NewPlaylistHandler(rt.app).WithRefresh(refresh).Register(server.API())
	handlers.NewChannelHandler(rt.app).Register(server.API())
	handlers.NewPlayerHandler(rt.app).Register(server.API())
	handlers.NewEventsHandler(rt.app).RegisterSSE(server.Router())

	appErr := make(chan error, 1)
	go func() {
		appErr <- rt.app.Run(ctx)
	}()

	logger.Info("starting tvplay server",
		slog.String("address", cfg.Server.Address()),
		slog.String("version", version.Version),
		slog.Int("channels", rt.app.Catalog().Len()),
	)

	serveErr := server.ListenAndServe(ctx)
	stop()
	if err := <-appErr; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("player loop stopped", slog.String("error", err.Error()))
	}
	return serveErr
}
