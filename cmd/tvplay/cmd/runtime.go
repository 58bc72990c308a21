package cmd

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/tvplay/internal/app"
	"github.com/jmylchreest/tvplay/internal/catalog"
	"github.com/jmylchreest/tvplay/internal/config"
	"github.com/jmylchreest/tvplay/internal/media"
	"github.com/jmylchreest/tvplay/internal/player"
	"github.com/jmylchreest/tvplay/internal/playlist"
	"github.com/jmylchreest/tvplay/internal/version"
	"github.com/jmylchreest/tvplay/pkg/httpclient"
)

// runtime is the player stack shared by serve and play.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	element *media.Headless
	app     *app.App
}

// newPlaylistLoader builds the loader with the configured fetch limits.
func newPlaylistLoader(cfg *config.Config, logger *slog.Logger) *playlist.Loader {
	hc := httpclient.DefaultConfig()
	hc.Timeout = cfg.Playlist.Timeout
	hc.Logger = logger
	hc.MaxResponseSize = cfg.Playlist.MaxSize.Bytes()
	hc.UserAgent = userAgent(cfg)
	return playlist.NewLoader(httpclient.New(hc), logger, cfg.Playlist.MaxSize.Bytes())
}

// userAgent is the configured User-Agent, or tvplay/<version>.
func userAgent(cfg *config.Config) string {
	if cfg.Playlist.UserAgent != "" {
		return cfg.Playlist.UserAgent
	}
	return version.UserAgent()
}

// newMediaClient builds the client for media fetches. Live media has no
// overall deadline and no size cap.
func newMediaClient(cfg *config.Config, logger *slog.Logger) *httpclient.Client {
	hc := httpclient.DefaultConfig()
	hc.Timeout = 0
	hc.Logger = logger
	hc.UserAgent = userAgent(cfg)
	return httpclient.New(hc)
}

func newRuntime(cfg *config.Config, logger *slog.Logger) *runtime {
	mediaClient := newMediaClient(cfg, logger)

	el := media.NewHeadless(media.HeadlessConfig{
		Client:             mediaClient,
		Logger:             logger,
		TimeUpdateInterval: cfg.Player.TimeUpdateInterval,
		Autoplay:           media.AutoplayAllowed,
	})

	viewMode, err := catalog.ParseViewMode(cfg.UI.ViewMode)
	if err != nil {
		viewMode = catalog.ViewList
	}

	a := app.New(app.Config{
		Loader:  newPlaylistLoader(cfg, logger),
		Element: el,
		Logger:  logger,
		Backends: player.DefaultBackends(player.BackendOptions{
			Client:        mediaClient,
			Logger:        logger,
			EnableHLS:     cfg.Player.EnableHLS,
			EnableDASH:    cfg.Player.EnableDASH,
			DASHLiveDelay: cfg.Player.DASHLiveDelay,
		}),
		Autoplay:      cfg.Player.Autoplay,
		InitialVolume: cfg.Player.InitialVolume,
		ViewMode:      viewMode,
	})

	return &runtime{cfg: cfg, logger: logger, element: el, app: a}
}

// playlistRequest maps the playlist config onto a loader request.
func playlistRequest(cfg config.PlaylistConfig) playlist.Request {
	switch cfg.Source {
	case config.SourceURL:
		return playlist.Request{Source: playlist.SourceURL, Location: cfg.URL}
	case config.SourceFile:
		return playlist.Request{Source: playlist.SourceFile, Location: cfg.File}
	default:
		return playlist.Request{Source: playlist.SourceSample}
	}
}

// loadConfigured loads the configured playlist into the app catalog.
func (r *runtime) loadConfigured(ctx context.Context) (catalog.Info, error) {
	return r.app.LoadPlaylist(ctx, playlistRequest(r.cfg.Playlist))
}

func (r *runtime) close() {
	if err := r.element.Close(); err != nil {
		r.logger.Debug("closing media element", slog.String("error", err.Error()))
	}
}
