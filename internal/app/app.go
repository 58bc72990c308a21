// Package app is the playlist viewer shell: it owns the channel catalog,
// the player core and the player state store, and fans state changes out to
// presentation layers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmylchreest/tvplay/internal/catalog"
	"github.com/jmylchreest/tvplay/internal/media"
	"github.com/jmylchreest/tvplay/internal/models"
	"github.com/jmylchreest/tvplay/internal/observability"
	"github.com/jmylchreest/tvplay/internal/player"
	"github.com/jmylchreest/tvplay/internal/playlist"
)

// Section is a top-level navigation target.
type Section string

const (
	SectionDashboard Section = "dashboard"
	SectionLiveTV    Section = "live-tv"
	SectionMovies    Section = "movies"
	SectionSeries    Section = "series"
)

// ComingSoon is shown for sections without content.
const ComingSoon = "Coming Soon"

// ErrUnknownSection is returned when navigating to a section that does not exist.
var ErrUnknownSection = errors.New("unknown section")

// SectionInfo describes a navigation target.
type SectionInfo struct {
	ID        Section `json:"id" doc:"Section identifier"`
	Title     string  `json:"title" doc:"Display title"`
	Available bool    `json:"available" doc:"Whether the section has content"`
	Message   string  `json:"message,omitempty" doc:"Placeholder text for unavailable sections"`
}

var sections = []SectionInfo{
	{ID: SectionDashboard, Title: "Dashboard", Available: true},
	{ID: SectionLiveTV, Title: "Live TV", Available: true},
	{ID: SectionMovies, Title: "Movies", Message: ComingSoon},
	{ID: SectionSeries, Title: "Series", Message: ComingSoon},
}

// Sections lists the navigation targets in display order.
func Sections() []SectionInfo {
	return append([]SectionInfo(nil), sections...)
}

// LookupSection returns the section with the given id.
func LookupSection(id string) (SectionInfo, error) {
	for _, s := range sections {
		if string(s.ID) == id {
			return s, nil
		}
	}
	return SectionInfo{}, fmt.Errorf("%w: %q", ErrUnknownSection, id)
}

// Config configures an App.
type Config struct {
	Loader  *playlist.Loader
	Element media.Element
	Logger  *slog.Logger
	// Backends defaults to the player's built-in backends.
	Backends      player.BackendFactory
	Autoplay      bool
	InitialVolume float64
	ViewMode      catalog.ViewMode
}

// App wires the catalog, the player core and the state hub together.
type App struct {
	logger  *slog.Logger
	loader  *playlist.Loader
	catalog *catalog.Catalog
	player  *player.Player
	store   *StateStore
	hub     *Hub

	loadMu sync.Mutex

	mu       sync.RWMutex
	section  Section
	viewMode catalog.ViewMode
}

// New creates an App. Call Run to start the player.
func New(cfg Config) *App {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Loader == nil {
		cfg.Loader = playlist.NewLoader(nil, cfg.Logger, 0)
	}
	if cfg.ViewMode == "" {
		cfg.ViewMode = catalog.ViewList
	}

	a := &App{
		logger:   observability.WithComponent(cfg.Logger, "app"),
		loader:   cfg.Loader,
		catalog:  catalog.New(),
		store:    NewStateStore(),
		hub:      NewHub(cfg.Logger),
		section:  SectionDashboard,
		viewMode: cfg.ViewMode,
	}

	volume := models.ClampVolume(cfg.InitialVolume)
	cfg.Element.SetVolume(volume)
	cfg.Element.SetMuted(volume == 0)
	a.store.Apply(models.PlayerUpdate{
		Volume:  models.Float64Ptr(volume),
		IsMuted: models.BoolPtr(volume == 0),
	})

	a.player = player.New(player.Config{
		Element:  cfg.Element,
		Logger:   cfg.Logger,
		Backends: cfg.Backends,
		Autoplay: cfg.Autoplay,
		Observer: a.onPlayerUpdate,
	})
	return a
}

// Run runs the player event loop until ctx is done.
func (a *App) Run(ctx context.Context) error {
	defer a.hub.Close()
	return a.player.Run(ctx)
}

// Player exposes the player core.
func (a *App) Player() *player.Player { return a.player }

// Catalog exposes the loaded channel list.
func (a *App) Catalog() *catalog.Catalog { return a.catalog }

// Hub exposes the state notification hub.
func (a *App) Hub() *Hub { return a.hub }

// State returns the shell's player state.
func (a *App) State() models.PlayerState { return a.store.State() }

// LoadPlaylist loads a playlist and replaces the catalog. On failure the
// catalog keeps its previous contents.
func (a *App) LoadPlaylist(ctx context.Context, req playlist.Request) (info catalog.Info, err error) {
	a.loadMu.Lock()
	defer a.loadMu.Unlock()

	log := a.logger.With(slog.String("source", string(req.Source)))
	if req.Source != playlist.SourceText {
		log = log.With(slog.String("location", req.Location))
	}
	done := observability.TimedOperationWithError(ctx, log, "load_playlist", &err)
	defer done()

	res, err := a.loader.Load(ctx, req)
	if err != nil {
		return catalog.Info{}, err
	}
	a.catalog.Replace(string(res.Source), res.Origin, res.Channels)
	info = a.catalog.Info()
	log.Info("playlist loaded",
		slog.Int("channels", info.Channels),
		slog.Int("groups", info.Groups))

	a.hub.Publish(&Event{Type: EventPlaylistLoaded, Playlist: &info})
	return info, nil
}

// Channels returns the catalog filtered by term.
func (a *App) Channels(term string) []models.Channel {
	return catalog.Filter(a.catalog.Channels(), term)
}

// Groups returns the filtered catalog grouped for display.
func (a *App) Groups(term string) []catalog.ChannelGroup {
	return catalog.Group(a.Channels(term))
}

// Section returns the current navigation section.
func (a *App) Section() Section {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.section
}

// Navigate switches to a section. Leaving live TV stops playback.
func (a *App) Navigate(ctx context.Context, id string) (SectionInfo, error) {
	info, err := LookupSection(id)
	if err != nil {
		return SectionInfo{}, err
	}
	if info.ID != SectionLiveTV && a.store.State().CurrentChannel != nil {
		if err := a.player.Select(ctx, nil); err != nil {
			return SectionInfo{}, err
		}
	}
	a.setSection(info.ID)
	return info, nil
}

func (a *App) setSection(s Section) {
	a.mu.Lock()
	changed := a.section != s
	a.section = s
	a.mu.Unlock()
	if changed {
		a.hub.Publish(&Event{Type: EventNavigation, Section: s})
	}
}

// ViewMode returns the channel list rendering hint.
func (a *App) ViewMode() catalog.ViewMode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.viewMode
}

// SetViewMode changes the channel list rendering hint.
func (a *App) SetViewMode(v catalog.ViewMode) {
	a.mu.Lock()
	a.viewMode = v
	a.mu.Unlock()
}

// SelectChannel starts playback of the channel with the given id.
func (a *App) SelectChannel(ctx context.Context, id string) (models.Channel, error) {
	ch, err := a.catalog.Find(id)
	if err != nil {
		return models.Channel{}, err
	}
	a.setSection(SectionLiveTV)
	if err := a.player.Select(ctx, &ch); err != nil {
		return models.Channel{}, err
	}
	return ch, nil
}

// Play starts playback of an arbitrary channel that is not part of the
// catalog, such as a URL given on the command line.
func (a *App) Play(ctx context.Context, ch models.Channel) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	if ch.ID == "" {
		ch.ID = models.NewID()
	}
	if ch.Name == "" {
		ch.Name = ch.URL
	}
	a.setSection(SectionLiveTV)
	return a.player.Select(ctx, &ch)
}

// Back leaves the player for the channel list, or the channel list for the
// dashboard when nothing is playing.
func (a *App) Back(ctx context.Context) error {
	if a.store.State().CurrentChannel != nil {
		return a.player.Select(ctx, nil)
	}
	a.setSection(SectionDashboard)
	return nil
}

// onPlayerUpdate runs on the player event loop.
func (a *App) onPlayerUpdate(u models.PlayerUpdate) {
	state := a.store.Apply(u)
	status := a.player.Status()
	a.hub.Publish(&Event{
		Type:   EventPlayerState,
		State:  &state,
		Update: &u,
		Status: &status,
	})
}
