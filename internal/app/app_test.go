package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jmylchreest/tvplay/internal/media"
	"github.com/jmylchreest/tvplay/internal/models"
	"github.com/jmylchreest/tvplay/internal/player"
	"github.com/jmylchreest/tvplay/internal/playlist"
	"github.com/jmylchreest/tvplay/internal/streamtype"
)

const newsPlaylist = `#EXTM3U
#EXTINF:-1 group-title="News",World News
http://example.com/news.m3u8
#EXTINF:-1,Unsorted
http://example.com/other.mp4
`

// readyBackend assigns the source and reports readiness straight away.
type readyBackend struct {
	mu        sync.Mutex
	destroyed bool
}

func (b *readyBackend) Kind() player.BackendKind { return player.BackendNative }

func (b *readyBackend) Attach(_ context.Context, el media.Element, url string, emit func(player.BackendEvent)) error {
	el.SetSource(url)
	emit(player.BackendEvent{Type: player.BackendReady})
	return nil
}

func (b *readyBackend) Recover() bool { return false }

func (b *readyBackend) Destroy() {
	b.mu.Lock()
	b.destroyed = true
	b.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp(t *testing.T, volume float64) *App {
	t.Helper()
	el := media.NewHeadless(media.HeadlessConfig{Logger: discardLogger()})
	a := New(Config{
		Loader:        playlist.NewLoader(nil, discardLogger(), 0),
		Element:       el,
		Logger:        discardLogger(),
		Backends:      func(streamtype.Info) player.Backend { return &readyBackend{} },
		Autoplay:      true,
		InitialVolume: volume,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = el.Close()
	})
	return a
}

func TestApp_InitialVolume(t *testing.T) {
	a := newTestApp(t, 0.5)
	st := a.State()
	assert.Equal(t, 0.5, st.Volume)
	assert.False(t, st.IsMuted)
	assert.Equal(t, models.DefaultQuality, st.Quality)

	muted := newTestApp(t, 0)
	assert.True(t, muted.State().IsMuted)
}

func TestApp_LoadPlaylist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/news.m3u" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(newsPlaylist))
	}))
	defer srv.Close()

	a := newTestApp(t, 1)
	ctx := context.Background()
	sub := a.Hub().Subscribe()
	defer a.Hub().Unsubscribe(sub.ID)

	info, err := a.LoadPlaylist(ctx, playlist.Request{Source: playlist.SourceSample})
	require.NoError(t, err)
	assert.Equal(t, 5, info.Channels)
	assert.Equal(t, 4, info.Groups)
	assert.Equal(t, "sample", info.Source)

	ev := <-sub.Events
	assert.Equal(t, EventPlaylistLoaded, ev.Type)
	require.NotNil(t, ev.Playlist)
	assert.Equal(t, 5, ev.Playlist.Channels)

	// A failed fetch surfaces one error and keeps the previous catalog.
	_, err = a.LoadPlaylist(ctx, playlist.Request{Source: playlist.SourceURL, Location: srv.URL + "/missing.m3u"})
	assert.ErrorIs(t, err, playlist.ErrPlaylistFetch)
	assert.Equal(t, 5, a.Catalog().Len())
	assert.Equal(t, "sample", a.Catalog().Info().Source)

	info, err = a.LoadPlaylist(ctx, playlist.Request{Source: playlist.SourceURL, Location: srv.URL + "/news.m3u"})
	require.NoError(t, err)
	assert.Equal(t, 2, info.Channels)
	assert.Equal(t, srv.URL+"/news.m3u", info.Origin)

	groups := a.Groups("")
	require.Len(t, groups, 2)
	assert.Equal(t, "News", groups[0].Name)
	assert.Equal(t, models.UngroupedLabel, groups[1].Name)

	found := a.Channels("WORLD")
	require.Len(t, found, 1)
	assert.Equal(t, "World News", found[0].Name)

	info, err = a.LoadPlaylist(ctx, playlist.Request{Source: playlist.SourceText, Location: newsPlaylist})
	require.NoError(t, err)
	assert.Equal(t, "upload", info.Origin)
}

func TestApp_Sections(t *testing.T) {
	a := newTestApp(t, 1)
	ctx := context.Background()

	all := Sections()
	require.Len(t, all, 4)
	assert.Equal(t, SectionDashboard, all[0].ID)
	assert.Equal(t, ComingSoon, all[2].Message)
	assert.False(t, all[3].Available)

	assert.Equal(t, SectionDashboard, a.Section())
	info, err := a.Navigate(ctx, "movies")
	require.NoError(t, err)
	assert.Equal(t, "Movies", info.Title)
	assert.Equal(t, SectionMovies, a.Section())

	_, err = a.Navigate(ctx, "sports")
	assert.ErrorIs(t, err, ErrUnknownSection)
	assert.Equal(t, SectionMovies, a.Section())
}

func TestApp_SelectAndBack(t *testing.T) {
	a := newTestApp(t, 1)
	ctx := context.Background()
	_, err := a.LoadPlaylist(ctx, playlist.Request{Source: playlist.SourceText, Location: newsPlaylist})
	require.NoError(t, err)

	_, err = a.SelectChannel(ctx, "does-not-exist")
	assert.ErrorIs(t, err, models.ErrChannelNotFound)

	sub := a.Hub().Subscribe()
	defer a.Hub().Unsubscribe(sub.ID)

	target := a.Catalog().Channels()[0]
	ch, err := a.SelectChannel(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, "World News", ch.Name)
	assert.Equal(t, SectionLiveTV, a.Section())

	require.Eventually(t, func() bool {
		return a.State().IsPlaying
	}, 2*time.Second, 10*time.Millisecond)
	st := a.State()
	require.NotNil(t, st.CurrentChannel)
	assert.Equal(t, target.ID, st.CurrentChannel.ID)
	assert.Equal(t, player.StatePlaying, a.Player().Status().State)

	var sawState bool
	for !sawState {
		select {
		case ev := <-sub.Events:
			sawState = ev.Type == EventPlayerState && ev.Status != nil
		case <-time.After(time.Second):
			t.Fatal("no player state event")
		}
	}

	require.NoError(t, a.Back(ctx))
	assert.Nil(t, a.State().CurrentChannel)
	assert.False(t, a.State().IsPlaying)
	assert.Equal(t, player.StateIdle, a.Player().Status().State)
	assert.Equal(t, SectionLiveTV, a.Section())

	require.NoError(t, a.Back(ctx))
	assert.Equal(t, SectionDashboard, a.Section())
}

func TestApp_PlayAdHocChannel(t *testing.T) {
	a := newTestApp(t, 1)
	ctx := context.Background()

	var verr models.ErrValidation
	require.ErrorAs(t, a.Play(ctx, models.Channel{Name: "empty"}), &verr)
	assert.Equal(t, "url", verr.Field)

	require.NoError(t, a.Play(ctx, models.Channel{URL: "rtmp://example.com/live"}))
	st := a.Player().Status()
	assert.Equal(t, player.StateErrored, st.State)
	assert.Equal(t, player.MsgRTMPUnsupported, st.Error)
	assert.Equal(t, "rtmp://example.com/live", st.Channel.Name)
	assert.NotEmpty(t, st.Channel.ID)
}

func TestApp_NavigateAwayStopsPlayback(t *testing.T) {
	a := newTestApp(t, 1)
	ctx := context.Background()

	require.NoError(t, a.Play(ctx, models.Channel{URL: "http://example.com/a.mp4"}))
	require.NotNil(t, a.State().CurrentChannel)

	_, err := a.Navigate(ctx, string(SectionDashboard))
	require.NoError(t, err)
	assert.Nil(t, a.State().CurrentChannel)
	assert.Equal(t, player.StateIdle, a.Player().Status().State)
}

func TestHub_DropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := NewHub(discardLogger())
	slow := h.Subscribe()
	assert.Equal(t, 1, h.Len())

	for i := 0; i < subscriberBuffer+10; i++ {
		h.Publish(&Event{Type: EventNavigation})
	}
	assert.Len(t, slow.Events, subscriberBuffer)

	h.Unsubscribe(slow.ID)
	h.Unsubscribe(slow.ID)
	assert.Equal(t, 0, h.Len())

	n := 0
	for range slow.Events {
		n++
	}
	assert.Equal(t, subscriberBuffer, n)
}

func TestHub_Close(t *testing.T) {
	h := NewHub(discardLogger())
	a, b := h.Subscribe(), h.Subscribe()
	assert.NotEqual(t, a.ID, b.ID)

	h.Publish(&Event{Type: EventNavigation, Section: SectionSeries})
	h.Close()

	ev, ok := <-a.Events
	require.True(t, ok)
	assert.False(t, ev.Timestamp.IsZero())
	_, ok = <-a.Events
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())

	late := h.Subscribe()
	_, ok = <-late.Events
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())
}

func TestStateStore(t *testing.T) {
	s := NewStateStore()
	ch := models.Channel{ID: "1", Name: "One"}
	st := s.Apply(models.PlayerUpdate{CurrentChannel: &ch, IsPlaying: models.BoolPtr(true)})
	assert.True(t, st.IsPlaying)

	st.CurrentChannel.Name = "mutated"
	assert.Equal(t, "One", s.State().CurrentChannel.Name)

	s.Apply(models.PlayerUpdate{ClearChannel: true})
	assert.Nil(t, s.State().CurrentChannel)
}
