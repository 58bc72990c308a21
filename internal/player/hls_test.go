package player

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tvplay/internal/media"
)

const multivariant = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360,CODECS="avc1.42c01e,mp4a.40.2"
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2800000,RESOLUTION=1280x720,CODECS="avc1.42c01e,mp4a.40.2"
mid/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080,CODECS="avc1.42c01e,mp4a.40.2"
high/index.m3u8
`

const vodPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:6.000,
seg0.ts
#EXTINF:6.000,
seg1.ts
#EXTINF:4.500,
seg2.ts
#EXT-X-ENDLIST
`

func playlistServer(t *testing.T, path, body string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = w.Write([]byte(body))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHLSBackend_Unsupported(t *testing.T) {
	el := newTestElement(t, media.HeadlessConfig{DisableMediaSource: true})
	b := NewHLSBackend(HLSConfig{Logger: discardLogger(), Adaptive: true})
	err := b.Attach(context.Background(), el, "http://example.com/live.m3u8", func(BackendEvent) {})
	assert.ErrorIs(t, err, ErrHLSUnsupported)
	assert.Equal(t, "Failed to load stream: HLS is not supported in this browser", SetupErrorMessage(err))
	assert.False(t, b.Recover())
	b.Destroy()
}

func TestHLSBackend_NativeFallback(t *testing.T) {
	tests := []struct {
		name string
		cfg  media.HeadlessConfig
		hls  HLSConfig
	}{
		{
			name: "no media source",
			cfg:  media.HeadlessConfig{DisableMediaSource: true, NativeHLS: true},
			hls:  HLSConfig{Adaptive: true},
		},
		{
			name: "adaptive engine disabled",
			cfg:  media.HeadlessConfig{NativeHLS: true},
			hls:  HLSConfig{Adaptive: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := newTestElement(t, tt.cfg)
			tt.hls.Logger = discardLogger()
			b := NewHLSBackend(tt.hls)

			url := "http://127.0.0.1:1/live.m3u8"
			require.NoError(t, b.Attach(context.Background(), el, url, func(BackendEvent) {}))
			assert.Equal(t, url, el.Source())
			assert.False(t, b.Recover())

			b.Destroy()
			assert.Empty(t, el.Source())
		})
	}
}

func TestHLSBackend_MultivariantLadder(t *testing.T) {
	srv := playlistServer(t, "/master.m3u8", multivariant)
	el := newTestElement(t, media.HeadlessConfig{})

	b := NewHLSBackend(HLSConfig{Logger: discardLogger(), Adaptive: true})
	defer b.Destroy()
	sink := &eventSink{}
	require.NoError(t, b.Attach(context.Background(), el, srv.URL+"/master.m3u8", sink.emit))

	ready := sink.wait(t, BackendReady)
	require.Len(t, ready.Levels, 3)
	assert.Equal(t, NewLevel(360, 800000), ready.Levels[0])
	assert.Equal(t, "720p (2800 kbps)", ready.Levels[1].Label)
	assert.Equal(t, 1080, ready.Levels[2].Height)

	// Variant playlists are not served, so the client fails with a network error.
	ev := sink.wait(t, BackendError)
	assert.Equal(t, ErrorNetwork, ev.Kind)
	assert.True(t, ev.Fatal)
	assert.Equal(t, MsgNetworkError, ev.Message)
}

func TestHLSBackend_VODDuration(t *testing.T) {
	srv := playlistServer(t, "/vod.m3u8", vodPlaylist)
	el := newTestElement(t, media.HeadlessConfig{})

	b := NewHLSBackend(HLSConfig{Logger: discardLogger(), Adaptive: true})
	defer b.Destroy()
	sink := &eventSink{}
	require.NoError(t, b.Attach(context.Background(), el, srv.URL+"/vod.m3u8", sink.emit))

	ready := sink.wait(t, BackendReady)
	assert.Empty(t, ready.Levels)
	hb := b.(*hlsBackend)
	assert.InDelta(t, 16.5, hb.ms.Duration(), 0.001)
}

func TestHLSBackend_ManifestFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	el := newTestElement(t, media.HeadlessConfig{})

	b := NewHLSBackend(HLSConfig{Logger: discardLogger(), Adaptive: true})
	defer b.Destroy()
	sink := &eventSink{}
	require.NoError(t, b.Attach(context.Background(), el, srv.URL+"/gone.m3u8", sink.emit))

	ev := sink.wait(t, BackendError)
	assert.Equal(t, ErrorNetwork, ev.Kind)
	assert.Equal(t, MsgNetworkError, ev.Message)
	_, ready := sink.find(BackendReady)
	assert.False(t, ready)
}

func TestHLSBackend_DecodeErrorsTrip(t *testing.T) {
	sink := &eventSink{}
	b := &hlsBackend{logger: discardLogger(), emit: sink.emit}
	for i := 0; i < maxDecodeErrors-1; i++ {
		b.onDecodeError(assert.AnError)
	}
	_, tripped := sink.find(BackendError)
	assert.False(t, tripped)

	b.onDecodeError(assert.AnError)
	ev, tripped := sink.find(BackendError)
	require.True(t, tripped)
	assert.Equal(t, ErrorMedia, ev.Kind)
	assert.True(t, ev.Fatal)
}

func TestTicks(t *testing.T) {
	assert.Equal(t, time.Second, ticks(90000, 90000))
	assert.Equal(t, 500*time.Millisecond, ticks(24000, 48000))
	assert.Equal(t, time.Second, ticks(90000, 0))
	assert.Equal(t, 720, resolutionHeight("1280x720"))
	assert.Equal(t, 0, resolutionHeight("bogus"))
}
