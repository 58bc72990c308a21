package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bluenviron/gohlslib/v2"
	"github.com/bluenviron/gohlslib/v2/pkg/codecs"
	"github.com/bluenviron/gohlslib/v2/pkg/playlist"

	"github.com/jmylchreest/tvplay/internal/media"
	"github.com/jmylchreest/tvplay/pkg/httpclient"
)

const (
	mimeHLS = "application/vnd.apple.mpegurl"

	maxManifestSize = 4 << 20

	// maxDecodeErrors is how many decode errors a client may report before
	// the session is treated as having a media error.
	maxDecodeErrors = 25
)

var errNoSupportedTracks = errors.New("no supported tracks in stream")

// HLSConfig configures the HLS backend.
type HLSConfig struct {
	Client *httpclient.Client
	Logger *slog.Logger
	// Adaptive enables the adaptive engine. When false, or when the element
	// has no media source support, playback falls back to native assignment.
	Adaptive bool
}

// hlsBackend plays HLS through a gohlslib client feeding a media source.
type hlsBackend struct {
	cfg    HLSConfig
	logger *slog.Logger

	mu           sync.Mutex
	native       *nativeBackend
	el           media.Element
	ms           *media.MediaSource
	url          string
	emit         func(BackendEvent)
	cancel       context.CancelFunc
	client       *gohlslib.Client
	decodeErrors int
	destroyed    bool

	wg sync.WaitGroup
}

// NewHLSBackend creates an HLS backend.
func NewHLSBackend(cfg HLSConfig) Backend {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Client == nil {
		cfg.Client = httpclient.NewWithDefaults()
	}
	return &hlsBackend{cfg: cfg, logger: cfg.Logger.With(slog.String("backend", string(BackendHLS)))}
}

func (b *hlsBackend) Kind() BackendKind { return BackendHLS }

func (b *hlsBackend) Attach(ctx context.Context, el media.Element, url string, emit func(BackendEvent)) error {
	if !b.cfg.Adaptive || !el.SupportsMediaSource() {
		if el.CanPlayType(mimeHLS) == media.CanPlayNo {
			return ErrHLSUnsupported
		}
		b.logger.Debug("using native HLS playback", slog.String("url", url))
		native := newNativeBackend(b.logger)
		b.mu.Lock()
		b.native = native
		b.mu.Unlock()
		return native.Attach(ctx, el, url, emit)
	}

	ms := media.NewMediaSource(url)
	if err := el.AttachMediaSource(ms); err != nil {
		return fmt.Errorf("attaching media source: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.el = el
	b.ms = ms
	b.url = url
	b.emit = emit
	b.cancel = cancel
	b.wg.Add(1)
	b.mu.Unlock()

	go b.run(runCtx)
	return nil
}

func (b *hlsBackend) run(ctx context.Context) {
	defer b.wg.Done()

	levels, duration, err := b.loadManifest(ctx)
	if err != nil {
		if ctx.Err() == nil {
			b.emit(BackendEvent{Type: BackendError, Kind: ErrorNetwork, Fatal: true, Message: MsgNetworkError, Err: err})
		}
		return
	}
	if duration > 0 {
		b.ms.SetDuration(duration)
	}
	b.emit(BackendEvent{Type: BackendReady, Levels: levels})

	if err := b.startClient(); err != nil && !errors.Is(err, context.Canceled) {
		b.emit(BackendEvent{Type: BackendError, Kind: ErrorOther, Fatal: true, Message: MsgFatalError, Err: err})
	}
}

// loadManifest fetches the playlist and derives the bitrate ladder. For a
// finished media playlist it also returns the total duration in seconds.
func (b *hlsBackend) loadManifest(ctx context.Context) ([]Level, float64, error) {
	resp, err := b.cfg.Client.Fetch(ctx, b.url)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching manifest: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, 0, fmt.Errorf("reading manifest: %w", err)
	}

	pl, err := playlist.Unmarshal(data)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing manifest: %w", err)
	}

	switch p := pl.(type) {
	case *playlist.Multivariant:
		return variantLevels(p.Variants), 0, nil
	case *playlist.Media:
		if !p.Endlist {
			return nil, 0, nil
		}
		var total time.Duration
		for _, seg := range p.Segments {
			total += seg.Duration
		}
		return nil, total.Seconds(), nil
	default:
		return nil, 0, fmt.Errorf("unexpected playlist type %T", pl)
	}
}

func variantLevels(variants []*playlist.MultivariantVariant) []Level {
	levels := make([]Level, 0, len(variants))
	for _, v := range variants {
		levels = append(levels, NewLevel(resolutionHeight(v.Resolution), v.Bandwidth))
	}
	return levels
}

// resolutionHeight extracts H from a "WxH" resolution attribute.
func resolutionHeight(res string) int {
	_, h, ok := strings.Cut(res, "x")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(h)
	if err != nil {
		return 0
	}
	return n
}

func (b *hlsBackend) startClient() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return context.Canceled
	}

	var c *gohlslib.Client
	c = &gohlslib.Client{
		URI:        b.url,
		HTTPClient: b.cfg.Client.StandardClient(),
		OnTracks: func(tracks []*gohlslib.Track) error {
			return b.onTracks(c, tracks)
		},
		OnDecodeError: b.onDecodeError,
	}
	if err := c.Start(); err != nil {
		return fmt.Errorf("starting HLS client: %w", err)
	}
	b.client = c

	b.wg.Add(1)
	go b.watch(c)
	return nil
}

func (b *hlsBackend) watch(c *gohlslib.Client) {
	defer b.wg.Done()
	err := c.Wait2()

	b.mu.Lock()
	current := b.client == c && !b.destroyed
	b.mu.Unlock()
	if !current {
		return
	}

	switch {
	case err == nil, errors.Is(err, gohlslib.ErrClientEOS):
		b.ms.EndOfStream()
	case errors.Is(err, errNoSupportedTracks):
		b.emit(BackendEvent{Type: BackendError, Kind: ErrorMedia, Fatal: true, Message: MsgFatalError, Err: err})
	default:
		b.emit(BackendEvent{Type: BackendError, Kind: ErrorNetwork, Fatal: true, Message: MsgNetworkError, Err: err})
	}
}

func (b *hlsBackend) onTracks(c *gohlslib.Client, tracks []*gohlslib.Track) error {
	supported := 0
	for i, track := range tracks {
		name := strconv.Itoa(i)
		clockRate := track.ClockRate
		switch track.Codec.(type) {
		case *codecs.H264:
			b.ms.AddTrack(name, "avc1")
			c.OnDataH26x(track, func(pts, _ int64, au [][]byte) {
				b.ms.Append(name, ticks(pts, clockRate), auSize(au))
			})
		case *codecs.H265:
			b.ms.AddTrack(name, "hvc1")
			c.OnDataH26x(track, func(pts, _ int64, au [][]byte) {
				b.ms.Append(name, ticks(pts, clockRate), auSize(au))
			})
		case *codecs.MPEG4Audio:
			b.ms.AddTrack(name, "mp4a.40.2")
			c.OnDataMPEG4Audio(track, func(pts int64, aus [][]byte) {
				// One AAC frame is 1024 samples at the track clock rate.
				for j, au := range aus {
					b.ms.Append(name, ticks(pts+int64(j)*1024, clockRate), len(au))
				}
			})
		case *codecs.Opus:
			b.ms.AddTrack(name, "opus")
			c.OnDataOpus(track, func(pts int64, packets [][]byte) {
				b.ms.Append(name, ticks(pts, clockRate), auSize(packets))
			})
		default:
			b.logger.Debug("skipping unsupported HLS track",
				slog.String("type", fmt.Sprintf("%T", track.Codec)))
			continue
		}
		supported++
	}

	if supported == 0 {
		return errNoSupportedTracks
	}
	b.logger.Debug("HLS tracks ready", slog.Int("tracks", supported))
	return nil
}

func (b *hlsBackend) onDecodeError(err error) {
	b.mu.Lock()
	b.decodeErrors++
	trip := b.decodeErrors >= maxDecodeErrors
	if trip {
		b.decodeErrors = 0
	}
	b.mu.Unlock()

	b.logger.Debug("HLS decode error", slog.String("error", err.Error()))
	if trip {
		b.emit(BackendEvent{Type: BackendError, Kind: ErrorMedia, Fatal: true, Message: MsgFatalError, Err: err})
	}
}

// Recover restarts the client on the same media source.
func (b *hlsBackend) Recover() bool {
	b.mu.Lock()
	if b.destroyed || b.native != nil || b.ms == nil {
		b.mu.Unlock()
		return false
	}
	old := b.client
	b.client = nil
	b.decodeErrors = 0
	b.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if err := b.startClient(); err != nil {
		b.logger.Warn("HLS recovery failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

func (b *hlsBackend) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	native, client, cancel, el := b.native, b.client, b.cancel, b.el
	b.mu.Unlock()

	if native != nil {
		native.Destroy()
		return
	}
	if cancel != nil {
		cancel()
	}
	if client != nil {
		client.Close()
	}
	b.wg.Wait()
	if el != nil {
		el.DetachMediaSource()
	}
}

func ticks(v int64, clockRate int) time.Duration {
	if clockRate <= 0 {
		clockRate = 90000
	}
	return time.Duration(float64(v) * float64(time.Second) / float64(clockRate))
}

func auSize(au [][]byte) int {
	n := 0
	for _, b := range au {
		n += len(b)
	}
	return n
}
