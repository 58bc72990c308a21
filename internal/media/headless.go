package media

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jmylchreest/tvplay/internal/models"
	"github.com/jmylchreest/tvplay/pkg/httpclient"
)

// Default headless settings.
const (
	DefaultTimeUpdateInterval = 250 * time.Millisecond
	DefaultMaxBufferAhead     = 30 * time.Second
)

// HeadlessConfig configures a Headless element.
type HeadlessConfig struct {
	// Client fetches native sources. Its timeout should be zero for live media.
	Client *httpclient.Client
	Logger *slog.Logger

	// TimeUpdateInterval throttles timeupdate events while playing.
	TimeUpdateInterval time.Duration
	// MaxBufferAhead bounds how far a native MPEG-TS pull may read ahead of
	// the playback position.
	MaxBufferAhead time.Duration

	// DisableMediaSource hides the media source extension, forcing adaptive
	// engines to fall back to native playback.
	DisableMediaSource bool
	// NativeHLS makes CanPlayType claim HLS playlists.
	NativeHLS bool

	Autoplay AutoplayPolicy
}

// Headless is an Element without a display. Native sources are pulled over
// HTTP; MPEG-TS payloads are demuxed so the playback position follows the
// stream timestamps, other payloads advance on the wall clock.
type Headless struct {
	cfg    HeadlessConfig
	client *httpclient.Client
	logger *slog.Logger

	mu         sync.Mutex
	src        string
	paused     bool
	volume     float64
	muted      bool
	fullscreen bool
	loaded     bool
	err        *MediaError
	clock      playbackClock
	ms         *MediaSource // attached or internal buffer, nil for progressive
	attached   bool         // ms came from AttachMediaSource
	gen        uint64
	cancelLoad context.CancelFunc
	closed     bool

	listenersMu  sync.RWMutex
	listeners    map[uint64]func(Event)
	nextListener uint64

	stop chan struct{}
	wg   sync.WaitGroup
}

var _ Element = (*Headless)(nil)

// NewHeadless creates a headless element and starts its time update loop.
// Call Close to release it.
func NewHeadless(cfg HeadlessConfig) *Headless {
	if cfg.TimeUpdateInterval <= 0 {
		cfg.TimeUpdateInterval = DefaultTimeUpdateInterval
	}
	if cfg.MaxBufferAhead <= 0 {
		cfg.MaxBufferAhead = DefaultMaxBufferAhead
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	client := cfg.Client
	if client == nil {
		hc := httpclient.DefaultConfig()
		hc.Timeout = 0
		hc.Logger = cfg.Logger
		client = httpclient.New(hc)
	}

	h := &Headless{
		cfg:       cfg,
		client:    client,
		logger:    cfg.Logger,
		paused:    true,
		volume:    1,
		clock:     playbackClock{now: time.Now},
		listeners: make(map[uint64]func(Event)),
		stop:      make(chan struct{}),
	}
	h.wg.Add(1)
	go h.tickLoop()
	return h
}

// Close aborts any fetch and stops the element's goroutines.
func (h *Headless) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.abortLocked()
	h.mu.Unlock()

	close(h.stop)
	h.wg.Wait()
	return nil
}

// Subscribe implements Element.
func (h *Headless) Subscribe(fn func(Event)) func() {
	h.listenersMu.Lock()
	id := h.nextListener
	h.nextListener++
	h.listeners[id] = fn
	h.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.listenersMu.Lock()
			delete(h.listeners, id)
			h.listenersMu.Unlock()
		})
	}
}

func (h *Headless) dispatch(events ...Event) {
	if len(events) == 0 {
		return
	}
	h.listenersMu.RLock()
	fns := make([]func(Event), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.listenersMu.RUnlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// eventLocked snapshots the element state into an event. Caller holds mu.
func (h *Headless) eventLocked(t EventType) Event {
	return Event{
		Type:        t,
		Source:      h.src,
		CurrentTime: h.positionLocked(),
		Duration:    h.durationLocked(),
		Volume:      h.volume,
		Muted:       h.muted,
		Paused:      h.paused,
		Err:         h.err,
	}
}

// SetSource implements Element.
func (h *Headless) SetSource(url string) {
	h.mu.Lock()
	var events []Event
	if h.attached {
		h.ms.setOnChange(nil)
		h.attached = false
	}
	h.abortLocked()
	h.src = url
	h.ms = nil
	h.loaded = false
	h.err = nil
	events = h.resetPlaybackLocked()
	h.mu.Unlock()
	h.dispatch(events...)
}

// Source implements Element.
func (h *Headless) Source() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.src
}

// Load implements Element. Any in-flight fetch is aborted and the position
// resets to zero.
func (h *Headless) Load() {
	h.mu.Lock()
	if h.closed || h.attached {
		h.mu.Unlock()
		return
	}
	h.abortLocked()
	h.ms = nil
	h.loaded = false
	h.err = nil
	events := h.resetPlaybackLocked()

	if h.src != "" {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelLoad = cancel
		gen := h.gen
		src := h.src
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.pull(ctx, gen, src)
		}()
	}
	h.mu.Unlock()
	h.dispatch(events...)
}

// abortLocked cancels the current fetch and invalidates its callbacks.
func (h *Headless) abortLocked() {
	h.gen++
	if h.cancelLoad != nil {
		h.cancelLoad()
		h.cancelLoad = nil
	}
}

// resetPlaybackLocked rewinds to zero and pauses, returning a pause event
// if the element was playing.
func (h *Headless) resetPlaybackLocked() []Event {
	var events []Event
	if !h.paused {
		h.paused = true
		h.clock.stop(0)
		events = append(events, h.eventLocked(EventPause))
	}
	h.clock.reset()
	return events
}

// Play implements Element.
func (h *Headless) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	switch {
	case h.closed:
		h.mu.Unlock()
		return ErrClosed
	case h.src == "" && h.ms == nil:
		h.mu.Unlock()
		return ErrNoSource
	case h.err != nil:
		err := h.err
		h.mu.Unlock()
		return err
	}

	if !IsUserGesture(ctx) {
		switch h.cfg.Autoplay {
		case AutoplayBlocked:
			h.mu.Unlock()
			return ErrNotAllowed
		case AutoplayMuted:
			if !h.muted {
				h.mu.Unlock()
				return ErrNotAllowed
			}
		}
	}

	if !h.paused {
		h.mu.Unlock()
		return nil
	}
	h.paused = false
	h.clock.start()
	ev := h.eventLocked(EventPlay)
	h.mu.Unlock()

	h.dispatch(ev)
	return nil
}

// Pause implements Element.
func (h *Headless) Pause() {
	h.mu.Lock()
	if h.paused {
		h.mu.Unlock()
		return
	}
	h.clock.stop(h.ceilingLocked())
	h.paused = true
	ev := h.eventLocked(EventPause)
	h.mu.Unlock()
	h.dispatch(ev)
}

// Paused implements Element.
func (h *Headless) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

// CurrentTime returns the playback position in seconds.
func (h *Headless) CurrentTime() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.positionLocked()
}

// SetVolume implements Element. v is clamped to [0, 1].
func (h *Headless) SetVolume(v float64) {
	v = models.ClampVolume(v)
	h.mu.Lock()
	if h.volume == v {
		h.mu.Unlock()
		return
	}
	h.volume = v
	ev := h.eventLocked(EventVolumeChange)
	h.mu.Unlock()
	h.dispatch(ev)
}

// Volume implements Element.
func (h *Headless) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

// SetMuted implements Element.
func (h *Headless) SetMuted(muted bool) {
	h.mu.Lock()
	if h.muted == muted {
		h.mu.Unlock()
		return
	}
	h.muted = muted
	ev := h.eventLocked(EventVolumeChange)
	h.mu.Unlock()
	h.dispatch(ev)
}

// Muted implements Element.
func (h *Headless) Muted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.muted
}

// RequestFullscreen implements Element.
func (h *Headless) RequestFullscreen() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.fullscreen = true
	return nil
}

// ExitFullscreen implements Element.
func (h *Headless) ExitFullscreen() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.fullscreen {
		return ErrNotFullscreen
	}
	h.fullscreen = false
	return nil
}

// Fullscreen implements Element.
func (h *Headless) Fullscreen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fullscreen
}

// CanPlayType implements Element.
func (h *Headless) CanPlayType(mime string) string {
	return canPlayType(mime, h.cfg.NativeHLS)
}

// SupportsMediaSource implements Element.
func (h *Headless) SupportsMediaSource() bool {
	return !h.cfg.DisableMediaSource
}

// AttachMediaSource implements Element. The element source becomes the
// media source URL and the position follows the appended range.
func (h *Headless) AttachMediaSource(ms *MediaSource) error {
	if h.cfg.DisableMediaSource {
		return ErrMediaSource
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	if h.attached {
		h.ms.setOnChange(nil)
	}
	h.abortLocked()
	h.src = ms.URL()
	h.ms = ms
	h.attached = true
	h.loaded = false
	h.err = nil
	events := h.resetPlaybackLocked()
	gen := h.gen
	h.mu.Unlock()

	ms.setOnChange(func(first bool) { h.bufferChanged(gen, first) })
	h.dispatch(events...)
	if ms.HasData() {
		h.bufferChanged(gen, true)
	}
	return nil
}

// DetachMediaSource implements Element.
func (h *Headless) DetachMediaSource() {
	h.mu.Lock()
	if !h.attached {
		h.mu.Unlock()
		return
	}
	h.ms.setOnChange(nil)
	h.abortLocked()
	h.ms = nil
	h.attached = false
	h.src = ""
	h.loaded = false
	events := h.resetPlaybackLocked()
	h.mu.Unlock()
	h.dispatch(events...)
}

// bufferChanged emits loadedmetadata once the first sample of the current
// buffer arrives.
func (h *Headless) bufferChanged(gen uint64, first bool) {
	if !first {
		return
	}
	h.mu.Lock()
	if gen != h.gen || h.loaded {
		h.mu.Unlock()
		return
	}
	h.loaded = true
	ev := h.eventLocked(EventLoadedMetadata)
	h.mu.Unlock()
	h.dispatch(ev)
}

// fail moves the element into the error state for the given load.
func (h *Headless) fail(gen uint64, merr *MediaError) {
	h.mu.Lock()
	if gen != h.gen || h.closed {
		h.mu.Unlock()
		return
	}
	h.err = merr
	var events []Event
	if !h.paused {
		h.clock.stop(h.ceilingLocked())
		h.paused = true
		events = append(events, h.eventLocked(EventPause))
	}
	events = append(events, h.eventLocked(EventError))
	h.mu.Unlock()

	h.logger.Debug("media element error",
		slog.String("code", merr.Code.String()),
		slog.Any("error", merr.Err),
	)
	h.dispatch(events...)
}

// ceilingLocked is the furthest position playback may reach right now.
func (h *Headless) ceilingLocked() float64 {
	if !h.loaded {
		return 0
	}
	if h.ms != nil {
		return h.ms.BufferedEnd()
	}
	return math.Inf(1)
}

func (h *Headless) positionLocked() float64 {
	return h.clock.position(h.ceilingLocked())
}

// durationLocked reports 0 for unknown or unbounded durations.
func (h *Headless) durationLocked() float64 {
	if h.ms == nil {
		return 0
	}
	d := h.ms.Duration()
	if math.IsInf(d, 0) || math.IsNaN(d) {
		return 0
	}
	return d
}

// tickLoop emits throttled timeupdate events and detects the end of a
// finished media source.
func (h *Headless) tickLoop() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.cfg.TimeUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}

		h.mu.Lock()
		if h.paused || h.closed {
			h.mu.Unlock()
			continue
		}
		events := []Event{h.eventLocked(EventTimeUpdate)}
		if h.ms != nil && h.ms.Ended() && h.positionLocked() >= h.ms.BufferedEnd() {
			h.clock.stop(h.ceilingLocked())
			h.paused = true
			events = append(events, h.eventLocked(EventPause), h.eventLocked(EventEnded))
		}
		h.mu.Unlock()
		h.dispatch(events...)
	}
}

// playbackClock tracks the playback position. While running the position
// advances with the wall clock, bounded by a ceiling; reaching the ceiling
// stalls it there until the ceiling moves.
type playbackClock struct {
	now     func() time.Time
	base    float64
	anchor  time.Time
	running bool
}

func (c *playbackClock) reset() {
	c.base = 0
	c.running = false
}

func (c *playbackClock) start() {
	if c.running {
		return
	}
	c.anchor = c.now()
	c.running = true
}

func (c *playbackClock) stop(ceiling float64) {
	if !c.running {
		return
	}
	c.base = c.position(ceiling)
	c.running = false
}

func (c *playbackClock) position(ceiling float64) float64 {
	if !c.running {
		return c.base
	}
	now := c.now()
	pos := c.base + now.Sub(c.anchor).Seconds()
	if pos > ceiling {
		// Stalled on an empty buffer.
		pos = math.Max(ceiling, c.base)
		c.base = pos
		c.anchor = now
	}
	return pos
}
