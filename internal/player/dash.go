package player

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"

	"github.com/jmylchreest/tvplay/internal/media"
	"github.com/jmylchreest/tvplay/pkg/httpclient"
)

// Default DASH settings.
const (
	DefaultDASHLiveDelay = 3 * time.Second
	defaultBufferAhead   = 30 * time.Second
	segmentRetries       = 3
	maxSegmentSize       = 64 << 20
)

// DASHConfig configures the DASH backend.
type DASHConfig struct {
	Client *httpclient.Client
	Logger *slog.Logger
	// LiveDelay is how far behind the live edge playback starts.
	LiveDelay time.Duration
	// BufferAhead bounds how far the segment pump reads ahead of the
	// playback position.
	BufferAhead time.Duration
	// PollInterval is the wait before looking for new live segments.
	// Zero derives it from the segment duration.
	PollInterval time.Duration
	// Now is the wall clock used for live edge computation.
	Now func() time.Time
}

// dashBackend plays DASH by pumping fMP4 segments into a media source.
type dashBackend struct {
	cfg    DASHConfig
	logger *slog.Logger

	mu        sync.Mutex
	el        media.Element
	ms        *media.MediaSource
	url       string
	emit      func(BackendEvent)
	cancel    context.CancelFunc
	destroyed bool

	wg sync.WaitGroup
}

// NewDASHBackend creates a DASH backend.
func NewDASHBackend(cfg DASHConfig) Backend {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Client == nil {
		cfg.Client = httpclient.NewWithDefaults()
	}
	if cfg.LiveDelay <= 0 {
		cfg.LiveDelay = DefaultDASHLiveDelay
	}
	if cfg.BufferAhead <= 0 {
		cfg.BufferAhead = defaultBufferAhead
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &dashBackend{cfg: cfg, logger: cfg.Logger.With(slog.String("backend", string(BackendDASH)))}
}

func (b *dashBackend) Kind() BackendKind { return BackendDASH }

func (b *dashBackend) Attach(ctx context.Context, el media.Element, url string, emit func(BackendEvent)) error {
	if !el.SupportsMediaSource() {
		return ErrDASHInit
	}
	ms := media.NewMediaSource(url)
	if err := el.AttachMediaSource(ms); err != nil {
		return fmt.Errorf("%w: %w", ErrDASHInit, err)
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

func (b *dashBackend) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	b.emit(BackendEvent{Type: BackendError, Kind: ErrorOther, Fatal: true, Message: MsgDASHError, Err: err})
}

func (b *dashBackend) run(ctx context.Context) {
	defer b.wg.Done()

	mpd, err := b.fetchMPD(ctx)
	if err != nil {
		b.fail(ctx, err)
		return
	}
	tracks, err := mpd.Tracks(b.url)
	if err != nil {
		b.fail(ctx, err)
		return
	}
	if d := mpd.Duration(); !mpd.IsLive() && d > 0 {
		b.ms.SetDuration(d.Seconds())
	}
	b.emit(BackendEvent{Type: BackendReady, Levels: mpd.VideoLevels()})

	st := &mpdState{mpd: mpd}
	pumpCtx, stop := context.WithCancel(ctx)
	defer stop()
	errs := make(chan error, len(tracks))
	var pumps sync.WaitGroup
	for _, t := range tracks {
		b.ms.AddTrack(t.Name, t.Codec)
		pumps.Add(1)
		go func(t *segmentTrack) {
			defer pumps.Done()
			if err := b.pump(pumpCtx, st, t); err != nil {
				errs <- fmt.Errorf("track %s: %w", t.Name, err)
				stop()
			}
		}(t)
	}
	var refresher sync.WaitGroup
	if mpd.IsLive() {
		refresher.Add(1)
		go func() {
			defer refresher.Done()
			b.refresh(pumpCtx, st)
		}()
	}
	pumps.Wait()
	stop()
	refresher.Wait()
	close(errs)

	if err, ok := <-errs; ok {
		b.fail(ctx, err)
		return
	}
	if ctx.Err() == nil {
		b.ms.EndOfStream()
	}
}

// mpdState shares the current manifest between pumps.
type mpdState struct {
	mu  sync.Mutex
	mpd *MPD
}

func (s *mpdState) get() *MPD {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mpd
}

func (s *mpdState) set(m *MPD) {
	s.mu.Lock()
	s.mpd = m
	s.mu.Unlock()
}

func (b *dashBackend) fetchMPD(ctx context.Context) (*MPD, error) {
	data, err := b.fetch(ctx, b.url)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest: %w", err)
	}
	return ParseMPD(data)
}

// refresh refetches a live manifest every minimumUpdatePeriod.
func (b *dashBackend) refresh(ctx context.Context, st *mpdState) {
	for {
		period := st.get().UpdatePeriod()
		if period <= 0 {
			period = 2 * time.Second
		}
		if !sleepCtx(ctx, period) {
			return
		}
		m, err := b.fetchMPD(ctx)
		if err != nil {
			b.logger.Debug("manifest refresh failed", slog.String("error", err.Error()))
			continue
		}
		st.set(m)
	}
}

func (b *dashBackend) pump(ctx context.Context, st *mpdState, t *segmentTrack) error {
	timescales := map[int]uint32{}
	if u := t.InitURL(); u != "" {
		data, err := b.fetchRetry(ctx, u)
		if err != nil {
			return fmt.Errorf("fetching init segment: %w", err)
		}
		var init fmp4.Init
		if err := init.Unmarshal(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("parsing init segment: %w", err)
		}
		for _, it := range init.Tracks {
			timescales[it.ID] = it.TimeScale
		}
	}

	var last *segmentRef
	for {
		if ctx.Err() != nil {
			return nil
		}
		mpd := st.get()
		refs := t.Segments(mpd, b.cfg.Now(), b.cfg.LiveDelay, last)
		if len(refs) == 0 {
			if !mpd.IsLive() {
				return nil
			}
			if !sleepCtx(ctx, b.pollInterval(t)) {
				return nil
			}
			continue
		}

		for i := range refs {
			ref := refs[i]
			if !b.waitBuffer(ctx) {
				return nil
			}
			data, err := b.fetchRetry(ctx, ref.URL)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("fetching segment %d: %w", ref.Number, err)
			}
			if err := b.appendSegment(t, ref, data, timescales); err != nil {
				return fmt.Errorf("parsing segment %d: %w", ref.Number, err)
			}
			last = &ref
		}
	}
}

func (b *dashBackend) appendSegment(t *segmentTrack, ref segmentRef, data []byte, timescales map[int]uint32) error {
	var parts fmp4.Parts
	if err := parts.Unmarshal(data); err != nil {
		return err
	}
	for _, part := range parts {
		for _, pt := range part.Tracks {
			ts := uint64(timescales[pt.ID])
			if ts == 0 {
				ts = t.Template.Timescale
			}
			dts := pt.BaseTime
			for _, s := range pt.Samples {
				pts := int64(dts) + int64(s.PTSOffset)
				b.ms.Append(t.Name, ticks(pts, int(ts)), len(s.Payload))
				dts += uint64(s.Duration)
			}
		}
	}
	return nil
}

func (b *dashBackend) pollInterval(t *segmentTrack) time.Duration {
	if b.cfg.PollInterval > 0 {
		return b.cfg.PollInterval
	}
	if t.Template.Duration > 0 {
		return time.Duration(float64(t.Template.Duration) / float64(t.Template.Timescale) * float64(time.Second) / 2)
	}
	return time.Second
}

// waitBuffer blocks while the media source is more than BufferAhead past
// the element position.
func (b *dashBackend) waitBuffer(ctx context.Context) bool {
	for b.ms.BufferedEnd()-b.el.CurrentTime() > b.cfg.BufferAhead.Seconds() {
		if !sleepCtx(ctx, 250*time.Millisecond) {
			return false
		}
	}
	return ctx.Err() == nil
}

func (b *dashBackend) fetchRetry(ctx context.Context, url string) ([]byte, error) {
	var err error
	for attempt := 0; attempt < segmentRetries; attempt++ {
		if attempt > 0 && !sleepCtx(ctx, time.Duration(attempt)*500*time.Millisecond) {
			return nil, ctx.Err()
		}
		var data []byte
		data, err = b.fetch(ctx, url)
		if err == nil {
			return data, nil
		}
		b.logger.Debug("segment fetch failed",
			slog.String("url", url),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))
	}
	return nil, err
}

func (b *dashBackend) fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := b.cfg.Client.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxSegmentSize))
}

func (b *dashBackend) Recover() bool { return false }

func (b *dashBackend) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	cancel, el := b.cancel, b.el
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
	if el != nil {
		el.DetachMediaSource()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
