// Package player implements the playback state machine. A Player owns at
// most one backend session at a time and serializes every command, backend
// callback and element event on a single event loop goroutine.
package player

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/tvplay/internal/media"
	"github.com/jmylchreest/tvplay/internal/metrics"
	"github.com/jmylchreest/tvplay/internal/models"
	"github.com/jmylchreest/tvplay/internal/streamtype"
	"github.com/jmylchreest/tvplay/pkg/httpclient"
)

// Player errors.
var (
	ErrLoopStopped    = errors.New("player event loop is not running")
	ErrAlreadyRunning = errors.New("player event loop already running")
)

// Config configures a Player.
type Config struct {
	Element media.Element
	Logger  *slog.Logger
	// Backends creates the backend for a stream. Defaults to DefaultBackends
	// with every engine enabled.
	Backends BackendFactory
	// Autoplay starts playback as soon as a backend is ready.
	Autoplay bool
	// Observer receives every state delta. It is called on the event loop
	// and must not block.
	Observer func(models.PlayerUpdate)
	// NewSessionID generates backend session ids.
	NewSessionID func() string
}

// BackendOptions configures the built-in backends.
type BackendOptions struct {
	Client        *httpclient.Client
	Logger        *slog.Logger
	EnableHLS     bool
	EnableDASH    bool
	DASHLiveDelay time.Duration
}

// DefaultBackends maps stream types to the built-in backends. rtmp and
// webrtc have no backend.
func DefaultBackends(opts BackendOptions) BackendFactory {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return func(info streamtype.Info) Backend {
		switch info.Type {
		case streamtype.HLS:
			return NewHLSBackend(HLSConfig{Client: opts.Client, Logger: opts.Logger, Adaptive: opts.EnableHLS})
		case streamtype.DASH:
			if !opts.EnableDASH {
				return newNativeBackend(opts.Logger)
			}
			return NewDASHBackend(DASHConfig{Client: opts.Client, Logger: opts.Logger, LiveDelay: opts.DASHLiveDelay})
		case streamtype.RTMP, streamtype.WebRTC:
			return nil
		default:
			return newNativeBackend(opts.Logger)
		}
	}
}

// Status is a snapshot of the player.
type Status struct {
	State     State            `json:"state" doc:"Player state" enum:"idle,initializing,playing,paused,errored"`
	Channel   *models.Channel  `json:"channel,omitempty" doc:"Selected channel"`
	Stream    *streamtype.Info `json:"stream,omitempty" doc:"Detected stream type of the selected channel"`
	Backend   BackendKind      `json:"backend,omitempty" doc:"Active backend"`
	SessionID string           `json:"session_id,omitempty" doc:"Active backend session"`
	Levels    []Level          `json:"levels" doc:"Available quality levels"`
	Error     string           `json:"error,omitempty" doc:"Error message when errored"`
	Notice    string           `json:"notice,omitempty" doc:"Transient playback notice"`
}

// session is one live backend instance.
type session struct {
	id        string
	backend   Backend
	cancel    context.CancelFunc
	unsub     func()
	recovered bool
}

// Player is the playback state machine.
type Player struct {
	cfg    Config
	el     media.Element
	logger *slog.Logger
	queue  *loopQueue

	running atomic.Bool
	stopped chan struct{}

	// Owned by the event loop.
	runCtx  context.Context
	state   State
	channel *models.Channel
	info    *streamtype.Info
	sess    *session
	levels  []Level
	errMsg  string
	notice  string

	mu     sync.RWMutex
	status Status
}

// New creates a player. Call Run to start its event loop.
func New(cfg Config) *Player {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Backends == nil {
		cfg.Backends = DefaultBackends(BackendOptions{Logger: cfg.Logger, EnableHLS: true, EnableDASH: true})
	}
	if cfg.NewSessionID == nil {
		cfg.NewSessionID = uuid.NewString
	}
	if cfg.Observer == nil {
		cfg.Observer = func(models.PlayerUpdate) {}
	}
	p := &Player{
		cfg:     cfg,
		el:      cfg.Element,
		logger:  cfg.Logger.With(slog.String("component", "player")),
		queue:   newLoopQueue(),
		stopped: make(chan struct{}),
	}
	p.status = Status{State: StateIdle}
	return p
}

// Run processes commands and callbacks until ctx is done. The active
// session is destroyed before Run returns.
func (p *Player) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	p.runCtx = ctx
	defer close(p.stopped)
	defer p.queue.close()
	defer p.teardown()

	p.logger.Debug("player event loop started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("player event loop stopped")
			return ctx.Err()
		case <-p.queue.wake:
		}
		for {
			fn, ok := p.queue.pop()
			if !ok {
				break
			}
			fn()
			if ctx.Err() != nil {
				break
			}
		}
	}
}

// do runs fn on the event loop and waits for it to finish.
func (p *Player) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !p.queue.push(func() {
		defer close(done)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrLoopStopped
		}
	}
}

// post schedules fn on the event loop without waiting.
func (p *Player) post(fn func()) {
	p.queue.push(fn)
}

// Sync waits until every command queued before it has been processed.
func (p *Player) Sync(ctx context.Context) error {
	return p.do(ctx, func() {})
}

// Status returns the current snapshot.
func (p *Player) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.status
	if s.Channel != nil {
		ch := *s.Channel
		s.Channel = &ch
	}
	s.Levels = append([]Level(nil), s.Levels...)
	return s
}

// Select switches to ch, or returns to idle when ch is nil. The previous
// session is always destroyed first.
func (p *Player) Select(ctx context.Context, ch *models.Channel) error {
	var c *models.Channel
	if ch != nil {
		cp := *ch
		c = &cp
	}
	return p.do(ctx, func() {
		if c == nil {
			p.back()
			return
		}
		p.start(c)
	})
}

// Reload tears down the current session and starts a new one for the same
// channel. It is the only way out of the errored state.
func (p *Player) Reload(ctx context.Context) error {
	return p.do(ctx, func() {
		if p.channel == nil {
			return
		}
		ch := *p.channel
		p.start(&ch)
	})
}

// TogglePlay pauses a playing element and plays otherwise. State follows
// from the element's own events.
func (p *Player) TogglePlay(ctx context.Context) error {
	return p.do(ctx, func() {
		if p.channel == nil || p.state == StateErrored {
			return
		}
		if !p.el.Paused() {
			p.el.Pause()
			return
		}
		if err := p.el.Play(media.WithUserGesture(p.runCtx)); err != nil {
			p.logger.Warn("play request failed", slog.String("error", err.Error()))
		}
	})
}

// ToggleMute flips the element mute flag.
func (p *Player) ToggleMute(ctx context.Context) error {
	return p.do(ctx, func() {
		muted := !p.el.Muted()
		p.el.SetMuted(muted)
		p.notify(models.PlayerUpdate{IsMuted: &muted})
	})
}

// SetVolume sets the element volume, clamped to [0, 1]. Zero mutes and any
// other value unmutes.
func (p *Player) SetVolume(ctx context.Context, v float64) error {
	v = models.ClampVolume(v)
	return p.do(ctx, func() {
		muted := v == 0
		p.el.SetVolume(v)
		p.el.SetMuted(muted)
		p.notify(models.PlayerUpdate{Volume: &v, IsMuted: &muted})
	})
}

// ToggleFullscreen enters or exits fullscreen.
func (p *Player) ToggleFullscreen(ctx context.Context) error {
	return p.do(ctx, func() {
		var err error
		if p.el.Fullscreen() {
			err = p.el.ExitFullscreen()
		} else {
			err = p.el.RequestFullscreen()
		}
		if err != nil {
			p.logger.Warn("fullscreen request failed", slog.String("error", err.Error()))
		}
		fs := p.el.Fullscreen()
		p.notify(models.PlayerUpdate{IsFullscreen: &fs})
	})
}

func (p *Player) back() {
	p.teardown()
	p.channel = nil
	p.info = nil
	p.levels = nil
	p.notice = ""
	p.setState(StateIdle)
	p.notify(models.PlayerUpdate{
		ClearChannel: true,
		IsPlaying:    models.BoolPtr(false),
		CurrentTime:  models.Float64Ptr(0),
		Duration:     models.Float64Ptr(0),
		Quality:      models.StringPtr(models.DefaultQuality),
	})
}

func (p *Player) start(ch *models.Channel) {
	p.teardown()

	info := streamtype.Detect(ch.URL)
	p.channel = ch
	p.info = &info
	p.levels = nil
	p.notice = ""
	p.setState(StateInitializing)
	p.notify(models.PlayerUpdate{
		CurrentChannel: ch,
		IsPlaying:      models.BoolPtr(false),
		CurrentTime:    models.Float64Ptr(0),
		Duration:       models.Float64Ptr(0),
		Quality:        models.StringPtr(models.DefaultQuality),
	})

	log := p.logger.With(
		slog.String("channel", ch.Name),
		slog.String("url", ch.URL),
		slog.String("stream_type", string(info.Type)),
	)

	switch info.Type {
	case streamtype.RTMP:
		p.fail("unsupported", MsgRTMPUnsupported, nil)
		return
	case streamtype.WebRTC:
		p.fail("unsupported", MsgWebRTCUnsupported, nil)
		return
	}

	backend := p.cfg.Backends(info)
	if backend == nil {
		p.fail("unsupported", SetupErrorMessage(errors.New("unsupported stream type "+string(info.Type))), nil)
		return
	}

	ctx, cancel := context.WithCancel(p.runCtx)
	id := p.cfg.NewSessionID()
	s := &session{id: id, backend: backend, cancel: cancel}
	s.unsub = p.el.Subscribe(func(ev media.Event) {
		p.post(func() { p.onElementEvent(id, ev) })
	})
	p.sess = s
	metrics.RecordSessionStart(string(backend.Kind()))
	log.Info("starting playback session",
		slog.String("session_id", id),
		slog.String("backend", string(backend.Kind())))

	emit := func(ev BackendEvent) {
		p.post(func() { p.onBackendEvent(id, ev) })
	}
	if err := backend.Attach(ctx, p.el, ch.URL, emit); err != nil {
		p.fail("setup", SetupErrorMessage(err), err)
		return
	}
	p.publish()
}

// current reports whether id is the live session, counting stale callbacks.
func (p *Player) current(id string) bool {
	if p.sess != nil && p.sess.id == id {
		return true
	}
	metrics.StaleCallbacks.Inc()
	p.logger.Debug("dropping callback from stale session", slog.String("session_id", id))
	return false
}

func (p *Player) onElementEvent(id string, ev media.Event) {
	if !p.current(id) {
		return
	}
	switch ev.Type {
	case media.EventPlay:
		if p.state == StateInitializing || p.state == StatePaused {
			p.setState(StatePlaying)
		}
		p.notify(models.PlayerUpdate{IsPlaying: models.BoolPtr(true)})
	case media.EventPause:
		if p.state == StatePlaying {
			p.setState(StatePaused)
		}
		p.notify(models.PlayerUpdate{IsPlaying: models.BoolPtr(false)})
	case media.EventTimeUpdate:
		p.notify(models.PlayerUpdate{
			CurrentTime: models.Float64Ptr(ev.CurrentTime),
			Duration:    models.Float64Ptr(ev.Duration),
		})
	case media.EventVolumeChange:
		p.notify(models.PlayerUpdate{
			Volume:  models.Float64Ptr(ev.Volume),
			IsMuted: models.BoolPtr(ev.Muted),
		})
	}
}

func (p *Player) onBackendEvent(id string, ev BackendEvent) {
	if !p.current(id) {
		return
	}
	switch ev.Type {
	case BackendReady:
		p.levels = ev.Levels
		p.publish()
		if p.state == StateInitializing {
			p.autoplay()
		}
	case BackendLevels:
		p.levels = ev.Levels
		p.publish()
	case BackendError:
		p.onBackendError(ev)
	}
}

func (p *Player) autoplay() {
	if !p.cfg.Autoplay {
		p.setState(StatePaused)
		return
	}
	if err := p.el.Play(p.runCtx); err != nil {
		p.logger.Warn("autoplay rejected", slog.String("error", err.Error()))
		if p.state == StateInitializing {
			p.setState(StatePaused)
		}
	}
}

func (p *Player) onBackendError(ev BackendEvent) {
	metrics.RecordPlaybackError(string(ev.Kind), ev.Fatal)
	log := p.logger.With(
		slog.String("kind", string(ev.Kind)),
		slog.Bool("fatal", ev.Fatal),
	)
	if ev.Err != nil {
		log = log.With(slog.String("error", ev.Err.Error()))
	}

	if !ev.Fatal {
		log.Warn("non-fatal playback error")
		return
	}

	if ev.Kind == ErrorMedia {
		if !p.sess.recovered {
			p.sess.recovered = true
			metrics.MediaRecoveries.Inc()
			if p.sess.backend.Recover() {
				log.Warn("media error, attempting recovery")
				p.notice = MsgMediaRecovering
				p.publish()
				return
			}
		}
		p.fail(string(ev.Kind), MsgFatalError, ev.Err)
		return
	}

	msg := ev.Message
	if msg == "" {
		msg = MsgFatalError
		if ev.Kind == ErrorNetwork {
			msg = MsgNetworkError
		}
	}
	p.fail(string(ev.Kind), msg, ev.Err)
}

// fail destroys the session and moves to the errored state.
func (p *Player) fail(kind, msg string, err error) {
	p.teardown()
	if kind == "unsupported" || kind == "setup" {
		metrics.RecordPlaybackError(kind, true)
	}
	attrs := []any{slog.String("message", msg)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	p.logger.Error("playback failed", attrs...)

	p.errMsg = msg
	p.setState(StateErrored)
	p.notify(models.PlayerUpdate{IsPlaying: models.BoolPtr(false)})
}

// teardown destroys the active session, if any.
func (p *Player) teardown() {
	s := p.sess
	if s == nil {
		return
	}
	p.sess = nil
	s.unsub()
	s.cancel()
	s.backend.Destroy()
	metrics.RecordSessionEnd()
	p.logger.Debug("playback session destroyed", slog.String("session_id", s.id))
	p.publish()
}

func (p *Player) setState(s State) {
	if s != StateErrored {
		p.errMsg = ""
	}
	if p.state != s {
		p.logger.Debug("player state changed",
			slog.String("from", p.state.String()),
			slog.String("to", s.String()))
	}
	p.state = s
	p.publish()
}

func (p *Player) notify(u models.PlayerUpdate) {
	if u.IsEmpty() {
		return
	}
	p.cfg.Observer(u)
}

// publish refreshes the snapshot returned by Status.
func (p *Player) publish() {
	st := Status{
		State:   p.state,
		Channel: p.channel,
		Stream:  p.info,
		Levels:  p.levels,
		Error:   p.errMsg,
		Notice:  p.notice,
	}
	if p.sess != nil {
		st.Backend = p.sess.backend.Kind()
		st.SessionID = p.sess.id
	}
	p.mu.Lock()
	p.status = st
	p.mu.Unlock()
}
