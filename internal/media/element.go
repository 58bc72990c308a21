// Package media defines the media element the player drives and ships a
// headless implementation of it.
//
// An Element mirrors the surface of an HTML video element: a source, native
// load and play/pause, volume, mute, fullscreen, a capability probe and an
// optional media source extension through which adaptive engines feed
// samples. State changes are observed through Subscribe.
package media

import (
	"context"
	"errors"
	"fmt"
)

// EventType names an element event.
type EventType string

const (
	EventPlay           EventType = "play"
	EventPause          EventType = "pause"
	EventTimeUpdate     EventType = "timeupdate"
	EventVolumeChange   EventType = "volumechange"
	EventLoadedMetadata EventType = "loadedmetadata"
	EventEnded          EventType = "ended"
	EventError          EventType = "error"
)

// Event is emitted by an element. Every event carries a snapshot of the
// element state at emission time and the source it belongs to.
type Event struct {
	Type        EventType
	Source      string
	CurrentTime float64
	Duration    float64
	Volume      float64
	Muted       bool
	Paused      bool
	Err         *MediaError
}

// Element is a media sink.
type Element interface {
	// SetSource assigns a native source URL. An empty URL clears the source.
	SetSource(url string)
	Source() string
	// Load (re)starts fetching the current source.
	Load()

	// Play starts playback. It fails when there is no source, the element
	// is in an error state, or the autoplay policy rejects the request.
	// The element emits EventPlay on success; callers must not assume it.
	Play(ctx context.Context) error
	Pause()
	Paused() bool
	// CurrentTime is the playback position in seconds.
	CurrentTime() float64

	SetVolume(v float64)
	Volume() float64
	SetMuted(muted bool)
	Muted() bool

	RequestFullscreen() error
	ExitFullscreen() error
	Fullscreen() bool

	// CanPlayType answers "", "maybe" or "probably".
	CanPlayType(mime string) string

	// SupportsMediaSource reports whether adaptive engines may attach a
	// MediaSource instead of a native source.
	SupportsMediaSource() bool
	AttachMediaSource(ms *MediaSource) error
	DetachMediaSource()

	// Subscribe registers fn for all events until the returned func is called.
	Subscribe(fn func(Event)) (unsubscribe func())
}

// MediaErrorCode follows the HTML media error codes.
type MediaErrorCode int

const (
	MediaErrAborted         MediaErrorCode = 1
	MediaErrNetwork         MediaErrorCode = 2
	MediaErrDecode          MediaErrorCode = 3
	MediaErrSrcNotSupported MediaErrorCode = 4
)

func (c MediaErrorCode) String() string {
	switch c {
	case MediaErrAborted:
		return "MEDIA_ERR_ABORTED"
	case MediaErrNetwork:
		return "MEDIA_ERR_NETWORK"
	case MediaErrDecode:
		return "MEDIA_ERR_DECODE"
	case MediaErrSrcNotSupported:
		return "MEDIA_ERR_SRC_NOT_SUPPORTED"
	default:
		return fmt.Sprintf("MEDIA_ERR_%d", int(c))
	}
}

// MediaError is the error an element reports through EventError.
type MediaError struct {
	Code MediaErrorCode
	Err  error
}

func (e *MediaError) Error() string {
	if e.Err == nil {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *MediaError) Unwrap() error { return e.Err }

// Element errors.
var (
	ErrNoSource      = errors.New("no media source assigned")
	ErrNotAllowed    = errors.New("play request rejected by autoplay policy")
	ErrNotFullscreen = errors.New("element is not in fullscreen")
	ErrClosed        = errors.New("media element closed")
	ErrMediaSource   = errors.New("media source extensions not supported")
)

type gestureKey struct{}

// WithUserGesture marks ctx as originating from a user interaction, which
// lifts autoplay restrictions for Play.
func WithUserGesture(ctx context.Context) context.Context {
	return context.WithValue(ctx, gestureKey{}, true)
}

// IsUserGesture reports whether ctx was marked by WithUserGesture.
func IsUserGesture(ctx context.Context) bool {
	v, _ := ctx.Value(gestureKey{}).(bool)
	return v
}

// AutoplayPolicy controls Play calls made without a user gesture.
type AutoplayPolicy int

const (
	// AutoplayAllowed permits any Play call.
	AutoplayAllowed AutoplayPolicy = iota
	// AutoplayMuted permits Play without a gesture only while muted.
	AutoplayMuted
	// AutoplayBlocked requires a user gesture for every Play call.
	AutoplayBlocked
)

// ParseAutoplayPolicy maps "allowed", "muted" and "blocked".
func ParseAutoplayPolicy(s string) (AutoplayPolicy, error) {
	switch s {
	case "", "allowed":
		return AutoplayAllowed, nil
	case "muted":
		return AutoplayMuted, nil
	case "blocked":
		return AutoplayBlocked, nil
	default:
		return AutoplayAllowed, fmt.Errorf("unknown autoplay policy %q", s)
	}
}
