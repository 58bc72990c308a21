package player

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jmylchreest/tvplay/internal/media"
	"github.com/jmylchreest/tvplay/internal/streamtype"
)

// BackendKind names a backend implementation.
type BackendKind string

const (
	BackendHLS    BackendKind = "hls"
	BackendDASH   BackendKind = "dash"
	BackendNative BackendKind = "native"
)

// Backend errors returned from Attach.
var (
	ErrHLSUnsupported = errors.New(MsgHLSUnsupported)
	ErrDASHInit       = errors.New(MsgDASHInit)
)

// Backend drives one media element for one session. Attach must not block
// on network work; readiness and failures are reported through emit, which
// is safe to call from any goroutine, any number of times, including after
// Destroy.
type Backend interface {
	Kind() BackendKind
	Attach(ctx context.Context, el media.Element, url string, emit func(BackendEvent)) error
	// Recover attempts an engine-level recovery from a media error and
	// reports whether one was started.
	Recover() bool
	// Destroy releases every resource held by the backend. It blocks until
	// the backend's goroutines have exited and is idempotent.
	Destroy()
}

// BackendEventType discriminates BackendEvent.
type BackendEventType int

const (
	// BackendReady means the manifest or media metadata is available and
	// playback may start.
	BackendReady BackendEventType = iota
	// BackendLevels replaces the quality ladder.
	BackendLevels
	BackendError
)

func (t BackendEventType) String() string {
	switch t {
	case BackendReady:
		return "ready"
	case BackendLevels:
		return "levels"
	case BackendError:
		return "error"
	default:
		return fmt.Sprintf("backend_event(%d)", int(t))
	}
}

// ErrorKind classifies backend errors.
type ErrorKind string

const (
	ErrorNetwork ErrorKind = "network"
	ErrorMedia   ErrorKind = "media"
	ErrorOther   ErrorKind = "other"
)

// BackendEvent is reported by a backend through its emit callback.
type BackendEvent struct {
	Type   BackendEventType
	Levels []Level

	Kind  ErrorKind
	Fatal bool
	// Message is the user-facing text for a fatal error.
	Message string
	Err     error
}

// Level is one entry of a bitrate ladder.
type Level struct {
	Height  int    `json:"height" doc:"Vertical resolution in pixels"`
	Bitrate int    `json:"bitrate" doc:"Bitrate in bits per second"`
	Label   string `json:"label" doc:"Display label"`
}

// NewLevel builds a ladder entry with its display label.
func NewLevel(height, bitrate int) Level {
	return Level{Height: height, Bitrate: bitrate, Label: QualityLabel(height, bitrate)}
}

// QualityLabel formats a ladder entry as "<height>p (<kbps> kbps)".
func QualityLabel(height, bitrate int) string {
	return fmt.Sprintf("%dp (%d kbps)", height, int(math.Round(float64(bitrate)/1000)))
}

// BackendFactory creates the backend for a detected stream type. It returns
// nil for types without a playback path.
type BackendFactory func(info streamtype.Info) Backend
