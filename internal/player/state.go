package player

import "fmt"

// State is the player lifecycle state.
type State int

const (
	// StateIdle means no channel is selected.
	StateIdle State = iota
	// StateInitializing means a backend is being attached.
	StateInitializing
	StatePlaying
	StatePaused
	// StateErrored is terminal for the current channel until Reload.
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateErrored; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown player state %q", text)
}

// HasChannel reports whether the state implies a selected channel.
func (s State) HasChannel() bool {
	return s != StateIdle
}

// User-facing error messages.
const (
	MsgRTMPUnsupported   = "RTMP streams require Flash player which is no longer supported. Please use HLS or DASH streams."
	MsgWebRTCUnsupported = "WebRTC streams are not yet supported in this player."
	MsgHLSUnsupported    = "HLS is not supported in this browser"
	MsgDASHInit          = "DASH player failed to initialize"
	MsgDASHError         = "DASH playback error occurred"
	MsgNetworkError      = "Network error occurred while loading the stream"
	MsgMediaRecovering   = "Media error occurred, attempting recovery"
	MsgFatalError        = "Fatal error occurred, cannot recover"
	MsgNativeError       = "Failed to load video stream"
	msgSetupPrefix       = "Failed to load stream: "
)

// SetupErrorMessage formats the message for a backend setup failure.
func SetupErrorMessage(err error) string {
	if err == nil {
		return msgSetupPrefix + "Unknown error"
	}
	return msgSetupPrefix + err.Error()
}
