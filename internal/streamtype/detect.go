// Package streamtype classifies stream URLs by protocol and reports which
// formats a playback environment claims to support.
package streamtype

import "strings"

// Type is the detected streaming protocol or container.
type Type string

const (
	HLS     Type = "hls"
	DASH    Type = "dash"
	MP4     Type = "mp4"
	WebM    Type = "webm"
	RTMP    Type = "rtmp"
	WebRTC  Type = "webrtc"
	Unknown Type = "unknown"
)

// Info is the result of classifying a URL.
type Info struct {
	Type      Type   `json:"type" doc:"Detected stream type" enum:"hls,dash,mp4,webm,rtmp,webrtc,unknown"`
	Codec     string `json:"codec,omitempty" doc:"Guessed video codec"`
	Container string `json:"container,omitempty" doc:"Guessed container"`
	IsLive    bool   `json:"is_live" doc:"Whether the stream is assumed live"`
}

// Supported reports whether the player has a playback path for the type.
func (t Type) Supported() bool {
	return t != RTMP && t != WebRTC
}

type rule struct {
	match func(u string) bool
	info  Info
}

func contains(subs ...string) func(string) bool {
	return func(u string) bool {
		for _, s := range subs {
			if strings.Contains(u, s) {
				return true
			}
		}
		return false
	}
}

func hasPrefix(prefixes ...string) func(string) bool {
	return func(u string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(u, p) {
				return true
			}
		}
		return false
	}
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{contains(".m3u8", "hls"), Info{Type: HLS, Codec: "h264", Container: "m3u8", IsLive: true}},
	{contains(".mpd", "dash"), Info{Type: DASH, Codec: "h264", Container: "mpd", IsLive: true}},
	{hasPrefix("rtmp://", "rtmps://"), Info{Type: RTMP, Codec: "h264", Container: "flv", IsLive: true}},
	{func(u string) bool { return strings.Contains(u, "webrtc") || strings.HasPrefix(u, "wss://") },
		Info{Type: WebRTC, Codec: "vp8", Container: "webm", IsLive: true}},
	{contains(".mp4"), Info{Type: MP4, Codec: "h264", Container: "mp4", IsLive: false}},
	{contains(".webm"), Info{Type: WebM, Codec: "vp9", Container: "webm", IsLive: false}},
}

// Detect classifies a URL using case-insensitive substring and prefix checks.
// It never inspects the network and always returns a value.
func Detect(url string) Info {
	u := strings.ToLower(url)
	for _, r := range rules {
		if r.match(u) {
			return r.info
		}
	}
	return Info{Type: Unknown, IsLive: true}
}
