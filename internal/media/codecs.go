package media

import (
	"mime"
	"strings"
)

// Capability answers.
const (
	CanPlayNo       = ""
	CanPlayMaybe    = "maybe"
	CanPlayProbably = "probably"
)

// containerSupport lists the containers the headless element can consume and
// the codec prefixes it recognizes inside them.
var containerSupport = map[string][]string{
	"video/mp4":  {"avc1", "avc3", "mp4a"},
	"audio/mp4":  {"mp4a"},
	"video/webm": {"vp8", "vp9", "vp09", "opus", "vorbis"},
	"audio/webm": {"opus", "vorbis"},
	"video/mp2t": {"avc1", "mp4a"},
	"audio/mpeg": {"mp3"},
}

// hlsMIMETypes are only answered when native HLS is enabled.
var hlsMIMETypes = map[string]bool{
	"application/vnd.apple.mpegurl": true,
	"application/x-mpegurl":         true,
	"audio/mpegurl":                 true,
}

// canPlayType mirrors HTMLMediaElement.canPlayType over a static table.
// Without a codecs parameter a known container is "maybe"; with one, every
// listed codec must be recognized for "probably".
func canPlayType(mimeType string, nativeHLS bool) string {
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return CanPlayNo
	}
	mediaType = strings.ToLower(mediaType)

	if hlsMIMETypes[mediaType] {
		if nativeHLS {
			return CanPlayMaybe
		}
		return CanPlayNo
	}

	known, ok := containerSupport[mediaType]
	if !ok {
		return CanPlayNo
	}

	codecs := strings.TrimSpace(params["codecs"])
	if codecs == "" {
		return CanPlayMaybe
	}
	for _, c := range strings.Split(codecs, ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		if !codecKnown(c, known) {
			return CanPlayNo
		}
	}
	return CanPlayProbably
}

func codecKnown(codec string, known []string) bool {
	for _, k := range known {
		if codec == k || strings.HasPrefix(codec, k+".") {
			return true
		}
	}
	return false
}
