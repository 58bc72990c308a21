package streamtype

// CapabilityProber answers a MIME type probe the way a media element's
// canPlayType does: "", "maybe" or "probably".
type CapabilityProber interface {
	CanPlayType(mime string) string
}

// HLS MIME types probed for native HLS support.
const (
	MIMEAppleMPEGURL = "application/vnd.apple.mpegurl"
	MIMEXMPEGURL     = "application/x-mpegURL"
)

type formatProbe struct {
	label string
	mimes []string
}

var formatProbes = []formatProbe{
	{"HLS (m3u8)", []string{MIMEAppleMPEGURL, MIMEXMPEGURL}},
	{"MP4 (H.264)", []string{`video/mp4; codecs="avc1.42E01E"`}},
	{"WebM (VP8)", []string{`video/webm; codecs="vp8"`}},
	{"WebM (VP9)", []string{`video/webm; codecs="vp9"`}},
	{"HEVC (H.265)", []string{`video/mp4; codecs="hev1.1.6.L93.B0"`}},
	{"AV1", []string{`video/mp4; codecs="av01.0.08M.08"`}},
}

// SupportedFormats lists the display labels of formats the prober claims to
// play, in a fixed order. It is informational only.
func SupportedFormats(p CapabilityProber) []string {
	formats := make([]string, 0, len(formatProbes))
	for _, fp := range formatProbes {
		for _, mime := range fp.mimes {
			if p.CanPlayType(mime) != "" {
				formats = append(formats, fp.label)
				break
			}
		}
	}
	return formats
}
