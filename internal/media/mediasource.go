package media

import (
	"math"
	"sync"
	"time"
)

// MediaSource receives demuxed samples from an adaptive engine and exposes
// the buffered range to the element playing it.
//
// Presentation timestamps are normalized so the first appended sample across
// all tracks is at 0.
type MediaSource struct {
	url string

	mu          sync.Mutex
	tracks      map[string]string
	origin      time.Duration
	hasOrigin   bool
	bufferedEnd time.Duration
	duration    float64
	ended       bool
	samples     int64
	bytes       int64
	onChange    func(first bool)
}

// NewMediaSource creates a media source for the stream at url.
func NewMediaSource(url string) *MediaSource {
	return &MediaSource{
		url:      url,
		tracks:   make(map[string]string),
		duration: math.Inf(1),
	}
}

// URL is the stream this source was created for.
func (m *MediaSource) URL() string { return m.url }

// AddTrack declares a source buffer for track with the given codec.
func (m *MediaSource) AddTrack(track, codec string) {
	m.mu.Lock()
	m.tracks[track] = codec
	m.mu.Unlock()
}

// Append records a sample of size bytes at pts.
func (m *MediaSource) Append(track string, pts time.Duration, size int) {
	m.mu.Lock()
	if _, ok := m.tracks[track]; !ok {
		m.tracks[track] = ""
	}
	first := !m.hasOrigin
	if first {
		m.origin = pts
		m.hasOrigin = true
	}
	if rel := pts - m.origin; rel > m.bufferedEnd {
		m.bufferedEnd = rel
	}
	m.samples++
	m.bytes += int64(size)
	cb := m.onChange
	m.mu.Unlock()

	if cb != nil {
		cb(first)
	}
}

// SetDuration sets the presentation duration in seconds. Live sources keep
// the default of +Inf.
func (m *MediaSource) SetDuration(seconds float64) {
	m.mu.Lock()
	m.duration = seconds
	m.mu.Unlock()
}

// EndOfStream marks that no more samples will be appended.
func (m *MediaSource) EndOfStream() {
	m.mu.Lock()
	m.ended = true
	cb := m.onChange
	m.mu.Unlock()
	if cb != nil {
		cb(false)
	}
}

// BufferedEnd returns the end of the buffered range in seconds.
func (m *MediaSource) BufferedEnd() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bufferedEnd.Seconds()
}

// Duration returns the presentation duration in seconds (+Inf when live).
func (m *MediaSource) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

// Ended reports whether EndOfStream was called.
func (m *MediaSource) Ended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ended
}

// HasData reports whether any sample has been appended.
func (m *MediaSource) HasData() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasOrigin
}

// MediaSourceStats summarizes what was appended.
type MediaSourceStats struct {
	Tracks  map[string]string
	Samples int64
	Bytes   int64
}

// Stats returns a snapshot of the appended data.
func (m *MediaSource) Stats() MediaSourceStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	tracks := make(map[string]string, len(m.tracks))
	for k, v := range m.tracks {
		tracks[k] = v
	}
	return MediaSourceStats{Tracks: tracks, Samples: m.samples, Bytes: m.bytes}
}

func (m *MediaSource) setOnChange(fn func(first bool)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}
