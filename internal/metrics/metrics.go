// Package metrics exposes tvplay's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackendSessions counts backend sessions created, by backend kind.
	BackendSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_backend_sessions_total",
		Help: "Total number of playback backend sessions started",
	}, []string{"backend"})

	// ActiveSessions is the number of live backend sessions. Never above 1
	// for a single player.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tvplay_backend_sessions_active",
		Help: "Number of live playback backend sessions",
	})

	// PlaybackErrors counts player errors by kind and whether they were terminal.
	PlaybackErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_playback_errors_total",
		Help: "Total number of playback errors",
	}, []string{"kind", "fatal"})

	// MediaRecoveries counts automatic media error recovery attempts.
	MediaRecoveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvplay_media_recoveries_total",
		Help: "Total number of automatic media error recovery attempts",
	})

	// StaleCallbacks counts backend or element callbacks dropped because
	// their session had already been torn down.
	StaleCallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvplay_stale_callbacks_total",
		Help: "Total number of callbacks dropped for superseded sessions",
	})

	// PlaylistLoads counts playlist load attempts by source and result.
	PlaylistLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_playlist_loads_total",
		Help: "Total number of playlist load attempts",
	}, []string{"source", "result"})

	// PlaylistChannels is the size of the currently loaded catalog.
	PlaylistChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tvplay_playlist_channels",
		Help: "Number of channels in the loaded playlist",
	})

	// EventSubscribers is the number of connected state subscribers.
	EventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tvplay_event_subscribers",
		Help: "Number of connected player state subscribers",
	})
)

// RecordSessionStart marks a new backend session.
func RecordSessionStart(backend string) {
	BackendSessions.WithLabelValues(backend).Inc()
	ActiveSessions.Inc()
}

// RecordSessionEnd marks a backend session as released.
func RecordSessionEnd() {
	ActiveSessions.Dec()
}

// RecordPlaybackError counts a playback error.
func RecordPlaybackError(kind string, fatal bool) {
	f := "false"
	if fatal {
		f = "true"
	}
	PlaybackErrors.WithLabelValues(kind, f).Inc()
}

// RecordPlaylistLoad counts a playlist load attempt and, on success, records
// the resulting channel count.
func RecordPlaylistLoad(source string, channels int, err error) {
	if err != nil {
		PlaylistLoads.WithLabelValues(source, "error").Inc()
		return
	}
	PlaylistLoads.WithLabelValues(source, "success").Inc()
	PlaylistChannels.Set(float64(channels))
}
