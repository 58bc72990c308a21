package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSession(t *testing.T) {
	before := testutil.ToFloat64(BackendSessions.WithLabelValues("hls"))
	active := testutil.ToFloat64(ActiveSessions)

	RecordSessionStart("hls")
	assert.Equal(t, before+1, testutil.ToFloat64(BackendSessions.WithLabelValues("hls")))
	assert.Equal(t, active+1, testutil.ToFloat64(ActiveSessions))

	RecordSessionEnd()
	assert.Equal(t, active, testutil.ToFloat64(ActiveSessions))
}

func TestRecordPlaybackError(t *testing.T) {
	before := testutil.ToFloat64(PlaybackErrors.WithLabelValues("network", "true"))
	RecordPlaybackError("network", true)
	assert.Equal(t, before+1, testutil.ToFloat64(PlaybackErrors.WithLabelValues("network", "true")))
}

func TestRecordPlaylistLoad(t *testing.T) {
	okBefore := testutil.ToFloat64(PlaylistLoads.WithLabelValues("url", "success"))
	errBefore := testutil.ToFloat64(PlaylistLoads.WithLabelValues("url", "error"))

	RecordPlaylistLoad("url", 12, nil)
	assert.Equal(t, okBefore+1, testutil.ToFloat64(PlaylistLoads.WithLabelValues("url", "success")))
	assert.Equal(t, 12.0, testutil.ToFloat64(PlaylistChannels))

	RecordPlaylistLoad("url", 0, errors.New("fetch failed"))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(PlaylistLoads.WithLabelValues("url", "error")))
	assert.Equal(t, 12.0, testutil.ToFloat64(PlaylistChannels), "failed load keeps the previous count")
}

func TestMetricsEndpoint(t *testing.T) {
	RecordSessionStart("native")
	RecordSessionEnd()
	StaleCallbacks.Add(0)

	server := httptest.NewServer(promhttp.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "tvplay_backend_sessions_total")
	assert.Contains(t, string(body), "tvplay_stale_callbacks_total")
}
