package http

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tvplay/internal/config"
	"github.com/jmylchreest/tvplay/internal/http/handlers"
)

// syncBuffer is written by server goroutines and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

func newTestServer(t *testing.T, cfg ServerConfig) (*Server, *syncBuffer) {
	t.Helper()
	logs := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))
	s := NewServer(cfg, logger, "1.2.3")
	handlers.NewHealthHandler("1.2.3").Register(s.API())
	return s, logs
}

func TestServer_Routes(t *testing.T) {
	s, logs := newTestServer(t, DefaultServerConfig())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	})

	t.Run("request id is reused", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
		assert.Contains(t, logs.String(), `"request_id":"abc-123"`)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(ts.URL + MetricsPath)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "go_goroutines")
	})

	t.Run("openapi", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/openapi.json")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "tvplay API")
		assert.Contains(t, string(body), "getHealth")
	})

	t.Run("quiet probe paths", func(t *testing.T) {
		logs.Reset()
		resp, err := http.Get(ts.URL + "/livez")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotContains(t, logs.String(), `"path":"/livez"`)
	})
}

func TestServer_CORSOrigins(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.CORSOrigins = []string{"http://allowed.example"}
	s, _ := newTestServer(t, cfg)

	tests := []struct {
		origin string
		want   string
	}{
		{"http://allowed.example", "http://allowed.example"},
		{"http://other.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/health", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestServer_Compression(t *testing.T) {
	s, _ := newTestServer(t, DefaultServerConfig())
	s.Router().Get("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(strings.Repeat(":x\n\n", 512)))
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), ":x"))
}

func TestServer_Recovery(t *testing.T) {
	s, logs := newTestServer(t, DefaultServerConfig())
	s.Router().Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, logs.String(), "panic recovered")
}

func TestServer_ListenAndServe(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.ShutdownTimeout = time.Second
	s, _ := newTestServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.ListenAndServe(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServerConfigFrom(t *testing.T) {
	sc := ServerConfigFrom(config.ServerConfig{
		Host:        "localhost",
		Port:        9000,
		ReadTimeout: 5 * time.Second,
		CORSOrigins: []string{"*"},
	})
	assert.Equal(t, "localhost:9000", sc.Address())
	assert.Equal(t, 5*time.Second, sc.ReadTimeout)
	assert.Equal(t, DefaultServerConfig().ShutdownTimeout, sc.ShutdownTimeout)
	assert.Equal(t, []string{"*"}, sc.CORSOrigins)
}
