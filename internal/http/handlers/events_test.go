package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tvplay/internal/app"
)

func serveEvents(t *testing.T, handler *EventsHandler, timeout time.Duration, during func()) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	handler.RegisterSSE(router)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req := httptest.NewRequest("GET", "/api/v1/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	var wg sync.WaitGroup
	wg.Go(func() {
		router.ServeHTTP(rec, req)
	})
	if during != nil {
		during()
	}
	wg.Wait()
	return rec
}

func TestEventsHandler_SSE(t *testing.T) {
	t.Run("sends current state on connect", func(t *testing.T) {
		a, _ := newTestApp(t)
		rec := serveEvents(t, NewEventsHandler(a), 100*time.Millisecond, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

		events := parseSSEEvents(rec.Body.String())
		require.NotEmpty(t, events)
		assert.Equal(t, app.EventPlayerState, events[0]["event"])
		assert.Contains(t, events[0]["data"], `"volume":0.5`)
		assert.Contains(t, events[0]["data"], `"state":"idle"`)
	})

	t.Run("relays hub events", func(t *testing.T) {
		a, _ := newTestApp(t)
		rec := serveEvents(t, NewEventsHandler(a), 500*time.Millisecond, func() {
			require.Eventually(t, func() bool { return a.Hub().Len() == 1 }, time.Second, 5*time.Millisecond)
			_, err := a.Navigate(context.Background(), string(app.SectionSeries))
			require.NoError(t, err)
		})

		var nav map[string]string
		for _, ev := range parseSSEEvents(rec.Body.String()) {
			if ev["event"] == app.EventNavigation {
				nav = ev
			}
		}
		require.NotNil(t, nav)
		assert.Contains(t, nav["data"], `"section":"series"`)
		assert.Equal(t, 0, a.Hub().Len())
	})

	t.Run("sends heartbeat comments", func(t *testing.T) {
		a, _ := newTestApp(t)
		handler := NewEventsHandler(a)
		handler.SetHeartbeatInterval(50 * time.Millisecond)

		rec := serveEvents(t, handler, 200*time.Millisecond, nil)
		assert.Contains(t, rec.Body.String(), ":heartbeat")
	})

	t.Run("ends when the hub closes", func(t *testing.T) {
		a, _ := newTestApp(t)
		start := time.Now()
		rec := serveEvents(t, NewEventsHandler(a), 5*time.Second, func() {
			require.Eventually(t, func() bool { return a.Hub().Len() == 1 }, time.Second, 5*time.Millisecond)
			a.Hub().Close()
		})
		assert.Less(t, time.Since(start), 5*time.Second)
		assert.Contains(t, rec.Body.String(), ":connected")
	})
}

func parseSSEEvents(body string) []map[string]string {
	var events []map[string]string
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var current map[string]string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if current != nil {
				events = append(events, current)
				current = nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if current == nil {
			current = make(map[string]string)
		}
		current[key] = strings.TrimPrefix(value, " ")
	}
	if current != nil {
		events = append(events, current)
	}
	return events
}
