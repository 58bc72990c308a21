package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmylchreest/tvplay/internal/app"
	"github.com/jmylchreest/tvplay/internal/http/middleware"
	"github.com/jmylchreest/tvplay/internal/observability"
)

// EventsHandler streams hub events as Server-Sent Events.
type EventsHandler struct {
	app               *app.App
	heartbeatInterval time.Duration
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(a *app.App) *EventsHandler {
	return &EventsHandler{
		app:               a,
		heartbeatInterval: 30 * time.Second,
	}
}

// SetHeartbeatInterval sets the SSE heartbeat interval (for testing).
func (h *EventsHandler) SetHeartbeatInterval(interval time.Duration) {
	h.heartbeatInterval = interval
}

// RegisterSSE registers the event stream on the raw router. Huma does not
// model streaming responses.
func (h *EventsHandler) RegisterSSE(router interface {
	Get(pattern string, handlerFn http.HandlerFunc)
}) {
	router.Get(middleware.EventsPath, h.HandleSSEEvents)
}

// HandleSSEEvents sends the current player state, then every hub event
// until the client disconnects or the hub closes.
func (h *EventsHandler) HandleSSEEvents(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFromContext(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.app.Hub().Subscribe()
	defer h.app.Hub().Unsubscribe(sub.ID)

	rc := http.NewResponseController(w)

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()

	fmt.Fprintf(w, ":connected\n\n")
	state := h.app.State()
	status := h.app.Player().Status()
	initial := &app.Event{
		Type:      app.EventPlayerState,
		State:     &state,
		Status:    &status,
		Section:   h.app.Section(),
		Timestamp: time.Now(),
	}
	if err := writeSSEEvent(w, initial); err != nil {
		logger.Error("failed to write initial SSE event", slog.String("error", err.Error()))
		return
	}
	if err := rc.Flush(); err != nil {
		logger.Error("failed to flush initial SSE connection", slog.String("error", err.Error()))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ":heartbeat %d\n\n", time.Now().Unix())
			if err := rc.Flush(); err != nil {
				logger.Debug("heartbeat flush failed, client likely disconnected", slog.String("error", err.Error()))
				return
			}
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				logger.Error("failed to write SSE event",
					slog.String("event_type", event.Type),
					slog.String("error", err.Error()),
				)
				return
			}
			if err := rc.Flush(); err != nil {
				logger.Debug("event flush failed, client likely disconnected",
					slog.String("event_type", event.Type),
					slog.String("error", err.Error()),
				)
				return
			}
		}
	}
}

// writeSSEEvent writes one complete SSE message in a single write.
func writeSSEEvent(w http.ResponseWriter, event *app.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", event.Type, err)
	}
	message := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, data))
	n, err := w.Write(message)
	if err != nil {
		return err
	}
	if n < len(message) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(message))
	}
	return nil
}
