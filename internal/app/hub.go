package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/tvplay/internal/catalog"
	"github.com/jmylchreest/tvplay/internal/metrics"
	"github.com/jmylchreest/tvplay/internal/models"
	"github.com/jmylchreest/tvplay/internal/player"
)

// Event types published on the hub.
const (
	EventPlayerState    = "player_state"
	EventPlaylistLoaded = "playlist_loaded"
	EventNavigation     = "navigation"
)

// subscriberBuffer is the per-subscriber queue depth; events beyond it are
// dropped for that subscriber.
const subscriberBuffer = 100

// Event is a state notification fanned out to subscribers.
type Event struct {
	Type      string               `json:"type"`
	State     *models.PlayerState  `json:"state,omitempty"`
	Update    *models.PlayerUpdate `json:"update,omitempty"`
	Status    *player.Status       `json:"status,omitempty"`
	Playlist  *catalog.Info        `json:"playlist,omitempty"`
	Section   Section              `json:"section,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// Subscriber receives hub events until it is unsubscribed.
type Subscriber struct {
	ID     string
	Events chan *Event
}

// Hub fans events out to subscribers without ever blocking the publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool
	logger      *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		logger:      logger.With("component", "event_hub"),
	}
}

// Subscribe registers a new subscriber. After Close the returned
// subscriber's channel is already closed.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{
		ID:     uuid.NewString(),
		Events: make(chan *Event, subscriberBuffer),
	}
	if h.closed {
		close(sub.Events)
		return sub
	}
	h.subscribers[sub.ID] = sub
	metrics.EventSubscribers.Inc()

	h.logger.Debug("subscriber added", "subscriber_id", sub.ID)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subscribers[id]; ok {
		close(sub.Events)
		delete(h.subscribers, id)
		metrics.EventSubscribers.Dec()
		h.logger.Debug("subscriber removed", "subscriber_id", id)
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish delivers ev to every subscriber with room for it.
func (h *Hub) Publish(ev *Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		select {
		case sub.Events <- ev:
		default:
			h.logger.Warn("subscriber event channel full, dropping event",
				"subscriber_id", sub.ID,
				"event_type", ev.Type,
			)
		}
	}
}

// Close unsubscribes everyone.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, sub := range h.subscribers {
		close(sub.Events)
		delete(h.subscribers, id)
		metrics.EventSubscribers.Dec()
	}
}
