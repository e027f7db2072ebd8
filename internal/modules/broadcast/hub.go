package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is one message on the real-time channel.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

// subscriberBuffer bounds how far a slow client may fall behind before we
// start dropping events for it.
const subscriberBuffer = 64

// Hub is the explicit subscriber registry: the only place allowed to iterate
// "all connected clients". Delivery is best-effort and never blocks the
// publisher; each subscriber sees events in publish order (local FIFO), but
// a disconnected client recovers missed notifications from the persisted
// list, not from here.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]chan Event
	log  *zap.Logger
}

// NewHub creates an empty registry.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{subs: make(map[string]chan Event), log: log}
}

// Subscribe registers a connection and returns its id and event channel.
// The caller must Unsubscribe when the connection closes.
func (h *Hub) Subscribe() (string, <-chan Event) {
	id := uuid.New().String()
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	h.log.Info("client subscribed", zap.String("subscriber_id", id))
	return id, ch
}

// Unsubscribe removes a connection and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if ok {
		close(ch)
		h.log.Info("client unsubscribed", zap.String("subscriber_id", id))
	}
}

// Publish fans an event out to every current subscriber. A subscriber whose
// buffer is full loses the event; that is logged and nothing else happens.
func (h *Hub) Publish(eventType string, payload interface{}) {
	ev := Event{Type: eventType, Payload: payload, At: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.log.Warn("dropping event for slow subscriber",
				zap.String("subscriber_id", id),
				zap.String("event_type", eventType))
		}
	}
}

// SubscriberCount reports how many connections are registered.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
