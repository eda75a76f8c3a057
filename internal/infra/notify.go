package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// NotifyHub fans progress notifications out to live subscribers, keyed by
// learner. Delivery is best effort: a full buffer drops the message.
type NotifyHub struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[string]*Subscriber // learner -> subID -> sub
	logger *slog.Logger
}

// Subscriber is one open stream for a learner.
type Subscriber struct {
	ID     string
	UserID uuid.UUID
	Send   chan []byte
}

// Notification is the payload delivered to subscribers.
type Notification struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// NewNotifyHub creates an empty hub.
func NewNotifyHub(logger *slog.Logger) *NotifyHub {
	return &NotifyHub{
		rooms:  make(map[uuid.UUID]map[string]*Subscriber),
		logger: logger,
	}
}

// Subscribe registers a new stream for userID. The returned func removes it.
func (h *NotifyHub) Subscribe(userID uuid.UUID, buffer int) (*Subscriber, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &Subscriber{ID: uuid.NewString(), UserID: userID, Send: make(chan []byte, buffer)}

	h.mu.Lock()
	if h.rooms[userID] == nil {
		h.rooms[userID] = make(map[string]*Subscriber)
	}
	h.rooms[userID][sub.ID] = sub
	h.mu.Unlock()

	var once sync.Once
	return sub, func() { once.Do(func() { h.leave(userID, sub.ID) }) }
}

func (h *NotifyHub) leave(userID uuid.UUID, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[userID]
	if !ok {
		return
	}
	if sub, ok := subs[subID]; ok {
		close(sub.Send)
		delete(subs, subID)
	}
	if len(subs) == 0 {
		delete(h.rooms, userID)
	}
}

// Publish sends an event to every stream of the learner.
func (h *NotifyHub) Publish(userID uuid.UUID, event string, data interface{}) {
	payload, err := json.Marshal(Notification{Event: event, Data: data})
	if err != nil {
		h.logger.Error("notify marshal error", "error", err, "user_id", userID, "event", event)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.rooms[userID] {
		select {
		case sub.Send <- payload:
		default:
			h.logger.Warn("notify buffer full", "sub_id", sub.ID, "user_id", userID)
		}
	}
}

// SubscriberCount returns the total number of open streams.
func (h *NotifyHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, subs := range h.rooms {
		count += len(subs)
	}
	return count
}

// Shutdown closes all streams.
func (h *NotifyHub) Shutdown(_ context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, subs := range h.rooms {
		for _, sub := range subs {
			close(sub.Send)
		}
		delete(h.rooms, userID)
	}
}
