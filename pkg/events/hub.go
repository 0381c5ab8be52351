package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer is the per-subscriber channel depth. Once a subscriber
// has this many frames pending, each new frame for it is dropped: the live
// stream favors liveness over completeness, and a client can always replay
// the full sequence from the orchestrator's log retention.
const subscriberBuffer = 256

// Frame is one server→client unit on the streaming channel.
type Frame struct {
	Type            string `json:"type"` // "agent_message" or "lifecycle"
	InvestigationID string `json:"investigation_id"`
	Event           *Event `json:"event,omitempty"`
	State           string `json:"state,omitempty"`
}

// Hub fans investigation event streams out to attached clients. Topics are
// keyed by investigation id. Attach and detach never affect the worker —
// an investigation with no subscribers keeps running and its events keep
// accumulating in the orchestrator's log store.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[string]chan Frame // investigation id → subscriber id → channel
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[string]chan Frame)}
}

// Subscribe attaches a new subscriber to an investigation's stream.
// The returned cancel function detaches the subscriber without closing the
// channel; it is safe to call more than once.
func (h *Hub) Subscribe(investigationID string) (<-chan Frame, func()) {
	subID := uuid.New().String()
	ch := make(chan Frame, subscriberBuffer)

	h.mu.Lock()
	subs, ok := h.topics[investigationID]
	if !ok {
		subs = make(map[string]chan Frame)
		h.topics[investigationID] = subs
	}
	subs[subID] = ch
	h.mu.Unlock()

	// The channel is deliberately never closed: a concurrent broadcast may
	// have snapshotted it before detach and send after. Detached channels
	// simply stop receiving and are garbage-collected with the subscriber.
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if subs, ok := h.topics[investigationID]; ok {
				delete(subs, subID)
				if len(subs) == 0 {
					delete(h.topics, investigationID)
				}
			}
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers a worker event to every subscriber of the investigation.
// Slow subscribers are skipped, not blocked on.
func (h *Hub) Publish(investigationID string, ev Event) {
	h.broadcast(investigationID, Frame{
		Type:            "agent_message",
		InvestigationID: investigationID,
		Event:           &ev,
	})
}

// PublishLifecycle delivers a lifecycle state transition frame.
func (h *Hub) PublishLifecycle(investigationID, state string) {
	h.broadcast(investigationID, Frame{
		Type:            "lifecycle",
		InvestigationID: investigationID,
		State:           state,
	})
}

func (h *Hub) broadcast(investigationID string, f Frame) {
	h.mu.RLock()
	subs := h.topics[investigationID]
	// Snapshot channels so sends happen outside the lock.
	chans := make([]chan Frame, 0, len(subs))
	for _, ch := range subs {
		chans = append(chans, ch)
	}
	h.mu.RUnlock()

	for _, ch := range chans {
		select {
		case ch <- f:
		default:
			slog.Warn("dropping frame for slow subscriber",
				"investigation_id", investigationID, "frame_type", f.Type)
		}
	}
}

// SubscriberCount returns the number of subscribers attached to an
// investigation. Used by tests; the active-streams gauge is driven by the
// API's attach/detach hooks instead.
func (h *Hub) SubscriberCount(investigationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[investigationID])
}
