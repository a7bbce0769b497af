// Package events fans workflow and task updates out to connected clients.
package events

import (
	"sync"
	"time"

	"justice-backend/internal/shared/metrics"
)

const (
	NameWorkflowUpdate = "workflow:update"
	NameTaskUpdate     = "task:update"

	defaultQueueSize = 64
)

// Event is a workflow transition notification.
type Event struct {
	CaseID    string         `json:"caseId"`
	Step      string         `json:"step"`
	Status    string         `json:"status"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Frame is the wire envelope: {"event": name, "data": payload}.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
	// caseID scopes delivery; empty means global.
	caseID string
}

// Publisher is what the coordinator and task runners depend on.
type Publisher interface {
	Publish(e Event)
	PublishTask(v any)
}

// Hub holds subscribers. Publish never blocks: a subscriber whose queue is
// full is dropped.
type Hub struct {
	mu        sync.RWMutex
	subs      map[*Subscriber]struct{}
	scoped    bool
	queueSize int
	now       func() time.Time
}

// NewHub constructs a Hub. When scoped is true a subscriber only receives
// workflow events for cases it joined.
func NewHub(scoped bool) *Hub {
	return &Hub{
		subs:      make(map[*Subscriber]struct{}),
		scoped:    scoped,
		queueSize: defaultQueueSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Subscriber is one connected client.
type Subscriber struct {
	hub    *Hub
	send   chan Frame
	rooms  map[string]struct{}
	closed bool
}

// C returns the subscriber's delivery queue. It is closed on unsubscribe.
func (s *Subscriber) C() <-chan Frame {
	return s.send
}

// Join adds the subscriber to a case room.
func (s *Subscriber) Join(caseID string) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.rooms[caseID] = struct{}{}
}

// Leave removes the subscriber from a case room.
func (s *Subscriber) Leave(caseID string) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	delete(s.rooms, caseID)
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		hub:   h,
		send:  make(chan Frame, h.queueSize),
		rooms: make(map[string]struct{}),
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	metrics.SetSubscribers(n)
	return sub
}

// Unsubscribe removes the subscriber and closes its queue. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	h.remove(sub)
	n := len(h.subs)
	h.mu.Unlock()
	metrics.SetSubscribers(n)
}

// remove requires h.mu held for writing.
func (h *Hub) remove(sub *Subscriber) {
	if sub.closed {
		return
	}
	delete(h.subs, sub)
	sub.closed = true
	close(sub.send)
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish broadcasts a workflow:update frame.
func (h *Hub) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = h.now()
	}
	h.broadcast(Frame{Event: NameWorkflowUpdate, Data: e, caseID: e.CaseID})
}

// PublishTask broadcasts a task:update frame to every subscriber.
func (h *Hub) PublishTask(v any) {
	h.broadcast(Frame{Event: NameTaskUpdate, Data: v})
}

func (h *Hub) broadcast(f Frame) {
	var slow []*Subscriber
	h.mu.RLock()
	for sub := range h.subs {
		if h.scoped && f.caseID != "" {
			if _, ok := sub.rooms[f.caseID]; !ok {
				continue
			}
		}
		select {
		case sub.send <- f:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, sub := range slow {
		h.remove(sub)
	}
	n := len(h.subs)
	h.mu.Unlock()
	metrics.SetSubscribers(n)
}

var _ Publisher = (*Hub)(nil)
