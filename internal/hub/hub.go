// Package hub fans outbound events to websocket subscribers grouped by
// topic. Rooms, per-user channels and the shared room-list feed are all
// just topics; the hub knows nothing about their meaning.
package hub

import (
	"encoding/json"
	"sync"

	"community_chat/internal/domain"
	"community_chat/pkg/logger"
)

// Subscriber receives marshalled event frames. Deliver must not block;
// it reports false when the subscriber's queue is full, after which the
// hub drops the subscriber and calls Close.
type Subscriber interface {
	Deliver(payload []byte) bool
	Close()
}

// topic carries its own lock so fan-out on one room never contends
// with fan-out or membership churn on another.
type topic struct {
	mu   sync.RWMutex
	subs map[Subscriber]struct{}
}

func (t *topic) add(sub Subscriber) {
	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()
}

// remove reports whether the topic is empty afterwards.
func (t *topic) remove(sub Subscriber) bool {
	t.mu.Lock()
	delete(t.subs, sub)
	empty := len(t.subs) == 0
	t.mu.Unlock()
	return empty
}

func (t *topic) snapshot() []Subscriber {
	t.mu.RLock()
	targets := make([]Subscriber, 0, len(t.subs))
	for sub := range t.subs {
		targets = append(targets, sub)
	}
	t.mu.RUnlock()
	return targets
}

// Hub routes events to topics. h.mu guards only the topic table and the
// reverse subscriber index; delivery reads the per-topic lock. Lock
// order is always hub before topic.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]*topic
	subs   map[Subscriber]map[string]struct{}
	closed bool
	log    logger.Logger
}

func New(log logger.Logger) *Hub {
	return &Hub{
		topics: make(map[string]*topic),
		subs:   make(map[Subscriber]map[string]struct{}),
		log:    log,
	}
}

// Subscribe is idempotent; subscribing twice to the same topic is a
// no-op.
func (h *Hub) Subscribe(name string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	t := h.topics[name]
	if t == nil {
		t = &topic{subs: make(map[Subscriber]struct{})}
		h.topics[name] = t
	}
	t.add(sub)

	if h.subs[sub] == nil {
		h.subs[sub] = make(map[string]struct{})
	}
	h.subs[sub][name] = struct{}{}
}

func (h *Hub) Unsubscribe(name string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detach(name, sub)
}

// UnsubscribeAll detaches the subscriber from every topic. Called on
// disconnect.
func (h *Hub) UnsubscribeAll(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for name := range h.subs[sub] {
		h.detach(name, sub)
	}
}

// detach requires h.mu held for writing.
func (h *Hub) detach(name string, sub Subscriber) {
	if t, ok := h.topics[name]; ok {
		if t.remove(sub) {
			delete(h.topics, name)
		}
	}
	if set, ok := h.subs[sub]; ok {
		delete(set, name)
		if len(set) == 0 {
			delete(h.subs, sub)
		}
	}
}

// Publish marshals the event once and hands it to every subscriber of
// the topic. Subscribers that cannot keep up are dropped rather than
// allowed to stall the rest.
func (h *Hub) Publish(name string, event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("Failed to marshal event", "error", err, "event_type", event.EventType())
		return
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	t := h.topics[name]
	h.mu.RUnlock()

	if t == nil {
		return
	}

	var slow []Subscriber
	for _, sub := range t.snapshot() {
		if !sub.Deliver(payload) {
			slow = append(slow, sub)
		}
	}

	if len(slow) > 0 {
		h.dropSubscribers(slow)
	}
}

// SubscriberCount reports how many subscribers a topic currently has.
func (h *Hub) SubscriberCount(name string) int {
	h.mu.RLock()
	t := h.topics[name]
	h.mu.RUnlock()

	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

func (h *Hub) dropSubscribers(slow []Subscriber) {
	h.mu.Lock()
	var toClose []Subscriber
	for _, sub := range slow {
		if _, ok := h.subs[sub]; !ok {
			continue
		}
		for name := range h.subs[sub] {
			h.detach(name, sub)
		}
		toClose = append(toClose, sub)
	}
	h.mu.Unlock()

	for _, sub := range toClose {
		h.log.Warn("Dropping slow subscriber")
		sub.Close()
	}
}

// Shutdown detaches and closes every subscriber. Publishes after
// shutdown are discarded.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true

	subs := make([]Subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.topics = make(map[string]*topic)
	h.subs = make(map[Subscriber]map[string]struct{})
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}

	h.log.Info("Hub shut down", "subscribers_closed", len(subs))
}
