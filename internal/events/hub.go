package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultBuffer is the per-subscriber queue length of a Hub.
const DefaultBuffer = 64

// Hub is an in-process Bus. Fan-out never blocks: a subscriber whose queue is
// full misses the event and the drop is counted.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[string]chan Event
	buffer int

	dropped atomic.Uint64
	onDrop  func(name string)
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBuffer sets the per-subscriber queue length.
func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithDropHook is called with the event name whenever a delivery is dropped.
func WithDropHook(fn func(name string)) HubOption {
	return func(h *Hub) { h.onDrop = fn }
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:   make(map[string]map[string]chan Event),
		buffer: DefaultBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Emit marshals payload and publishes it.
func (h *Hub) Emit(_ context.Context, name string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", name, err)
	}
	h.Publish(Event{Name: name, Payload: raw})
	return nil
}

// Publish delivers ev to every current subscriber of ev.Name.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[ev.Name] {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
			if h.onDrop != nil {
				h.onDrop(ev.Name)
			}
		}
	}
}

// Subscribe registers a subscriber. The subscription is closed when ctx ends
// or Close is called.
func (h *Hub) Subscribe(ctx context.Context, name string) (*Subscription, error) {
	id := uuid.NewString()
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	if h.subs[name] == nil {
		h.subs[name] = make(map[string]chan Event)
	}
	h.subs[name][id] = ch
	h.mu.Unlock()

	stop := make(chan struct{})
	sub := newSubscription(ch, func() {
		close(stop)
		h.mu.Lock()
		delete(h.subs[name], id)
		if len(h.subs[name]) == 0 {
			delete(h.subs, name)
		}
		h.mu.Unlock()
		close(ch)
	})

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-stop:
		}
	}()

	return sub, nil
}

// Subscribers returns the number of live subscribers of name.
func (h *Hub) Subscribers(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[name])
}

// Dropped returns how many deliveries were dropped on full queues.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
