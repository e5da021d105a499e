// Package events carries named broadcasts between windows and the host.
//
// Delivery is best effort: a publication reaches zero or more subscribers that
// are listening at the time. There are no acknowledgements or retries.
package events

import (
	"context"
	"encoding/json"
	"sync"
)

// Event is one publication on a named channel.
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Bus publishes and subscribes to named events.
type Bus interface {
	Emit(ctx context.Context, name string, payload any) error
	Subscribe(ctx context.Context, name string) (*Subscription, error)
}

// Subscription delivers events in publication order on C until closed.
type Subscription struct {
	C <-chan Event

	once  sync.Once
	close func()
}

func newSubscription(c <-chan Event, closeFn func()) *Subscription {
	return &Subscription{C: c, close: closeFn}
}

// Close stops delivery and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.close != nil {
			s.close()
		}
	})
}
