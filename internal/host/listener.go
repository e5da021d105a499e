package host

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/sessionbridge/internal/events"
	"github.com/felixgeelhaar/sessionbridge/internal/log"
	"github.com/felixgeelhaar/sessionbridge/internal/metrics"
	"github.com/felixgeelhaar/sessionbridge/internal/snapshot"
)

// Listener is the host's participant on the auth event channel. It keeps the
// cached client in step with what windows report and announces clients the
// host itself fetched.
type Listener struct {
	hub     *events.Hub
	store   Store
	logger  log.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex
	sub  *events.Subscription
	done chan struct{}
}

// NewListener creates a listener. Call Start to subscribe.
func NewListener(hub *events.Hub, store Store, logger log.Logger, m *metrics.Metrics) *Listener {
	if logger == nil {
		logger = log.Noop()
	}
	return &Listener{hub: hub, store: store, logger: logger, metrics: m}
}

// Start subscribes to auth events and caches reported clients in order.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sub != nil {
		return nil
	}

	sub, err := l.hub.Subscribe(ctx, snapshot.AuthEventName)
	if err != nil {
		return err
	}
	l.sub = sub
	l.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		for ev := range sub.C {
			l.Handle(ctx, ev)
		}
	}(l.done)
	return nil
}

// Handle caches the client carried by one event. Host events are ignored.
// It reports whether the cached client changed.
func (l *Listener) Handle(ctx context.Context, raw events.Event) bool {
	ev, err := snapshot.DecodeEvent(raw.Payload)
	if err != nil {
		l.logger.Warn(log.Params{"error": err.Error()}, "host dropped malformed auth event")
		return false
	}
	if ev.Source == snapshot.HostSource || ev.Payload.Client == nil {
		return false
	}

	changed, err := CacheClient(ctx, l.store, ev.Payload.Client, l.metrics)
	if err != nil {
		l.logger.Error(log.Params{"source": ev.Source}, err, "failed to cache client from auth event")
		return false
	}
	if changed {
		l.logger.Debug(log.Params{"source": ev.Source, "client": ev.Payload.Client.ID}, "cached client from window")
	}
	return changed
}

// Announce broadcasts client as a host event.
func (l *Listener) Announce(ctx context.Context, client *snapshot.Client) {
	ev := snapshot.AuthEvent{Source: snapshot.HostSource, Payload: snapshot.PayloadFor(client)}
	if err := l.hub.Emit(ctx, snapshot.AuthEventName, ev); err != nil {
		l.logger.Error(log.Params{}, err, "failed to announce client")
		return
	}
	if l.metrics != nil {
		l.metrics.HubPublished.WithLabelValues(snapshot.AuthEventName).Inc()
	}
}

// Close stops the listener and waits for it to finish.
func (l *Listener) Close() {
	l.mu.Lock()
	sub, done := l.sub, l.done
	l.mu.Unlock()

	if sub == nil {
		return
	}
	sub.Close()
	<-done
}
