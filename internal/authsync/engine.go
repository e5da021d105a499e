// Package authsync keeps the auth state of several windows consistent.
//
// Each window runs one Engine. Local changes are broadcast as AuthEvents
// tagged with the window's label. Events from other windows pass a
// structural change check and, when the local client differs, trigger a
// refetch from the identity provider. The incoming snapshot is only a hint
// and is never applied directly.
package authsync

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
	"github.com/felixgeelhaar/sessionbridge/internal/events"
	"github.com/felixgeelhaar/sessionbridge/internal/identity"
	"github.com/felixgeelhaar/sessionbridge/internal/log"
	"github.com/felixgeelhaar/sessionbridge/internal/snapshot"
	"github.com/felixgeelhaar/sessionbridge/internal/telemetry"
)

// Target is the window-local identity state the engine reconciles.
type Target interface {
	Snapshot() *snapshot.Client
	Refresh(ctx context.Context) error
}

// Status is the engine's lifecycle state.
type Status int32

const (
	StatusIdle Status = iota
	StatusListening
	StatusReconciling
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusListening:
		return "listening"
	case StatusReconciling:
		return "reconciling"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Outcome is what happened to one event or emission.
type Outcome string

const (
	OutcomeEmitted       Outcome = "emitted"
	OutcomeEmitFailed    Outcome = "emit_failed"
	OutcomeNoClient      Outcome = "no_client"
	OutcomeSelf          Outcome = "self"
	OutcomeMalformed     Outcome = "malformed"
	OutcomeUnchanged     Outcome = "unchanged"
	OutcomeReconciled    Outcome = "reconciled"
	OutcomeRefreshFailed Outcome = "refresh_failed"
)

// Policy reports whether local needs a refresh given incoming.
type Policy func(local, incoming *snapshot.Client) bool

// Engine is one window's sync engine.
type Engine struct {
	bus     events.Bus
	label   string
	logger  log.Logger
	policy  Policy
	observe func(Outcome)

	status atomic.Int32

	mu   sync.Mutex
	sub  *events.Subscription
	done chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithPolicy replaces ShouldUpdate.
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithObserver is called with the outcome of every emission and event.
func WithObserver(fn func(Outcome)) Option {
	return func(e *Engine) { e.observe = fn }
}

// New creates an idle engine for the window labelled label.
func New(bus events.Bus, label string, opts ...Option) *Engine {
	e := &Engine{
		bus:    bus,
		label:  label,
		logger: log.Noop(),
		policy: ShouldUpdate,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Label returns the window label events are tagged with.
func (e *Engine) Label() string { return e.label }

// Status returns the current lifecycle state.
func (e *Engine) Status() Status { return Status(e.status.Load()) }

// Event builds the AuthEvent this window would broadcast for st.
func (e *Engine) Event(st identity.State) snapshot.AuthEvent {
	return snapshot.AuthEvent{
		Source: e.label,
		Payload: snapshot.Payload{
			Client:       st.Client,
			Session:      st.Session,
			User:         st.User,
			Organization: st.Organization,
		},
	}
}

// Emit broadcasts st to every window and the host. Failures are logged and
// not retried; the next change or refresh heals a missed update. A state
// without a client is not broadcast.
func (e *Engine) Emit(ctx context.Context, st identity.State) {
	if st.Client == nil {
		e.logger.Debug(log.Params{"source": e.label}, "no client to announce")
		e.note(OutcomeNoClient)
		return
	}
	ev := e.Event(st)
	e.logger.Debug(log.Params{"source": e.label, "client": clientID(st.Client)}, "emitting auth event")

	if err := e.bus.Emit(ctx, snapshot.AuthEventName, ev); err != nil {
		e.logger.Error(log.Params{"source": e.label},
			errors.Wrap(errors.ErrCodeSyncEmit, "broadcast auth event", err),
			"failed to emit auth event")
		e.note(OutcomeEmitFailed)
		return
	}
	e.note(OutcomeEmitted)
}

// Listener adapts Emit to an identity listener.
func (e *Engine) Listener(ctx context.Context) identity.Listener {
	return func(st identity.State) {
		e.Emit(ctx, st)
	}
}

// Listen subscribes to auth events and starts the single goroutine that
// handles them in delivery order. Calling Listen again while listening is a
// no-op.
func (e *Engine) Listen(ctx context.Context, target Target) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sub != nil {
		return nil
	}

	sub, err := e.bus.Subscribe(ctx, snapshot.AuthEventName)
	if err != nil {
		return errors.Wrap(errors.ErrCodeSyncListen, "subscribe to auth events", err)
	}

	e.sub = sub
	e.done = make(chan struct{})
	e.status.Store(int32(StatusListening))

	go e.drain(ctx, sub, target, e.done)
	return nil
}

// Done is closed once the receive goroutine exits. It is nil before Listen.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Close stops listening.
func (e *Engine) Close() {
	e.mu.Lock()
	sub := e.sub
	e.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	e.status.Store(int32(StatusClosed))
}

func (e *Engine) drain(ctx context.Context, sub *events.Subscription, target Target, done chan struct{}) {
	defer close(done)
	defer e.status.Store(int32(StatusClosed))

	for ev := range sub.C {
		e.Handle(ctx, ev, target)
	}
}

// Handle processes one raw event against target.
func (e *Engine) Handle(ctx context.Context, raw events.Event, target Target) Outcome {
	ev, err := snapshot.DecodeEvent(raw.Payload)
	if err != nil {
		e.logger.Warn(log.Params{
			"error": errors.Wrap(errors.ErrCodeSyncMalformedEvent, "decode auth event", err).Error(),
		}, "dropping malformed auth event")
		return e.note(OutcomeMalformed)
	}

	if ev.Source == e.label {
		e.logger.Debug(log.Params{"source": ev.Source}, "received auth event from self")
		return e.note(OutcomeSelf)
	}

	local := target.Snapshot()
	if !e.policy(local, ev.Payload.Client) {
		e.logger.Debug(log.Params{"source": ev.Source, "client": clientID(local)}, "auth event matches local state")
		return e.note(OutcomeUnchanged)
	}

	e.logger.Info(log.Params{"source": ev.Source, "client": clientID(ev.Payload.Client)}, "auth state changed elsewhere, refreshing")

	ctx, span := telemetry.StartBridgeSpan(ctx, "reconcile", e.label)
	defer span.End()

	prev := e.status.Swap(int32(StatusReconciling))
	err = target.Refresh(ctx)
	e.status.CompareAndSwap(int32(StatusReconciling), prev)

	if err != nil {
		telemetry.RecordError(span, err)
		e.logger.Error(log.Params{"source": ev.Source}, err, "failed to refresh after auth event")
		return e.note(OutcomeRefreshFailed)
	}
	telemetry.RecordSuccess(span)
	return e.note(OutcomeReconciled)
}

func (e *Engine) note(o Outcome) Outcome {
	if e.observe != nil {
		e.observe(o)
	}
	return o
}

func clientID(c *snapshot.Client) string {
	if c == nil {
		return ""
	}
	return c.ID
}
