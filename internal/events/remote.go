package events

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// EmitCommand publishes through the host.
	EmitCommand = "plugin:event|emit"
	// ListenPath is the host's websocket stream of publications.
	ListenPath = "/plugin:event|listen"
)

// Invoker calls a host command.
type Invoker interface {
	Invoke(ctx context.Context, cmd string, args any, out any) error
}

// Remote is the window side of the host's event bus. Emits go through the
// host command endpoint and subscriptions are websocket streams.
type Remote struct {
	invoker Invoker
	base    *url.URL
	dialer  *websocket.Dialer
	buffer  int
}

// RemoteOption configures a Remote.
type RemoteOption func(*Remote)

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) RemoteOption {
	return func(r *Remote) { r.dialer = d }
}

// WithRemoteBuffer sets the subscription queue length.
func WithRemoteBuffer(n int) RemoteOption {
	return func(r *Remote) {
		if n > 0 {
			r.buffer = n
		}
	}
}

// NewRemote creates a bus bound to the host at ipcBase (http or https).
func NewRemote(invoker Invoker, ipcBase string, opts ...RemoteOption) (*Remote, error) {
	u, err := url.Parse(ipcBase)
	if err != nil {
		return nil, fmt.Errorf("parse ipc base %q: %w", ipcBase, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported ipc scheme %q", u.Scheme)
	}

	r := &Remote{
		invoker: invoker,
		base:    u,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		buffer: DefaultBuffer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Emit publishes payload on name through the host.
func (r *Remote) Emit(ctx context.Context, name string, payload any) error {
	args := map[string]any{"event": name, "payload": payload}
	if err := r.invoker.Invoke(ctx, EmitCommand, args, nil); err != nil {
		return fmt.Errorf("emit %s: %w", name, err)
	}
	return nil
}

// Subscribe opens a websocket stream for name. Events are queued in arrival
// order; a full queue holds the reader back rather than dropping.
func (r *Remote) Subscribe(ctx context.Context, name string) (*Subscription, error) {
	u := *r.base
	u.Path = strings.TrimSuffix(u.Path, "/") + ListenPath
	q := u.Query()
	q.Set("event", name)
	u.RawQuery = q.Encode()

	conn, resp, err := r.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", name, err)
	}

	ch := make(chan Event, r.buffer)
	done := make(chan struct{})

	sub := newSubscription(ch, func() {
		close(done)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})

	go func() {
		defer close(ch)
		defer sub.Close()
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			if ev.Name != name {
				continue
			}
			select {
			case ch <- ev:
			case <-done:
				return
			}
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-done:
		}
	}()

	return sub, nil
}
