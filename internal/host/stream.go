package host

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
	"github.com/felixgeelhaar/sessionbridge/internal/log"
)

const streamWriteTimeout = 5 * time.Second

// handleListen streams every publication of ?event= to a websocket until
// either side closes or the server shuts down.
func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("event")
	if name == "" {
		writeError(w, errors.New(errors.ErrCodeSyncListen, "listen requires an event name"))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Logger.Warn(log.Params{"event": name, "error": err.Error()}, "event stream upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	sub, err := s.cfg.Hub.Subscribe(ctx, name)
	if err != nil {
		return
	}
	defer sub.Close()

	if m := s.cfg.Metrics; m != nil {
		m.HubSubscribers.Inc()
		defer m.HubSubscribers.Dec()
	}

	// The peer never sends data; reading only notices when it goes away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for ev := range sub.C {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
