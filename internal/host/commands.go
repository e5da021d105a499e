package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
	"github.com/felixgeelhaar/sessionbridge/internal/events"
	"github.com/felixgeelhaar/sessionbridge/internal/fetch"
	"github.com/felixgeelhaar/sessionbridge/internal/ipc"
	"github.com/felixgeelhaar/sessionbridge/internal/log"
)

func (s *Server) initialize(ctx context.Context, _ json.RawMessage) (any, error) {
	resp, refreshed, changed, err := s.cfg.Loader.Initialize(ctx)
	if err != nil {
		return nil, err
	}
	if refreshed && changed && resp.Client != nil {
		s.listener.Announce(ctx, resp.Client)
	}
	return resp, nil
}

func (s *Server) getAuthorization(ctx context.Context, _ json.RawMessage) (any, error) {
	header, err := s.cfg.Store.AuthorizationHeader(ctx)
	if err != nil || header == "" {
		return nil, err
	}
	return header, nil
}

func (s *Server) setAuthorization(ctx context.Context, args json.RawMessage) (any, error) {
	var req ipc.SetAuthorizationRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return nil, errors.NewMalformedBodyError("set_client_authorization_header expects {header}", err)
	}
	if err := s.cfg.Store.SetAuthorizationHeader(ctx, req.Header); err != nil {
		return nil, err
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.StoreWrites.WithLabelValues("authorization", "written").Inc()
	}
	return nil, nil
}

// httpFetch registers an outgoing request and returns its resource id. The
// request is sent by fetch_send.
func (s *Server) httpFetch(_ context.Context, args json.RawMessage) (any, error) {
	body, err := fetch.ParsePluginFetchBody(args)
	if err != nil {
		return nil, errors.NewMalformedBodyError("clientConfig does not match the expected shape", err)
	}
	cfg := body.ClientConfig

	var data fetch.Bytes
	if len(cfg.Data) > 0 {
		if err := json.Unmarshal(cfg.Data, &data); err != nil {
			return nil, errors.NewMalformedBodyError("clientConfig.data", err)
		}
	}

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequest(method, cfg.URL, bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewMalformedBodyError("clientConfig.url", err)
	}
	req.Header = outgoingHeader(cfg.Headers)

	return s.resources.addRequest(req), nil
}

// outgoingHeader builds the wire headers of a proxied request. Marker
// headers stay local and an empty Origin means no Origin at all. Later
// User-Agent and Origin entries replace earlier ones.
func outgoingHeader(tuples []fetch.HeaderTuple) http.Header {
	h := http.Header{}
	for _, t := range tuples {
		name := http.CanonicalHeaderKey(t[0])
		switch strings.ToLower(name) {
		case fetch.MarkerTauriFetch, fetch.MarkerNoOrigin:
			continue
		case "origin":
			if t[1] == "" {
				h.Del(name)
				continue
			}
			h.Set(name, t[1])
		case "user-agent":
			h.Set(name, t[1])
		default:
			h.Add(name, t[1])
		}
	}
	return h
}

func (s *Server) httpFetchSend(ctx context.Context, args json.RawMessage) (any, error) {
	var ref fetch.RIDRequest
	if err := json.Unmarshal(args, &ref); err != nil {
		return nil, errors.NewMalformedBodyError("fetch_send expects {rid}", err)
	}
	req, ok := s.resources.takeRequest(ref.RID)
	if !ok {
		return nil, fmt.Errorf("fetch_send %d: %w", ref.RID, errUnknownResource)
	}

	resp, err := s.cfg.HTTPClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetchMediated, "send "+req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetchMediated, "read response of "+req.URL.Redacted(), err)
	}
	if int64(len(body)) > s.cfg.MaxBodyBytes {
		return nil, errors.New(errors.ErrCodeFetchMediated,
			fmt.Sprintf("response of %s too large: over %d bytes", req.URL.Redacted(), s.cfg.MaxBodyBytes))
	}

	s.cfg.Logger.Debug(log.Params{"url": req.URL.Redacted(), "status": resp.StatusCode}, "proxied request")

	return fetch.FetchSendResponse{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		URL:        resp.Request.URL.String(),
		Headers:    fetch.TuplesFromHeader(resp.Header),
		RID:        s.resources.addBody(body),
	}, nil
}

// httpFetchReadBody answers with the raw response bytes rather than JSON.
func (s *Server) httpFetchReadBody(w http.ResponseWriter, r *http.Request) {
	var ref fetch.RIDRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, s.cfg.MaxBodyBytes)).Decode(&ref); err != nil {
		writeError(w, errors.NewMalformedBodyError("fetch_read_body expects {rid}", err))
		return
	}
	body, ok := s.resources.takeBody(ref.RID)
	if !ok {
		writeError(w, fmt.Errorf("fetch_read_body %d: %w", ref.RID, errUnknownResource))
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) emit(_ context.Context, args json.RawMessage) (any, error) {
	var ev events.Event
	if err := json.Unmarshal(args, &ev); err != nil || ev.Name == "" {
		if err == nil {
			err = fmt.Errorf("event name is empty")
		}
		return nil, errors.Wrap(errors.ErrCodeSyncMalformedEvent, "emit expects {event, payload}", err)
	}
	s.cfg.Hub.Publish(ev)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.HubPublished.WithLabelValues(ev.Name).Inc()
	}
	return nil, nil
}
