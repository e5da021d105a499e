// Package ipc calls commands exposed by the native host. Every command is a
// JSON POST to <base>/<command>.
package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
)

// RequestIDHeader correlates a window's command with the host's log lines.
const RequestIDHeader = "X-Request-Id"

// DefaultTimeout bounds a single command round trip.
const DefaultTimeout = 30 * time.Second

// Client invokes host commands.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. A client without a Transport uses
// http.DefaultTransport at call time.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a client for the host listening at base.
func New(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse ipc base %q: %w", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("ipc base %q must be http or https", base)
	}

	c := &Client{
		base: u,
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Base returns the host's base URL.
func (c *Client) Base() string {
	return c.base.String()
}

// CommandURL returns the URL a command is posted to.
func (c *Client) CommandURL(cmd string) string {
	u := *c.base
	u.Path = u.Path + "/" + cmd
	return u.String()
}

// Invoke posts args as JSON and decodes the JSON response into out when out
// is not nil.
func (c *Client) Invoke(ctx context.Context, cmd string, args any, out any) error {
	body, _, err := c.InvokeRaw(ctx, cmd, args)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(errors.ErrCodeHostInvoke, fmt.Sprintf("decode %s response", cmd), err)
	}
	return nil
}

// InvokeRaw posts args and returns the undecoded response body and headers.
func (c *Client) InvokeRaw(ctx context.Context, cmd string, args any) ([]byte, http.Header, error) {
	if args == nil {
		args = struct{}{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeHostInvoke, fmt.Sprintf("encode %s arguments", cmd), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.CommandURL(cmd), bytes.NewReader(payload))
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeHostInvoke, fmt.Sprintf("build %s request", cmd), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeHostInvoke, fmt.Sprintf("invoke %s", cmd), err).
			WithSuggestion("Check that the native host is running and the IPC URL is correct")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeHostInvoke, fmt.Sprintf("read %s response", cmd), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, statusError(cmd, resp.StatusCode, body)
	}
	return body, resp.Header, nil
}

// ErrorBody is how the host reports a failed command.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func statusError(cmd string, status int, body []byte) error {
	var eb ErrorBody
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
		msg = eb.Error
		if eb.Code != "" {
			msg = eb.Code + ": " + msg
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return errors.New(errors.ErrCodeHostInvoke, fmt.Sprintf("%s returned %d: %s", cmd, status, msg))
}
