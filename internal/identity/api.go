package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
	"github.com/felixgeelhaar/sessionbridge/internal/log"
	"github.com/felixgeelhaar/sessionbridge/internal/snapshot"
)

// Credentials modes for a request.
const (
	CredentialsInclude = "include"
	CredentialsOmit    = "omit"
)

// RequestInit is a frontend API request before it is sent. Interceptors may
// change any field.
type RequestInit struct {
	Method      string
	URL         *url.URL
	Header      http.Header
	Body        []byte
	Credentials string
}

// SetQuery sets a query parameter on the request URL.
func (r *RequestInit) SetQuery(key, value string) {
	q := r.URL.Query()
	q.Set(key, value)
	r.URL.RawQuery = q.Encode()
}

// APIError is one entry of an error envelope.
type APIError struct {
	Code        string          `json:"code"`
	Message     string          `json:"message"`
	LongMessage string          `json:"long_message,omitempty"`
	Meta        json.RawMessage `json:"meta,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.LongMessage != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.LongMessage)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Envelope is the frontend API response body. Most endpoints piggyback the
// current client next to the primary response.
type Envelope struct {
	Response json.RawMessage  `json:"response,omitempty"`
	Client   *snapshot.Client `json:"client,omitempty"`
	Errors   []APIError       `json:"errors,omitempty"`
}

// FirstErrorCode returns the code of the first error, or "".
func (e *Envelope) FirstErrorCode() string {
	if e == nil || len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Code
}

// Response is a received frontend API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Payload    *Envelope
	Raw        []byte
}

// BeforeRequest runs before each request is sent. An error aborts the request.
type BeforeRequest func(ctx context.Context, req *RequestInit) error

// AfterResponse runs after each request. resp is nil when no response arrived.
type AfterResponse func(ctx context.Context, req *RequestInit, resp *Response) error

func (c *Client) do(ctx context.Context, method, path string, form url.Values) (*Response, error) {
	u, err := url.Parse(c.frontendAPI + path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIdentityAPI, "build request url", err)
	}

	init := &RequestInit{
		Method:      method,
		URL:         u,
		Header:      http.Header{},
		Credentials: c.defaultCredentials(),
	}
	init.Header.Set("Accept", "application/json")
	if form != nil {
		init.Body = []byte(form.Encode())
		init.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	c.mu.Lock()
	before := append([]BeforeRequest(nil), c.before...)
	after := append([]AfterResponse(nil), c.after...)
	c.mu.Unlock()

	for _, fn := range before {
		if err := fn(ctx, init); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, init.Method, init.URL.String(), bytes.NewReader(init.Body))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIdentityAPI, "build request", err)
	}
	req.Header = init.Header.Clone()
	if init.Credentials == CredentialsOmit {
		req.Header.Del("Cookie")
	}

	c.logger.Debug(log.Params{"method": init.Method, "path": init.URL.Path}, "frontend api request")

	httpResp, err := c.http.Do(req)
	if err != nil {
		for _, fn := range after {
			if hookErr := fn(ctx, init, nil); hookErr != nil {
				c.logger.Error(log.Params{"path": path}, hookErr, "after-response interceptor failed")
			}
		}
		return nil, errors.Wrap(errors.ErrCodeIdentityAPI, fmt.Sprintf("%s %s", method, path), err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIdentityAPI, "read response", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Raw:        raw,
	}
	if isJSON(httpResp.Header, raw) {
		var env Envelope
		if err := json.Unmarshal(raw, &env); err == nil {
			resp.Payload = &env
		}
	}

	for _, fn := range after {
		if err := fn(ctx, init, resp); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode >= 400 || (resp.Payload != nil && len(resp.Payload.Errors) > 0) {
		return resp, apiFailure(method, path, resp)
	}
	return resp, nil
}

func apiFailure(method, path string, resp *Response) error {
	msg := fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode)
	if resp.Payload != nil && len(resp.Payload.Errors) > 0 {
		return errors.Wrap(errors.ErrCodeIdentityAPI, msg, &resp.Payload.Errors[0])
	}
	return errors.New(errors.ErrCodeIdentityAPI, msg)
}

func isJSON(h http.Header, raw []byte) bool {
	if strings.Contains(h.Get("Content-Type"), "json") {
		return true
	}
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// primary returns the primary response object, or the whole body for
// endpoints that are not enveloped.
func (r *Response) primary() json.RawMessage {
	if r.Payload != nil && len(r.Payload.Response) > 0 {
		return r.Payload.Response
	}
	return r.Raw
}
