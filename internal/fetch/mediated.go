package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
)

// HTTP plugin commands.
const (
	cmdFetch         = "plugin:http|fetch"
	cmdFetchSend     = "plugin:http|fetch_send"
	cmdFetchReadBody = "plugin:http|fetch_read_body"
)

// Invoker calls a host command.
type Invoker interface {
	Invoke(ctx context.Context, cmd string, args any, out any) error
	InvokeRaw(ctx context.Context, cmd string, args any) ([]byte, http.Header, error)
}

// MediatedRequest is the argument of the plugin fetch command. Data is the
// request body as an array of bytes.
type MediatedRequest struct {
	ClientConfig MediatedConfig `json:"clientConfig"`
}

// MediatedConfig is the outgoing form of ClientConfig.
type MediatedConfig struct {
	URL             string        `json:"url"`
	Method          string        `json:"method"`
	Headers         []HeaderTuple `json:"headers"`
	Data            Bytes         `json:"data"`
	MaxRedirections *int          `json:"maxRedirections"`
	ConnectTimeout  *int          `json:"connectTimeout"`
	Proxy           any           `json:"proxy"`
}

// RIDRequest addresses a host-side request resource.
type RIDRequest struct {
	RID uint64 `json:"rid"`
}

// FetchSendResponse is what the host reports once the response head arrived.
type FetchSendResponse struct {
	Status     int           `json:"status"`
	StatusText string        `json:"statusText"`
	URL        string        `json:"url"`
	Headers    []HeaderTuple `json:"headers"`
	RID        uint64        `json:"rid"`
}

// MediatedTransport executes requests on the host through its HTTP plugin.
type MediatedTransport struct {
	invoker Invoker
}

// NewMediatedTransport creates a transport that tunnels through invoker.
func NewMediatedTransport(invoker Invoker) *MediatedTransport {
	return &MediatedTransport{invoker: invoker}
}

// RoundTrip implements http.RoundTripper.
func (t *MediatedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var data Bytes
	if req.Body != nil && req.Body != http.NoBody {
		b, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeFetchMediated, "read request body", err)
		}
		data = b
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var rid uint64
	args := MediatedRequest{ClientConfig: MediatedConfig{
		URL:     req.URL.String(),
		Method:  method,
		Headers: TuplesFromHeader(req.Header),
		Data:    data,
	}}
	if err := t.invoker.Invoke(ctx, cmdFetch, args, &rid); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetchMediated, "host fetch failed", err)
	}

	var head FetchSendResponse
	if err := t.invoker.Invoke(ctx, cmdFetchSend, RIDRequest{RID: rid}, &head); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetchMediated, "host fetch_send failed", err)
	}

	body, _, err := t.invoker.InvokeRaw(ctx, cmdFetchReadBody, RIDRequest{RID: head.RID})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetchMediated, "host fetch_read_body failed", err)
	}

	status := head.StatusText
	if status == "" {
		status = http.StatusText(head.Status)
	}

	header := HeaderFromTuples(head.Headers)
	header.Set("Content-Length", strconv.Itoa(len(body)))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", head.Status, status),
		StatusCode:    head.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}
