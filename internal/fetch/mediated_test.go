package fetch

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
)

type fakeInvoker struct {
	calls   []string
	request MediatedRequest
	failOn  string
}

func (f *fakeInvoker) Invoke(_ context.Context, cmd string, args any, out any) error {
	f.calls = append(f.calls, cmd)
	if cmd == f.failOn {
		return stderrors.New("host down")
	}
	switch cmd {
	case cmdFetch:
		f.request = args.(MediatedRequest)
		*(out.(*uint64)) = 42
	case cmdFetchSend:
		if args.(RIDRequest).RID != 42 {
			return stderrors.New("unknown rid")
		}
		*(out.(*FetchSendResponse)) = FetchSendResponse{
			Status:  201,
			URL:     "https://clerk.example.com/v1/client/sessions",
			Headers: []HeaderTuple{{"content-type", "application/json"}, {"authorization", "Bearer next"}},
			RID:     43,
		}
	}
	return nil
}

func (f *fakeInvoker) InvokeRaw(_ context.Context, cmd string, args any) ([]byte, http.Header, error) {
	f.calls = append(f.calls, cmd)
	if cmd == f.failOn {
		return nil, nil, stderrors.New("host down")
	}
	if args.(RIDRequest).RID != 43 {
		return nil, nil, stderrors.New("unknown rid")
	}
	return []byte(`{"response":{}}`), nil, nil
}

func TestMediatedTransportRoundTrip(t *testing.T) {
	inv := &fakeInvoker{}
	transport := NewMediatedTransport(inv)

	req, err := http.NewRequest(http.MethodPost, "https://clerk.example.com/v1/client/sessions?_is_native=1", strings.NewReader("a=b"))
	require.NoError(t, err)
	req.Header.Set(MarkerTauriFetch, "1")
	req.Header.Set("Authorization", "Bearer prev")

	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, []string{cmdFetch, cmdFetchSend, cmdFetchReadBody}, inv.calls)
	assert.Equal(t, "https://clerk.example.com/v1/client/sessions?_is_native=1", inv.request.ClientConfig.URL)
	assert.Equal(t, http.MethodPost, inv.request.ClientConfig.Method)
	assert.Equal(t, Bytes("a=b"), inv.request.ClientConfig.Data)
	assert.Contains(t, inv.request.ClientConfig.Headers, HeaderTuple{"authorization", "Bearer prev"})
	assert.Contains(t, inv.request.ClientConfig.Headers, HeaderTuple{"x-tauri-fetch", "1"})

	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "201 Created", resp.Status)
	assert.Equal(t, "Bearer next", resp.Header.Get("Authorization"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"response":{}}`, string(body))
	assert.Equal(t, int64(len(body)), resp.ContentLength)
}

func TestMediatedTransportFailures(t *testing.T) {
	for _, cmd := range []string{cmdFetch, cmdFetchSend, cmdFetchReadBody} {
		t.Run(cmd, func(t *testing.T) {
			transport := NewMediatedTransport(&fakeInvoker{failOn: cmd})
			req, _ := http.NewRequest(http.MethodGet, "https://clerk.example.com/v1/client", nil)

			_, err := transport.RoundTrip(req)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeFetchMediated, errors.CodeOf(err))
		})
	}
}

func TestMediatedRequestWireShape(t *testing.T) {
	b, err := json.Marshal(MediatedRequest{ClientConfig: MediatedConfig{
		URL:     "https://x",
		Method:  "GET",
		Headers: []HeaderTuple{{"accept", "*/*"}},
		Data:    Bytes{1, 2},
	}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"clientConfig":{"url":"https://x","method":"GET","headers":[["accept","*/*"]],"data":[1,2],"maxRedirections":null,"connectTimeout":null,"proxy":null}}`, string(b))

	parsed, err := ParsePluginFetchBody(b)
	require.NoError(t, err)
	assert.Equal(t, "https://x", parsed.ClientConfig.URL)
}
