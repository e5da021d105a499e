package ipc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
)

type fakeHost struct {
	header  *string
	initRes string
	fail    map[string]int
	seen    []string
}

func (f *fakeHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cmd := r.URL.Path[1:]
	f.seen = append(f.seen, cmd)

	if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get(RequestIDHeader) == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if code, ok := f.fail[cmd]; ok {
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(ErrorBody{Error: "host exploded", Code: "STORE-001"})
		return
	}

	switch cmd {
	case CmdInitialize:
		_, _ = io.WriteString(w, f.initRes)
	case CmdGetAuthorization:
		_ = json.NewEncoder(w).Encode(f.header)
	case CmdSetAuthorization:
		var req SetAuthorizationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.header = &req.Header
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL + "/")
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadBase(t *testing.T) {
	_, err := New("ftp://host")
	assert.Error(t, err)
	_, err = New("://")
	assert.Error(t, err)
}

func TestCommandURL(t *testing.T) {
	c, err := New("http://127.0.0.1:1430/")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:1430/plugin:clerk%7Cinitialize", c.CommandURL(CmdInitialize))
}

func TestAuthorizationHeaderRoundTrip(t *testing.T) {
	host := &fakeHost{}
	c := newTestClient(t, host)
	ctx := context.Background()

	got, err := c.AuthorizationHeader(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	require.NoError(t, c.SetAuthorizationHeader(ctx, "Bearer abc"))
	got, err = c.AuthorizationHeader(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", got)

	assert.Equal(t, []string{CmdGetAuthorization, CmdSetAuthorization, CmdGetAuthorization}, host.seen)
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		fail    int
		wantErr bool
	}{
		{
			name: "ok",
			body: `{"publishableKey":"pk_test_abc","environment":{"object":"environment","id":"env_1"},"client":{"object":"client","id":"c1","sessions":[]}}`,
		},
		{
			name: "null client",
			body: `{"publishableKey":"pk_test_abc","environment":null,"client":null}`,
		},
		{
			name:    "missing key",
			body:    `{"client":null}`,
			wantErr: true,
		},
		{
			name:    "duplicate sessions",
			body:    `{"publishableKey":"pk","client":{"id":"c1","sessions":[{"id":"s1","status":"active"},{"id":"s1","status":"active"}]}}`,
			wantErr: true,
		},
		{
			name:    "malformed",
			body:    `{"publishableKey":`,
			wantErr: true,
		},
		{
			name:    "host failure",
			fail:    http.StatusInternalServerError,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &fakeHost{initRes: tt.body}
			if tt.fail != 0 {
				host.fail = map[string]int{CmdInitialize: tt.fail}
			}
			c := newTestClient(t, host)

			resp, err := c.Initialize(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeHostHandshake, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "pk_test_abc", resp.PublishableKey)
		})
	}
}

func TestInvokeStatusErrorCarriesHostMessage(t *testing.T) {
	host := &fakeHost{fail: map[string]int{CmdSetAuthorization: http.StatusInternalServerError}}
	c := newTestClient(t, host)

	err := c.SetAuthorizationHeader(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeHostHeaderSet, errors.CodeOf(err))
	assert.True(t, errors.HasCode(err, errors.ErrCodeHostInvoke))
	assert.Contains(t, err.Error(), "host exploded")
}

func TestInvokeUnreachable(t *testing.T) {
	c, err := New("http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = c.AuthorizationHeader(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeHostHeaderGet, errors.CodeOf(err))
}
