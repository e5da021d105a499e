package ipc

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
	"github.com/felixgeelhaar/sessionbridge/internal/snapshot"
)

// Host commands.
const (
	CmdInitialize          = "plugin:clerk|initialize"
	CmdGetAuthorization    = "plugin:clerk|get_client_authorization_header"
	CmdSetAuthorization    = "plugin:clerk|set_client_authorization_header"
	CmdHTTPFetch           = "plugin:http|fetch"
	CmdHTTPFetchSend       = "plugin:http|fetch_send"
	CmdHTTPFetchReadBody   = "plugin:http|fetch_read_body"
	CmdEventEmit           = "plugin:event|emit"
	CmdEventListen         = "plugin:event|listen"
	AuthorizationHeaderKey = "authorization"
)

// InitializeResponse is the host handshake result.
type InitializeResponse struct {
	Environment    *snapshot.Environment `json:"environment"`
	Client         *snapshot.Client      `json:"client"`
	PublishableKey string                `json:"publishableKey"`
}

// Validate checks a handshake before any of it is used.
func (r *InitializeResponse) Validate() error {
	if r.PublishableKey == "" {
		return fmt.Errorf("handshake carries no publishable key")
	}
	if r.Client != nil {
		if err := r.Client.Validate(); err != nil {
			return fmt.Errorf("handshake client: %w", err)
		}
	}
	return nil
}

// SetAuthorizationRequest is the argument of CmdSetAuthorization.
type SetAuthorizationRequest struct {
	Header string `json:"header"`
}

// Initialize performs the host handshake. The host may answer from its cache
// without touching the network.
func (c *Client) Initialize(ctx context.Context) (*InitializeResponse, error) {
	var resp InitializeResponse
	if err := c.Invoke(ctx, CmdInitialize, nil, &resp); err != nil {
		return nil, errors.NewHandshakeError(err)
	}
	if err := resp.Validate(); err != nil {
		return nil, errors.NewHandshakeError(err)
	}
	return &resp, nil
}

// AuthorizationHeader returns the header the host holds, or "" when it holds
// none.
func (c *Client) AuthorizationHeader(ctx context.Context) (string, error) {
	var header *string
	if err := c.Invoke(ctx, CmdGetAuthorization, nil, &header); err != nil {
		return "", errors.Wrap(errors.ErrCodeHostHeaderGet, "read authorization header from host", err)
	}
	if header == nil {
		return "", nil
	}
	return *header, nil
}

// SetAuthorizationHeader stores header on the host. Last writer wins.
func (c *Client) SetAuthorizationHeader(ctx context.Context, header string) error {
	if err := c.Invoke(ctx, CmdSetAuthorization, SetAuthorizationRequest{Header: header}, nil); err != nil {
		return errors.Wrap(errors.ErrCodeHostHeaderSet, "store authorization header on host", err)
	}
	return nil
}
