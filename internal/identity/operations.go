package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
	"github.com/felixgeelhaar/sessionbridge/internal/log"
	"github.com/felixgeelhaar/sessionbridge/internal/snapshot"
)

// Frontend API paths.
const (
	PathEnvironment = "/v1/environment"
	PathClient      = "/v1/client"
	PathSessions    = "/v1/client/sessions"
)

// Load brings the client to a usable state. Cached resources are used when
// available so no network round trip is needed; anything missing is fetched.
// Listeners are notified once loading completes. Loading twice is a no-op.
func (c *Client) Load(ctx context.Context, opts LoadOptions) error {
	c.mu.Lock()
	if c.loaded {
		c.mu.Unlock()
		return nil
	}
	c.options = opts
	provider := c.cached
	c.mu.Unlock()

	var res Resources
	if provider != nil {
		if cached, ok := provider(); ok {
			res = cached
		}
	}

	if res.Environment == nil {
		env, err := c.fetchEnvironment(ctx)
		if err != nil {
			return err
		}
		res.Environment = env
	}

	client := res.Client
	if client == nil {
		fetched, err := c.fetchClient(ctx)
		if err != nil {
			return err
		}
		client = fetched
	} else if err := client.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeIdentityAPI, "cached client is invalid", err)
	}

	c.mu.Lock()
	c.environment = res.Environment
	c.loaded = true
	c.mu.Unlock()

	c.logger.Debug(log.Params{
		"sdk":        opts.SDKMetadata.Name,
		"sdkVersion": opts.SDKMetadata.Version,
		"cached":     provider != nil && res.Client != nil,
	}, "identity client loaded")

	c.setClient(client)
	return nil
}

// Refresh refetches the client from the frontend API and notifies listeners.
func (c *Client) Refresh(ctx context.Context) error {
	if err := c.requireLoaded(); err != nil {
		return err
	}
	client, err := c.fetchClient(ctx)
	if err != nil {
		return err
	}
	c.setClient(client)
	return nil
}

// SetActive marks sessionID as the client's active session.
func (c *Client) SetActive(ctx context.Context, sessionID string) error {
	if err := c.requireLoaded(); err != nil {
		return err
	}
	if c.Snapshot().Session(sessionID) == nil {
		return errors.New(errors.ErrCodeIdentityAPI, fmt.Sprintf("session %q is not part of the client", sessionID))
	}

	resp, err := c.do(ctx, http.MethodPost, PathSessions+"/"+url.PathEscape(sessionID)+"/touch", url.Values{})
	if err != nil {
		return err
	}
	if resp.Payload != nil && resp.Payload.Client != nil {
		c.setClient(resp.Payload.Client)
		return nil
	}
	return c.Refresh(ctx)
}

// SignOut ends every session of the client.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.requireLoaded(); err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodDelete, PathSessions, nil)
	if err != nil {
		return err
	}

	client, err := decodeClient(resp)
	if err != nil {
		return err
	}
	if client == nil && resp.Payload != nil {
		client = resp.Payload.Client
	}
	if client == nil {
		return c.Refresh(ctx)
	}
	c.setClient(client)
	return nil
}

func (c *Client) requireLoaded() error {
	if !c.Loaded() {
		return errors.New(errors.ErrCodeIdentityNotLoaded, "identity client is not loaded").
			WithSuggestion("Call Load before using the client")
	}
	return nil
}

func (c *Client) fetchEnvironment(ctx context.Context) (*snapshot.Environment, error) {
	resp, err := c.do(ctx, http.MethodGet, PathEnvironment, nil)
	if err != nil {
		return nil, err
	}
	var env snapshot.Environment
	if err := json.Unmarshal(resp.primary(), &env); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIdentityAPI, "decode environment", err)
	}
	return &env, nil
}

func (c *Client) fetchClient(ctx context.Context) (*snapshot.Client, error) {
	resp, err := c.do(ctx, http.MethodGet, PathClient, nil)
	if err != nil {
		return nil, err
	}
	return decodeClient(resp)
}

// decodeClient reads the primary response as a client. A null response means
// the frontend API has no client for this device yet.
func decodeClient(resp *Response) (*snapshot.Client, error) {
	if resp.Payload == nil || len(resp.Payload.Response) == 0 {
		return nil, nil
	}
	var client *snapshot.Client
	if err := json.Unmarshal(resp.Payload.Response, &client); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIdentityAPI, "decode client", err)
	}
	if client == nil {
		return nil, nil
	}
	if err := client.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIdentityAPI, "frontend api returned an invalid client", err)
	}
	return client, nil
}
