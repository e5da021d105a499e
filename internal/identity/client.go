// Package identity is a client for the identity provider's frontend API. It
// holds one window's auth state, notifies listeners when that state changes,
// and lets callers intercept every request and response.
package identity

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
	"github.com/felixgeelhaar/sessionbridge/internal/log"
	"github.com/felixgeelhaar/sessionbridge/internal/snapshot"
)

// State is the auth state listeners are told about.
type State struct {
	Client       *snapshot.Client
	Session      *snapshot.Session
	User         *snapshot.User
	Organization *snapshot.Organization
}

// Listener observes state changes.
type Listener func(State)

// Resources are snapshots that can seed a client without a network call.
type Resources struct {
	Client      *snapshot.Client
	Environment *snapshot.Environment
}

// ResourcesProvider returns cached resources, or false when there are none.
type ResourcesProvider func() (Resources, bool)

// SDKMetadata identifies the embedding SDK to the identity provider.
type SDKMetadata struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment,omitempty"`
}

// LoadOptions configure Load.
type LoadOptions struct {
	SDKMetadata SDKMetadata
	// StandardBrowser assumes a browser cookie context. When false, requests
	// default to omitting credentials.
	StandardBrowser bool
}

type listenerEntry struct {
	id int
	fn Listener
}

// Client is one window's view of the frontend API.
type Client struct {
	publishableKey string
	frontendAPI    string
	http           *http.Client
	logger         log.Logger

	mu          sync.Mutex
	client      *snapshot.Client
	environment *snapshot.Environment
	loaded      bool
	options     LoadOptions
	listeners   []listenerEntry
	nextID      int
	cached      ResourcesProvider
	before      []BeforeRequest
	after       []AfterResponse
}

// Option configures a Client.
type Option func(*Client) error

// WithProxyURL sends frontend API requests to proxy instead of the host the
// publishable key names.
func WithProxyURL(proxy string) Option {
	return func(c *Client) error {
		if proxy == "" {
			return nil
		}
		u, err := url.Parse(proxy)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New(errors.ErrCodeIdentityPublishableKey, "proxy url must be absolute: "+proxy)
		}
		c.frontendAPI = strings.TrimSuffix(u.String(), "/")
		return nil
	}
}

// WithHTTPClient sets the HTTP client. Its transport decides how requests
// leave the process.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc != nil {
			c.http = hc
		}
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *Client) error {
		if l != nil {
			c.logger = l
		}
		return nil
	}
}

// New creates an unloaded client for publishableKey.
func New(publishableKey string, opts ...Option) (*Client, error) {
	api, err := FrontendAPIFromKey(publishableKey)
	if err != nil {
		return nil, err
	}

	c := &Client{
		publishableKey: publishableKey,
		frontendAPI:    api,
		http:           &http.Client{Timeout: 30 * time.Second},
		logger:         log.Noop(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// PublishableKey returns the key the client was built with.
func (c *Client) PublishableKey() string { return c.publishableKey }

// FrontendAPI returns the base URL requests are sent to.
func (c *Client) FrontendAPI() string { return c.frontendAPI }

// Loaded reports whether Load completed.
func (c *Client) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Snapshot returns the current client, or nil.
func (c *Client) Snapshot() *snapshot.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// Environment returns the loaded environment, or nil.
func (c *Client) Environment() *snapshot.Environment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.environment
}

// State returns the current auth state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Client) stateLocked() State {
	p := snapshot.PayloadFor(c.client)
	return State{Client: p.Client, Session: p.Session, User: p.User, Organization: p.Organization}
}

// AddListener registers fn and returns a function that removes it. A loaded
// client calls fn once right away with the current state.
func (c *Client) AddListener(fn Listener) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: fn})
	loaded := c.loaded
	st := c.stateLocked()
	c.mu.Unlock()

	if loaded {
		fn(st)
	}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// SetCachedResources installs the provider Load consults before the network.
func (c *Client) SetCachedResources(p ResourcesProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = p
}

// OnBeforeRequest appends a request interceptor. Interceptors run in the order
// they were added; adding the same one twice runs it twice.
func (c *Client) OnBeforeRequest(fn BeforeRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.before = append(c.before, fn)
}

// OnAfterResponse appends a response interceptor.
func (c *Client) OnAfterResponse(fn AfterResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.after = append(c.after, fn)
}

// Interceptors returns how many request and response interceptors are set.
func (c *Client) Interceptors() (before, after int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.before), len(c.after)
}

func (c *Client) defaultCredentials() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.options.StandardBrowser {
		return CredentialsInclude
	}
	return CredentialsOmit
}

// setClient replaces the client and notifies listeners outside the lock.
func (c *Client) setClient(client *snapshot.Client) {
	if ids := client.UnknownStatuses(); len(ids) > 0 {
		c.logger.Warn(log.Params{"client": client.ID, "sessions": ids}, "sessions with unknown status")
	}

	c.mu.Lock()
	c.client = client
	st := c.stateLocked()
	listeners := make([]Listener, len(c.listeners))
	for i, l := range c.listeners {
		listeners[i] = l.fn
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}
