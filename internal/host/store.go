// Package host is the native side of the bridge. It owns the authorization
// header and the cached snapshots, performs frontend API requests on behalf of
// windows, and relays auth events between them.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
	"github.com/felixgeelhaar/sessionbridge/internal/snapshot"
)

// Store persists the host's auth state.
//
// Implementations must be safe for concurrent use. The header has no
// read-modify-write contract: the last writer wins.
type Store interface {
	// AuthorizationHeader returns the stored header, or "" when none is set.
	AuthorizationHeader(ctx context.Context) (string, error)
	SetAuthorizationHeader(ctx context.Context, header string) error

	// CachedClient returns nil when nothing is cached.
	CachedClient(ctx context.Context) (*snapshot.Client, error)
	// SetCachedClient reports whether the stored client changed.
	SetCachedClient(ctx context.Context, client *snapshot.Client) (bool, error)

	CachedEnvironment(ctx context.Context) (*snapshot.Environment, error)
	SetCachedEnvironment(ctx context.Context, env *snapshot.Environment) error

	Ping(ctx context.Context) error
	Close() error
}

// Store keys.
const (
	keyAuthorization = "authorization"
	keyClient        = "client"
	keyEnvironment   = "environment"
)

// encodeDigest returns the JSON encoding of v and its blake3 digest.
func encodeDigest(v any) ([]byte, string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, "", err
	}
	hasher := blake3.New()
	if _, err := hasher.Write(data); err != nil {
		return nil, "", err
	}
	return data, fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

func storeError(op string, err error) error {
	return errors.Wrap(errors.ErrCodeStore, op, err)
}

type memoryEntry struct {
	data   []byte
	digest string
}

// MemoryStore keeps everything in process memory. Suitable for tests and
// hosts that should forget their session on exit.
type MemoryStore struct {
	entries sync.Map
	closed  bool
	mu      sync.Mutex
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) load(key string) (memoryEntry, bool) {
	v, ok := m.entries.Load(key)
	if !ok {
		return memoryEntry{}, false
	}
	return v.(memoryEntry), true
}

// AuthorizationHeader implements Store.
func (m *MemoryStore) AuthorizationHeader(context.Context) (string, error) {
	e, ok := m.load(keyAuthorization)
	if !ok {
		return "", nil
	}
	return string(e.data), nil
}

// SetAuthorizationHeader implements Store.
func (m *MemoryStore) SetAuthorizationHeader(_ context.Context, header string) error {
	if header == "" {
		m.entries.Delete(keyAuthorization)
		return nil
	}
	m.entries.Store(keyAuthorization, memoryEntry{data: []byte(header)})
	return nil
}

// CachedClient implements Store.
func (m *MemoryStore) CachedClient(context.Context) (*snapshot.Client, error) {
	e, ok := m.load(keyClient)
	if !ok {
		return nil, nil
	}
	var c snapshot.Client
	if err := json.Unmarshal(e.data, &c); err != nil {
		return nil, storeError("decode cached client", err)
	}
	return &c, nil
}

// SetCachedClient implements Store.
func (m *MemoryStore) SetCachedClient(_ context.Context, client *snapshot.Client) (bool, error) {
	if client == nil {
		_, existed := m.entries.LoadAndDelete(keyClient)
		return existed, nil
	}
	data, digest, err := encodeDigest(client)
	if err != nil {
		return false, storeError("encode client", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.load(keyClient); ok && prev.digest == digest {
		return false, nil
	}
	m.entries.Store(keyClient, memoryEntry{data: data, digest: digest})
	return true, nil
}

// CachedEnvironment implements Store.
func (m *MemoryStore) CachedEnvironment(context.Context) (*snapshot.Environment, error) {
	e, ok := m.load(keyEnvironment)
	if !ok {
		return nil, nil
	}
	var env snapshot.Environment
	if err := json.Unmarshal(e.data, &env); err != nil {
		return nil, storeError("decode cached environment", err)
	}
	return &env, nil
}

// SetCachedEnvironment implements Store.
func (m *MemoryStore) SetCachedEnvironment(_ context.Context, env *snapshot.Environment) error {
	if env == nil {
		m.entries.Delete(keyEnvironment)
		return nil
	}
	data, err := json.Marshal(env)
	if err != nil {
		return storeError("encode environment", err)
	}
	m.entries.Store(keyEnvironment, memoryEntry{data: data})
	return nil
}

// Ping implements Store.
func (m *MemoryStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New(errors.ErrCodeStore, "store is closed")
	}
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
