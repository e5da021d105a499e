// Package identitytest provides an in-memory frontend API for tests.
package identitytest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/felixgeelhaar/sessionbridge/internal/identity"
	"github.com/felixgeelhaar/sessionbridge/internal/snapshot"
)

// RotatedHeader is the authorization header every response carries unless
// Server.Header is changed.
const RotatedHeader = "Bearer rotated"

// Server is a frontend API with one client.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	client   *snapshot.Client
	header   string
	errCode  string
	status   int
	hits     map[string]int
	requests []*http.Request
}

// NewServer starts a frontend API serving client. It is closed with t.
func NewServer(t testing.TB, client *snapshot.Client) *Server {
	t.Helper()
	s := &Server{client: client, header: RotatedHeader, hits: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Key returns a publishable key. Clients must still be pointed at URL with
// a proxy option since the server speaks plain HTTP.
func Key() string {
	return "pk_test_" + base64.StdEncoding.EncodeToString([]byte("clerk.example.accounts.dev$"))
}

// SignedInClient returns a client with one active session, user and
// organization.
func SignedInClient() *snapshot.Client {
	orgID := "org_1"
	sessID := "sess_1"
	org := &snapshot.Organization{Object: "organization", ID: orgID, Name: "Acme"}
	user := &snapshot.User{
		Object: "user",
		ID:     "user_1",
		OrganizationMemberships: []snapshot.OrganizationMembership{
			{ID: "orgmem_1", Role: "admin", Organization: org},
		},
	}
	return &snapshot.Client{
		Object:              "client",
		ID:                  "client_1",
		LastActiveSessionID: &sessID,
		Sessions: []snapshot.Session{{
			Object:                   "session",
			ID:                       sessID,
			Status:                   snapshot.StatusActive,
			User:                     user,
			LastActiveOrganizationID: &orgID,
		}},
	}
}

// SetClient replaces the served client.
func (s *Server) SetClient(c *snapshot.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = c
}

// Client returns the served client.
func (s *Server) Client() *snapshot.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// FailWith makes every request fail with status and an error envelope
// carrying code. An empty code restores normal service.
func (s *Server) FailWith(status int, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status, s.errCode = status, code
}

// Count returns how often "METHOD /path" was requested.
func (s *Server) Count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

// Requests returns copies of every request received so far.
func (s *Server) Requests() []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*http.Request(nil), s.requests...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.Method + " " + r.URL.Path
	s.hits[key]++
	s.requests = append(s.requests, r.Clone(context.Background()))

	w.Header().Set("Content-Type", "application/json")
	if s.header != "" {
		w.Header().Set("Authorization", s.header)
	}

	if s.errCode != "" {
		w.WriteHeader(s.status)
		_ = json.NewEncoder(w).Encode(identity.Envelope{Errors: []identity.APIError{{Code: s.errCode, Message: "request failed"}}})
		return
	}

	switch {
	case key == "GET "+identity.PathEnvironment:
		fmt.Fprint(w, `{"object":"environment","id":"env_1","auth_config":{"single_session_mode":true}}`)
	case key == "GET "+identity.PathClient:
		writeEnvelope(w, s.client, nil)
	case key == "DELETE "+identity.PathSessions:
		id := "client_1"
		if s.client != nil {
			id = s.client.ID
		}
		s.client = &snapshot.Client{Object: "client", ID: id, Sessions: []snapshot.Session{}}
		writeEnvelope(w, s.client, nil)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/touch"):
		writeEnvelope(w, s.client, s.client)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeEnvelope(w http.ResponseWriter, response any, client *snapshot.Client) {
	raw, _ := json.Marshal(response)
	_ = json.NewEncoder(w).Encode(identity.Envelope{Response: raw, Client: client})
}
