package snapshot

import (
	"encoding/json"
	"fmt"
)

// AuthEventName is the event bus channel auth changes are broadcast on.
const AuthEventName = "plugin-clerk-auth-cb"

// HostSource labels events emitted by the native host.
const HostSource = "host"

// Payload is the state carried by an AuthEvent.
type Payload struct {
	Client       *Client       `json:"client"`
	Session      *Session      `json:"session"`
	User         *User         `json:"user"`
	Organization *Organization `json:"organization"`
}

// AuthEvent announces a change of auth state. Source is set by the emitter.
type AuthEvent struct {
	Source  string  `json:"source"`
	Payload Payload `json:"payload"`
}

// Validate rejects events that must not reach the reconciliation policy.
func (e *AuthEvent) Validate() error {
	if e.Source == "" {
		return fmt.Errorf("event has no source")
	}
	if e.Payload.Client != nil {
		if err := e.Payload.Client.Validate(); err != nil {
			return fmt.Errorf("event from %q: %w", e.Source, err)
		}
	}
	return nil
}

// DecodeEvent parses and validates a raw event body.
func DecodeEvent(data []byte) (AuthEvent, error) {
	var ev AuthEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return AuthEvent{}, fmt.Errorf("decode auth event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return AuthEvent{}, err
	}
	return ev, nil
}

// PayloadFor derives the full payload from a client: its last active
// session, that session's user and the user's last active organization.
func PayloadFor(client *Client) Payload {
	p := Payload{Client: client}
	if client == nil {
		return p
	}
	p.Session = client.LastActiveSession()
	if p.Session != nil {
		p.User = p.Session.User
		if id := p.Session.LastActiveOrganizationID; id != nil {
			p.Organization = p.User.Organization(*id)
		}
	}
	return p
}
