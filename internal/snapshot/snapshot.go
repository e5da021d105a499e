// Package snapshot defines the serialized forms of identity state that cross
// window and process boundaries. Field names follow the frontend API's
// snake_case JSON and timestamps are unix milliseconds.
package snapshot

import (
	"encoding/json"
	"fmt"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusNeedsIdentifier   SessionStatus = "needs_identifier"
	StatusNeedsFirstFactor  SessionStatus = "needs_first_factor"
	StatusNeedsSecondFactor SessionStatus = "needs_second_factor"
	StatusActive            SessionStatus = "active"
	StatusEnded             SessionStatus = "ended"
	StatusExpired           SessionStatus = "expired"
	StatusRemoved           SessionStatus = "removed"
	StatusAbandoned         SessionStatus = "abandoned"
	StatusReplaced          SessionStatus = "replaced"
)

// Valid reports whether s is one of the known statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusNeedsIdentifier, StatusNeedsFirstFactor, StatusNeedsSecondFactor,
		StatusActive, StatusEnded, StatusExpired, StatusRemoved, StatusAbandoned, StatusReplaced:
		return true
	}
	return false
}

// Token references the session token that was last minted.
type Token struct {
	Object string `json:"object"`
	ID     string `json:"id,omitempty"`
	JWT    string `json:"jwt"`
}

// PublicUserData is the lightweight user summary attached to a session.
type PublicUserData struct {
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	ImageURL   string  `json:"image_url"`
	HasImage   bool    `json:"has_image"`
	Identifier string  `json:"identifier"`
	UserID     string  `json:"user_id,omitempty"`
}

// EmailAddress is one of a user's addresses.
type EmailAddress struct {
	Object       string `json:"object"`
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// User is the signed-in user.
type User struct {
	Object                  string                   `json:"object"`
	ID                      string                   `json:"id"`
	Username                *string                  `json:"username"`
	FirstName               *string                  `json:"first_name"`
	LastName                *string                  `json:"last_name"`
	ImageURL                string                   `json:"image_url"`
	HasImage                bool                     `json:"has_image"`
	PrimaryEmailAddressID   *string                  `json:"primary_email_address_id"`
	EmailAddresses          []EmailAddress           `json:"email_addresses"`
	OrganizationMemberships []OrganizationMembership `json:"organization_memberships,omitempty"`
	PublicMetadata          json.RawMessage          `json:"public_metadata,omitempty"`
	UnsafeMetadata          json.RawMessage          `json:"unsafe_metadata,omitempty"`
	CreatedAt               int64                    `json:"created_at"`
	UpdatedAt               int64                    `json:"updated_at"`
}

// PrimaryEmail returns the primary email address or "".
func (u *User) PrimaryEmail() string {
	if u == nil || u.PrimaryEmailAddressID == nil {
		return ""
	}
	for _, e := range u.EmailAddresses {
		if e.ID == *u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	return ""
}

// Organization returns the organization of the user's membership with the
// given id, or nil.
func (u *User) Organization(id string) *Organization {
	if u == nil {
		return nil
	}
	for _, m := range u.OrganizationMemberships {
		if m.Organization != nil && m.Organization.ID == id {
			return m.Organization
		}
	}
	return nil
}

// OrganizationMembership ties a user to an organization.
type OrganizationMembership struct {
	Object       string        `json:"object"`
	ID           string        `json:"id"`
	Role         string        `json:"role"`
	Organization *Organization `json:"organization"`
}

// Organization is the active organization of a session.
type Organization struct {
	Object         string          `json:"object"`
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Slug           *string         `json:"slug"`
	ImageURL       string          `json:"image_url"`
	HasImage       bool            `json:"has_image"`
	MembersCount   int             `json:"members_count"`
	PublicMetadata json.RawMessage `json:"public_metadata,omitempty"`
	CreatedAt      int64           `json:"created_at"`
	UpdatedAt      int64           `json:"updated_at"`
}

// Session summarizes one session of a client.
type Session struct {
	Object                   string          `json:"object"`
	ID                       string          `json:"id"`
	Status                   SessionStatus   `json:"status"`
	ExpireAt                 int64           `json:"expire_at"`
	AbandonAt                int64           `json:"abandon_at"`
	LastActiveAt             int64           `json:"last_active_at"`
	LastActiveToken          *Token          `json:"last_active_token"`
	LastActiveOrganizationID *string         `json:"last_active_organization_id"`
	User                     *User           `json:"user"`
	PublicUserData           *PublicUserData `json:"public_user_data"`
	CreatedAt                int64           `json:"created_at"`
	UpdatedAt                int64           `json:"updated_at"`
}

// Client is the authentication client shared by every window.
type Client struct {
	Object              string          `json:"object"`
	ID                  string          `json:"id"`
	Sessions            []Session       `json:"sessions"`
	SignUp              json.RawMessage `json:"sign_up"`
	SignIn              json.RawMessage `json:"sign_in"`
	LastActiveSessionID *string         `json:"last_active_session_id"`
	CookieExpiresAt     *int64          `json:"cookie_expires_at"`
	CreatedAt           int64           `json:"created_at"`
	UpdatedAt           int64           `json:"updated_at"`
}

// ActiveSessionID returns the last active session id, or "" when there is none.
func (c *Client) ActiveSessionID() string {
	if c == nil || c.LastActiveSessionID == nil {
		return ""
	}
	return *c.LastActiveSessionID
}

// SessionIDs lists session ids in snapshot order.
func (c *Client) SessionIDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, len(c.Sessions))
	for i := range c.Sessions {
		ids[i] = c.Sessions[i].ID
	}
	return ids
}

// Session returns the session with the given id, or nil.
func (c *Client) Session(id string) *Session {
	if c == nil {
		return nil
	}
	for i := range c.Sessions {
		if c.Sessions[i].ID == id {
			return &c.Sessions[i]
		}
	}
	return nil
}

// LastActiveSession returns the session named by LastActiveSessionID, or nil.
func (c *Client) LastActiveSession() *Session {
	id := c.ActiveSessionID()
	if id == "" {
		return nil
	}
	return c.Session(id)
}

// Validate checks the invariants a client must hold before it is trusted.
func (c *Client) Validate() error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if c.ID == "" {
		return fmt.Errorf("client id is empty")
	}
	if c.Object != "" && c.Object != "client" {
		return fmt.Errorf("unexpected object %q for client", c.Object)
	}

	seen := make(map[string]struct{}, len(c.Sessions))
	for i := range c.Sessions {
		s := &c.Sessions[i]
		if s.ID == "" {
			return fmt.Errorf("session %d has empty id", i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("duplicate session id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// UnknownStatuses returns the ids of sessions whose status is not one of the
// known values. Such sessions are kept as they are.
func (c *Client) UnknownStatuses() []string {
	if c == nil {
		return nil
	}
	var ids []string
	for i := range c.Sessions {
		if !c.Sessions[i].Status.Valid() {
			ids = append(ids, c.Sessions[i].ID)
		}
	}
	return ids
}

// Environment is the instance configuration the identity client loads once.
// Everything except the id is kept as raw JSON.
type Environment struct {
	Object               string          `json:"object"`
	ID                   string          `json:"id"`
	AuthConfig           json.RawMessage `json:"auth_config,omitempty"`
	DisplayConfig        json.RawMessage `json:"display_config,omitempty"`
	UserSettings         json.RawMessage `json:"user_settings,omitempty"`
	OrganizationSettings json.RawMessage `json:"organization_settings,omitempty"`
	MaintenanceMode      bool            `json:"maintenance_mode"`
}
