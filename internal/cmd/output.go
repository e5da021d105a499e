package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/sessionbridge/internal/identity"
)

// Output formats accepted by -o.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// sessionView is the printable summary of a window's session.
type sessionView struct {
	Window         string    `json:"window" yaml:"window"`
	Time           time.Time `json:"time" yaml:"time"`
	ClientID       string    `json:"client_id" yaml:"client_id"`
	SignedIn       bool      `json:"signed_in" yaml:"signed_in"`
	Sessions       []string  `json:"sessions" yaml:"sessions"`
	SessionID      string    `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	SessionStatus  string    `json:"session_status,omitempty" yaml:"session_status,omitempty"`
	UserID         string    `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty" yaml:"organization_id,omitempty"`
}

func newSessionView(window string, st identity.State, now time.Time) sessionView {
	v := sessionView{Window: window, Time: now.UTC(), Sessions: []string{}}
	if st.Client != nil {
		v.ClientID = st.Client.ID
		v.Sessions = append(v.Sessions, st.Client.SessionIDs()...)
	}
	if st.Session != nil {
		v.SignedIn = true
		v.SessionID = st.Session.ID
		v.SessionStatus = string(st.Session.Status)
	}
	if st.User != nil {
		v.UserID = st.User.ID
	}
	if st.Organization != nil {
		v.OrganizationID = st.Organization.ID
	}
	return v
}

// encoder writes one document per call.
type encoder func(v any) error

func newEncoder(format string, w io.Writer) (encoder, error) {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode, nil
	case FormatYAML:
		first := true
		return func(v any) error {
			out, err := yaml.Marshal(v)
			if err != nil {
				return err
			}
			if !first {
				if _, err := io.WriteString(w, "---\n"); err != nil {
					return err
				}
			}
			first = false
			_, err = w.Write(out)
			return err
		}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (use %s or %s)", format, FormatJSON, FormatYAML)
	}
}
