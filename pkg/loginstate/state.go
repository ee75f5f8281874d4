package loginstate

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

const csrfTokenBytes = 32

// State is one level of the login-state stack. Treat values as immutable:
// the With* helpers return modified copies and never touch Parent.
type State struct {
	UserID         string `json:"userId,omitempty"`
	ClientID       string `json:"clientId,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
	APIToken       string `json:"apiToken,omitempty"`
	CSRFToken      string `json:"csrfToken,omitempty"`
	Parent         *State `json:"parentState,omitempty"`
}

// IsLoggedIn reports whether s belongs to a user.
func (s State) IsLoggedIn() bool { return s.UserID != "" }

// HasParent reports whether s is an elevated state.
func (s State) HasParent() bool { return s.Parent != nil }

// Depth is the number of parents below s.
func (s State) Depth() int {
	n := 0
	for p := s.Parent; p != nil; p = p.Parent {
		n++
	}
	return n
}

// WithClient returns a copy of s bound to the client id.
func (s State) WithClient(id string) State {
	s.ClientID = id
	return s
}

func (s State) WithoutClient() State { return s.WithClient("") }

// WithOrganization returns a copy of s bound to the organization id.
func (s State) WithOrganization(id string) State {
	s.OrganizationID = id
	return s
}

func (s State) WithoutOrganization() State { return s.WithOrganization("") }

// LoggedOut drops every identity field and the parent stack but keeps the
// CSRF token of the session lineage.
func (s State) LoggedOut() State {
	return State{CSRFToken: s.CSRFToken}
}

// Equal compares two states including their whole parent chain.
func (s State) Equal(o State) bool {
	a, b := &s, &o
	for a != nil && b != nil {
		if a.UserID != b.UserID ||
			a.ClientID != b.ClientID ||
			a.OrganizationID != b.OrganizationID ||
			a.APIToken != b.APIToken ||
			a.CSRFToken != b.CSRFToken {
			return false
		}
		a, b = a.Parent, b.Parent
	}
	return a == nil && b == nil
}

// NewCSRFToken returns a random URL-safe token.
func NewCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrTokenGenerate, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
