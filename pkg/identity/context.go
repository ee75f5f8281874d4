package identity

import (
	"context"

	"github.com/dmitrymomot/consolekit/pkg/resources"
)

// Messages shown to the user when resolution downgrades their identity.
const (
	MessageLoggedOut       = "Your session is no longer valid. Please sign in again."
	MessageTeamGone        = "The team you were working in is no longer available to you."
	MessageNeedsInvitation = "Your account does not belong to any team yet. Ask a team owner for an invitation."
)

// Context is the identity resolved for a single request. It is never
// persisted. Impersonating is set when the login state has a parent to
// return to.
type Context struct {
	User            *resources.User         `json:"user,omitempty"`
	Permissions     []resources.Permission  `json:"permissions,omitempty"`
	Memberships     []resources.Membership  `json:"memberships,omitempty"`
	Client          *resources.Client       `json:"client,omitempty"`
	Organization    *resources.Organization `json:"organization,omitempty"`
	APIToken        *resources.TokenDetail  `json:"apiToken,omitempty"`
	Counts          *resources.Counts       `json:"counts,omitempty"`
	NeedsInvitation bool                    `json:"needsInvitation"`
	Impersonating   bool                    `json:"impersonating"`
	Message         string                  `json:"message,omitempty"`
}

// IsLoggedIn reports whether a user was resolved.
func (c *Context) IsLoggedIn() bool {
	return c != nil && c.User != nil
}

type contextKey struct{}

// WithContext stores c in ctx.
func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the Context stored by WithContext.
func FromContext(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(contextKey{}).(*Context)
	return c, ok && c != nil
}

// MustFromContext is like FromContext but panics when nothing is stored.
func MustFromContext(ctx context.Context) *Context {
	c, ok := FromContext(ctx)
	if !ok {
		panic("identity: context not found")
	}
	return c
}
