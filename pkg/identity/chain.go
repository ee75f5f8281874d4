package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dmitrymomot/consolekit/pkg/apiclient"
	"github.com/dmitrymomot/consolekit/pkg/datasource"
	"github.com/dmitrymomot/consolekit/pkg/logger"
	"github.com/dmitrymomot/consolekit/pkg/loginstate"
	"github.com/dmitrymomot/consolekit/pkg/resources"
)

// DefaultMaxRestarts bounds how often a pop in a late step may restart
// the chain. Past the bound the login state is logged out.
const DefaultMaxRestarts = 8

// API is the part of the remote API the chain reads from.
type API interface {
	GetUser(ctx context.Context, id string) (*resources.User, error)
	ListPermissions(ctx context.Context, userID string) ([]resources.Permission, error)
	ListMemberships(ctx context.Context, userID string) ([]resources.Membership, error)
	GetClient(ctx context.Context, id string) (*resources.Client, error)
	GetOrganization(ctx context.Context, id string) (*resources.Organization, error)
	GetAPIToken(ctx context.Context) (*resources.TokenDetail, error)
	GetClientCounts(ctx context.Context, clientID string) (*resources.Counts, error)
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithPublicPaths lists path prefixes that are served without resolving
// an identity.
func WithPublicPaths(prefixes ...string) ChainOption {
	return func(c *Chain) {
		c.publicPaths = append(c.publicPaths, prefixes...)
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMaxRestarts sets the restart bound. Negative values are ignored.
func WithMaxRestarts(n int) ChainOption {
	return func(c *Chain) {
		if n >= 0 {
			c.maxRestarts = n
		}
	}
}

// WithPopHook calls fn with the step name every time a step pops the
// login state.
func WithPopHook(fn func(step string)) ChainOption {
	return func(c *Chain) {
		c.onPop = fn
	}
}

// Chain resolves identities. It holds no per-request state and is safe
// for concurrent use.
type Chain struct {
	publicPaths []string
	log         *slog.Logger
	maxRestarts int
	onPop       func(step string)
}

// NewChain returns a Chain with DefaultMaxRestarts and no public paths.
func NewChain(opts ...ChainOption) *Chain {
	c := &Chain{
		log:         logger.Discard(),
		maxRestarts: DefaultMaxRestarts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsPublic reports whether path is served without identity resolution.
func (c *Chain) IsPublic(path string) bool {
	for _, prefix := range c.publicPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Resolve runs every step in order against the login state held by b.
// Authorization failures never fail the request; b ends up popped or
// logged out instead, also when restarts exceed the bound. Any other
// remote error is returned.
func (c *Chain) Resolve(ctx context.Context, b *loginstate.Binding, api API, path string) (*Context, error) {
	if c.IsPublic(path) {
		return &Context{}, nil
	}

	for restarts := 0; ; restarts++ {
		r := &resolution{chain: c, binding: b, api: api, out: &Context{}}
		err := r.run(ctx)
		switch {
		case err == nil:
			r.out.Impersonating = b.CanPop()
			return r.out, nil
		case errors.Is(err, errRestart):
			if restarts >= c.maxRestarts {
				r.degrade(ctx, "restart_limit", err)
				return r.out, nil
			}
		default:
			return nil, err
		}
	}
}

var authFailures = []apiclient.Kind{apiclient.KindNotAuthorized, apiclient.KindNotFound}

// policy states which failures of a step pop, which ones drop the field.
type policy struct {
	pop     []apiclient.Kind
	drop    []apiclient.Kind
	dropAll bool
	// restart makes a pop start the whole chain over.
	restart bool
	// retry runs the step again after a drop.
	retry bool
}

func (p policy) pops(err error) bool {
	return matches(err, p.pop)
}

func (p policy) drops(err error) bool {
	return p.dropAll || matches(err, p.drop)
}

func matches(err error, kinds []apiclient.Kind) bool {
	k, ok := apiclient.KindOf(err)
	return ok && slices.Contains(kinds, k)
}

type step struct {
	name   string
	policy policy
	run    func(*resolution, context.Context) error
	drop   func(*resolution)
}

// Order matters: every step reads the login state as left by the ones
// before it.
var steps = []step{
	{name: "user", policy: policy{pop: authFailures}, run: (*resolution).user},
	{name: "client", policy: policy{drop: authFailures, retry: true}, run: (*resolution).client, drop: (*resolution).dropClient},
	{name: "organization", policy: policy{drop: authFailures}, run: (*resolution).organization, drop: (*resolution).dropOrganization},
	{name: "api_token", policy: policy{pop: authFailures, restart: true}, run: (*resolution).apiToken},
	{name: "counts", policy: policy{dropAll: true}, run: (*resolution).counts, drop: (*resolution).dropCounts},
}

type resolution struct {
	chain   *Chain
	binding *loginstate.Binding
	api     API
	out     *Context
	// excluded holds client ids dropped during this pass.
	excluded []string
}

func (r *resolution) run(ctx context.Context) error {
	for _, st := range steps {
		if err := r.runStep(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolution) runStep(ctx context.Context, st step) error {
	for {
		err := st.run(r, ctx)
		switch {
		case err == nil:
			return nil
		case st.policy.pops(err):
			if !r.binding.CanPop() {
				r.degrade(ctx, st.name, err)
				return nil
			}
			r.pop(ctx, st.name, err)
			if st.policy.restart {
				return errRestart
			}
		case st.policy.drops(err):
			r.chain.log.WarnContext(ctx, "identity field dropped",
				logger.Component("identity"),
				slog.String("step", st.name),
				logger.Error(err),
			)
			st.drop(r)
			if st.policy.retry {
				continue
			}
			return nil
		default:
			return fmt.Errorf("identity: %s: %w", st.name, err)
		}
	}
}

func (r *resolution) pop(ctx context.Context, name string, err error) {
	from := r.binding.Current()
	to := r.binding.Pop()
	r.chain.log.InfoContext(ctx, "login state popped",
		logger.Component("identity"),
		slog.String("step", name),
		slog.String("from_user", from.UserID),
		logger.UserID(to.UserID),
		logger.Error(err),
	)
	if r.chain.onPop != nil {
		r.chain.onPop(name)
	}
}

// degrade logs the state out and discards everything resolved so far.
func (r *resolution) degrade(ctx context.Context, name string, err error) {
	r.chain.log.WarnContext(ctx, "login state degraded to logged out",
		logger.Component("identity"),
		slog.String("step", name),
		logger.UserID(r.binding.Current().UserID),
		logger.Error(err),
	)
	r.binding.Replace(r.binding.Current().LoggedOut())
	r.out = &Context{Message: MessageLoggedOut}
}

func (r *resolution) user(ctx context.Context) error {
	s := r.binding.Current()
	if !s.IsLoggedIn() {
		return nil
	}

	user, err := r.api.GetUser(ctx, s.UserID)
	if err != nil {
		return err
	}

	perms := datasource.New(func(ctx context.Context) ([]resources.Permission, error) {
		return r.api.ListPermissions(ctx, s.UserID)
	})
	members := datasource.New(func(ctx context.Context) ([]resources.Membership, error) {
		return r.api.ListMemberships(ctx, s.UserID)
	})
	perms.Prefetch(ctx)
	members.Prefetch(ctx)

	permissions, err := perms.Get(ctx)
	if err != nil {
		return err
	}
	memberships, err := members.Get(ctx)
	if err != nil {
		return err
	}

	r.out.User = user
	r.out.Permissions = permissions
	r.out.Memberships = memberships
	return nil
}

func (r *resolution) client(ctx context.Context) error {
	if r.out.User == nil {
		return nil
	}
	id := r.binding.Current().ClientID
	if id == "" {
		if id = r.selectClient(); id == "" {
			return nil
		}
	}

	client, err := r.api.GetClient(ctx, id)
	if err != nil {
		return err
	}
	r.out.Client = client
	return nil
}

// dropClient forgets a client that is gone. The step then runs again and
// falls back to another client the user has a permission on.
func (r *resolution) dropClient() {
	r.excluded = append(r.excluded, r.binding.Current().ClientID)
	r.binding.Update(loginstate.State.WithoutClient)
	r.out.Client = nil
	r.out.Message = MessageTeamGone
}

// selectClient picks a client from the user's permissions, preferring one
// in the current organization, and stores its id in the login state. It
// returns "" when no candidate is left.
func (r *resolution) selectClient() string {
	if len(r.out.Permissions) == 0 {
		r.out.NeedsInvitation = true
		r.out.Message = MessageNeedsInvitation
		r.binding.Update(func(s loginstate.State) loginstate.State {
			return s.WithoutClient().WithoutOrganization()
		})
		return ""
	}

	candidates := slices.DeleteFunc(slices.Clone(r.out.Permissions), func(p resources.Permission) bool {
		return slices.Contains(r.excluded, p.Client.ID)
	})
	if len(candidates) == 0 {
		return ""
	}

	chosen := candidates[0]
	if orgID := r.binding.Current().OrganizationID; orgID != "" {
		if i := slices.IndexFunc(candidates, func(p resources.Permission) bool {
			return p.Client.OrganizationID == orgID
		}); i >= 0 {
			chosen = candidates[i]
		}
	}

	r.binding.Update(func(s loginstate.State) loginstate.State {
		return s.WithClient(chosen.Client.ID)
	})
	return chosen.Client.ID
}

func (r *resolution) organization(ctx context.Context) error {
	if r.out.User == nil {
		return nil
	}
	s := r.binding.Current()
	if s.OrganizationID != "" {
		org, err := r.api.GetOrganization(ctx, s.OrganizationID)
		if err != nil {
			return err
		}
		r.out.Organization = org
		return nil
	}

	if len(r.out.Memberships) == 0 {
		return nil
	}
	org := r.out.Memberships[0].Organization
	r.out.Organization = &org
	r.binding.Update(func(s loginstate.State) loginstate.State {
		return s.WithOrganization(org.ID)
	})
	return nil
}

func (r *resolution) dropOrganization() {
	r.binding.Update(loginstate.State.WithoutOrganization)
	r.out.Organization = nil
}

func (r *resolution) apiToken(ctx context.Context) error {
	if r.out.User == nil || r.binding.Current().APIToken == "" {
		return nil
	}
	detail, err := r.api.GetAPIToken(ctx)
	if err != nil {
		return err
	}
	r.out.APIToken = detail
	return nil
}

func (r *resolution) counts(ctx context.Context) error {
	if r.out.Client == nil {
		return nil
	}
	counts, err := r.api.GetClientCounts(ctx, r.out.Client.ID)
	if err != nil {
		return err
	}
	r.out.Counts = counts
	return nil
}

func (r *resolution) dropCounts() {
	r.out.Counts = nil
}
