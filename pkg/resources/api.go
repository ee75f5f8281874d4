package resources

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/dmitrymomot/consolekit/pkg/apiclient"
	"github.com/dmitrymomot/consolekit/pkg/paging"
)

// API calls the upstream console API through a request-scoped Requestor.
type API struct {
	r *apiclient.Requestor
}

// NewAPI returns an API calling through r.
func NewAPI(r *apiclient.Requestor) *API {
	return &API{r: r}
}

// Requestor returns the requestor the API calls through.
func (a *API) Requestor() *apiclient.Requestor { return a.r }

// GetUser fetches a user by id.
func (a *API) GetUser(ctx context.Context, id string) (*User, error) {
	return get[User](ctx, a.r, "/users/"+url.PathEscape(id))
}

// ListPermissions returns every permission of the user.
func (a *API) ListPermissions(ctx context.Context, userID string) ([]Permission, error) {
	return paging.FetchAll(ctx, paging.Fetcher[Permission](a.r, "/users/"+url.PathEscape(userID)+"/permissions"), nil)
}

// ListMemberships returns every organization membership of the user.
func (a *API) ListMemberships(ctx context.Context, userID string) ([]Membership, error) {
	return paging.FetchAll(ctx, paging.Fetcher[Membership](a.r, "/users/"+url.PathEscape(userID)+"/memberships"), nil)
}

// GetClient fetches a client (team) by id.
func (a *API) GetClient(ctx context.Context, id string) (*Client, error) {
	return get[Client](ctx, a.r, "/clients/"+url.PathEscape(id))
}

// GetOrganization fetches an organization by id.
func (a *API) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	return get[Organization](ctx, a.r, "/organizations/"+url.PathEscape(id))
}

// GetAPIToken describes the token the requestor currently authenticates with.
func (a *API) GetAPIToken(ctx context.Context) (*TokenDetail, error) {
	return get[TokenDetail](ctx, a.r, "/api_tokens/current")
}

// GetClientCounts fetches the dashboard counters of a client.
func (a *API) GetClientCounts(ctx context.Context, clientID string) (*Counts, error) {
	return get[Counts](ctx, a.r, "/clients/"+url.PathEscape(clientID)+"/counts")
}

// CreateImpersonationToken mints a token to act as userID. Only admins
// may call it.
func (a *API) CreateImpersonationToken(ctx context.Context, userID string) (*ImpersonationToken, error) {
	var tok ImpersonationToken
	path := "/users/" + url.PathEscape(userID) + "/impersonation_tokens"
	if err := a.r.Do(ctx, http.MethodPost, path, apiclient.Params{"user_id": userID}, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// RevokeAPIToken revokes the token the requestor authenticates with.
// Failures other than an already revoked token reach the notifier.
func (a *API) RevokeAPIToken(ctx context.Context) error {
	return a.r.Request(ctx, apiclient.Call{
		Method: http.MethodDelete,
		Path:   "/api_tokens/current",
		Legacy: true,
		OnError: func(err error) bool {
			return !errors.Is(err, apiclient.ErrNotAuthorized)
		},
	})
}

// ListExperiments loads every experiment of a client.
func (a *API) ListExperiments(ctx context.Context, clientID string, params apiclient.Params) ([]Experiment, error) {
	return paging.FetchAll(ctx, a.experiments(clientID), params)
}

// ExperimentPager streams a client's experiments page by page.
func (a *API) ExperimentPager(clientID string, onPage func([]Experiment), opts ...paging.PagerOption) *paging.Pager[Experiment] {
	return paging.NewPager(a.experiments(clientID), onPage, opts...)
}

func (a *API) experiments(clientID string) paging.FetchFunc[Experiment] {
	return paging.Fetcher[Experiment](a.r, "/clients/"+url.PathEscape(clientID)+"/experiments")
}

func get[T any](ctx context.Context, r *apiclient.Requestor, path string) (*T, error) {
	var v T
	if err := r.Do(ctx, http.MethodGet, path, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
