package resources_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/consolekit/pkg/apiclient"
	"github.com/dmitrymomot/consolekit/pkg/resources"
)

func newAPI(t *testing.T, routes map[string]string) *resources.API {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return resources.NewAPI(apiclient.New(srv.URL).WithToken("tok"))
}

func TestAPI(t *testing.T) {
	ctx := context.Background()
	api := newAPI(t, map[string]string{
		"/api/v1/users/u-1":               `{"id":"u-1","email":"a@example.com"}`,
		"/api/v1/users/u-1/permissions":   `{"data":[{"client":{"id":"c-1","name":"Alpha","organization_id":"o-1"},"role":"admin"}],"paging":{}}`,
		"/api/v1/users/u-1/memberships":   `{"data":[{"organization":{"id":"o-1","name":"Org"}}],"paging":{}}`,
		"/api/v1/clients/c-1":             `{"id":"c-1","name":"Alpha","organization_id":"o-1"}`,
		"/api/v1/organizations/o-1":       `{"id":"o-1","name":"Org"}`,
		"/api/v1/api_tokens/current":      `{"id":"t-1","user_id":"u-1","scopes":["read"]}`,
		"/api/v1/clients/c-1/counts":      `{"experiments":3,"resources":1,"members":2}`,
		"/api/v1/clients/c-1/experiments": `{"data":[{"id":"e-1","name":"First","status":"running","created_at":"2026-01-02T03:04:05Z"}],"paging":{}}`,
	})

	user, err := api.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", user.Email)

	perms, err := api.ListPermissions(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "o-1", perms[0].Client.OrganizationID)

	members, err := api.ListMemberships(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Org", members[0].Organization.Name)

	client, err := api.GetClient(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", client.Name)

	org, err := api.GetOrganization(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", org.ID)

	tok, err := api.GetAPIToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"read"}, tok.Scopes)

	counts, err := api.GetClientCounts(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Experiments)

	exps, err := api.ListExperiments(ctx, "c-1", nil)
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.Equal(t, 2026, exps[0].CreatedAt.Year())

	var streamed []resources.Experiment
	require.NoError(t, api.ExperimentPager("c-1", func(items []resources.Experiment) {
		streamed = append(streamed, items...)
	}).Start(ctx))
	assert.Equal(t, exps, streamed)

	_, err = api.GetClient(ctx, "missing")
	assert.ErrorIs(t, err, apiclient.ErrNotFound)
}

func TestAPIWrites(t *testing.T) {
	ctx := context.Background()

	t.Run("impersonation token is a POST", func(t *testing.T) {
		var method, body string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method = r.Method
			raw, _ := io.ReadAll(r.Body)
			body = string(raw)
			_, _ = w.Write([]byte(`{"user_id":"u-2","api_token":"imp-tok"}`))
		}))
		t.Cleanup(srv.Close)

		tok, err := resources.NewAPI(apiclient.New(srv.URL).WithToken("admin")).CreateImpersonationToken(ctx, "u-2")
		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, method)
		assert.JSONEq(t, `{"user_id":"u-2"}`, body)
		assert.Equal(t, "imp-tok", tok.APIToken)
	})

	t.Run("revoking a revoked token is not notified", func(t *testing.T) {
		status := http.StatusUnauthorized
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			w.WriteHeader(status)
		}))
		t.Cleanup(srv.Close)

		var notified []error
		r := apiclient.New(srv.URL, apiclient.WithNotifier(apiclient.NotifierFunc(func(_ context.Context, err error) {
			notified = append(notified, err)
		}))).WithToken("tok")
		api := resources.NewAPI(r)

		assert.ErrorIs(t, api.RevokeAPIToken(ctx), apiclient.ErrNotAuthorized)
		assert.Empty(t, notified)

		status = http.StatusInternalServerError
		assert.ErrorIs(t, api.RevokeAPIToken(ctx), apiclient.ErrRemote)
		assert.Len(t, notified, 1)

		status = http.StatusNoContent
		assert.NoError(t, api.RevokeAPIToken(ctx))
	})
}
