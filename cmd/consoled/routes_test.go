package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/consolekit/pkg/apiclient"
	"github.com/dmitrymomot/consolekit/pkg/logger"
	"github.com/dmitrymomot/consolekit/pkg/loginstate"
	"github.com/dmitrymomot/consolekit/pkg/metrics"
	"github.com/dmitrymomot/consolekit/pkg/resources"
	"github.com/dmitrymomot/consolekit/pkg/session"
	"github.com/dmitrymomot/consolekit/pkg/watchdog"
)

// fakeConsole is the upstream API: admin can impersonate u-2.
func fakeConsole(t *testing.T) *httptest.Server {
	t.Helper()
	users := map[string]resources.User{
		"tok-admin": {ID: "admin", Email: "admin@example.com", IsAdmin: true},
		"tok-u2":    {ID: "u-2", Email: "u2@example.com"},
	}
	caller := func(r *http.Request) (resources.User, bool) {
		raw, _ := base64.StdEncoding.DecodeString(strings.TrimPrefix(r.Header.Get("Authorization"), "Basic "))
		u, ok := users[strings.TrimSuffix(string(raw), ":")]
		return u, ok
	}
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		u, ok := caller(r)
		if !ok || u.ID != r.PathValue("id") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		reply(w, u)
	})
	mux.HandleFunc("GET /api/v1/users/{id}/permissions", func(w http.ResponseWriter, r *http.Request) {
		u, _ := caller(r)
		reply(w, map[string]any{"data": []resources.Permission{
			{Client: resources.ClientRef{ID: "c-" + u.ID, Name: "Team " + u.ID, OrganizationID: "o-1"}, Role: "owner"},
			{Client: resources.ClientRef{ID: "c-shared", Name: "Shared", OrganizationID: "o-1"}, Role: "member"},
		}})
	})
	mux.HandleFunc("GET /api/v1/users/{id}/memberships", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"data": []resources.Membership{{Organization: resources.Organization{ID: "o-1", Name: "Acme"}}}})
	})
	mux.HandleFunc("GET /api/v1/organizations/{id}", func(w http.ResponseWriter, r *http.Request) {
		reply(w, resources.Organization{ID: r.PathValue("id"), Name: "Acme"})
	})
	mux.HandleFunc("GET /api/v1/clients/{id}", func(w http.ResponseWriter, r *http.Request) {
		reply(w, resources.Client{ID: r.PathValue("id"), Name: "Team", OrganizationID: "o-1"})
	})
	mux.HandleFunc("GET /api/v1/api_tokens/current", func(w http.ResponseWriter, r *http.Request) {
		u, ok := caller(r)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		reply(w, resources.TokenDetail{ID: "t-" + u.ID, UserID: u.ID})
	})
	mux.HandleFunc("DELETE /api/v1/api_tokens/current", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/v1/clients/{id}/counts", func(w http.ResponseWriter, r *http.Request) {
		reply(w, resources.Counts{Experiments: 2})
	})
	mux.HandleFunc("GET /api/v1/clients/{id}/experiments", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"data": []resources.Experiment{
			{ID: "e-1", Name: "Header copy", Status: "running"},
			{ID: "e-2", Name: "Pricing", Status: "draft"},
		}})
	})
	mux.HandleFunc("POST /api/v1/users/{id}/impersonation_tokens", func(w http.ResponseWriter, r *http.Request) {
		if u, ok := caller(r); !ok || !u.IsAdmin {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		reply(w, resources.ImpersonationToken{UserID: r.PathValue("id"), APIToken: "tok-u2"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testApp struct {
	t       *testing.T
	handler http.Handler
	app     *app
	cookie  *http.Cookie
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	upstream := fakeConsole(t)
	cfg := appConfig{
		PublicPaths: []string{"/api/beacon"},
		Session:     session.DefaultConfig(),
		API:         apiclient.Config{BaseURL: upstream.URL, PathPrefix: apiclient.DefaultPathPrefix, Timeout: time.Second},
		Watchdog:    watchdog.Config{Ceiling: watchdog.DefaultCeiling},
	}
	sb := &sessionBackend{backend: session.NewMemoryBackend(), close: func() {}}
	a := newApp(cfg, logger.Discard(), metrics.New(), sb)
	return &testApp{t: t, handler: a.routes(), app: a}
}

// login seeds a session for the given user, as the sign-in flow would.
func (ta *testApp) login(userID, token string) {
	ta.t.Helper()
	id, err := session.NewID()
	require.NoError(ta.t, err)
	csrfToken, err := loginstate.NewCSRFToken()
	require.NoError(ta.t, err)
	require.NoError(ta.t, ta.app.sessions.Store().Write(context.Background(), id, session.Record{
		LoginState: loginstate.State{UserID: userID, APIToken: token, CSRFToken: csrfToken},
	}))
	ta.cookie = &http.Cookie{Name: session.DefaultConfig().CookieName, Value: id}
}

func (ta *testApp) do(method, path string, body any) *httptest.ResponseRecorder {
	ta.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ta.t, err)
		rd = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ta.cookie != nil {
		req.AddCookie(ta.cookie)
	}
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.DefaultConfig().CookieName {
			ta.cookie = c
		}
	}
	return rec
}

type meBody struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Client *struct {
		ID string `json:"id"`
	} `json:"client"`
	Impersonating bool              `json:"impersonating"`
	Message       string            `json:"message"`
	CSRFToken     string            `json:"csrfToken"`
	Preferences   map[string]string `json:"preferences"`
}

func (ta *testApp) me() meBody {
	ta.t.Helper()
	rec := ta.do(http.MethodGet, "/api/me", nil)
	require.Equal(ta.t, http.StatusOK, rec.Code, rec.Body.String())
	var body meBody
	require.NoError(ta.t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRoutes(t *testing.T) {
	t.Run("anonymous visitor gets a session", func(t *testing.T) {
		ta := newTestApp(t)
		me := ta.me()
		assert.Empty(t, me.User.ID)
		assert.NotEmpty(t, me.CSRFToken)
		require.NotNil(t, ta.cookie)
		assert.True(t, session.IsValidID(ta.cookie.Value))
	})

	t.Run("identity resolution selects a team", func(t *testing.T) {
		ta := newTestApp(t)
		ta.login("admin", "tok-admin")
		me := ta.me()
		assert.Equal(t, "admin", me.User.ID)
		require.NotNil(t, me.Client)
		assert.Equal(t, "c-admin", me.Client.ID)
		assert.False(t, me.Impersonating)
	})

	t.Run("switch team", func(t *testing.T) {
		ta := newTestApp(t)
		ta.login("admin", "tok-admin")
		csrfToken := ta.me().CSRFToken

		rec := ta.do(http.MethodPost, "/api/team", map[string]string{"client_id": "c-shared", "csrf_token": csrfToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "c-shared", ta.me().Client.ID)

		rec = ta.do(http.MethodPost, "/api/team", map[string]string{"client_id": "c-other", "csrf_token": csrfToken})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("impersonate and stop", func(t *testing.T) {
		ta := newTestApp(t)
		ta.login("admin", "tok-admin")
		csrfToken := ta.me().CSRFToken
		before := ta.cookie.Value

		rec := ta.do(http.MethodPost, "/api/impersonate", map[string]string{"user_id": "u-2", "csrf_token": csrfToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotEqual(t, before, ta.cookie.Value)

		me := ta.me()
		assert.Equal(t, "u-2", me.User.ID)
		assert.True(t, me.Impersonating)
		assert.Equal(t, csrfToken, me.CSRFToken)

		rec = ta.do(http.MethodPost, "/api/impersonate/stop", map[string]string{"csrf_token": csrfToken})
		require.Equal(t, http.StatusOK, rec.Code)
		me = ta.me()
		assert.Equal(t, "admin", me.User.ID)
		assert.False(t, me.Impersonating)

		rec = ta.do(http.MethodPost, "/api/impersonate/stop", map[string]string{"csrf_token": csrfToken})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("non admin cannot impersonate", func(t *testing.T) {
		ta := newTestApp(t)
		ta.login("u-2", "tok-u2")
		csrfToken := ta.me().CSRFToken
		rec := ta.do(http.MethodPost, "/api/impersonate", map[string]string{"user_id": "admin", "csrf_token": csrfToken})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("bad csrf token logs out", func(t *testing.T) {
		ta := newTestApp(t)
		ta.login("admin", "tok-admin")
		require.Equal(t, "admin", ta.me().User.ID)

		rec := ta.do(http.MethodPost, "/api/team", map[string]string{"client_id": "c-shared", "csrf_token": "forged"})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		me := ta.me()
		assert.Empty(t, me.User.ID)
		assert.NotEmpty(t, me.CSRFToken)
	})

	t.Run("logout", func(t *testing.T) {
		ta := newTestApp(t)
		ta.login("admin", "tok-admin")
		csrfToken := ta.me().CSRFToken

		rec := ta.do(http.MethodPost, "/api/logout", map[string]string{"csrf_token": csrfToken})
		require.Equal(t, http.StatusNoContent, rec.Code)

		me := ta.me()
		assert.Empty(t, me.User.ID)
		assert.NotEqual(t, csrfToken, me.CSRFToken)
	})

	t.Run("preferences", func(t *testing.T) {
		ta := newTestApp(t)
		csrfToken := ta.me().CSRFToken
		rec := ta.do(http.MethodPost, "/api/preferences", map[string]string{"key": "theme", "value": "dark", "csrf_token": csrfToken})
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, map[string]string{"theme": "dark"}, ta.me().Preferences)
	})

	t.Run("beacon skips csrf", func(t *testing.T) {
		ta := newTestApp(t)
		rec := ta.do(http.MethodPost, "/api/beacon", map[string]string{"event": "page_view"})
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("experiments", func(t *testing.T) {
		ta := newTestApp(t)
		rec := ta.do(http.MethodGet, "/api/experiments", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		ta.login("admin", "tok-admin")
		rec = ta.do(http.MethodGet, "/api/experiments?ascending=true", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body struct {
			Data []resources.Experiment `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Len(t, body.Data, 2)
	})

	t.Run("health and metrics", func(t *testing.T) {
		ta := newTestApp(t)
		ta.login("admin", "tok-admin")
		ta.me()

		rec := ta.do(http.MethodGet, "/healthz", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = ta.do(http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "console_api_attempts_total")
		assert.Contains(t, rec.Body.String(), "console_http_request_duration_seconds")
	})
}
