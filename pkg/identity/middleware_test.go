package identity_test

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/consolekit/pkg/apiclient"
	"github.com/dmitrymomot/consolekit/pkg/identity"
	"github.com/dmitrymomot/consolekit/pkg/loginstate"
	"github.com/dmitrymomot/consolekit/pkg/resources"
)

// upstream serves the console API for a fixed set of tokens.
func upstream(t *testing.T, users map[string]string, fail bool) *httptest.Server {
	t.Helper()
	userFor := func(r *http.Request) (string, bool) {
		raw, _ := base64.StdEncoding.DecodeString(strings.TrimPrefix(r.Header.Get("Authorization"), "Basic "))
		id, ok := users[strings.TrimSuffix(string(raw), ":")]
		return id, ok
	}
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	auth := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if fail {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			if _, ok := userFor(r); !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			h(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/users/{id}", auth(func(w http.ResponseWriter, r *http.Request) {
		if id, _ := userFor(r); id != r.PathValue("id") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		reply(w, resources.User{ID: r.PathValue("id")})
	}))
	mux.HandleFunc("GET /api/v1/users/{id}/permissions", auth(func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"data": []resources.Permission{{Client: resources.ClientRef{ID: "c-1", Name: "Ops"}}}})
	}))
	mux.HandleFunc("GET /api/v1/users/{id}/memberships", auth(func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"data": []resources.Membership{}})
	}))
	mux.HandleFunc("GET /api/v1/clients/{id}", auth(func(w http.ResponseWriter, r *http.Request) {
		reply(w, resources.Client{ID: r.PathValue("id"), Name: "Ops"})
	}))
	mux.HandleFunc("GET /api/v1/api_tokens/current", auth(func(w http.ResponseWriter, r *http.Request) {
		id, _ := userFor(r)
		reply(w, resources.TokenDetail{ID: "t-" + id, UserID: id})
	}))
	mux.HandleFunc("GET /api/v1/clients/{id}/counts", auth(func(w http.ResponseWriter, r *http.Request) {
		reply(w, resources.Counts{Experiments: 1})
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func withBinding(b *loginstate.Binding, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(loginstate.WithBinding(r.Context(), b)))
	})
}

func newAPI(r *apiclient.Requestor) identity.API {
	return resources.NewAPI(r)
}

func TestMiddleware(t *testing.T) {
	t.Run("requestor follows a pop", func(t *testing.T) {
		srv := upstream(t, map[string]string{"tok-admin": "admin"}, false)
		base := apiclient.New(srv.URL)

		admin := loginstate.State{UserID: "admin", APIToken: "tok-admin", CSRFToken: "csrf"}
		b := loginstate.NewBinding(loginstate.State{UserID: "victim", APIToken: "revoked", CSRFToken: "csrf", Parent: &admin})

		var (
			got   *identity.Context
			token string
		)
		h := identity.Middleware(identity.NewChain(), base, newAPI)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = identity.MustFromContext(r.Context())
			token = apiclient.MustFromContext(r.Context()).Token()
		}))

		rec := httptest.NewRecorder()
		withBinding(b, h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, got.IsLoggedIn())
		assert.Equal(t, "admin", got.User.ID)
		assert.Equal(t, "t-admin", got.APIToken.ID)
		assert.Equal(t, "tok-admin", token)
		assert.Empty(t, base.Token())
	})

	t.Run("missing login state", func(t *testing.T) {
		h := identity.Middleware(identity.NewChain(), apiclient.New("http://127.0.0.1:0"), newAPI)(http.NotFoundHandler())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("upstream failure is a bad gateway", func(t *testing.T) {
		srv := upstream(t, nil, true)
		b := loginstate.NewBinding(loginstate.State{UserID: "admin", APIToken: "tok-admin"})
		called := false
		h := identity.Middleware(identity.NewChain(), apiclient.New(srv.URL), newAPI)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			called = true
		}))

		rec := httptest.NewRecorder()
		withBinding(b, h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.False(t, called)
	})

	t.Run("custom error handler", func(t *testing.T) {
		srv := upstream(t, nil, true)
		b := loginstate.NewBinding(loginstate.State{UserID: "admin", APIToken: "tok-admin"})
		var seen error
		h := identity.Middleware(identity.NewChain(), apiclient.New(srv.URL), newAPI,
			identity.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
				seen = err
				w.WriteHeader(http.StatusServiceUnavailable)
			}),
		)(http.NotFoundHandler())

		rec := httptest.NewRecorder()
		withBinding(b, h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.ErrorIs(t, seen, apiclient.ErrRemote)
	})
}
