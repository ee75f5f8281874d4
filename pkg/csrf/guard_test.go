package csrf_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/consolekit/pkg/csrf"
	"github.com/dmitrymomot/consolekit/pkg/loginstate"
)

func bound(state loginstate.State, req *http.Request) (*http.Request, *loginstate.Binding) {
	b := loginstate.NewBinding(state)
	return req.WithContext(loginstate.WithBinding(req.Context(), b)), b
}

func formRequest(method, token string) *http.Request {
	form := url.Values{}
	if token != "" {
		form.Set(csrf.FieldName, token)
	}
	req := httptest.NewRequest(method, "/api/team", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestGuard(t *testing.T) {
	state := loginstate.State{UserID: "u-1", APIToken: "tok", CSRFToken: "good"}
	var called bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	guard := csrf.New()

	t.Run("safe methods pass without token", func(t *testing.T) {
		called = false
		req, _ := bound(state, httptest.NewRequest(http.MethodGet, "/", nil))
		rec := httptest.NewRecorder()
		guard.Protect(next).ServeHTTP(rec, req)
		assert.True(t, called)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("matching form token passes", func(t *testing.T) {
		called = false
		req, b := bound(state, formRequest(http.MethodPost, "good"))
		rec := httptest.NewRecorder()
		guard.Protect(next).ServeHTTP(rec, req)
		assert.True(t, called)
		assert.Equal(t, "u-1", b.Current().UserID)
	})

	t.Run("mismatch rejects and resets login state", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
			called = false
			req, b := bound(state, formRequest(method, "bad"))
			rec := httptest.NewRecorder()
			guard.Protect(next).ServeHTTP(rec, req)

			assert.False(t, called, method)
			assert.Equal(t, http.StatusForbidden, rec.Code, method)
			assert.Equal(t, loginstate.State{}, b.Current(), method)
		}
	})

	t.Run("missing token rejects", func(t *testing.T) {
		req, b := bound(state, formRequest(http.MethodPost, ""))
		rec := httptest.NewRecorder()
		guard.Protect(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, b.Current().IsLoggedIn())
	})

	t.Run("json body token passes and body is restored", func(t *testing.T) {
		var body string
		echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			body = string(raw)
		})
		payload := `{"csrf_token":"good","client_id":"c-1"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		req, _ = bound(state, req)
		guard.Protect(echo).ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, payload, body)
	})

	t.Run("oversized body is rejected without reset", func(t *testing.T) {
		g := csrf.New(csrf.WithMaxBodySize(1 << 10))
		blob := strings.Repeat("x", 2<<10)

		jsonReq := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"csrf_token":"good","blob":"`+blob+`"}`))
		jsonReq.Header.Set("Content-Type", "application/json")

		form := url.Values{csrf.FieldName: {"good"}, "blob": {blob}}
		formReq := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
		formReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		for name, r := range map[string]*http.Request{"json": jsonReq, "form": formReq} {
			called = false
			req, b := bound(state, r)
			rec := httptest.NewRecorder()
			g.Protect(next).ServeHTTP(rec, req)

			assert.False(t, called, name)
			assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, name)
			assert.Equal(t, state, b.Current(), name)
		}
	})

	t.Run("body within limit passes", func(t *testing.T) {
		called = false
		g := csrf.New(csrf.WithMaxBodySize(1 << 10))
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"csrf_token":"good"}`))
		req.Header.Set("Content-Type", "application/json")
		req, _ = bound(state, req)
		g.Protect(next).ServeHTTP(httptest.NewRecorder(), req)
		assert.True(t, called)
	})

	t.Run("malformed json is treated as forged", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"csrf_token":`))
		req.Header.Set("Content-Type", "application/json")
		req, b := bound(state, req)
		rec := httptest.NewRecorder()
		guard.Protect(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, b.Current().IsLoggedIn())
	})

	t.Run("empty expected token never matches", func(t *testing.T) {
		req, _ := bound(loginstate.State{}, formRequest(http.MethodPost, ""))
		rec := httptest.NewRecorder()
		guard.Protect(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("exempt route skips validation", func(t *testing.T) {
		called = false
		req, b := bound(state, formRequest(http.MethodPost, "bad"))
		guard.Protect(csrf.Exempt(next)).ServeHTTP(httptest.NewRecorder(), req)
		assert.True(t, called)
		assert.Equal(t, "u-1", b.Current().UserID)
	})

	t.Run("custom error handler receives error", func(t *testing.T) {
		var got error
		g := csrf.New(csrf.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			got = err
			w.WriteHeader(http.StatusTeapot)
		}))
		req, _ := bound(state, formRequest(http.MethodPost, "bad"))
		rec := httptest.NewRecorder()
		g.Protect(next).ServeHTTP(rec, req)
		require.ErrorIs(t, got, csrf.ErrInvalidToken)
		assert.Equal(t, http.StatusTeapot, rec.Code)
	})

	t.Run("no binding is a server error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guard.Protect(next).ServeHTTP(rec, formRequest(http.MethodPost, "good"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
