package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/consolekit/pkg/apiclient"
	"github.com/dmitrymomot/consolekit/pkg/csrf"
	"github.com/dmitrymomot/consolekit/pkg/httpserver"
	"github.com/dmitrymomot/consolekit/pkg/identity"
	"github.com/dmitrymomot/consolekit/pkg/logger"
	"github.com/dmitrymomot/consolekit/pkg/loginstate"
	"github.com/dmitrymomot/consolekit/pkg/paging"
	"github.com/dmitrymomot/consolekit/pkg/requestid"
	"github.com/dmitrymomot/consolekit/pkg/resources"
	"github.com/dmitrymomot/consolekit/pkg/session"
	"github.com/dmitrymomot/consolekit/pkg/watchdog"
)

const maxRequestBody = 64 << 10

func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(watchdog.Middleware(
		watchdog.WithCeiling(a.ceiling),
		watchdog.WithObserver(a.metrics),
		watchdog.WithLogger(a.log),
	))

	r.Get("/healthz", httpserver.Readiness(a.log, a.checks))
	r.Handle("/metrics", a.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(a.sessions.Middleware)
		r.Use(identity.Middleware(a.chain, a.api, newIdentityAPI))

		r.Get("/me", a.me)
		r.Get("/experiments", a.experiments)

		r.Group(func(r chi.Router) {
			r.Use(a.guard.Protect)
			r.Post("/team", a.switchTeam)
			r.Post("/impersonate", a.impersonate)
			r.Post("/impersonate/stop", a.stopImpersonation)
			r.Post("/logout", a.logout)
			r.Post("/preferences", a.setPreference)
			r.Method(http.MethodPost, "/beacon", csrf.Exempt(http.HandlerFunc(a.beacon)))
		})
	})
	return r
}

func newIdentityAPI(r *apiclient.Requestor) identity.API {
	return resources.NewAPI(r)
}

func requestAPI(r *http.Request) *resources.API {
	return resources.NewAPI(apiclient.MustFromContext(r.Context()))
}

type meResponse struct {
	*identity.Context
	CSRFToken   string            `json:"csrfToken"`
	Preferences map[string]string `json:"preferences,omitempty"`
}

func (a *app) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, meResponse{
		Context:     identity.MustFromContext(r.Context()),
		CSRFToken:   loginstate.MustFromContext(r.Context()).Current().CSRFToken,
		Preferences: session.Preferences(r.Context()),
	})
}

func (a *app) switchTeam(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID string `json:"client_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	id := identity.MustFromContext(r.Context())
	if !id.IsLoggedIn() {
		writeError(w, http.StatusUnauthorized, "not_logged_in")
		return
	}

	for _, p := range id.Permissions {
		if p.Client.ID != req.ClientID {
			continue
		}
		loginstate.MustFromContext(r.Context()).Update(func(s loginstate.State) loginstate.State {
			return s.WithClient(p.Client.ID).WithOrganization(p.Client.OrganizationID)
		})
		writeJSON(w, http.StatusOK, map[string]string{"clientId": p.Client.ID})
		return
	}
	writeError(w, http.StatusForbidden, "not_a_member")
}

func (a *app) impersonate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	id := identity.MustFromContext(r.Context())
	if !id.IsLoggedIn() || !id.User.IsAdmin {
		writeError(w, http.StatusForbidden, "admin_only")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id_required")
		return
	}

	tok, err := requestAPI(r).CreateImpersonationToken(r.Context(), req.UserID)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	loginstate.MustFromContext(r.Context()).Push(loginstate.State{UserID: tok.UserID, APIToken: tok.APIToken})
	a.log.InfoContext(r.Context(), "impersonation started", logger.Component("api"), slog.String("target_user", tok.UserID))
	writeJSON(w, http.StatusOK, map[string]string{"userId": tok.UserID})
}

func (a *app) stopImpersonation(w http.ResponseWriter, r *http.Request) {
	b := loginstate.MustFromContext(r.Context())
	if !b.CanPop() {
		writeError(w, http.StatusConflict, "not_impersonating")
		return
	}
	s := b.Pop()
	writeJSON(w, http.StatusOK, map[string]string{"userId": s.UserID})
}

func (a *app) logout(w http.ResponseWriter, r *http.Request) {
	if identity.MustFromContext(r.Context()).IsLoggedIn() {
		// Failures are reported by the requestor notifier.
		_ = requestAPI(r).RevokeAPIToken(r.Context())
	}
	loginstate.MustFromContext(r.Context()).Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) setPreference(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key_required")
		return
	}
	if err := session.SetPreference(r.Context(), req.Key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// beacon accepts analytics pings sent with navigator.sendBeacon, which
// cannot carry a CSRF token.
func (a *app) beacon(w http.ResponseWriter, r *http.Request) {
	n, _ := io.Copy(io.Discard, io.LimitReader(r.Body, maxRequestBody))
	a.log.DebugContext(r.Context(), "beacon received", logger.Component("api"), slog.Int64("bytes", n))
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) experiments(w http.ResponseWriter, r *http.Request) {
	id := identity.MustFromContext(r.Context())
	switch {
	case !id.IsLoggedIn():
		writeError(w, http.StatusUnauthorized, "not_logged_in")
		return
	case id.Client == nil:
		writeError(w, http.StatusConflict, "no_team")
		return
	}

	params := apiclient.Params{}
	q := r.URL.Query()
	if v := q.Get(paging.ParamAscending); v != "" {
		params[paging.ParamAscending] = v == "true"
	}
	if v, err := strconv.Atoi(q.Get(paging.ParamLimit)); err == nil && v > 0 {
		params[paging.ParamLimit] = v
	}
	if v := q.Get("status"); v != "" {
		params["status"] = v
	}

	list, err := requestAPI(r).ListExperiments(r.Context(), id.Client.ID, params)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	if list == nil {
		list = []resources.Experiment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (a *app) writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apiclient.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "not_authorized")
	case errors.Is(err, apiclient.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	default:
		a.log.ErrorContext(r.Context(), "upstream call failed", logger.Component("api"), logger.Error(err))
		writeError(w, http.StatusBadGateway, "upstream_error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
