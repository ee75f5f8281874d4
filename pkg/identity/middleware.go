package identity

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/consolekit/pkg/apiclient"
	"github.com/dmitrymomot/consolekit/pkg/loginstate"
)

// ErrorHandler writes the response when resolution fails.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// APIFactory builds the chain's view of the remote API on top of a
// request-scoped requestor.
type APIFactory func(*apiclient.Requestor) API

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	errorHandler ErrorHandler
}

// WithErrorHandler replaces the default 500/502 responses.
func WithErrorHandler(h ErrorHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	if errors.Is(err, ErrNoLoginState) {
		http.Error(w, "internal_error", http.StatusInternalServerError)
		return
	}
	http.Error(w, "upstream_error", http.StatusBadGateway)
}

// Middleware resolves the identity of every request and stores it, along
// with a requestor authenticated as the current login state, in the
// request context. The requestor follows the login state, so a pop or
// logout switches the token it sends.
//
// It must run inside the session middleware.
func Middleware(chain *Chain, base *apiclient.Requestor, factory APIFactory, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{errorHandler: defaultErrorHandler}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			binding, ok := loginstate.FromContext(r.Context())
			if !ok {
				cfg.errorHandler(w, r, ErrNoLoginState)
				return
			}

			req := base.WithToken(binding.Current().APIToken)
			binding.Subscribe(func(s loginstate.State) {
				req.SetToken(s.APIToken)
			})
			ctx := apiclient.WithContext(r.Context(), req)

			ictx, err := chain.Resolve(ctx, binding, factory(req), r.URL.Path)
			if err != nil {
				cfg.errorHandler(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithContext(ctx, ictx)))
		})
	}
}
