package loginstate

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/consolekit/pkg/logger"
)

type bindingContextKey struct{}

// WithBinding stores b in ctx.
func WithBinding(ctx context.Context, b *Binding) context.Context {
	return context.WithValue(ctx, bindingContextKey{}, b)
}

// FromContext returns the binding stored by WithBinding.
func FromContext(ctx context.Context) (*Binding, bool) {
	b, ok := ctx.Value(bindingContextKey{}).(*Binding)
	return b, ok && b != nil
}

// MustFromContext is like FromContext but panics when no binding is stored.
func MustFromContext(ctx context.Context) *Binding {
	b, ok := FromContext(ctx)
	if !ok {
		panic("loginstate: binding not found in context")
	}
	return b
}

// LoggerExtractor logs the user and client of the bound state.
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		b, ok := FromContext(ctx)
		if !ok {
			return slog.Attr{}, false
		}
		s := b.Current()
		if !s.IsLoggedIn() {
			return slog.Attr{}, false
		}
		return slog.Group("login",
			logger.UserID(s.UserID),
			logger.ClientID(s.ClientID),
			slog.Int("depth", s.Depth()),
		), true
	}
}
