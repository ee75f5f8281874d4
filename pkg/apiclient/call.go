package apiclient

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/dmitrymomot/consolekit/pkg/logger"
)

// Notifier receives errors that callers did not fully handle.
type Notifier interface {
	Notify(ctx context.Context, err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, err error)

// Notify calls f(ctx, err).
func (f NotifierFunc) Notify(ctx context.Context, err error) { f(ctx, err) }

// LogNotifier reports errors to log at error level.
func LogNotifier(log *slog.Logger) Notifier {
	return NotifierFunc(func(ctx context.Context, err error) {
		log.ErrorContext(ctx, "unhandled upstream error",
			logger.Component("apiclient"), logger.Status(StatusCodeOf(err)), logger.Error(err))
	})
}

// Call is a request in continuation form.
type Call struct {
	Method string
	Path   string
	Params Params
	// PathPrefix overrides the requestor prefix when not empty.
	PathPrefix string
	// Legacy forwards errors to the Notifier after OnError.
	Legacy bool

	OnSuccess func(body json.RawMessage)
	// OnError returns false to keep a legacy error away from the Notifier.
	OnError func(err error) (forward bool)
}

// Request runs c and dispatches the outcome to its callbacks. The error is
// returned as well, for callers that want both styles.
func (r *Requestor) Request(ctx context.Context, c Call) error {
	var opts []CallOption
	if c.PathPrefix != "" {
		opts = append(opts, WithCallPathPrefix(c.PathPrefix))
	}

	var raw json.RawMessage
	err := r.Do(ctx, c.Method, c.Path, c.Params, &raw, opts...)
	if err == nil {
		if c.OnSuccess != nil {
			c.OnSuccess(raw)
		}
		return nil
	}

	forward := true
	if c.OnError != nil {
		forward = c.OnError(err)
	}
	if c.Legacy && forward {
		r.notifier.Notify(ctx, err)
	}
	return err
}
