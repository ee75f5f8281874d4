// Package watchdog measures how long requests take and reports the ones
// that run past a ceiling.
package watchdog

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/consolekit/pkg/logger"
)

// DefaultCeiling is the duration above which a request counts as slow.
const DefaultCeiling = 20 * time.Second

// Config is loaded from the environment.
type Config struct {
	Ceiling time.Duration `env:"WATCHDOG_CEILING" envDefault:"20s"`
}

// Observer receives request timings.
type Observer interface {
	ObserveRequest(method string, status int, d time.Duration)
	SlowRequest(method, path string, d time.Duration)
}

// Option configures Middleware.
type Option func(*watchdog)

// WithCeiling sets the duration above which a request is slow.
func WithCeiling(d time.Duration) Option {
	return func(w *watchdog) {
		if d > 0 {
			w.ceiling = d
		}
	}
}

// WithObserver reports every request to o.
func WithObserver(o Observer) Option {
	return func(w *watchdog) {
		w.observer = o
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(w *watchdog) {
		if l != nil {
			w.log = l
		}
	}
}

type watchdog struct {
	ceiling  time.Duration
	observer Observer
	log      *slog.Logger
}

// Middleware times the whole downstream chain. A request slower than the
// ceiling is logged at warn level and reported to the observer.
func Middleware(opts ...Option) func(http.Handler) http.Handler {
	wd := &watchdog{
		ceiling: DefaultCeiling,
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(wd)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			defer func() {
				d := time.Since(start)
				if wd.observer != nil {
					wd.observer.ObserveRequest(r.Method, sw.code(), d)
				}
				if d <= wd.ceiling {
					return
				}
				wd.log.WarnContext(r.Context(), "slow_request",
					logger.Component("watchdog"),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.Status(sw.code()),
					logger.Duration(d),
				)
				if wd.observer != nil {
					wd.observer.SlowRequest(r.Method, r.URL.Path, d)
				}
			}()
			next.ServeHTTP(sw, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
