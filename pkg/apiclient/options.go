package apiclient

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultPathPrefix = "/api/v1"
	DefaultMaxJitter  = 500 * time.Millisecond
)

// Config holds requestor settings.
type Config struct {
	BaseURL    string        `env:"API_BASE_URL,required"`
	PathPrefix string        `env:"API_PATH_PREFIX" envDefault:"/api/v1"`
	Timeout    time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	MaxJitter  time.Duration `env:"API_RETRY_JITTER" envDefault:"500ms"`
}

// Attempt describes a single HTTP attempt, successful or not.
type Attempt struct {
	Method     string
	Path       string
	Number     int
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Option configures a Requestor.
type Option func(*Requestor)

// WithHTTPClient replaces the underlying HTTP client. Nil is ignored.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Requestor) {
		if c != nil {
			r.client = c
		}
	}
}

// WithTimeout sets the per-attempt timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(r *Requestor) {
		if d > 0 {
			r.client = &http.Client{Timeout: d}
		}
	}
}

// WithPathPrefix sets the prefix joined between base URL and call path.
func WithPathPrefix(prefix string) Option {
	return func(r *Requestor) { r.prefix = prefix }
}

// WithMaxJitter bounds the delay before the single GET retry.
func WithMaxJitter(d time.Duration) Option {
	return func(r *Requestor) { r.maxJitter = d }
}

// WithJitterFunc replaces the random jitter, mostly for tests.
func WithJitterFunc(fn func(limit time.Duration) time.Duration) Option {
	return func(r *Requestor) {
		if fn != nil {
			r.jitter = fn
		}
	}
}

// WithNotifier sets where legacy calls forward their errors.
func WithNotifier(n Notifier) Option {
	return func(r *Requestor) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(r *Requestor) {
		if l != nil {
			r.log = l
		}
	}
}

// WithAttemptHook registers fn to observe every HTTP attempt.
func WithAttemptHook(fn func(Attempt)) Option {
	return func(r *Requestor) { r.onAttempt = fn }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(r *Requestor) {
		if t != nil {
			r.tracer = t
		}
	}
}

// CallOption adjusts a single call.
type CallOption func(*callOptions)

type callOptions struct {
	prefix    *string
	extraHead http.Header
}

// WithCallPathPrefix overrides the requestor path prefix for one call.
func WithCallPathPrefix(prefix string) CallOption {
	return func(o *callOptions) { o.prefix = &prefix }
}

// WithHeader adds a request header to a single call.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) {
		if o.extraHead == nil {
			o.extraHead = http.Header{}
		}
		o.extraHead.Add(key, value)
	}
}
