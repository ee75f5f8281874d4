// Package metrics exposes Prometheus metrics for the console backend.
//
// A Collector is registered on its own registry unless one is passed in.
// Its methods match the hooks of the other packages, so it is wired in
// without adapters:
//
//	m := metrics.New()
//	watchdog.Middleware(watchdog.WithObserver(m))
//	apiclient.New(url, apiclient.WithAttemptHook(m.ObserveAttempt))
//	session.New(session.WithOnRotate(m.SessionRotated))
//	identity.NewChain(identity.WithPopHook(m.LoginStatePopped))
//	r.Handle("/metrics", m.Handler())
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/consolekit/pkg/apiclient"
)

const defaultNamespace = "console"

// Config holds the metric namespace.
type Config struct {
	Namespace string `env:"METRICS_NAMESPACE" envDefault:"console"`
}

// Option configures New.
type Option func(*options)

type options struct {
	namespace string
	registry  *prometheus.Registry
	buckets   []float64
}

// WithNamespace prefixes every metric name. Empty is ignored.
func WithNamespace(ns string) Option {
	return func(o *options) {
		if ns != "" {
			o.namespace = ns
		}
	}
}

// WithRegistry registers the metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		if reg != nil {
			o.registry = reg
		}
	}
}

// WithBuckets sets the histogram buckets in seconds.
func WithBuckets(b []float64) Option {
	return func(o *options) {
		if len(b) > 0 {
			o.buckets = b
		}
	}
}

// Collector holds every metric of the process.
type Collector struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	slowRequests    *prometheus.CounterVec
	apiAttempts     *prometheus.CounterVec
	apiDuration     *prometheus.HistogramVec
	rotations       prometheus.Counter
	pops            *prometheus.CounterVec
}

// New registers every collector. Without WithRegistry a fresh registry
// with Go and process collectors is used.
func New(opts ...Option) *Collector {
	o := &options{
		namespace: defaultNamespace,
		buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
		o.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	factory := promauto.With(o.registry)
	return &Collector{
		registry: o.registry,

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests by method and status",
			Buckets:   o.buckets,
		}, []string{"method", "status"}),

		slowRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "http_slow_requests_total",
			Help:      "Requests that ran past the watchdog ceiling",
		}, []string{"method"}),

		apiAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "api_attempts_total",
			Help:      "Upstream API attempts by method and status, retries included",
		}, []string{"method", "status"}),

		apiDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "api_attempt_duration_seconds",
			Help:      "Duration of upstream API attempts",
			Buckets:   o.buckets,
		}, []string{"method"}),

		rotations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "session_rotations_total",
			Help:      "Session ids minted for new or changed sessions",
		}),

		pops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "login_state_pops_total",
			Help:      "Login state pops by resolution step",
		}, []string{"step"}),
	}
}

// Registry returns the registry the collectors live in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveRequest records one served request.
func (c *Collector) ObserveRequest(method string, status int, d time.Duration) {
	c.requestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

// SlowRequest counts a slow request. The path is left out of the labels
// to keep cardinality bounded.
func (c *Collector) SlowRequest(method, _ string, _ time.Duration) {
	c.slowRequests.WithLabelValues(method).Inc()
}

// ObserveAttempt records one upstream attempt. Attempts that never got a
// response are labelled with status "error".
func (c *Collector) ObserveAttempt(a apiclient.Attempt) {
	status := "error"
	if a.StatusCode > 0 {
		status = strconv.Itoa(a.StatusCode)
	}
	c.apiAttempts.WithLabelValues(a.Method, status).Inc()
	c.apiDuration.WithLabelValues(a.Method).Observe(a.Duration.Seconds())
}

// SessionRotated counts a session id rotation.
func (c *Collector) SessionRotated() {
	c.rotations.Inc()
}

// LoginStatePopped counts a pop by the identity step that caused it.
func (c *Collector) LoginStatePopped(step string) {
	c.pops.WithLabelValues(step).Inc()
}
