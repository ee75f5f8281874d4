package apiclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/consolekit/pkg/logger"
)

const (
	tracerName      = "github.com/dmitrymomot/consolekit/pkg/apiclient"
	maxResponseSize = 8 << 20
	maxGetAttempts  = 2
)

// Requestor performs authenticated calls against the upstream API.
type Requestor struct {
	baseURL   string
	prefix    string
	client    *http.Client
	maxJitter time.Duration
	jitter    func(limit time.Duration) time.Duration
	notifier  Notifier
	log       *slog.Logger
	onAttempt func(Attempt)
	tracer    trace.Tracer
	token     *tokenHolder
}

type tokenHolder struct {
	mu    sync.RWMutex
	value string
}

// New creates a Requestor for baseURL without a token.
func New(baseURL string, opts ...Option) *Requestor {
	r := &Requestor{
		baseURL:   strings.TrimRight(baseURL, "/"),
		prefix:    DefaultPathPrefix,
		client:    &http.Client{Timeout: DefaultTimeout},
		maxJitter: DefaultMaxJitter,
		jitter:    randomJitter,
		log:       logger.Discard(),
		tracer:    otel.Tracer(tracerName),
		token:     &tokenHolder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.notifier == nil {
		r.notifier = LogNotifier(r.log)
	}
	return r
}

// NewFromConfig creates a Requestor from cfg. Options are applied last.
func NewFromConfig(cfg Config, opts ...Option) *Requestor {
	base := []Option{
		WithPathPrefix(cfg.PathPrefix),
		WithTimeout(cfg.Timeout),
		WithMaxJitter(cfg.MaxJitter),
	}
	return New(cfg.BaseURL, append(base, opts...)...)
}

// WithToken returns a copy of r with its own token. Use one copy per
// incoming request.
func (r *Requestor) WithToken(token string) *Requestor {
	cp := *r
	cp.token = &tokenHolder{value: token}
	return &cp
}

// SetToken replaces the token used by subsequent calls.
func (r *Requestor) SetToken(token string) {
	r.token.mu.Lock()
	r.token.value = token
	r.token.mu.Unlock()
}

// Token returns the current API token.
func (r *Requestor) Token() string {
	r.token.mu.RLock()
	defer r.token.mu.RUnlock()
	return r.token.value
}

// Do performs a call and decodes a JSON response into out when out is not
// nil. Only GET is retried, once, when the upstream answers 504.
func (r *Requestor) Do(ctx context.Context, method, path string, params Params, out any, opts ...CallOption) error {
	co := &callOptions{}
	for _, opt := range opts {
		opt(co)
	}
	prefix := r.prefix
	if co.prefix != nil {
		prefix = *co.prefix
	}

	ctx, span := r.tracer.Start(ctx, "apiclient "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("api.path", path),
		),
	)
	defer span.End()

	attempts := 1
	if method == http.MethodGet {
		attempts = maxGetAttempts
	}

	var err error
retry:
	for n := 1; n <= attempts; n++ {
		err = r.attempt(ctx, n, method, prefix, path, params, out, co.extraHead)
		if err == nil || n == attempts || !errors.Is(err, ErrTransientUpstream) {
			break
		}

		delay := r.jitter(r.maxJitter)
		r.log.DebugContext(ctx, "retrying upstream call",
			logger.Component("apiclient"), logger.Method(method), logger.Path(path),
			logger.Attempt(n+1), logger.Duration(delay))
		select {
		case <-ctx.Done():
			err = &Error{Kind: KindTransport, Method: method, Path: path, Err: ctx.Err()}
			break retry
		case <-time.After(delay):
		}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", StatusCodeOf(err)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Requestor) attempt(ctx context.Context, n int, method, prefix, path string, params Params, out any, extra http.Header) (err error) {
	start := time.Now()
	status := 0
	defer func() {
		if r.onAttempt != nil {
			r.onAttempt(Attempt{Method: method, Path: path, Number: n, StatusCode: status, Duration: time.Since(start), Err: err})
		}
	}()

	req, err := r.newRequest(ctx, method, prefix, path, params)
	if err != nil {
		return err
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Method: method, Path: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	status = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &Error{Kind: KindTransport, Method: method, Path: path, StatusCode: status, Err: err}
	}

	if status >= http.StatusBadRequest {
		return &Error{Kind: kindForStatus(status), Method: method, Path: path, StatusCode: status, Body: body}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindInvalidResponseBody, Method: method, Path: path, StatusCode: status, Body: body, Err: err}
	}
	return nil
}

func (r *Requestor) newRequest(ctx context.Context, method, prefix, path string, params Params) (*http.Request, error) {
	target := r.baseURL + prefix + path

	var body io.Reader
	switch method {
	case http.MethodGet, http.MethodDelete, http.MethodHead:
		if q := params.Query(); len(q) > 0 {
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + q.Encode()
		}
	default:
		if params != nil {
			raw, err := json.Marshal(params)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
			}
			body = bytes.NewReader(raw)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := r.Token(); tok != "" {
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(tok+":")))
	}
	return req, nil
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}
