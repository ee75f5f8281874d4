package csrf

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/dmitrymomot/consolekit/pkg/loginstate"
	"github.com/dmitrymomot/consolekit/pkg/logger"
)

// FieldName is the body field carrying the token.
const FieldName = "csrf_token"

const defaultMaxBodySize = 1 << 20

// ErrorHandler writes the response for a rejected request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNoLoginState):
		http.Error(w, "internal_error", http.StatusInternalServerError)
	case errors.Is(err, ErrBodyTooLarge):
		http.Error(w, "request_too_large", http.StatusRequestEntityTooLarge)
	default:
		http.Error(w, "invalid_csrf", http.StatusForbidden)
	}
}

// Option configures a Guard.
type Option func(*Guard)

// WithErrorHandler replaces the default 403/413 responses.
func WithErrorHandler(h ErrorHandler) Option {
	return func(g *Guard) {
		if h != nil {
			g.onError = h
		}
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.log = l
		}
	}
}

// WithMaxBodySize limits the size of a mutating request body. Larger bodies
// are rejected with ErrBodyTooLarge without touching the login state.
func WithMaxBodySize(n int64) Option {
	return func(g *Guard) {
		if n > 0 {
			g.maxBody = n
		}
	}
}

// Guard validates CSRF tokens on mutating requests.
type Guard struct {
	onError ErrorHandler
	log     *slog.Logger
	maxBody int64
}

// New returns a Guard with a 1 MiB body limit.
func New(opts ...Option) *Guard {
	g := &Guard{
		onError: defaultErrorHandler,
		log:     logger.Discard(),
		maxBody: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Protect wraps next with token validation unless next is marked Exempt.
func (g *Guard) Protect(next http.Handler) http.Handler {
	if _, ok := next.(exemptHandler); ok {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isMutating(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		binding, ok := loginstate.FromContext(r.Context())
		if !ok {
			g.onError(w, r, ErrNoLoginState)
			return
		}

		token, err := g.extract(w, r)
		if errors.Is(err, ErrBodyTooLarge) {
			g.log.WarnContext(r.Context(), "csrf check skipped: body too large",
				logger.Component("csrf"), logger.Method(r.Method), logger.Path(r.URL.Path))
			g.onError(w, r, ErrBodyTooLarge)
			return
		}
		expected := binding.Current().CSRFToken
		if err != nil || !tokensMatch(token, expected) {
			binding.Reset()
			g.log.WarnContext(r.Context(), "csrf token rejected",
				logger.Component("csrf"), logger.Method(r.Method), logger.Path(r.URL.Path), logger.Error(err))
			g.onError(w, r, ErrInvalidToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extract reads the token from the body. JSON bodies are restored so the
// downstream handler can decode them again.
func (g *Guard) extract(w http.ResponseWriter, r *http.Request) (string, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, g.maxBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
	case "multipart/form-data":
		if err := r.ParseMultipartForm(g.maxBody); err != nil {
			return "", bodyError(err)
		}
		return r.PostFormValue(FieldName), nil
	default:
		if err := r.ParseForm(); err != nil {
			return "", bodyError(err)
		}
		return r.PostFormValue(FieldName), nil
	}

	body, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return "", bodyError(err)
	}

	var payload struct {
		Token string `json:"csrf_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	return payload.Token, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errors.Join(ErrBodyTooLarge, err)
	}
	return err
}

func tokensMatch(got, expected string) bool {
	if expected == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

type exemptHandler struct{ http.Handler }

// Exempt marks h as opted out of CSRF validation.
func Exempt(h http.Handler) http.Handler {
	return exemptHandler{h}
}
