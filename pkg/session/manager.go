package session

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/dmitrymomot/consolekit/pkg/loginstate"
	"github.com/dmitrymomot/consolekit/pkg/logger"
)

// Manager loads and commits sessions for HTTP requests.
type Manager struct {
	config    Config
	backend   Backend
	store     *Store
	transport CookieTransport
	log       *slog.Logger
	onRotate  func()
	newID     func() (string, error)
}

// New creates a Manager. Without WithBackend sessions live in memory.
func New(opts ...Option) *Manager {
	m := &Manager{
		config: DefaultConfig(),
		log:    logger.Discard(),
		newID:  NewID,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.backend == nil {
		m.backend = NewMemoryBackend()
	}
	m.store = NewStore(m.backend, m.config.IdleTimeout, m.log)
	m.transport = CookieTransport{
		Name:   m.config.CookieName,
		MaxAge: m.config.IdleTimeout,
		Secure: m.config.SecureCookies,
	}
	return m
}

// Store returns the store the manager reads and writes through.
func (m *Manager) Store() *Store { return m.store }

// Transport exposes the cookie settings, for example to clear the cookie.
func (m *Manager) Transport() CookieTransport { return m.transport }

// requestSession is the per-request view of a session.
type requestSession struct {
	mu      sync.Mutex
	id      string // incoming id, "" when absent or invalid
	loaded  []byte
	binding *loginstate.Binding
	prefs   map[string]string
}

func (m *Manager) load(r *http.Request) *requestSession {
	ctx := r.Context()
	rs := &requestSession{}

	var rec Record
	if id := m.transport.ID(r); IsValidID(id) {
		rec = m.store.Read(ctx, id)
		rs.id = id
		if blob, err := rec.encode(); err == nil {
			rs.loaded = blob
		}
	}

	rs.binding = loginstate.NewBinding(m.withCSRFToken(ctx, rec.LoginState))
	rs.prefs = rec.Clone().Preferences
	return rs
}

// commit persists the request session if it changed. A changed record is
// stored under a new id; the previous blob is deleted in the background.
func (m *Manager) commit(ctx context.Context, w http.ResponseWriter, rs *requestSession) {
	// A reset or a pop onto a parent without a token starts a new lineage.
	if cur := rs.binding.Current(); cur.CSRFToken == "" {
		rs.binding.Replace(m.withCSRFToken(ctx, cur))
	}

	rs.mu.Lock()
	rec := Record{LoginState: rs.binding.Current(), Preferences: rs.prefs}
	rs.mu.Unlock()

	blob, err := rec.encode()
	if err != nil {
		m.log.ErrorContext(ctx, "session encode failed", logger.Component("session"), logger.Error(err))
		return
	}
	if rs.id != "" && bytes.Equal(blob, rs.loaded) {
		return
	}

	newID, err := m.newID()
	if err != nil {
		m.log.ErrorContext(ctx, "session id generation failed", logger.Component("session"), logger.Error(err))
		return
	}
	if err := m.store.Write(ctx, newID, rec); err != nil {
		m.log.ErrorContext(ctx, "session write failed",
			logger.Component("session"), logger.SessionID(newID), logger.Error(err))
		return
	}
	m.transport.SetID(w, newID)

	if rs.id != "" && rs.id != newID {
		m.deleteInBackground(ctx, rs.id)
	}
	m.log.DebugContext(ctx, "session rotated",
		logger.Component("session"), logger.SessionID(newID), logger.Event("rotate"))
	if m.onRotate != nil {
		m.onRotate()
	}
}

// withCSRFToken returns s with a fresh CSRF token when it has none.
func (m *Manager) withCSRFToken(ctx context.Context, s loginstate.State) loginstate.State {
	if s.CSRFToken != "" {
		return s
	}
	tok, err := loginstate.NewCSRFToken()
	if err != nil {
		m.log.ErrorContext(ctx, "csrf token generation failed",
			logger.Component("session"), logger.Error(err))
	}
	s.CSRFToken = tok
	return s
}

func (m *Manager) deleteInBackground(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if m.config.DeleteTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.config.DeleteTimeout)
			defer cancel()
		}
		m.store.Delete(ctx, id)
	}()
}
