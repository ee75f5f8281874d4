package session

import (
	"log/slog"
	"time"
)

// Option configures a Manager.
type Option func(*Manager)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(m *Manager) { m.config = cfg }
}

// WithBackend sets where session blobs are kept.
func WithBackend(b Backend) Option {
	return func(m *Manager) { m.backend = b }
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithCookieName sets the session cookie name.
func WithCookieName(name string) Option {
	return func(m *Manager) { m.config.CookieName = name }
}

// WithIdleTimeout sets the blob TTL and cookie Max-Age.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) { m.config.IdleTimeout = d }
}

// WithOnRotate registers a callback invoked after every id rotation.
func WithOnRotate(fn func()) Option {
	return func(m *Manager) { m.onRotate = fn }
}
