package session

import "time"

// Config holds session configuration.
type Config struct {
	CookieName string `env:"SESSION_COOKIE_NAME" envDefault:"console_session"`

	// IdleTimeout is both the cookie Max-Age and the backend TTL of a blob.
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"36h"`

	SecureCookies bool `env:"SESSION_SECURE_COOKIES" envDefault:"false"`

	// Backend selects the storage: memory, redis, s3 or postgres.
	Backend   string `env:"SESSION_BACKEND" envDefault:"memory"`
	KeyPrefix string `env:"SESSION_KEY_PREFIX" envDefault:"session:"`

	// DeleteTimeout bounds the background removal of a superseded blob.
	DeleteTimeout time.Duration `env:"SESSION_DELETE_TIMEOUT" envDefault:"5s"`
}

// DefaultConfig returns the values used when no environment is set.
func DefaultConfig() Config {
	return Config{
		CookieName:    "console_session",
		IdleTimeout:   36 * time.Hour,
		Backend:       "memory",
		KeyPrefix:     "session:",
		DeleteTimeout: 5 * time.Second,
	}
}

// NewFromConfig creates a Manager from cfg. Options are applied after cfg.
func NewFromConfig(cfg Config, opts ...Option) *Manager {
	return New(append([]Option{WithConfig(cfg)}, opts...)...)
}
