package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/consolekit/pkg/httpserver"
	"github.com/dmitrymomot/consolekit/pkg/logger"
	"github.com/dmitrymomot/consolekit/pkg/pg"
	"github.com/dmitrymomot/consolekit/pkg/redis"
	"github.com/dmitrymomot/consolekit/pkg/session"
)

// sessionBackend is the storage selected by SESSION_BACKEND together with
// its readiness checks and teardown.
type sessionBackend struct {
	backend session.Backend
	checks  map[string]httpserver.Check
	close   func()
}

func openBackend(ctx context.Context, cfg appConfig, log *slog.Logger) (*sessionBackend, error) {
	sb := &sessionBackend{checks: map[string]httpserver.Check{}, close: func() {}}

	switch cfg.Session.Backend {
	case "", "memory":
		sb.backend = session.NewMemoryBackend()

	case "redis":
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		sb.backend = session.NewRedisBackend(client, cfg.Session.KeyPrefix)
		sb.checks["redis"] = redis.Healthcheck(client)
		sb.close = func() { _ = client.Close() }

	case "s3":
		backend, err := session.NewS3Backend(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		sb.backend = backend

	case "postgres":
		pool, err := pg.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		sb.backend = session.NewPostgresBackend(pool)
		sb.checks["postgres"] = pg.Healthcheck(pool)
		sb.close = pool.Close

	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	log.InfoContext(ctx, "session backend ready", logger.Component("session"), slog.String("backend", cfg.Session.Backend))
	return sb, nil
}

// sweep removes expired Postgres sessions every interval until ctx ends.
// Other backends expire blobs on their own.
func (sb *sessionBackend) sweep(ctx context.Context, interval time.Duration, log *slog.Logger) {
	pgb, ok := sb.backend.(*session.PostgresBackend)
	if !ok || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pgb.DeleteExpired(ctx)
			if err != nil {
				log.WarnContext(ctx, "session sweep failed", logger.Component("session"), logger.Error(err))
				continue
			}
			log.DebugContext(ctx, "expired sessions removed", logger.Component("session"), slog.Int64("count", n))
		}
	}
}
