package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/consolekit/pkg/apiclient"
	"github.com/dmitrymomot/consolekit/pkg/csrf"
	"github.com/dmitrymomot/consolekit/pkg/httpserver"
	"github.com/dmitrymomot/consolekit/pkg/identity"
	"github.com/dmitrymomot/consolekit/pkg/logger"
	"github.com/dmitrymomot/consolekit/pkg/metrics"
	"github.com/dmitrymomot/consolekit/pkg/session"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			logger.SetAsDefault(log)
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	m := metrics.New(metrics.WithNamespace(cfg.Metrics.Namespace))

	sb, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sb.close()
	go sb.sweep(ctx, cfg.SweepInterval, log)

	a := newApp(cfg, log, m, sb)
	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	return srv.Run(ctx, a.routes())
}

type app struct {
	log      *slog.Logger
	metrics  *metrics.Collector
	sessions *session.Manager
	chain    *identity.Chain
	api      *apiclient.Requestor
	guard    *csrf.Guard
	checks   map[string]httpserver.Check
	ceiling  time.Duration
}

func newApp(cfg appConfig, log *slog.Logger, m *metrics.Collector, sb *sessionBackend) *app {
	return &app{
		log:     log,
		metrics: m,
		sessions: session.NewFromConfig(cfg.Session,
			session.WithBackend(sb.backend),
			session.WithLogger(log),
			session.WithOnRotate(m.SessionRotated),
		),
		chain: identity.NewChain(
			identity.WithPublicPaths(cfg.PublicPaths...),
			identity.WithLogger(log),
			identity.WithPopHook(m.LoginStatePopped),
		),
		api: apiclient.NewFromConfig(cfg.API,
			apiclient.WithLogger(log),
			apiclient.WithAttemptHook(m.ObserveAttempt),
		),
		guard:   csrf.New(csrf.WithLogger(log)),
		checks:  sb.checks,
		ceiling: cfg.Watchdog.Ceiling,
	}
}
