package main

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/consolekit/pkg/apiclient"
	"github.com/dmitrymomot/consolekit/pkg/config"
	"github.com/dmitrymomot/consolekit/pkg/httpserver"
	"github.com/dmitrymomot/consolekit/pkg/logger"
	"github.com/dmitrymomot/consolekit/pkg/loginstate"
	"github.com/dmitrymomot/consolekit/pkg/metrics"
	"github.com/dmitrymomot/consolekit/pkg/pg"
	"github.com/dmitrymomot/consolekit/pkg/redis"
	"github.com/dmitrymomot/consolekit/pkg/requestid"
	"github.com/dmitrymomot/consolekit/pkg/session"
	"github.com/dmitrymomot/consolekit/pkg/watchdog"
)

type appConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	Service  string `env:"APP_NAME" envDefault:"consoled"`
	LogLevel string `env:"LOG_LEVEL"`

	// PublicPaths are served without identity resolution.
	PublicPaths   []string      `env:"PUBLIC_PATHS" envSeparator:"," envDefault:"/api/beacon"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"15m"`

	HTTP     httpserver.Config
	Session  session.Config
	API      apiclient.Config
	Redis    redis.Config
	Postgres pg.Config
	S3       session.S3Config
	Watchdog watchdog.Config
	Metrics  metrics.Config
}

func loadConfig() (appConfig, error) {
	var cfg appConfig
	err := config.Load(&cfg)
	return cfg, err
}

func newLogger(cfg appConfig) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, cfg.Service),
		logger.WithContextExtractors(requestid.LoggerExtractor(), loginstate.LoggerExtractor()),
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevelName(cfg.LogLevel))
	}
	return logger.New(opts...)
}
