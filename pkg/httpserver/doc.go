// Package httpserver runs the console HTTP server with graceful shutdown.
//
// Run serves until ctx is cancelled, then drains in-flight requests for at
// most the shutdown timeout. Signal handling belongs to the caller:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// Readiness returns a handler reporting named dependency probes as JSON.
package httpserver
