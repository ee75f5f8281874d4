// Package logger builds *slog.Logger instances for consolekit services.
//
// New is the single factory. It picks a text or JSON handler, applies static
// attributes and wraps the result with ContextHandler, which runs the
// registered ContextExtractor callbacks on every record. Values logged
// under credential keys (api_token, csrf_token, authorization, cookie)
// are replaced with Redacted. Extractors are how
// request-scoped values (request id, user, current client) end up in log
// lines without being threaded through every call site.
//
// Attribute helpers in attr.go keep key names stable across packages:
//
//	log.WarnContext(ctx, "session blob is corrupt",
//	    logger.Component("session"),
//	    logger.SessionID(id),
//	    logger.Error(err),
//	)
//
// Environment presets (WithEnvironment) select sensible defaults for
// development, staging and production.
package logger
