// Package requestid tags every request with an identifier.
//
// The id is taken from the incoming X-Request-ID header when it looks
// safe, and generated otherwise. It is echoed on the response, stored in
// the request context and picked up by the logger through
// LoggerExtractor.
//
//	r.Use(requestid.Middleware)
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
package requestid
