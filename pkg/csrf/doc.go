// Package csrf rejects state-changing requests that do not echo the session
// CSRF token.
//
// Guard.Protect wraps a route handler. For POST, PUT, PATCH and DELETE it
// reads the csrf_token field from a form or JSON body and compares it with
// the token on the bound login state. A mismatch resets the login state to
// empty and reports ErrInvalidToken to the error handler.
//
// Routes that must accept cross-site posts opt out individually:
//
//	r.Method(http.MethodPost, "/api/beacon", guard.Protect(csrf.Exempt(beacon)))
package csrf
