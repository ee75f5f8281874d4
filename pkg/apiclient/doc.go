// Package apiclient talks JSON to the upstream console API.
//
// A Requestor owns the HTTP client, base URL and retry policy. Each incoming
// request gets its own copy via WithToken so that the Authorization header
// follows that request's login state; SetToken swaps the token when the
// login state is popped mid-request.
//
// Read verbs (GET, DELETE) send parameters as a query string with nil values
// dropped. Write verbs send the parameters verbatim as a JSON body. Only GET
// is retried, only on 504, and only once after a random jitter.
//
// Failures are *Error values tagged with a Kind. Match them with errors.Is
// against the package sentinels:
//
//	err := req.Do(ctx, http.MethodGet, "/users/42", nil, &user)
//	switch {
//	case errors.Is(err, apiclient.ErrNotAuthorized):
//	case errors.Is(err, apiclient.ErrNotFound):
//	}
//
// Request is the continuation form used by older call sites. In legacy mode
// an error is also forwarded to the Notifier unless OnError returns false.
package apiclient
