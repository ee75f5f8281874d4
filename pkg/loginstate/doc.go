// Package loginstate models who a console session is acting as.
//
// A State is an immutable snapshot: user, selected client (team),
// organization, upstream API token and the session CSRF token. States form a
// stack through Parent, which is how elevated or impersonated sessions fall
// back to the identity that started them.
//
// A Binding holds the current State for one request. Mutations replace the
// snapshot, and Pop swaps in the parent. Subscribers are notified of every
// swap, which is how the request-scoped API requestor learns about a new
// token mid-request.
package loginstate
