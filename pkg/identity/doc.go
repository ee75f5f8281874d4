// Package identity resolves the signed-in identity of a request.
//
// A Chain runs a fixed sequence of steps against the remote API: user
// (with permissions and memberships), current client, organization, API
// token detail and client counts. Each step declares which failures pop
// the login state back to its parent, which ones only clear the field it
// resolves, and which ones fail the request. When no parent is left to
// pop to, the login state is degraded to logged out instead of failing.
//
// Basic usage:
//
//	chain := identity.NewChain(identity.WithPublicPaths("/healthz", "/metrics"))
//	r.Use(identity.Middleware(chain, requestor, func(r *apiclient.Requestor) identity.API {
//		return resources.NewAPI(r)
//	}))
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		id := identity.MustFromContext(r.Context())
//		if !id.IsLoggedIn() {
//			// ...
//		}
//	}
package identity
