package apiclient

import "context"

type requestorContextKey struct{}

// WithContext stores the request-scoped requestor.
func WithContext(ctx context.Context, r *Requestor) context.Context {
	return context.WithValue(ctx, requestorContextKey{}, r)
}

// FromContext returns the requestor stored by WithContext.
func FromContext(ctx context.Context) (*Requestor, bool) {
	r, ok := ctx.Value(requestorContextKey{}).(*Requestor)
	return r, ok && r != nil
}

// MustFromContext is like FromContext but panics when no requestor is stored.
func MustFromContext(ctx context.Context) *Requestor {
	r, ok := FromContext(ctx)
	if !ok {
		panic("apiclient: requestor not found in context")
	}
	return r
}
