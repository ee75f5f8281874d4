package paging

import (
	"context"

	"github.com/dmitrymomot/consolekit/pkg/apiclient"
)

// Parameter names understood by paginated endpoints.
const (
	ParamLimit     = "limit"
	ParamBefore    = "before"
	ParamAscending = "ascending"
)

// Cursor is the paging block of a page.
type Cursor struct {
	Before *string `json:"before,omitempty"`
	After  *string `json:"after,omitempty"`
}

// Next returns the cursor for the following page, or "" at the end.
func (c Cursor) Next() string {
	if c.Before == nil {
		return ""
	}
	return *c.Before
}

// Page is one page of a collection.
type Page[T any] struct {
	Data   []T    `json:"data"`
	Paging Cursor `json:"paging"`
}

// FetchFunc loads one page for the given parameters.
type FetchFunc[T any] func(ctx context.Context, params apiclient.Params) (Page[T], error)

// Fetcher adapts a GET endpoint of r to a FetchFunc.
func Fetcher[T any](r *apiclient.Requestor, path string) FetchFunc[T] {
	return func(ctx context.Context, params apiclient.Params) (Page[T], error) {
		var page Page[T]
		err := r.Do(ctx, "GET", path, params, &page)
		return page, err
	}
}
