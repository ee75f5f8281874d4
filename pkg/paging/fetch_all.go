package paging

import (
	"context"

	"github.com/dmitrymomot/consolekit/pkg/apiclient"
)

// Defaults applied by FetchAll before caller parameters.
const (
	FetchAllLimit     = 1000
	FetchAllAscending = false
)

// FetchAll loads every page and returns the concatenated items in page
// order. Caller params override the defaults, except the cursor.
func FetchAll[T any](ctx context.Context, fetch FetchFunc[T], params apiclient.Params) ([]T, error) {
	merged := apiclient.Params{
		ParamLimit:     FetchAllLimit,
		ParamAscending: FetchAllAscending,
	}
	for k, v := range params {
		if k == ParamBefore {
			continue
		}
		merged[k] = v
	}

	var all []T
	p := NewPager(fetch, func(items []T) { all = append(all, items...) }, WithParams(merged))
	if err := p.Start(ctx); err != nil {
		return nil, err
	}
	return all, nil
}
