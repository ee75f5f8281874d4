package datasource

import "errors"

var ErrFetchPanicked = errors.New("datasource.fetch_panicked")
