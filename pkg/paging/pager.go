package paging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/consolekit/pkg/apiclient"
	"github.com/dmitrymomot/consolekit/pkg/logger"
	"github.com/dmitrymomot/consolekit/pkg/statemachine"
)

// State is the lifecycle state of a Pager.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateNewPage  State = "new_page"
	StateFinished State = "finished"
	StateErrored  State = "errored"
)

type event string

const (
	evFetch event = "fetch"
	evPage  event = "page"
	evDone  event = "done"
	evFail  event = "fail"
)

const DefaultPageSize = 100

// PagerOption configures a Pager.
type PagerOption func(*pagerConfig)

type pagerConfig struct {
	pageSize int
	params   apiclient.Params
	log      *slog.Logger
}

// WithPageSize sets the limit sent with every page request.
func WithPageSize(n int) PagerOption {
	return func(c *pagerConfig) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithParams sets extra request parameters. A "limit" here wins over the
// page size; a "before" is ignored.
func WithParams(p apiclient.Params) PagerOption {
	return func(c *pagerConfig) { c.params = p.Clone() }
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) PagerOption {
	return func(c *pagerConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// Pager streams pages of a collection to a callback.
type Pager[T any] struct {
	fetch   FetchFunc[T]
	onPage  func([]T)
	cfg     pagerConfig
	sm      *statemachine.Machine[State, event]
	started atomic.Bool
	stopped atomic.Bool

	mu  sync.Mutex
	err error
}

// NewPager creates a pager calling onPage with each page's items in order.
func NewPager[T any](fetch FetchFunc[T], onPage func([]T), opts ...PagerOption) *Pager[T] {
	cfg := pagerConfig{pageSize: DefaultPageSize, log: logger.Discard()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if onPage == nil {
		onPage = func([]T) {}
	}
	sm := statemachine.New[State, event](StateIdle).
		Permit(StateIdle, evFetch, StateFetching).
		Permit(StateFetching, evPage, StateNewPage).
		Permit(StateFetching, evFail, StateErrored).
		Permit(StateNewPage, evFetch, StateFetching).
		Permit(StateNewPage, evDone, StateFinished).
		Permit(StateNewPage, evFail, StateErrored)
	return &Pager[T]{fetch: fetch, onPage: onPage, cfg: cfg, sm: sm}
}

// Start fetches pages until the collection ends, a fetch fails or Stop is
// called. It returns the fetch error, or nil when finished or stopped.
func (p *Pager[T]) Start(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	params := p.cfg.params.Clone()
	delete(params, ParamBefore)
	if _, ok := params[ParamLimit]; !ok {
		params[ParamLimit] = p.cfg.pageSize
	}

	for page := 1; ; page++ {
		if p.stopped.Load() {
			return nil
		}
		p.transition(evFetch)

		result, err := p.fetch(ctx, params.Clone())
		if p.stopped.Load() {
			return nil
		}
		if err != nil {
			p.setErr(err)
			p.transition(evFail)
			return err
		}

		p.transition(evPage)
		p.onPage(result.Data)

		next := result.Paging.Next()
		if next == "" {
			p.transition(evDone)
			return nil
		}
		if prev, ok := params[ParamBefore].(string); ok && prev == next {
			err := fmt.Errorf("%w: cursor %q repeated on page %d", ErrCursorStalled, next, page)
			p.setErr(err)
			p.transition(evFail)
			return err
		}
		params[ParamBefore] = next
	}
}

// Stop asks a running pager to stop. The page being fetched is discarded.
func (p *Pager[T]) Stop() { p.stopped.Store(true) }

// Stopped reports whether Stop was called.
func (p *Pager[T]) Stopped() bool { return p.stopped.Load() }

// State returns the current pager state.
func (p *Pager[T]) State() State { return p.sm.Current() }

// Err returns the error that moved the pager to StateErrored.
func (p *Pager[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Pager[T]) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *Pager[T]) transition(ev event) {
	if err := p.sm.Fire(ev); err != nil {
		// Only reachable through a programming error.
		p.cfg.log.Error("pager state machine rejected event",
			logger.Component("paging"), logger.Event(string(ev)), logger.Error(err))
	}
}
