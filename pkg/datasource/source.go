package datasource

import (
	"context"
	"fmt"
	"sync"
)

// Source is a lazily fetched, idempotent value.
type Source[T any] struct {
	fetch func(ctx context.Context) (T, error)
	start sync.Once
	done  chan struct{}

	value T
	err   error
}

// New returns a Source that calls fetch at most once.
func New[T any](fetch func(ctx context.Context) (T, error)) *Source[T] {
	return &Source[T]{fetch: fetch, done: make(chan struct{})}
}

// Ready returns a resolved Source holding v.
func Ready[T any](v T) *Source[T] {
	s := &Source[T]{value: v, done: make(chan struct{})}
	s.start.Do(func() {})
	close(s.done)
	return s
}

// Get starts the fetch if needed and waits for it. Cancelling ctx abandons
// this wait only; the fetch keeps running for other callers.
func (s *Source[T]) Get(ctx context.Context) (T, error) {
	s.trigger(ctx)
	select {
	case <-s.done:
		return s.value, s.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Prefetch starts the fetch without waiting for it.
func (s *Source[T]) Prefetch(ctx context.Context) {
	s.trigger(ctx)
}

// Subscribe calls fn with the result once resolved, synchronously when the
// Source already is.
func (s *Source[T]) Subscribe(ctx context.Context, fn func(T, error)) {
	s.trigger(ctx)
	select {
	case <-s.done:
		fn(s.value, s.err)
	default:
		go func() {
			<-s.done
			fn(s.value, s.err)
		}()
	}
}

// Resolved reports whether the fetch has completed.
func (s *Source[T]) Resolved() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Source[T]) trigger(ctx context.Context) {
	s.start.Do(func() {
		ctx := context.WithoutCancel(ctx)
		go func() {
			defer close(s.done)
			defer func() {
				if r := recover(); r != nil {
					s.err = fmt.Errorf("%w: %v", ErrFetchPanicked, r)
				}
			}()
			s.value, s.err = s.fetch(ctx)
		}()
	})
}
