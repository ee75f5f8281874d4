package loginstate

import (
	"fmt"
	"sync"
)

// Binding is the request-scoped holder of the current State.
// It is safe for concurrent use.
type Binding struct {
	mu        sync.RWMutex
	current   State
	listeners []func(State)
}

// NewBinding binds s as the current state.
func NewBinding(s State) *Binding {
	return &Binding{current: s}
}

// Current returns the bound state.
func (b *Binding) Current() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Subscribe registers fn to be called with the new state after every swap.
func (b *Binding) Subscribe(fn func(State)) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

// Replace swaps the current state for s.
func (b *Binding) Replace(s State) {
	b.mu.Lock()
	b.current = s
	listeners := b.listeners
	b.mu.Unlock()
	notify(listeners, s)
}

// Update replaces the current state with fn(current) atomically.
func (b *Binding) Update(fn func(State) State) State {
	b.mu.Lock()
	next := fn(b.current)
	b.current = next
	listeners := b.listeners
	b.mu.Unlock()
	notify(listeners, next)
	return next
}

// CanPop reports whether the bound state has a parent to return to.
func (b *Binding) CanPop() bool {
	return b.Current().HasParent()
}

// Pop makes the parent of the current state current and returns it.
// Popping a root state is a programming error and panics.
func (b *Binding) Pop() State {
	b.mu.Lock()
	if b.current.Parent == nil {
		b.mu.Unlock()
		panic(fmt.Errorf("%w: pop called on a root login state", ErrNoParent))
	}
	next := *b.current.Parent
	b.current = next
	listeners := b.listeners
	b.mu.Unlock()
	notify(listeners, next)
	return next
}

// Push makes child current with the current state as its parent.
// An empty child CSRF token inherits the current one.
func (b *Binding) Push(child State) State {
	return b.Update(func(cur State) State {
		parent := cur
		child.Parent = &parent
		if child.CSRFToken == "" {
			child.CSRFToken = cur.CSRFToken
		}
		return child
	})
}

// Reset drops everything, including the CSRF token.
func (b *Binding) Reset() {
	b.Replace(State{})
}

func notify(listeners []func(State), s State) {
	for _, fn := range listeners {
		fn(s)
	}
}
