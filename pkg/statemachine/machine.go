package statemachine

import (
	"fmt"
	"sync"
)

// Hook observes a completed transition.
type Hook[S, E comparable] func(from, to S, event E)

// Machine is a table-driven state machine.
type Machine[S, E comparable] struct {
	mu      sync.RWMutex
	initial S
	current S
	table   map[S]map[E]S
	hooks   []Hook[S, E]
}

// New returns a machine in initial with no transitions.
func New[S, E comparable](initial S) *Machine[S, E] {
	return &Machine[S, E]{
		initial: initial,
		current: initial,
		table:   make(map[S]map[E]S),
	}
}

// Permit allows event to move the machine from one state to another.
// Registering the same pair twice overwrites the target.
func (m *Machine[S, E]) Permit(from S, event E, to S) *Machine[S, E] {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.table[from] == nil {
		m.table[from] = make(map[E]S)
	}
	m.table[from][event] = to
	return m
}

// OnTransition registers a hook called after every transition.
func (m *Machine[S, E]) OnTransition(h Hook[S, E]) *Machine[S, E] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, h)
	return m
}

// Current returns the current state.
func (m *Machine[S, E]) Current() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Is reports whether the machine is in s.
func (m *Machine[S, E]) Is(s S) bool { return m.Current() == s }

// Can reports whether event is permitted in the current state.
func (m *Machine[S, E]) Can(event E) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.table[m.current][event]
	return ok
}

// Fire applies event, returning a *TransitionError when it is not permitted.
func (m *Machine[S, E]) Fire(event E) error {
	m.mu.Lock()
	from := m.current
	to, ok := m.table[from][event]
	if !ok {
		m.mu.Unlock()
		return &TransitionError{State: fmt.Sprint(from), Event: fmt.Sprint(event)}
	}
	m.current = to
	hooks := m.hooks
	m.mu.Unlock()

	for _, h := range hooks {
		h(from, to, event)
	}
	return nil
}

// Reset returns to the initial state without running hooks.
func (m *Machine[S, E]) Reset() {
	m.mu.Lock()
	m.current = m.initial
	m.mu.Unlock()
}
