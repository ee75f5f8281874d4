// Package statemachine is a small, concurrency-safe finite state machine
// keyed by comparable state and event types.
//
//	m := statemachine.New[State, Event](Idle).
//	    Permit(Idle, Fetch, Fetching).
//	    Permit(Fetching, Fail, Errored)
//	if err := m.Fire(Fetch); err != nil {
//	    // statemachine.ErrNoTransition
//	}
//
// Transition hooks run after the state has changed, outside the lock, in
// registration order.
package statemachine
