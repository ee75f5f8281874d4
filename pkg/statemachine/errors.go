package statemachine

import (
	"errors"
	"fmt"
)

var ErrNoTransition = errors.New("statemachine.no_transition")

// TransitionError reports an event fired in a state that does not permit it.
type TransitionError struct {
	State string
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("no transition from state %q for event %q", e.State, e.Event)
}

func (e *TransitionError) Is(target error) bool { return target == ErrNoTransition }
