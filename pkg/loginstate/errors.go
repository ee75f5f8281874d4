package loginstate

import "errors"

var (
	// ErrNoParent is the panic value cause when Pop is called on a root state.
	ErrNoParent      = errors.New("loginstate.no_parent")
	ErrTokenGenerate = errors.New("loginstate.token_generation_failed")
)
