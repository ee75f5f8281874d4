package identity

import "errors"

var (
	ErrNoLoginState = errors.New("identity.no_login_state")

	// errRestart aborts the current pass so the chain starts over.
	errRestart = errors.New("identity.restart")
)
