package csrf

import "errors"

var (
	ErrInvalidToken = errors.New("csrf.invalid_token")
	ErrNoLoginState = errors.New("csrf.no_login_state")
	ErrBodyTooLarge = errors.New("csrf.body_too_large")
)
