package paging

import "errors"

var (
	ErrAlreadyStarted = errors.New("paging.already_started")
	ErrCursorStalled  = errors.New("paging.cursor_stalled")
)
