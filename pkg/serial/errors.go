package serial

import "errors"

var (
	// ErrAborted indicates a blocked write gave up because a reset is pending.
	// The byte is dropped.
	ErrAborted = errors.New("write aborted by reset")
	// ErrNoData indicates the RX buffer is empty.
	ErrNoData = errors.New("no data")
	// ErrAlreadyArmed indicates events are already delivered to a handler.
	ErrAlreadyArmed = errors.New("already armed")
)
