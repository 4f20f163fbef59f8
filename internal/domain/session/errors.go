package session

import "errors"

// Sentinel kinds for session state.
var (
	ErrSessionComplete = errors.New("session complete")
	ErrStaleIndex      = errors.New("stale queue index")
	ErrNoSession       = errors.New("no session for rater")
)
