package remote

import "errors"

// Sentinel kinds for remote store errors.
var (
	ErrNotFound        = errors.New("remote object not found")
	ErrVersionConflict = errors.New("remote version conflict")
	ErrUnauthorized    = errors.New("remote store rejected credentials")
	ErrUnavailable     = errors.New("remote store unavailable")
)
