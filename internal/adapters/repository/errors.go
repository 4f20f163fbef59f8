package repository

import "errors"

// Sentinel kinds for score store errors.
var (
	ErrStoreCorruption = errors.New("score table corrupt")
	ErrLockTimeout     = errors.New("score table lock not acquired")
	ErrInvalidRecord   = errors.New("invalid score record")
)
