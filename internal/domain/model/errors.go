package model

import "errors"

// Sentinel kinds for record validation.
var (
	ErrMissingExpert   = errors.New("missing expert")
	ErrMissingVideo    = errors.New("missing video")
	ErrInvalidLabel    = errors.New("invalid form label")
	ErrScoreOutOfRange = errors.New("score out of range")
)
