package service

import "errors"

// Sentinel error kinds returned by the Service.
var (
	ErrInvalidDraft  = errors.New("invalid draft")
	ErrInvalidExpert = errors.New("invalid expert")
	ErrAdminDisabled = errors.New("admin mode disabled")
	ErrNoSession     = errors.New("no session")
)
