package catalog

import "errors"

// Sentinel kinds for catalog loading. Both are fatal for a session.
var (
	ErrCatalogNotFound = errors.New("catalog not found")
	ErrCatalogSchema   = errors.New("catalog schema error")
)
