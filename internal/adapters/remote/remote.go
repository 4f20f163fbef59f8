// Package remote holds adapters for the remote copy of the results table.
//
// A remote object is an opaque byte blob addressed by an identifier and
// guarded by a version string used for optimistic concurrency.
package remote

import "context"

// Object is a fetched remote blob.
type Object struct {
	Content []byte
	Version string
}

// Store is the capability the sync layer needs from a remote backend.
type Store interface {
	// Fetch returns the object or ErrNotFound.
	Fetch(ctx context.Context, id string) (Object, error)
	// Create writes a new object and returns its version. It fails with
	// ErrVersionConflict when the object already exists.
	Create(ctx context.Context, id string, content []byte) (string, error)
	// Update overwrites the object if its version is still expectedVersion,
	// otherwise it fails with ErrVersionConflict.
	Update(ctx context.Context, id string, content []byte, expectedVersion string) (string, error)
}
