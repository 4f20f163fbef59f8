// Package repository persists score records.
//
// The durable format is a CSV table with the columns
// Expert,Video,Exercise,Form_Label,Score holding at most one row per
// (Expert, Video) key.
package repository

import (
	"context"

	"github.com/okian/formeval/internal/domain/model"
)

// Store provides read/write access to the results table.
type Store interface {
	// Load returns every record, one per key.
	Load(ctx context.Context) ([]model.ScoreRecord, error)
	// Save replaces the whole table with records.
	Save(ctx context.Context, records []model.ScoreRecord) error
	// Exists reports whether a record for (expert, video) is present.
	Exists(ctx context.Context, expert, video string) (bool, error)
	// Upsert replaces the record with the same key or appends it.
	Upsert(ctx context.Context, rec model.ScoreRecord) error
	// ExportFor returns the records of one expert. An empty result is not an error.
	ExportFor(ctx context.Context, expert string) ([]model.ScoreRecord, error)
	// Reset clears the table. Administrative only.
	Reset(ctx context.Context) error
}

// LocalStore is a Store that can run a read-modify-write under its own lock.
type LocalStore interface {
	Store
	// Apply loads the table, replaces it with fn's result and returns what was written.
	Apply(ctx context.Context, fn func([]model.ScoreRecord) []model.ScoreRecord) ([]model.ScoreRecord, error)
}

// SyncReport describes what happened to the remote copy during a write.
type SyncReport struct {
	// Pushed is true when the remote now holds the merged table.
	Pushed bool `json:"pushed"`
	// Pending is true when local changes still wait to be pushed.
	Pending bool `json:"pending"`
	// Degraded is true when the last remote fetch failed and the store runs local-only.
	Degraded bool `json:"degraded"`
	// Warning is a human readable description of a recovered remote failure.
	Warning string `json:"warning,omitempty"`
}

// SyncedStore is a Store backed by a remote copy.
type SyncedStore interface {
	Store
	// Refresh pulls the remote table into the local one. Failures are reported, not returned.
	Refresh(ctx context.Context) SyncReport
	// UpsertSynced is Upsert that also reports the outcome of the remote push.
	UpsertSynced(ctx context.Context, rec model.ScoreRecord) (SyncReport, error)
}

func filterExpert(records []model.ScoreRecord, expert string) []model.ScoreRecord {
	out := make([]model.ScoreRecord, 0)
	for _, r := range records {
		if r.Expert == expert {
			out = append(out, r)
		}
	}
	return out
}
