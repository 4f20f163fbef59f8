// Package dedupe collapses score records to one per (expert, video) key.
//
// The rule is last-write-wins in merge order: when the same key appears more
// than once, the occurrence that comes last survives and keeps its position.
package dedupe

import "github.com/okian/formeval/internal/domain/model"

// Merge concatenates batches in order and removes duplicate keys, keeping
// the last occurrence of each. Inputs are not modified.
func Merge(batches ...[]model.ScoreRecord) []model.ScoreRecord {
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	all := make([]model.ScoreRecord, 0, total)
	for _, b := range batches {
		all = append(all, b...)
	}
	return KeepLast(all)
}

// KeepLast returns records with duplicate keys removed, keeping the last
// occurrence of each key at the position it had.
func KeepLast(records []model.ScoreRecord) []model.ScoreRecord {
	last := make(map[model.Key]int, len(records))
	for i, r := range records {
		last[r.Key()] = i
	}
	if len(last) == len(records) {
		return append([]model.ScoreRecord(nil), records...)
	}
	out := make([]model.ScoreRecord, 0, len(last))
	for i, r := range records {
		if last[r.Key()] == i {
			out = append(out, r)
		}
	}
	return out
}

// Upsert replaces the record with rec's key in place, or appends rec.
// The returned bool reports whether an existing record was replaced.
func Upsert(records []model.ScoreRecord, rec model.ScoreRecord) ([]model.ScoreRecord, bool) {
	out := append([]model.ScoreRecord(nil), records...)
	key := rec.Key()
	for i := range out {
		if out[i].Key() == key {
			out[i] = rec
			return out, true
		}
	}
	return append(out, rec), false
}

// Index answers key membership for a snapshot of records.
type Index struct {
	keys map[model.Key]int
}

// NewIndex indexes records by key.
func NewIndex(records []model.ScoreRecord) *Index {
	idx := &Index{keys: make(map[model.Key]int, len(records))}
	for i, r := range records {
		idx.keys[r.Key()] = i
	}
	return idx
}

// Contains reports whether the key is present.
func (x *Index) Contains(expert, video string) bool {
	_, ok := x.keys[model.Key{Expert: expert, Video: video}]
	return ok
}

// Size returns the number of distinct keys.
func (x *Index) Size() int {
	return len(x.keys)
}
