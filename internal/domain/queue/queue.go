// Package queue builds the randomized per-rater work order over a catalog.
package queue

import (
	"math/rand/v2"

	"github.com/okian/formeval/internal/domain/model"
)

// SessionQueue is a fixed, ordered sequence of catalog items for one rater
// session. It is built once and never reshuffled.
type SessionQueue struct {
	Expert string
	items  []model.CatalogItem
}

// New wraps items in a queue for expert without shuffling. The slice is copied.
func New(expert string, items []model.CatalogItem) SessionQueue {
	return SessionQueue{Expert: expert, items: append([]model.CatalogItem(nil), items...)}
}

// Len returns the number of items in q.
func (q SessionQueue) Len() int { return len(q.items) }

// At returns the item at i and whether i is in range.
func (q SessionQueue) At(i int) (model.CatalogItem, bool) {
	if i < 0 || i >= len(q.items) {
		return model.CatalogItem{}, false
	}
	return q.items[i], true
}

// Items returns a copy of the queued items in order.
func (q SessionQueue) Items() []model.CatalogItem {
	return append([]model.CatalogItem(nil), q.items...)
}

// VideoNames returns the video names in queue order.
func (q SessionQueue) VideoNames() []string {
	names := make([]string, len(q.items))
	for i, item := range q.items {
		names[i] = item.VideoName
	}
	return names
}

// Build returns a uniformly random permutation of the catalog items whose
// video name is not in alreadyScored. The catalog slice is not modified. An
// empty result is a valid, already complete queue.
func Build(catalog []model.CatalogItem, expert string, alreadyScored map[string]struct{}, opts ...Option) SessionQueue {
	b := builder{shuffle: rand.Shuffle}
	for _, opt := range opts {
		opt(&b)
	}

	remaining := make([]model.CatalogItem, 0, len(catalog))
	for _, item := range catalog {
		if _, done := alreadyScored[item.VideoName]; done {
			continue
		}
		remaining = append(remaining, item)
	}
	b.shuffle(len(remaining), func(i, j int) {
		remaining[i], remaining[j] = remaining[j], remaining[i]
	})
	return SessionQueue{Expert: expert, items: remaining}
}

// ScoredSet collects the video names already rated by expert.
func ScoredSet(records []model.ScoreRecord, expert string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, r := range records {
		if r.Expert == expert {
			set[r.Video] = struct{}{}
		}
	}
	return set
}
