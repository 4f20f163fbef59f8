// Package session keeps the per-rater queue and cursor between requests.
//
// A State is process local and not durable; durability lives in the score
// store. States are created lazily per rater identity by a Manager and are
// never shared between raters.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/formeval/internal/domain/model"
	"github.com/okian/formeval/internal/domain/queue"
)

// Draft holds the in-progress answer for the current item.
type Draft struct {
	Label model.FormLabel `json:"form_label"`
	Score int             `json:"score"`
}

// State is one rater's queue and cursor. Invariant: 0 <= index <= queue.Len().
type State struct {
	mu        sync.Mutex
	id        uuid.UUID
	expert    string
	startedAt time.Time
	queue     queue.SessionQueue
	index     int
	draft     Draft
}

// NewState starts a session over q.
func NewState(expert string, q queue.SessionQueue) *State {
	return &State{
		id:        uuid.New(),
		expert:    expert,
		startedAt: time.Now().UTC(),
		queue:     q,
		draft:     DefaultDraft(),
	}
}

// DefaultDraft is the answer shown before the rater touches the controls.
func DefaultDraft() Draft {
	return Draft{Label: model.GoodForm, Score: 75}
}

// ID identifies this session instance.
func (s *State) ID() uuid.UUID { return s.id }

// Expert returns the rater identity.
func (s *State) Expert() string { return s.expert }

// StartedAt returns when the session was created.
func (s *State) StartedAt() time.Time { return s.startedAt }

// Current returns the item under the cursor, or false once complete.
func (s *State) Current() (model.CatalogItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.At(s.index)
}

// Index returns the cursor.
func (s *State) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Len returns the queue length.
func (s *State) Len() int {
	return s.queue.Len()
}

// Complete reports whether every queued item has been handled.
func (s *State) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index >= s.queue.Len()
}

// Advance moves the cursor forward by one and resets the draft.
func (s *State) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceLocked()
}

// AdvanceFrom advances only if the cursor is still at from. A second submit
// event for an item that was already handled gets ErrStaleIndex instead of
// skipping the next item.
func (s *State) AdvanceFrom(from int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != from {
		return ErrStaleIndex
	}
	return s.advanceLocked()
}

func (s *State) advanceLocked() error {
	if s.index >= s.queue.Len() {
		return ErrSessionComplete
	}
	s.index++
	s.draft = DefaultDraft()
	return nil
}

// Draft returns the in-progress answer.
func (s *State) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft replaces the in-progress answer.
func (s *State) SetDraft(d Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = d
}

// Snapshot is a consistent copy of a State for display.
type Snapshot struct {
	ID        string             `json:"session_id"`
	Expert    string             `json:"expert"`
	StartedAt time.Time          `json:"started_at"`
	Index     int                `json:"index"`
	Total     int                `json:"total"`
	Current   *model.CatalogItem `json:"current,omitempty"`
	Draft     Draft              `json:"draft"`
	Complete  bool               `json:"complete"`
}

// Snapshot copies the state under its lock.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:        s.id.String(),
		Expert:    s.expert,
		StartedAt: s.startedAt,
		Index:     s.index,
		Total:     s.queue.Len(),
		Draft:     s.draft,
		Complete:  s.index >= s.queue.Len(),
	}
	if item, ok := s.queue.At(s.index); ok {
		snap.Current = &item
	}
	return snap
}
