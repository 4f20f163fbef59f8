package session

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/okian/formeval/internal/domain/queue"
)

// Manager owns one State per rater identity.
type Manager struct {
	mu     sync.RWMutex
	states map[string]*State
	// gen advances on every reset so a queue built before it is discarded.
	gen uint64

	flight singleflight.Group
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{states: make(map[string]*State)}
}

// GetOrCreate returns the rater's State, calling build to create the queue
// the first time the rater is seen. Concurrent first requests for the same
// rater share one build; build runs outside the manager lock so other raters
// are not held up. created reports whether this call made the State.
func (m *Manager) GetOrCreate(expert string, build func() (queue.SessionQueue, error)) (st *State, created bool, err error) {
	m.mu.RLock()
	st, ok := m.states[expert]
	m.mu.RUnlock()
	if ok {
		return st, false, nil
	}

	var made bool
	v, err, _ := m.flight.Do(expert, func() (any, error) {
		st, fresh, err := m.create(expert, build)
		made = fresh
		return st, err
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*State), made, nil
}

func (m *Manager) create(expert string, build func() (queue.SessionQueue, error)) (*State, bool, error) {
	for {
		m.mu.RLock()
		st, ok := m.states[expert]
		gen := m.gen
		m.mu.RUnlock()
		if ok {
			return st, false, nil
		}

		q, err := build()
		if err != nil {
			return nil, false, err
		}

		m.mu.Lock()
		if m.gen == gen {
			st = NewState(expert, q)
			m.states[expert] = st
			m.mu.Unlock()
			return st, true, nil
		}
		m.mu.Unlock()
	}
}

// Get returns the rater's State or ErrNoSession.
func (m *Manager) Get(expert string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[expert]
	if !ok {
		return nil, ErrNoSession
	}
	return st, nil
}

// Reset drops the rater's State. The next GetOrCreate builds a fresh queue.
func (m *Manager) Reset(expert string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, expert)
	m.gen++
}

// ResetAll drops every State.
func (m *Manager) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[string]*State)
	m.gen++
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

// Active returns the number of sessions that still have items left.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, st := range m.states {
		if !st.Complete() {
			n++
		}
	}
	return n
}
