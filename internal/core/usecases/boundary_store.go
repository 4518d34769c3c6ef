package usecases

import (
	"time"

	"github.com/samirrijal/siteboundary/internal/core/domain"
)

// ChangeListener is called synchronously after every Set or Clear.
type ChangeListener func(change domain.BoundaryChange)

// BoundaryStore holds the single active polygon of one session. It is not
// safe for concurrent use; SessionRegistry guards each store with a mutex.
type BoundaryStore struct {
	sessionID string
	polygon   *domain.BoundaryPolygon
	revision  int64
	updatedAt time.Time
	last      domain.BoundaryChange
	listeners map[int]ChangeListener
	nextID    int
	now       func() time.Time
}

// NewBoundaryStore creates an empty store for a session.
func NewBoundaryStore(sessionID string) *BoundaryStore {
	return &BoundaryStore{
		sessionID: sessionID,
		listeners: make(map[int]ChangeListener),
		now:       time.Now,
	}
}

// Subscribe registers l and returns a function that removes it.
func (s *BoundaryStore) Subscribe(l ChangeListener) func() {
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() { delete(s.listeners, id) }
}

// Set replaces the active polygon unconditionally.
func (s *BoundaryStore) Set(p domain.BoundaryPolygon) {
	cp := p.Clone()
	s.polygon = &cp
	s.bump(false)
}

// Get returns a copy of the active polygon, or false when none is set.
func (s *BoundaryStore) Get() (domain.BoundaryPolygon, bool) {
	if s.polygon == nil {
		return domain.BoundaryPolygon{}, false
	}
	return s.polygon.Clone(), true
}

// Clear removes the active polygon. Clearing an empty store still notifies.
func (s *BoundaryStore) Clear() {
	s.polygon = nil
	s.bump(true)
}

// Restore loads persisted state without notifying listeners. A cleared row
// restores the revision with no polygon.
func (s *BoundaryStore) Restore(stored domain.StoredBoundary) {
	s.revision = stored.Revision
	s.updatedAt = stored.UpdatedAt
	s.last = domain.BoundaryChange{SessionID: s.sessionID, Revision: stored.Revision, Cleared: stored.Cleared, At: stored.UpdatedAt}
	if stored.Cleared {
		s.polygon = nil
		return
	}
	cp := stored.Polygon.Clone()
	s.polygon = &cp
	last := cp.Clone()
	s.last.Polygon = &last
}

// Revision counts mutations since the session started.
func (s *BoundaryStore) Revision() int64 {
	return s.revision
}

// LastChange returns the most recent change, zero if the store was never mutated.
func (s *BoundaryStore) LastChange() domain.BoundaryChange {
	return s.last
}

// Info describes the store for session listings.
func (s *BoundaryStore) Info() domain.SessionInfo {
	return domain.SessionInfo{
		ID:          s.sessionID,
		HasBoundary: s.polygon != nil,
		Revision:    s.revision,
		UpdatedAt:   s.updatedAt,
	}
}

func (s *BoundaryStore) bump(cleared bool) {
	s.revision++
	s.updatedAt = s.now().UTC()

	change := domain.BoundaryChange{
		SessionID: s.sessionID,
		Revision:  s.revision,
		Cleared:   cleared,
		At:        s.updatedAt,
	}
	if s.polygon != nil {
		cp := s.polygon.Clone()
		change.Polygon = &cp
	}
	s.last = change

	for _, l := range s.listeners {
		l(change)
	}
}
