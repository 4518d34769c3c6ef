package usecases

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/samirrijal/siteboundary/internal/core/domain"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Session pairs a BoundaryStore with the mutex that serialises access to it.
type Session struct {
	mu     sync.Mutex
	store  *BoundaryStore
	loaded bool
}

// Do runs fn while holding the session lock.
func (s *Session) Do(fn func(store *BoundaryStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.store)
}

// SessionRegistry hands out one store per session id.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	onChange ChangeListener
}

// NewSessionRegistry creates a registry. onChange, if not nil, is subscribed
// to every store the registry creates.
func NewSessionRegistry(onChange ChangeListener) *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session), onChange: onChange}
}

// ValidateSessionID checks that id is 1-64 characters of [A-Za-z0-9_-].
func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSession, id)
	}
	return nil
}

// Open returns the session for id, creating it on first use.
func (r *SessionRegistry) Open(id string) (*Session, error) {
	if err := ValidateSessionID(id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return sess, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[id]; ok {
		return sess, nil
	}
	// Transport layers may hand over ids that alias a reused request buffer.
	id = strings.Clone(id)
	sess = &Session{store: NewBoundaryStore(id)}
	if r.onChange != nil {
		sess.store.Subscribe(r.onChange)
	}
	r.sessions[id] = sess
	return sess, nil
}

// Lookup returns an existing session without creating one.
func (r *SessionRegistry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Len returns the number of open sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List describes every open session, ordered by id.
func (r *SessionRegistry) List() []domain.SessionInfo {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	infos := make([]domain.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		s.Do(func(store *BoundaryStore) {
			infos = append(infos, store.Info())
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
