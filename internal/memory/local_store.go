package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Machforo/illora-ai-chieftain/internal/models"
)

type localEntry struct {
	mu   sync.Mutex
	sess *models.Session
}

// LocalStore keeps sessions in process memory. Sessions do not survive a
// restart.
type LocalStore struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	ttl     time.Duration // zero keeps sessions forever
	now     func() time.Time
}

// NewLocalStore creates an in-memory store
func NewLocalStore(ttl time.Duration) *LocalStore {
	return &LocalStore{
		entries: make(map[string]*localEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// entry finds or atomically creates the entry for identity
func (s *LocalStore) entry(identity string, create CreateFunc) *localEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[identity]
	if !ok {
		e = &localEntry{sess: create()}
		s.entries[identity] = e
	}
	return e
}

func (s *LocalStore) expired(sess *models.Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.LastActivity) > s.ttl
}

// GetOrCreate returns a copy of the identity's session
func (s *LocalStore) GetOrCreate(ctx context.Context, identity string, create CreateFunc) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := s.entry(identity, create)

	e.mu.Lock()
	defer e.mu.Unlock()
	if s.expired(e.sess) {
		e.sess = create()
	}
	return e.sess.Clone(), nil
}

// Update applies fn under the identity's lock
func (s *LocalStore) Update(ctx context.Context, identity string, create CreateFunc, fn UpdateFunc) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := s.entry(identity, create)

	e.mu.Lock()
	defer e.mu.Unlock()
	if s.expired(e.sess) {
		e.sess = create()
	}

	working := e.sess.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.LastActivity = s.now()
	e.sess = working
	return working.Clone(), nil
}

// Delete removes a session
func (s *LocalStore) Delete(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, identity)
	return nil
}

// Count returns the number of cached sessions
func (s *LocalStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}
