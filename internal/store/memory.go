package store

import (
	"context"
	"sync"
	"time"

	"empathos.app/relay/internal/model"
)

type memorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

type memoryEntry struct {
	sess      *model.Session
	expiresAt time.Time
}

// NewMemorySessionStore keeps sessions in process memory. A zero ttl never expires.
func NewMemorySessionStore(ttl time.Duration) SessionStore {
	return &memorySessionStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *memorySessionStore) Get(_ context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || s.expired(entry) {
		return nil, ErrNotFound
	}
	return entry.sess.Clone(), nil
}

func (s *memorySessionStore) Save(_ context.Context, sess *model.Session) error {
	entry := memoryEntry{sess: sess.Clone()}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = entry
	s.sweep()
	return nil
}

func (s *memorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *memorySessionStore) Close() error {
	return nil
}

func (s *memorySessionStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && s.now().After(e.expiresAt)
}

// sweep drops expired sessions. Caller holds the write lock.
func (s *memorySessionStore) sweep() {
	for id, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, id)
		}
	}
}
