package store

import (
	"context"
	"sync"
	"time"

	"warden/internal/account/models"
	"warden/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in process. Expired entries are replaced on
// the next refresh rather than swept.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]models.Session)}
}

func (s *InMemoryStore) RefreshOrCreate(_ context.Context, identity models.Identity, now time.Time, ttl time.Duration) (*models.Session, error) {
	key := identity.Key()
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[key]
	if !ok || session.Expired(now) {
		session = models.Session{Key: key, CreatedAt: now}
	}
	session.UUID = identity.UUID
	session.Address = identity.Address
	session.LastSeenAt = now
	session.ExpiresAt = now.Add(ttl)
	s.sessions[key] = session

	out := session
	return &out, nil
}

func (s *InMemoryStore) Find(_ context.Context, key string, now time.Time) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[key]
	if !ok || session.Expired(now) {
		return nil, sentinel.ErrNotFound
	}
	return &session, nil
}
