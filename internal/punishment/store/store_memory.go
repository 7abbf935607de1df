package store

import (
	"context"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"warden/internal/punishment/models"
	"warden/pkg/platform/sentinel"
)

// InMemoryStore keeps punishments in process. Used in tests and local runs.
type InMemoryStore struct {
	mu          sync.RWMutex
	punishments map[uuid.UUID]*models.Punishment
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{punishments: make(map[uuid.UUID]*models.Punishment)}
}

func (s *InMemoryStore) FindActiveByTargetAddress(_ context.Context, addr netip.Addr, now time.Time) ([]*models.Punishment, error) {
	addr = addr.Unmap()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*models.Punishment
	for _, p := range s.punishments {
		if p.Target.Address == addr && !p.Expired(now) {
			active = append(active, clone(p))
		}
	}
	slices.SortFunc(active, func(a, b *models.Punishment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return active, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.Punishment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.punishments[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(p), nil
}

func (s *InMemoryStore) Create(_ context.Context, p *models.Punishment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.punishments[p.ID]; exists {
		return sentinel.ErrConflict
	}
	s.punishments[p.ID] = clone(p)
	return nil
}

func (s *InMemoryStore) Pardon(_ context.Context, id uuid.UUID, pardon models.Pardon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.punishments[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.Pardoned() {
		return sentinel.ErrInvalidState
	}
	p.Pardon = &pardon
	return nil
}

func clone(p *models.Punishment) *models.Punishment {
	c := *p
	if p.Duration != nil {
		d := *p.Duration
		c.Duration = &d
	}
	if p.Pardon != nil {
		pd := *p.Pardon
		c.Pardon = &pd
	}
	return &c
}
