package memory

import (
	"context"
	"sync"

	"veritax/internal/audit"
	id "veritax/pkg/domain"
)

// InMemoryStore keeps events per organization. Used by unit tests and local
// development; ordering matches append order.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.OrgID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.OrgID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.OrgID] = append(s.events[event.OrgID], event)
	return nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, orgID id.OrgID, entityType, entityID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Event
	for _, event := range s.events[orgID] {
		if event.EntityType == entityType && event.EntityID == entityID {
			matched = append(matched, event)
		}
	}
	return matched, nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, orgID id.OrgID, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orgEvents := s.events[orgID]
	start := len(orgEvents) - limit
	if start < 0 {
		start = 0
	}
	// Newest first, matching the postgres store's ORDER BY.
	recent := make([]audit.Event, 0, len(orgEvents)-start)
	for i := len(orgEvents) - 1; i >= start; i-- {
		recent = append(recent, orgEvents[i])
	}
	return recent, nil
}
