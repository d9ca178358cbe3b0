package store

import (
	"context"
	"sort"
	"sync"

	"veritax/internal/client/models"
	id "veritax/pkg/domain"
	"veritax/pkg/platform/sentinel"
)

// InMemory keeps clients per organization. Used by unit tests and local
// development.
type InMemory struct {
	mu      sync.RWMutex
	clients map[id.ClientID]*models.Client
}

func NewInMemory() *InMemory {
	return &InMemory{clients: make(map[id.ClientID]*models.Client)}
}

func (s *InMemory) Create(_ context.Context, client *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.clients[client.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *client
	s.clients[client.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, orgID id.OrgID, clientID id.ClientID) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[clientID]
	if !ok || client.OrgID != orgID {
		return nil, sentinel.ErrNotFound
	}
	clone := *client
	return &clone, nil
}

// ListByOrg returns active clients, or every client when includeArchived is
// set, sorted by creation time.
func (s *InMemory) ListByOrg(_ context.Context, orgID id.OrgID, includeArchived bool) ([]*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.Client
	for _, client := range s.clients {
		if client.OrgID != orgID {
			continue
		}
		if !includeArchived && !client.Active {
			continue
		}
		clone := *client
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

// Execute atomically validates and mutates a client under the store lock.
func (s *InMemory) Execute(
	_ context.Context,
	orgID id.OrgID,
	clientID id.ClientID,
	validate func(*models.Client) error,
	mutate func(*models.Client),
) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, ok := s.clients[clientID]
	if !ok || client.OrgID != orgID {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(client); err != nil {
		return nil, err
	}
	mutate(client)
	clone := *client
	return &clone, nil
}
