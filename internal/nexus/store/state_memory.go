package store

import (
	"context"
	"sort"
	"sync"

	"veritax/internal/nexus/models"
	id "veritax/pkg/domain"
	"veritax/pkg/platform/sentinel"
)

type stateKey struct {
	clientID  id.ClientID
	stateCode id.StateCode
}

// StateInMemory keeps one ClientState per (clientID, stateCode), mirroring
// the unique constraint the Postgres store relies on.
type StateInMemory struct {
	mu     sync.RWMutex
	states map[stateKey]*models.ClientState
}

func NewStateInMemory() *StateInMemory {
	return &StateInMemory{states: make(map[stateKey]*models.ClientState)}
}

// Upsert inserts or replaces the record for the state's (clientID, stateCode)
// pair and returns the stored copy.
func (s *StateInMemory) Upsert(_ context.Context, state *models.ClientState) (*models.ClientState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stateKey{clientID: state.ClientID, stateCode: state.StateCode}
	if existing, ok := s.states[key]; ok {
		// Keep the original identity and creation time.
		state.ID = existing.ID
		state.CreatedAt = existing.CreatedAt
	}
	clone := *state
	s.states[key] = &clone
	copied := clone
	return &copied, nil
}

func (s *StateInMemory) FindByClientAndState(_ context.Context, orgID id.OrgID, clientID id.ClientID, stateCode id.StateCode) (*models.ClientState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[stateKey{clientID: clientID, stateCode: stateCode}]
	if !ok || state.OrgID != orgID {
		return nil, sentinel.ErrNotFound
	}
	clone := *state
	return &clone, nil
}

func (s *StateInMemory) ListByClient(_ context.Context, orgID id.OrgID, clientID id.ClientID) ([]*models.ClientState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.ClientState
	for _, state := range s.states {
		if state.OrgID == orgID && state.ClientID == clientID {
			clone := *state
			matched = append(matched, &clone)
		}
	}
	sortStates(matched)
	return matched, nil
}

// ListByState returns every client state in one US state, used to report the
// clients affected by a statute change.
func (s *StateInMemory) ListByState(_ context.Context, orgID id.OrgID, stateCode id.StateCode) ([]*models.ClientState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.ClientState
	for _, state := range s.states {
		if state.OrgID == orgID && state.StateCode == stateCode {
			clone := *state
			matched = append(matched, &clone)
		}
	}
	sortStates(matched)
	return matched, nil
}

func sortStates(states []*models.ClientState) {
	sort.Slice(states, func(i, j int) bool {
		if states[i].ClientID != states[j].ClientID {
			return states[i].ClientID.String() < states[j].ClientID.String()
		}
		return states[i].StateCode < states[j].StateCode
	})
}
