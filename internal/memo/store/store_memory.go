package store

import (
	"context"
	"sort"
	"sync"

	"veritax/internal/memo/models"
	id "veritax/pkg/domain"
	"veritax/pkg/platform/sentinel"
)

// InMemory keeps memos and their verification history per organization.
type InMemory struct {
	mu            sync.RWMutex
	memos         map[id.MemoID]*models.Memo
	verifications map[id.MemoID][]models.Verification
}

func NewInMemory() *InMemory {
	return &InMemory{
		memos:         make(map[id.MemoID]*models.Memo),
		verifications: make(map[id.MemoID][]models.Verification),
	}
}

func (s *InMemory) Create(_ context.Context, memo *models.Memo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.memos[memo.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *memo
	s.memos[memo.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, orgID id.OrgID, memoID id.MemoID) (*models.Memo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	memo, ok := s.memos[memoID]
	if !ok || memo.OrgID != orgID {
		return nil, sentinel.ErrNotFound
	}
	clone := *memo
	return &clone, nil
}

func (s *InMemory) ListByClient(_ context.Context, orgID id.OrgID, clientID id.ClientID) ([]*models.Memo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.Memo
	for _, memo := range s.memos {
		if memo.OrgID == orgID && memo.ClientID == clientID {
			clone := *memo
			matched = append(matched, &clone)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

// Execute atomically validates and mutates a memo under the store lock.
func (s *InMemory) Execute(
	_ context.Context,
	orgID id.OrgID,
	memoID id.MemoID,
	validate func(*models.Memo) error,
	mutate func(*models.Memo),
) (*models.Memo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	memo, ok := s.memos[memoID]
	if !ok || memo.OrgID != orgID {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(memo); err != nil {
		return nil, err
	}
	mutate(memo)
	clone := *memo
	return &clone, nil
}

// AppendVerification records an integrity check. Append-only.
func (s *InMemory) AppendVerification(_ context.Context, verification models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifications[verification.MemoID] = append(s.verifications[verification.MemoID], verification)
	return nil
}

func (s *InMemory) ListVerifications(_ context.Context, orgID id.OrgID, memoID id.MemoID) ([]models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []models.Verification
	for _, verification := range s.verifications[memoID] {
		if verification.OrgID == orgID {
			matched = append(matched, verification)
		}
	}
	return matched, nil
}
