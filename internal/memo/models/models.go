package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
)

// Memo is a compliance memo for one client. Sealing freezes its content:
// once SEALED, the content fields never change and the stored hash is the
// evidence.
//
// Revision chains run through SupersedesMemoID and must stay acyclic; the
// service checks the chain on create.
type Memo struct {
	ID               id.MemoID       `json:"id"`
	OrgID            id.OrgID        `json:"org_id"`
	ClientID         id.ClientID     `json:"client_id"`
	MemoType         id.MemoType     `json:"memo_type"`
	Title            string          `json:"title"`
	Sections         json.RawMessage `json:"sections,omitempty"`
	Conclusion       string          `json:"conclusion,omitempty"`
	Recommendations  string          `json:"recommendations,omitempty"`
	SupersedesMemoID *id.MemoID      `json:"supersedes_memo_id,omitempty"`
	Status           id.MemoStatus   `json:"status"`
	Hash             string          `json:"hash,omitempty"`
	SealedAt         *time.Time      `json:"sealed_at,omitempty"`
	SealedBy         *id.UserID      `json:"sealed_by,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Verification is one immutable entry of a memo's integrity-check history.
type Verification struct {
	ID          uuid.UUID       `json:"id"`
	MemoID      id.MemoID       `json:"memo_id"`
	OrgID       id.OrgID        `json:"org_id"`
	Status      id.VerifyStatus `json:"status"`
	RequestedBy id.UserID       `json:"requested_by"`
	CheckedAt   time.Time       `json:"checked_at"`
}

func NewMemo(
	memoID id.MemoID,
	orgID id.OrgID,
	clientID id.ClientID,
	memoType id.MemoType,
	title string,
	sections json.RawMessage,
	conclusion, recommendations string,
	supersedes *id.MemoID,
	now time.Time,
) (*Memo, error) {
	if !memoType.Valid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown memo type")
	}
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "memo title is required")
	}
	if memoType == id.MemoRevised && supersedes == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "a revised memo must supersede another memo")
	}
	return &Memo{
		ID:               memoID,
		OrgID:            orgID,
		ClientID:         clientID,
		MemoType:         memoType,
		Title:            title,
		Sections:         sections,
		Conclusion:       conclusion,
		Recommendations:  recommendations,
		SupersedesMemoID: supersedes,
		Status:           id.MemoDraft,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// IsSealed reports whether the memo's content is frozen.
func (m *Memo) IsSealed() bool {
	return m.Status == id.MemoSealed
}

// CanSeal checks the DRAFT -> SEALED transition.
func (m *Memo) CanSeal() error {
	if m.IsSealed() {
		return dErrors.New(dErrors.CodeConflict, "memo is already sealed")
	}
	return nil
}

// CanMutate rejects content changes on a sealed memo.
func (m *Memo) CanMutate() error {
	if m.IsSealed() {
		return dErrors.New(dErrors.CodeConflict, "sealed memo content is immutable")
	}
	return nil
}

// ApplySeal freezes the memo. Must only be called after CanSeal returns nil.
func (m *Memo) ApplySeal(hash string, by id.UserID, now time.Time) {
	m.Status = id.MemoSealed
	m.Hash = hash
	m.SealedAt = &now
	m.SealedBy = &by
	m.UpdatedAt = now
}
