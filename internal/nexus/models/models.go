package models

import (
	"time"

	"github.com/google/uuid"

	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
)

// ClientState is the per-(client, US state) compliance record. One row per
// (clientID, stateCode); created on first observed activity in a state,
// refreshed on every ingestion, never deleted while the client is active.
type ClientState struct {
	ID                   uuid.UUID      `json:"id"`
	OrgID                id.OrgID       `json:"org_id"`
	ClientID             id.ClientID    `json:"client_id"`
	StateCode            id.StateCode   `json:"state_code"`
	StateName            string         `json:"state_name,omitempty"`
	Status               id.StateStatus `json:"status"`
	ThresholdAmount      float64        `json:"threshold_amount"`
	CurrentAmount        float64        `json:"current_amount"`
	RegistrationRequired bool           `json:"registration_required"`
	RegistrationDate     *time.Time     `json:"registration_date,omitempty"`
	RegistrationNumber   string         `json:"registration_number,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// NexusAlert is the derived signal that a client state crossed or approached
// its threshold. Lifecycle: open -> reviewed -> resolved, one-way. A resolved
// alert is immutable evidence of a historical crossing.
type NexusAlert struct {
	ID              id.AlertID     `json:"id"`
	OrgID           id.OrgID       `json:"org_id"`
	ClientID        id.ClientID    `json:"client_id"`
	StateCode       id.StateCode   `json:"state_code"`
	AlertType       string         `json:"alert_type"`
	Priority        string         `json:"priority"`
	Status          id.AlertStatus `json:"status"`
	Title           string         `json:"title"`
	Description     string         `json:"description,omitempty"`
	CurrentAmount   float64        `json:"current_amount"`
	ThresholdAmount float64        `json:"threshold_amount"`
	PenaltyRisk     float64        `json:"penalty_risk"`
	Deadline        *time.Time     `json:"deadline,omitempty"`
	Active          bool           `json:"active"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
}

// NewClientState builds the first compliance record for a (client, state)
// pair. Status starts compliant; evaluation sets the real value.
func NewClientState(orgID id.OrgID, clientID id.ClientID, stateCode id.StateCode, now time.Time) (*ClientState, error) {
	if !stateCode.Valid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "state code must be two uppercase letters")
	}
	return &ClientState{
		ID:        uuid.New(),
		OrgID:     orgID,
		ClientID:  clientID,
		StateCode: stateCode,
		Status:    id.StateCompliant,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanTransitionTo wraps the one-way lifecycle check with a coded error.
func (a *NexusAlert) CanTransitionTo(next id.AlertStatus) error {
	if !a.Status.CanTransitionTo(next) {
		return dErrors.Newf(dErrors.CodeConflict, "alert cannot move from %s to %s", a.Status, next)
	}
	return nil
}

// ApplyTransition moves the alert to the next status. Must only be called
// after CanTransitionTo returns nil.
func (a *NexusAlert) ApplyTransition(next id.AlertStatus, now time.Time) {
	a.Status = next
	a.UpdatedAt = now
	if next == id.AlertResolved {
		a.ResolvedAt = &now
		a.Active = false
	}
}

// Refresh updates the measured amounts on an existing open alert without
// touching its identity or lifecycle fields.
func (a *NexusAlert) Refresh(currentAmount, thresholdAmount, penaltyRisk float64, now time.Time) {
	a.CurrentAmount = currentAmount
	a.ThresholdAmount = thresholdAmount
	a.PenaltyRisk = penaltyRisk
	a.UpdatedAt = now
}
