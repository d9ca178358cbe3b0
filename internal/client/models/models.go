package models

import (
	"time"

	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
)

// Client is a tenant-owned business entity. Owned exclusively by one
// organization; never hard-deleted, only archived.
type Client struct {
	ID              id.ClientID  `json:"id"`
	OrgID           id.OrgID     `json:"org_id"`
	Name            string       `json:"name"`
	LegalName       string       `json:"legal_name,omitempty"`
	Industry        string       `json:"industry,omitempty"`
	AnnualRevenue   float64      `json:"annual_revenue"`
	RiskLevel       id.RiskLevel `json:"risk_level"`
	QualityScore    float64      `json:"quality_score"`
	PenaltyExposure float64      `json:"penalty_exposure"`
	Active          bool         `json:"active"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// NewClient builds a client from sanitized input.
func NewClient(
	clientID id.ClientID,
	orgID id.OrgID,
	name, legalName, industry string,
	annualRevenue float64,
	riskLevel id.RiskLevel,
	qualityScore, penaltyExposure float64,
	now time.Time,
) (*Client, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client name is required")
	}
	if !riskLevel.Valid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown risk level")
	}
	if penaltyExposure < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "penalty exposure must be non-negative")
	}
	return &Client{
		ID:              clientID,
		OrgID:           orgID,
		Name:            name,
		LegalName:       legalName,
		Industry:        industry,
		AnnualRevenue:   annualRevenue,
		RiskLevel:       riskLevel,
		QualityScore:    qualityScore,
		PenaltyExposure: penaltyExposure,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CanArchive rejects double archival.
func (c *Client) CanArchive() error {
	if !c.Active {
		return dErrors.New(dErrors.CodeConflict, "client is already archived")
	}
	return nil
}

// ApplyArchive soft-archives the client. Its compliance history stays intact.
func (c *Client) ApplyArchive(now time.Time) {
	c.Active = false
	c.UpdatedAt = now
}
