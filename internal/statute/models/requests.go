package models

import (
	"encoding/json"
	"strings"
	"time"

	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
)

// CreateOverrideRequest is the wire shape for entering a statute override.
// Payloads arrive as raw JSON and are decoded against the change type.
type CreateOverrideRequest struct {
	StateCode     string          `json:"stateCode"`
	TaxType       string          `json:"taxType"`
	ChangeType    string          `json:"changeType"`
	PreviousValue json.RawMessage `json:"previousValue,omitempty"`
	NewValue      json.RawMessage `json:"newValue"`
	EffectiveDate time.Time       `json:"effectiveDate"`
	Source        string          `json:"source"`
	Citation      string          `json:"citation,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// Normalize trims free-text fields and uppercases identifiers.
func (r *CreateOverrideRequest) Normalize() {
	r.StateCode = strings.ToUpper(strings.TrimSpace(r.StateCode))
	r.TaxType = strings.ToUpper(strings.TrimSpace(r.TaxType))
	r.ChangeType = strings.ToUpper(strings.TrimSpace(r.ChangeType))
	r.Source = strings.TrimSpace(r.Source)
	r.Citation = strings.TrimSpace(r.Citation)
	r.Notes = strings.TrimSpace(r.Notes)
}

// Validate checks wire-level requirements before the domain constructor runs.
func (r *CreateOverrideRequest) Validate() error {
	if r.StateCode == "" {
		return dErrors.New(dErrors.CodeValidation, "stateCode is required")
	}
	if !id.StateCode(r.StateCode).Valid() {
		return dErrors.New(dErrors.CodeValidation, "stateCode must be two uppercase letters")
	}
	if !id.TaxType(r.TaxType).Valid() {
		return dErrors.New(dErrors.CodeValidation, "unknown taxType")
	}
	if !id.ChangeType(r.ChangeType).Valid() {
		return dErrors.New(dErrors.CodeValidation, "unknown changeType")
	}
	if len(r.NewValue) == 0 {
		return dErrors.New(dErrors.CodeValidation, "newValue is required")
	}
	if r.EffectiveDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "effectiveDate is required")
	}
	if r.Source == "" {
		return dErrors.New(dErrors.CodeValidation, "source is required")
	}
	return nil
}
