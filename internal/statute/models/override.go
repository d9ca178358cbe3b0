package models

import (
	"encoding/json"
	"time"

	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
)

// Override is a firm-entered correction to the regulatory knowledge base.
//
// Invariants:
//   - Status transitions: PENDING → VALIDATED only, one-way
//   - A PENDING override never influences threshold evaluation or memos;
//     stores enforce this by excluding non-VALIDATED rows from the queries
//     the evaluation engine uses
//   - OrgID is immutable after construction
type Override struct {
	ID            id.OverrideID     `json:"id"`
	OrgID         id.OrgID          `json:"org_id"`
	StateCode     id.StateCode      `json:"state_code"`
	TaxType       id.TaxType        `json:"tax_type"`
	ChangeType    id.ChangeType     `json:"change_type"`
	PreviousValue ChangePayload     `json:"previous_value"`
	NewValue      ChangePayload     `json:"new_value"`
	EffectiveDate time.Time         `json:"effective_date"`
	Source        string            `json:"source"`
	Citation      string            `json:"citation"`
	Notes         string            `json:"notes,omitempty"`
	Status        id.OverrideStatus `json:"status"`
	EnteredBy     id.UserID         `json:"entered_by"`
	ValidatedBy   *id.UserID        `json:"validated_by,omitempty"`
	ValidatedAt   *time.Time        `json:"validated_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func NewOverride(
	overrideID id.OverrideID,
	orgID id.OrgID,
	stateCode id.StateCode,
	taxType id.TaxType,
	changeType id.ChangeType,
	previous, next ChangePayload,
	effectiveDate time.Time,
	source, citation, notes string,
	enteredBy id.UserID,
	now time.Time,
) (*Override, error) {
	if !stateCode.Valid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "state code must be two uppercase letters")
	}
	if !taxType.Valid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown tax type")
	}
	if !changeType.Valid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown change type")
	}
	if next == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "new value payload is required")
	}
	if next.ChangeType() != changeType {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "new value payload does not match change type")
	}
	if effectiveDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "effective date is required")
	}
	if source == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "source is required")
	}
	return &Override{
		ID:            overrideID,
		OrgID:         orgID,
		StateCode:     stateCode,
		TaxType:       taxType,
		ChangeType:    changeType,
		PreviousValue: previous,
		NewValue:      next,
		EffectiveDate: effectiveDate,
		Source:        source,
		Citation:      citation,
		Notes:         notes,
		Status:        id.OverridePending,
		EnteredBy:     enteredBy,
		CreatedAt:     now,
	}, nil
}

// IsValidated reports whether the override is authoritative.
func (o *Override) IsValidated() bool {
	return o.Status == id.OverrideValidated
}

// CanValidate checks the PENDING → VALIDATED transition. Validating an
// already-validated override is not an error; callers treat it as a no-op.
func (o *Override) CanValidate() error {
	if o.Status == id.OverrideValidated {
		return dErrors.New(dErrors.CodeConflict, "override is already validated")
	}
	return nil
}

// ApplyValidation marks the override authoritative.
// Must only be called after CanValidate returns nil.
func (o *Override) ApplyValidation(by id.UserID, now time.Time) {
	o.Status = id.OverrideValidated
	o.ValidatedBy = &by
	o.ValidatedAt = &now
}

// EffectiveThresholdAt reports the override's replacement threshold if the
// override is a validated THRESHOLD_ADJUSTMENT effective on or before asOf.
func (o *Override) EffectiveThresholdAt(asOf time.Time) (float64, bool) {
	if !o.IsValidated() || o.ChangeType != id.ChangeThresholdAdjustment {
		return 0, false
	}
	if o.EffectiveDate.After(asOf) {
		return 0, false
	}
	payload, ok := o.NewValue.(ThresholdPayload)
	if !ok {
		return 0, false
	}
	return payload.Threshold, true
}

// MarshalJSON flattens payloads for the wire while keeping the tagged union
// in memory.
func (o *Override) MarshalJSON() ([]byte, error) {
	type alias Override
	return json.Marshal(struct {
		*alias
		PreviousValue json.RawMessage `json:"previous_value,omitempty"`
		NewValue      json.RawMessage `json:"new_value"`
	}{
		alias:         (*alias)(o),
		PreviousValue: marshalPayload(o.PreviousValue),
		NewValue:      marshalPayload(o.NewValue),
	})
}

func marshalPayload(p ChangePayload) json.RawMessage {
	if p == nil {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	return raw
}

// UnmarshalJSON restores the tagged union from its wire shape. Needed by the
// Redis cache, which round-trips overrides through JSON.
func (o *Override) UnmarshalJSON(data []byte) error {
	type alias Override
	shadow := struct {
		*alias
		PreviousValue json.RawMessage `json:"previous_value"`
		NewValue      json.RawMessage `json:"new_value"`
	}{alias: (*alias)(o)}
	if err := json.Unmarshal(data, &shadow); err != nil {
		return err
	}
	previous, err := ParsePayload(o.ChangeType, shadow.PreviousValue)
	if err != nil {
		return err
	}
	next, err := ParsePayload(o.ChangeType, shadow.NewValue)
	if err != nil {
		return err
	}
	o.PreviousValue = previous
	o.NewValue = next
	return nil
}
