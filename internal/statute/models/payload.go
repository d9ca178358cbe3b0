package models

import (
	"encoding/json"

	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
)

// ChangePayload is a tagged union keyed by ChangeType. The upstream system
// stored these as untyped JSON blobs whose shape depended on the change type;
// here each variant gets its own schema so a threshold adjustment cannot
// smuggle a rate payload.
type ChangePayload interface {
	ChangeType() id.ChangeType
}

// ThresholdPayload carries a replacement nexus threshold in dollars.
type ThresholdPayload struct {
	Threshold float64 `json:"threshold"`
}

func (ThresholdPayload) ChangeType() id.ChangeType { return id.ChangeThresholdAdjustment }

// RatePayload carries a replacement tax rate as a fraction (0.0625 = 6.25%).
type RatePayload struct {
	Rate float64 `json:"rate"`
}

func (RatePayload) ChangeType() id.ChangeType { return id.ChangeRateChange }

// TextPayload covers the document-style variants (new statutes, repeals,
// definition changes, filing requirements, safe harbors) whose substance is
// prose plus an optional citation anchor.
type TextPayload struct {
	Kind    id.ChangeType `json:"-"`
	Summary string        `json:"summary"`
	Detail  string        `json:"detail,omitempty"`
}

func (p TextPayload) ChangeType() id.ChangeType { return p.Kind }

// ParsePayload decodes a raw JSON payload against the schema its change type
// demands. A nil raw value yields a nil payload (legal for previous_value on
// NEW_STATUTE entries).
func ParsePayload(changeType id.ChangeType, raw json.RawMessage) (ChangePayload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch changeType {
	case id.ChangeThresholdAdjustment:
		var payload ThresholdPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "threshold payload must be {\"threshold\": number}")
		}
		if payload.Threshold < 0 {
			return nil, dErrors.New(dErrors.CodeValidation, "threshold must be non-negative")
		}
		return payload, nil
	case id.ChangeRateChange:
		var payload RatePayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "rate payload must be {\"rate\": number}")
		}
		return payload, nil
	case id.ChangeNewStatute, id.ChangeStatuteRepeal, id.ChangeDefinitionChange,
		id.ChangeFilingRequirement, id.ChangeSafeHarbor:
		var payload TextPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "payload must carry a summary")
		}
		payload.Kind = changeType
		return payload, nil
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "unknown change type")
	}
}

// EncodePayload serializes a payload for storage. Nil payloads become nil.
func EncodePayload(p ChangePayload) (json.RawMessage, error) {
	if p == nil {
		return nil, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode override payload")
	}
	return raw, nil
}
