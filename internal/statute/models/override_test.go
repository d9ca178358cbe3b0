package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
)

func newTestOverride(t *testing.T, changeType id.ChangeType, payload ChangePayload) *Override {
	t.Helper()
	override, err := NewOverride(
		id.OverrideID(uuid.New()),
		id.OrgID(uuid.New()),
		id.StateCode("CA"),
		id.TaxSales,
		changeType,
		nil, payload,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"CDTFA notice", "Rev. & Tax. Code 6203", "",
		id.UserID(uuid.New()),
		time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return override
}

func TestNewOverride_Invariants(t *testing.T) {
	orgID := id.OrgID(uuid.New())
	enteredBy := id.UserID(uuid.New())
	now := time.Now().UTC()
	effective := now.AddDate(0, 1, 0)
	payload := ThresholdPayload{Threshold: 600_000}

	tests := []struct {
		name      string
		stateCode id.StateCode
		taxType   id.TaxType
		payload   ChangePayload
		source    string
		wantErr   string
	}{
		{"invalid state code", "CAL", id.TaxSales, payload, "notice", "two uppercase letters"},
		{"unknown tax type", "CA", "VAT", payload, "notice", "unknown tax type"},
		{"missing payload", "CA", id.TaxSales, nil, "notice", "payload is required"},
		{"payload mismatch", "CA", id.TaxSales, RatePayload{Rate: 0.06}, "notice", "does not match"},
		{"missing source", "CA", id.TaxSales, payload, "", "source is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewOverride(
				id.OverrideID(uuid.New()), orgID, tc.stateCode, tc.taxType,
				id.ChangeThresholdAdjustment, nil, tc.payload,
				effective, tc.source, "", "", enteredBy, now,
			)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestOverride_StartsPending(t *testing.T) {
	override := newTestOverride(t, id.ChangeThresholdAdjustment, ThresholdPayload{Threshold: 600_000})

	assert.Equal(t, id.OverridePending, override.Status)
	assert.False(t, override.IsValidated())
	assert.Nil(t, override.ValidatedBy)
	assert.Nil(t, override.ValidatedAt)
}

func TestOverride_ValidationTransition(t *testing.T) {
	override := newTestOverride(t, id.ChangeThresholdAdjustment, ThresholdPayload{Threshold: 600_000})
	partner := id.UserID(uuid.New())
	now := time.Now().UTC()

	require.NoError(t, override.CanValidate())
	override.ApplyValidation(partner, now)

	assert.True(t, override.IsValidated())
	require.NotNil(t, override.ValidatedBy)
	assert.Equal(t, partner, *override.ValidatedBy)
	require.NotNil(t, override.ValidatedAt)
	assert.Equal(t, now, *override.ValidatedAt)

	// Re-validation is a conflict at the model level; the service turns it
	// into a no-op.
	err := override.CanValidate()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestOverride_EffectiveThresholdAt(t *testing.T) {
	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("pending override has no effect", func(t *testing.T) {
		override := newTestOverride(t, id.ChangeThresholdAdjustment, ThresholdPayload{Threshold: 600_000})
		_, ok := override.EffectiveThresholdAt(asOf)
		assert.False(t, ok)
	})

	t.Run("validated but not yet effective has no effect", func(t *testing.T) {
		override := newTestOverride(t, id.ChangeThresholdAdjustment, ThresholdPayload{Threshold: 600_000})
		override.EffectiveDate = asOf.AddDate(0, 1, 0)
		override.ApplyValidation(id.UserID(uuid.New()), asOf)
		_, ok := override.EffectiveThresholdAt(asOf)
		assert.False(t, ok)
	})

	t.Run("validated and effective replaces the threshold", func(t *testing.T) {
		override := newTestOverride(t, id.ChangeThresholdAdjustment, ThresholdPayload{Threshold: 600_000})
		override.ApplyValidation(id.UserID(uuid.New()), asOf)
		value, ok := override.EffectiveThresholdAt(asOf)
		require.True(t, ok)
		assert.Equal(t, 600_000.0, value)
	})

	t.Run("non-threshold change types never affect evaluation", func(t *testing.T) {
		override := newTestOverride(t, id.ChangeRateChange, RatePayload{Rate: 0.0725})
		override.ApplyValidation(id.UserID(uuid.New()), asOf)
		_, ok := override.EffectiveThresholdAt(asOf)
		assert.False(t, ok)
	})
}

func TestOverride_JSONRoundTrip(t *testing.T) {
	override := newTestOverride(t, id.ChangeThresholdAdjustment, ThresholdPayload{Threshold: 500_000})

	raw, err := json.Marshal(override)
	require.NoError(t, err)

	var decoded Override
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, override.ID, decoded.ID)
	assert.Equal(t, override.StateCode, decoded.StateCode)
	payload, ok := decoded.NewValue.(ThresholdPayload)
	require.True(t, ok)
	assert.Equal(t, 500_000.0, payload.Threshold)
}

func TestParsePayload(t *testing.T) {
	t.Run("threshold payload", func(t *testing.T) {
		payload, err := ParsePayload(id.ChangeThresholdAdjustment, json.RawMessage(`{"threshold": 250000}`))
		require.NoError(t, err)
		assert.Equal(t, ThresholdPayload{Threshold: 250_000}, payload)
	})

	t.Run("negative threshold rejected", func(t *testing.T) {
		_, err := ParsePayload(id.ChangeThresholdAdjustment, json.RawMessage(`{"threshold": -1}`))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("text payload carries its change type", func(t *testing.T) {
		payload, err := ParsePayload(id.ChangeSafeHarbor, json.RawMessage(`{"summary": "200 transaction safe harbor repealed"}`))
		require.NoError(t, err)
		assert.Equal(t, id.ChangeSafeHarbor, payload.ChangeType())
	})

	t.Run("nil raw yields nil payload", func(t *testing.T) {
		payload, err := ParsePayload(id.ChangeNewStatute, nil)
		require.NoError(t, err)
		assert.Nil(t, payload)
	})

	t.Run("unknown change type", func(t *testing.T) {
		_, err := ParsePayload("MERGER", json.RawMessage(`{}`))
		require.Error(t, err)
	})
}
