package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "veritax/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the trust-boundary invariant:
// IDs must be valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseClientID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseClientID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseClientID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseClientID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, ClientID(valid), id)
	})
}

// TestParseID_SecurityInvariants validates parsing at API entry points against
// hostile input. Parsing must reject attack vectors, not sanitize them.
func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE clients;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOrgID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestAllIDTypes_ConsistentBehavior ensures every ID type shares identical
// parsing behavior; inconsistent validation across types is a security hole.
func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	valid := uuid.New().String()
	invalid := []string{"", "invalid", uuid.Nil.String()}

	t.Run("all accept valid UUID", func(t *testing.T) {
		_, errOrg := ParseOrgID(valid)
		_, errClient := ParseClientID(valid)
		_, errAlert := ParseAlertID(valid)
		_, errOverride := ParseOverrideID(valid)
		_, errMemo := ParseMemoID(valid)
		_, errApproval := ParseApprovalID(valid)
		_, errUser := ParseUserID(valid)

		require.NoError(t, errOrg)
		require.NoError(t, errClient)
		require.NoError(t, errAlert)
		require.NoError(t, errOverride)
		require.NoError(t, errMemo)
		require.NoError(t, errApproval)
		require.NoError(t, errUser)
	})

	for _, input := range invalid {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errOrg := ParseOrgID(input)
			_, errClient := ParseClientID(input)
			_, errAlert := ParseAlertID(input)
			_, errOverride := ParseOverrideID(input)
			_, errMemo := ParseMemoID(input)
			_, errApproval := ParseApprovalID(input)
			_, errUser := ParseUserID(input)

			require.Error(t, errOrg)
			require.Error(t, errClient)
			require.Error(t, errAlert)
			require.Error(t, errOverride)
			require.Error(t, errMemo)
			require.Error(t, errApproval)
			require.Error(t, errUser)
		})
	}
}

// TestIDJSONRoundTrip guards the MarshalText wiring: without it JSON renders
// the raw 16-byte array instead of the canonical string.
func TestIDJSONRoundTrip(t *testing.T) {
	original := ClientID(uuid.New())

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Equal(t, `"`+original.String()+`"`, string(data))

	var decoded ClientID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

// TestTypeDistinction documents the compile-time invariant: typed IDs make
// cross-entity assignment a compile error.
func TestTypeDistinction(t *testing.T) {
	orgID := OrgID(uuid.New())
	clientID := ClientID(uuid.New())

	// These would fail to compile if the types were interchangeable:
	// var _ OrgID = clientID   // compile error
	// var _ ClientID = orgID   // compile error

	assert.NotEqual(t, uuid.UUID(orgID), uuid.UUID(clientID))
}
