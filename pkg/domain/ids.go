package domain

import (
	"github.com/google/uuid"

	dErrors "veritax/pkg/domain-errors"
)

// Typed UUID wrappers for every aggregate. Distinct types make cross-entity
// assignment a compile error, which matters in a multi-tenant system where a
// swapped organization and client ID is a data-isolation bug.
type (
	OrgID      uuid.UUID
	ClientID   uuid.UUID
	AlertID    uuid.UUID
	OverrideID uuid.UUID
	MemoID     uuid.UUID
	ApprovalID uuid.UUID
	UserID     uuid.UUID
)

func (id OrgID) String() string      { return uuid.UUID(id).String() }
func (id ClientID) String() string   { return uuid.UUID(id).String() }
func (id AlertID) String() string    { return uuid.UUID(id).String() }
func (id OverrideID) String() string { return uuid.UUID(id).String() }
func (id MemoID) String() string     { return uuid.UUID(id).String() }
func (id ApprovalID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string     { return uuid.UUID(id).String() }

func (id OrgID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ClientID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id AlertID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id OverrideID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id MemoID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ApprovalID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// The wrappers do not inherit uuid.UUID's methods, so text marshaling is
// spelled out per type; without it JSON would render the raw byte array.
func (id OrgID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id ClientID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id AlertID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id OverrideID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id MemoID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id ApprovalID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func unmarshalUUID(text []byte) (uuid.UUID, error) {
	return uuid.Parse(string(text))
}

func (id *OrgID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = OrgID(parsed)
	return err
}

func (id *ClientID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = ClientID(parsed)
	return err
}

func (id *AlertID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = AlertID(parsed)
	return err
}

func (id *OverrideID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = OverrideID(parsed)
	return err
}

func (id *MemoID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = MemoID(parsed)
	return err
}

func (id *ApprovalID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = ApprovalID(parsed)
	return err
}

func (id *UserID) UnmarshalText(text []byte) error {
	parsed, err := unmarshalUUID(text)
	*id = UserID(parsed)
	return err
}

// parseUUID enforces the trust-boundary invariant: IDs must be valid,
// non-empty, non-nil UUIDs.
func parseUUID(raw, label string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be the nil UUID")
	}
	return parsed, nil
}

func ParseOrgID(raw string) (OrgID, error) {
	parsed, err := parseUUID(raw, "organization id")
	return OrgID(parsed), err
}

func ParseClientID(raw string) (ClientID, error) {
	parsed, err := parseUUID(raw, "client id")
	return ClientID(parsed), err
}

func ParseAlertID(raw string) (AlertID, error) {
	parsed, err := parseUUID(raw, "alert id")
	return AlertID(parsed), err
}

func ParseOverrideID(raw string) (OverrideID, error) {
	parsed, err := parseUUID(raw, "override id")
	return OverrideID(parsed), err
}

func ParseMemoID(raw string) (MemoID, error) {
	parsed, err := parseUUID(raw, "memo id")
	return MemoID(parsed), err
}

func ParseApprovalID(raw string) (ApprovalID, error) {
	parsed, err := parseUUID(raw, "approval id")
	return ApprovalID(parsed), err
}

func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw, "user id")
	return UserID(parsed), err
}
