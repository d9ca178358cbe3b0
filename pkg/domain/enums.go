package domain

// StateStatus is the per-state compliance standing computed by the threshold
// engine.
type StateStatus string

const (
	StateCompliant StateStatus = "compliant"
	StateWarning   StateStatus = "warning"
	StateCritical  StateStatus = "critical"
)

func (s StateStatus) Valid() bool {
	switch s {
	case StateCompliant, StateWarning, StateCritical:
		return true
	}
	return false
}

// RiskLevel classifies a client's overall compliance exposure.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// AlertStatus models the alert lifecycle: open → reviewed → resolved.
// There is no transition back from resolved; a resolved alert is immutable
// evidence of a historical threshold crossing.
type AlertStatus string

const (
	AlertOpen     AlertStatus = "open"
	AlertReviewed AlertStatus = "reviewed"
	AlertResolved AlertStatus = "resolved"
)

// CanTransitionTo enforces the one-way alert lifecycle.
func (s AlertStatus) CanTransitionTo(next AlertStatus) bool {
	switch s {
	case AlertOpen:
		return next == AlertReviewed || next == AlertResolved
	case AlertReviewed:
		return next == AlertResolved
	}
	return false
}

// TaxType identifies the statutory regime an override corrects.
type TaxType string

const (
	TaxSales         TaxType = "SALES_TAX"
	TaxIncome        TaxType = "INCOME_TAX"
	TaxFranchise     TaxType = "FRANCHISE_TAX"
	TaxGrossReceipts TaxType = "GROSS_RECEIPTS"
	TaxUse           TaxType = "USE_TAX"
	TaxPayroll       TaxType = "PAYROLL_TAX"
)

func (t TaxType) Valid() bool {
	switch t {
	case TaxSales, TaxIncome, TaxFranchise, TaxGrossReceipts, TaxUse, TaxPayroll:
		return true
	}
	return false
}

// ChangeType identifies the shape of a statute override's payload.
type ChangeType string

const (
	ChangeThresholdAdjustment ChangeType = "THRESHOLD_ADJUSTMENT"
	ChangeRateChange          ChangeType = "RATE_CHANGE"
	ChangeNewStatute          ChangeType = "NEW_STATUTE"
	ChangeStatuteRepeal       ChangeType = "STATUTE_REPEAL"
	ChangeDefinitionChange    ChangeType = "DEFINITION_CHANGE"
	ChangeFilingRequirement   ChangeType = "FILING_REQUIREMENT"
	ChangeSafeHarbor          ChangeType = "SAFE_HARBOR"
)

func (c ChangeType) Valid() bool {
	switch c {
	case ChangeThresholdAdjustment, ChangeRateChange, ChangeNewStatute,
		ChangeStatuteRepeal, ChangeDefinitionChange, ChangeFilingRequirement,
		ChangeSafeHarbor:
		return true
	}
	return false
}

// OverrideStatus models the override workflow: PENDING → VALIDATED, one-way.
// Until validated an override must not influence any evaluation or memo.
type OverrideStatus string

const (
	OverridePending   OverrideStatus = "PENDING"
	OverrideValidated OverrideStatus = "VALIDATED"
)

// MemoType distinguishes original memos from follow-ups and revisions.
type MemoType string

const (
	MemoInitial      MemoType = "INITIAL"
	MemoSupplemental MemoType = "SUPPLEMENTAL"
	MemoRevised      MemoType = "REVISED"
)

func (m MemoType) Valid() bool {
	switch m {
	case MemoInitial, MemoSupplemental, MemoRevised:
		return true
	}
	return false
}

// MemoStatus models the sealing lifecycle: DRAFT → SEALED, one-way.
type MemoStatus string

const (
	MemoDraft  MemoStatus = "DRAFT"
	MemoSealed MemoStatus = "SEALED"
)

// VerifyStatus is the derived outcome of an integrity check. TAMPERED is an
// expected business outcome, not an error.
type VerifyStatus string

const (
	VerifyVerified  VerifyStatus = "VERIFIED"
	VerifyTampered  VerifyStatus = "TAMPERED"
	VerifyNotSealed VerifyStatus = "NOT_SEALED"
)

// ApprovalStatus models the approval gate: PENDING → APPROVED, one-way.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
)

// Severity grades audit log entries.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return true
	}
	return false
}
