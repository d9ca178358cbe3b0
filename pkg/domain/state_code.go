package domain

import "strings"

// StateCode is a two-letter uppercase US state or territory code.
//
// Invariants:
//   - exactly 2 characters after normalization
//   - uppercase ASCII letters only
//   - "US" is the sentinel for genuinely state-less records
type StateCode string

// StateCodeUS is the sentinel used when a record is genuinely state-less.
const StateCodeUS = StateCode("US")

// NormalizeStateCode coerces raw input into a schema-legal state code.
// Oversized input is truncated to 2 runes, not rejected: ingestion must
// survive dirty upstream spreadsheets, and truncating bytes would split a
// multi-byte rune into invalid UTF-8. Empty input yields the "US" sentinel.
func NormalizeStateCode(raw string) StateCode {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	if trimmed == "" {
		return StateCodeUS
	}
	runes := []rune(trimmed)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return StateCode(string(runes))
}

// Valid reports whether the code holds exactly 2 uppercase letters.
func (c StateCode) Valid() bool {
	if len(c) != 2 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (c StateCode) String() string { return string(c) }
