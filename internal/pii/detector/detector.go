// Package detector flags probable personally identifiable information in
// tabular uploads before they are stored. Detection is heuristic on purpose:
// a false positive costs a reviewer a glance, a false negative leaks a social
// security number into a shared workpaper.
package detector

import (
	"regexp"
	"strings"
)

// Finding flags one column as probable PII.
type Finding struct {
	Column string `json:"column"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// PatternMatch flags one cell whose value matches a PII pattern. The value
// itself is never echoed back.
type PatternMatch struct {
	Column string `json:"column"`
	Row    int    `json:"row"`
	Kind   string `json:"kind"`
}

// Detection is the result of scanning one upload.
type Detection struct {
	ByColumn    []Finding      `json:"byColumn"`
	ByPattern   []PatternMatch `json:"byPattern"`
	Severity    string         `json:"severity"`
	TotalIssues int            `json:"totalIssues"`
}

const (
	KindSSN     = "ssn"
	KindEIN     = "ein"
	KindDOB     = "dob"
	KindBank    = "bank_account"
	KindRouting = "routing_number"
	KindEmail   = "email"
	KindPhone   = "phone"
	KindAccount = "account_number"
)

const (
	SeverityNone   = "none"
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// columnHints maps header substrings to a PII kind. Checked against the
// lowercased header with separators stripped.
var columnHints = []struct {
	substr string
	kind   string
}{
	{"ssn", KindSSN},
	{"socialsecurity", KindSSN},
	{"ein", KindEIN},
	{"taxid", KindEIN},
	{"dob", KindDOB},
	{"dateofbirth", KindDOB},
	{"birthdate", KindDOB},
	{"routing", KindRouting},
	{"bankaccount", KindBank},
	{"iban", KindBank},
	{"email", KindEmail},
	{"phone", KindPhone},
	{"mobile", KindPhone},
	{"accountnumber", KindAccount},
	{"acctno", KindAccount},
}

var valuePatterns = []struct {
	kind string
	re   *regexp.Regexp
}{
	{KindSSN, regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)},
	{KindEIN, regexp.MustCompile(`^\d{2}-\d{7}$`)},
	{KindEmail, regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)},
	{KindPhone, regexp.MustCompile(`^\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}$`)},
	// Long plain digit runs read as account numbers; shorter runs are usually
	// amounts or zips.
	{KindAccount, regexp.MustCompile(`^\d{9,17}$`)},
}

// severityByKind ranks kinds by disclosure damage.
var severityByKind = map[string]int{
	KindSSN:     3,
	KindEIN:     3,
	KindBank:    3,
	KindRouting: 3,
	KindDOB:     2,
	KindPhone:   2,
	KindAccount: 2,
	KindEmail:   1,
}

// Scan inspects headers and cell values. Rows align positionally with
// headers; ragged rows are scanned as far as they go.
func Scan(headers []string, rows [][]string) *Detection {
	detection := &Detection{
		ByColumn:  []Finding{},
		ByPattern: []PatternMatch{},
		Severity:  SeverityNone,
	}

	flagged := make(map[int]bool)
	for i, header := range headers {
		kind, ok := matchHeader(header)
		if !ok {
			continue
		}
		flagged[i] = true
		detection.ByColumn = append(detection.ByColumn, Finding{
			Column: header,
			Kind:   kind,
			Reason: "column name suggests " + kind,
		})
		detection.bump(kind)
	}

	for rowIdx, row := range rows {
		for colIdx, value := range row {
			if colIdx >= len(headers) || flagged[colIdx] {
				continue
			}
			kind, ok := matchValue(value)
			if !ok {
				continue
			}
			detection.ByPattern = append(detection.ByPattern, PatternMatch{
				Column: headers[colIdx],
				Row:    rowIdx,
				Kind:   kind,
			})
			detection.bump(kind)
		}
	}

	detection.TotalIssues = len(detection.ByColumn) + len(detection.ByPattern)
	return detection
}

func matchHeader(header string) (string, bool) {
	normalized := strings.ToLower(header)
	normalized = strings.NewReplacer("_", "", "-", "", " ", "").Replace(normalized)
	for _, hint := range columnHints {
		if strings.Contains(normalized, hint.substr) {
			return hint.kind, true
		}
	}
	return "", false
}

func matchValue(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", false
	}
	for _, pattern := range valuePatterns {
		if pattern.re.MatchString(trimmed) {
			return pattern.kind, true
		}
	}
	return "", false
}

func (d *Detection) bump(kind string) {
	rank := severityByKind[kind]
	if rank > severityRank(d.Severity) {
		d.Severity = severityFromRank(rank)
	}
}

func severityRank(severity string) int {
	switch severity {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

func severityFromRank(rank int) string {
	switch rank {
	case 3:
		return SeverityHigh
	case 2:
		return SeverityMedium
	case 1:
		return SeverityLow
	}
	return SeverityNone
}
