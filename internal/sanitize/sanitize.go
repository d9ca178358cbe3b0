// Package sanitize normalizes raw ingestion records into schema-legal values
// before persistence. Ingestion pipelines must survive dirty upstream
// spreadsheets: bad numeric or oversized string input is coerced to a safe
// default and logged, never rejected. The only hard-fail path is a missing or
// malformed required identifier, which fails the whole record.
package sanitize

import (
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"

	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
)

// Column limits mirror the persistence schema.
const (
	uuidLimit        = 36
	statusLimit      = 20
	nameLimit        = 120
	titleLimit       = 255
	descriptionLimit = 2000
	industryLimit    = 80
	alertTypeLimit   = 50
	priorityLimit    = 20
	regNumberLimit   = 64
)

// Client data-quality guards (not business rules): annual revenue outside
// this band is treated as a bad upload and clamped.
const (
	minAnnualRevenue = 50_000
	maxAnnualRevenue = 600_000
)

// Sanitizer is pure apart from diagnostic logging of every truncation and
// coercion it performs.
type Sanitizer struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Sanitizer {
	return &Sanitizer{logger: logger}
}

// ClientStateInput is a schema-legal record destined for ClientState
// persistence.
type ClientStateInput struct {
	OrgID                string
	ClientID             string
	StateCode            id.StateCode
	StateName            string
	Status               string
	CurrentAmount        float64
	ThresholdAmount      *float64
	RegistrationRequired bool
	RegistrationDate     string
	RegistrationNumber   string
}

// AlertInput is a schema-legal record destined for NexusAlert persistence.
type AlertInput struct {
	OrgID           string
	ClientID        string
	StateCode       id.StateCode
	AlertType       string
	Priority        string
	Status          string
	Title           string
	Description     string
	CurrentAmount   float64
	ThresholdAmount *float64
	PenaltyRisk     float64
	Deadline        string
	Active          bool
}

// ClientInput is a schema-legal record destined for Client persistence.
type ClientInput struct {
	OrgID           string
	Name            string
	LegalName       string
	Industry        string
	AnnualRevenue   float64
	RiskLevel       string
	QualityScore    float64
	PenaltyExposure float64
}

// ClientState sanitizes a raw per-state compliance record.
// Required identifiers: organizationId, clientId.
func (s *Sanitizer) ClientState(raw map[string]any) (*ClientStateInput, error) {
	orgID, err := s.requireID(raw, "organizationId")
	if err != nil {
		return nil, err
	}
	clientID, err := s.requireID(raw, "clientId")
	if err != nil {
		return nil, err
	}

	out := &ClientStateInput{
		OrgID:                orgID,
		ClientID:             clientID,
		StateCode:            s.stateCode(raw, "stateCode"),
		StateName:            s.truncate("stateName", str(raw, "stateName"), nameLimit),
		Status:               s.truncate("status", str(raw, "status"), statusLimit),
		CurrentAmount:        s.amount("currentAmount", raw["currentAmount"]),
		ThresholdAmount:      s.optionalAmount("thresholdAmount", raw["thresholdAmount"]),
		RegistrationRequired: boolean(raw, "registrationRequired"),
		RegistrationDate:     s.truncate("registrationDate", str(raw, "registrationDate"), nameLimit),
		RegistrationNumber:   s.truncate("registrationNumber", str(raw, "registrationNumber"), regNumberLimit),
	}
	return out, nil
}

// Alert sanitizes a raw nexus alert record.
// Required identifiers: organizationId, clientId, alertType, title.
func (s *Sanitizer) Alert(raw map[string]any) (*AlertInput, error) {
	orgID, err := s.requireID(raw, "organizationId")
	if err != nil {
		return nil, err
	}
	clientID, err := s.requireID(raw, "clientId")
	if err != nil {
		return nil, err
	}
	alertType := strings.TrimSpace(str(raw, "alertType"))
	if alertType == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "alertType is required")
	}
	title := strings.TrimSpace(str(raw, "title"))
	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "title is required")
	}

	out := &AlertInput{
		OrgID:           orgID,
		ClientID:        clientID,
		StateCode:       s.stateCode(raw, "stateCode"),
		AlertType:       s.truncate("alertType", alertType, alertTypeLimit),
		Priority:        s.withDefault("priority", str(raw, "priority"), "medium", priorityLimit),
		Status:          s.withDefault("status", str(raw, "status"), "open", statusLimit),
		Title:           s.truncate("title", title, titleLimit),
		Description:     s.truncate("description", str(raw, "description"), descriptionLimit),
		CurrentAmount:   s.amount("currentAmount", raw["currentAmount"]),
		ThresholdAmount: s.optionalAmount("thresholdAmount", raw["thresholdAmount"]),
		PenaltyRisk:     s.amount("penaltyRisk", raw["penaltyRisk"]),
		Deadline:        s.truncate("deadline", str(raw, "deadline"), nameLimit),
		Active:          true,
	}
	if v, ok := raw["isActive"].(bool); ok {
		out.Active = v
	}
	return out, nil
}

// Client sanitizes a raw client onboarding record.
// Required identifier: organizationId.
func (s *Sanitizer) Client(raw map[string]any) (*ClientInput, error) {
	orgID, err := s.requireID(raw, "organizationId")
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(str(raw, "name"))
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "name is required")
	}

	out := &ClientInput{
		OrgID:           orgID,
		Name:            s.truncate("name", name, nameLimit),
		LegalName:       s.truncate("legalName", str(raw, "legalName"), nameLimit),
		Industry:        s.truncate("industry", str(raw, "industry"), industryLimit),
		AnnualRevenue:   s.clamp("annualRevenue", s.amount("annualRevenue", raw["annualRevenue"]), minAnnualRevenue, maxAnnualRevenue),
		RiskLevel:       s.riskLevel(raw, "riskLevel"),
		QualityScore:    s.clamp("qualityScore", s.amount("qualityScore", raw["qualityScore"]), 0, 100),
		PenaltyExposure: s.amount("penaltyExposure", raw["penaltyExposure"]),
	}
	return out, nil
}

// requireID enforces the single hard-fail path: a required identifier that is
// absent or exceeds UUID length fails the whole record.
func (s *Sanitizer) requireID(raw map[string]any, key string) (string, error) {
	value := strings.TrimSpace(str(raw, key))
	if value == "" {
		return "", dErrors.Newf(dErrors.CodeValidation, "%s is required", key)
	}
	if len(value) > uuidLimit {
		return "", dErrors.Newf(dErrors.CodeValidation, "%s exceeds %d characters", key, uuidLimit)
	}
	return value, nil
}

// truncate caps a string at limit runes, preserving limit-3 runes and
// appending an ellipsis. Slicing runes, not bytes, keeps multi-byte input
// valid UTF-8. Every truncation is logged for debuggability of malformed
// upstream data.
func (s *Sanitizer) truncate(field, value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	truncated := string(runes[:limit-3]) + "..."
	s.logger.Warn("sanitize: truncated oversized string",
		"field", field,
		"input_length", len(runes),
		"limit", limit,
	)
	return truncated
}

func (s *Sanitizer) withDefault(field, value, fallback string, limit int) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return s.truncate(field, value, limit)
}

// stateCode truncates to exactly 2 uppercase characters; no ellipsis, since
// the column is the code itself. Missing codes get the "US" sentinel.
func (s *Sanitizer) stateCode(raw map[string]any, key string) id.StateCode {
	value := str(raw, key)
	code := id.NormalizeStateCode(value)
	if len([]rune(strings.TrimSpace(value))) > 2 {
		s.logger.Warn("sanitize: truncated state code",
			"field", key,
			"input", value,
			"normalized", code.String(),
		)
	}
	return code
}

// amount coerces a numeric field; anything that fails coercion becomes 0.
func (s *Sanitizer) amount(field string, value any) float64 {
	amount, ok := coerceNumber(value)
	if !ok || math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		if value != nil {
			s.logger.Warn("sanitize: coerced bad numeric input to default",
				"field", field,
				"input", value,
				"default", 0,
			)
		}
		return 0
	}
	return amount
}

// optionalAmount coerces an optional numeric field; bad input becomes nil.
func (s *Sanitizer) optionalAmount(field string, value any) *float64 {
	if value == nil {
		return nil
	}
	amount, ok := coerceNumber(value)
	if !ok || math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		s.logger.Warn("sanitize: coerced bad numeric input to null",
			"field", field,
			"input", value,
		)
		return nil
	}
	return &amount
}

func (s *Sanitizer) clamp(field string, value, min, max float64) float64 {
	if value < min {
		s.logger.Warn("sanitize: clamped out-of-range value", "field", field, "input", value, "min", min)
		return min
	}
	if value > max {
		s.logger.Warn("sanitize: clamped out-of-range value", "field", field, "input", value, "max", max)
		return max
	}
	return value
}

func (s *Sanitizer) riskLevel(raw map[string]any, key string) string {
	value := id.RiskLevel(strings.ToLower(strings.TrimSpace(str(raw, key))))
	if !value.Valid() {
		if string(value) != "" {
			s.logger.Warn("sanitize: unknown risk level defaulted", "field", key, "input", str(raw, key))
		}
		return string(id.RiskMedium)
	}
	return string(value)
}

// coerceNumber mirrors loose numeric coercion: numbers pass through, numeric
// strings parse, everything else fails.
func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		parsed, err := v.Float64()
		return parsed, err == nil
	case string:
		trimmed := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(v, ",", ""), "$", ""))
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func str(raw map[string]any, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func boolean(raw map[string]any, key string) bool {
	v, _ := raw[key].(bool)
	return v
}
