// Package engine computes per-state nexus status from accumulated revenue
// against statutory thresholds. It is pure: no storage, no clock, no context.
package engine

import (
	"time"

	statuteModels "veritax/internal/statute/models"
	id "veritax/pkg/domain"
)

// DefaultThreshold is the economic nexus threshold assumed when a state record
// carries no explicit statutory amount. Most states adopted the Wayfair
// $500,000 / $100,000 split; the conservative higher figure avoids false
// criticals on states we have no data for.
const DefaultThreshold = 500_000

// DefaultWarnRatio places the warning band at 90% of the threshold. The exact
// percentage is a firm policy choice, so it is configurable per deployment.
const DefaultWarnRatio = 0.90

// estimatedTaxRate approximates uncollected sales tax on revenue above the
// threshold. Used only for the penalty risk estimate shown on alerts.
const estimatedTaxRate = 0.08

// Config carries the tunable evaluation parameters.
type Config struct {
	WarnRatio float64
}

func (c Config) warnRatio() float64 {
	if c.WarnRatio <= 0 || c.WarnRatio >= 1 {
		return DefaultWarnRatio
	}
	return c.WarnRatio
}

// Evaluate computes the compliance status for one state.
//
//	current >= threshold             -> critical
//	current >= warnRatio * threshold -> warning
//	otherwise                        -> compliant
//
// A non-positive threshold means no statutory threshold is known for the
// state; such a state cannot be crossed and is always compliant.
func (c Config) Evaluate(current, threshold float64) id.StateStatus {
	if threshold <= 0 {
		return id.StateCompliant
	}
	switch {
	case current >= threshold:
		return id.StateCritical
	case current >= c.warnRatio()*threshold:
		return id.StateWarning
	default:
		return id.StateCompliant
	}
}

// EffectiveThreshold applies validated THRESHOLD_ADJUSTMENT overrides to a
// base threshold. Overrides must already be filtered to VALIDATED rows for
// the right state and tax type; with several applicable adjustments the one
// with the latest effective date not after asOf wins.
func EffectiveThreshold(base float64, overrides []*statuteModels.Override, asOf time.Time) float64 {
	threshold := base
	var latest time.Time
	for _, override := range overrides {
		value, ok := override.EffectiveThresholdAt(asOf)
		if !ok {
			continue
		}
		if latest.IsZero() || !override.EffectiveDate.Before(latest) {
			latest = override.EffectiveDate
			threshold = value
		}
	}
	return threshold
}

// PenaltyRisk estimates the exposure created by revenue above the threshold.
func PenaltyRisk(current, threshold float64) float64 {
	if threshold <= 0 || current <= threshold {
		return 0
	}
	return (current - threshold) * estimatedTaxRate
}
