package budget

import (
	"time"

	"fintrack/internal/core"
)

// AutoAdjustPolicy holds the smoothing parameters for the next-period
// amount recommendation. The constants are policy, not law; they come in
// from configuration.
type AutoAdjustPolicy struct {
	// TrailingPeriods is how many completed periods feed the average.
	TrailingPeriods int
	// Weights apply most-recent-first and must match TrailingPeriods.
	Weights []float64
	// MaxDecreasePercent caps how far a single recommendation may drop
	// below the current amount, damping one-off quiet periods.
	MaxDecreasePercent float64
}

// DefaultAutoAdjustPolicy weights the last three completed periods
// 0.5/0.3/0.2 and never cuts more than 20% in one step.
func DefaultAutoAdjustPolicy() AutoAdjustPolicy {
	return AutoAdjustPolicy{
		TrailingPeriods:    3,
		Weights:            []float64{0.5, 0.3, 0.2},
		MaxDecreasePercent: 20,
	}
}

// RecommendNextAmount computes the suggested budgeted amount for the next
// period as a weighted average of recent completed periods' spend. When
// fewer periods have completed than the policy asks for, the weights are
// renormalized over the ones available. The second return is false when
// the budget has auto-adjust disabled or no completed periods yet.
func (t *Tracker) RecommendNextAmount(asOf time.Time, p AutoAdjustPolicy) (core.Money, bool, error) {
	if !t.def.AutoAdjust {
		return core.Money{}, false, nil
	}
	spend, err := t.completedSpend(asOf, p.TrailingPeriods)
	if err != nil {
		return core.Money{}, false, err
	}
	if len(spend) == 0 {
		return core.Money{}, false, nil
	}

	var sum, weightSum float64
	for i, s := range spend {
		w := 1.0
		if i < len(p.Weights) {
			w = p.Weights[i]
		}
		sum += w * float64(s.Cents)
		weightSum += w
	}
	if weightSum == 0 {
		return core.Money{}, false, nil
	}
	next := int64(sum/weightSum + 0.5)

	floor := int64(float64(t.def.Amount.Cents) * (1 - p.MaxDecreasePercent/100))
	if next < floor {
		next = floor
	}
	return core.Money{Cents: next}, true, nil
}
