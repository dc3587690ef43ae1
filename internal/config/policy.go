package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"fintrack/internal/budget"
	"fintrack/internal/health"
)

// Policy collects the tunable constants of the engine: composite score
// weights, auto-adjust smoothing, and the default alert threshold. They
// are policy rather than law, so they load from a TOML file over
// defaults instead of living as literals.
type Policy struct {
	Health     HealthPolicy     `toml:"health"`
	AutoAdjust AutoAdjustPolicy `toml:"auto_adjust"`
	Alerts     AlertPolicy      `toml:"alerts"`
}

// HealthPolicy holds the composite component weights.
type HealthPolicy struct {
	SavingsWeight       float64 `toml:"savings_weight"`
	AdherenceWeight     float64 `toml:"adherence_weight"`
	GoalsWeight         float64 `toml:"goals_weight"`
	ConsistencyWeight   float64 `toml:"consistency_weight"`
	EmergencyFundWeight float64 `toml:"emergency_fund_weight"`
}

// AutoAdjustPolicy holds the next-period amount smoothing parameters.
type AutoAdjustPolicy struct {
	TrailingPeriods    int       `toml:"trailing_periods"`
	Weights            []float64 `toml:"weights"`
	MaxDecreasePercent float64   `toml:"max_decrease_percent"`
}

// AlertPolicy holds alerting defaults applied when a budget definition
// leaves them unset upstream.
type AlertPolicy struct {
	DefaultThresholdPercent float64 `toml:"default_threshold_percent"`
}

// DefaultPolicy mirrors the documented defaults: 30/25/20/15/10 weights,
// three trailing periods at 0.5/0.3/0.2, a 20% decrease clamp and an 80%
// alert threshold.
func DefaultPolicy() Policy {
	return Policy{
		Health: HealthPolicy{
			SavingsWeight:       0.30,
			AdherenceWeight:     0.25,
			GoalsWeight:         0.20,
			ConsistencyWeight:   0.15,
			EmergencyFundWeight: 0.10,
		},
		AutoAdjust: AutoAdjustPolicy{
			TrailingPeriods:    3,
			Weights:            []float64{0.5, 0.3, 0.2},
			MaxDecreasePercent: 20,
		},
		Alerts: AlertPolicy{
			DefaultThresholdPercent: 80,
		},
	}
}

// LoadPolicy reads a TOML policy file over the defaults. An empty path
// returns the defaults unchanged.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Policy{}, fmt.Errorf("decode policy file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("policy file %s: %w", path, err)
	}
	return p, nil
}

// Validate rejects weights and clamps that would corrupt scoring.
func (p Policy) Validate() error {
	weights := []float64{
		p.Health.SavingsWeight,
		p.Health.AdherenceWeight,
		p.Health.GoalsWeight,
		p.Health.ConsistencyWeight,
		p.Health.EmergencyFundWeight,
	}
	var sum float64
	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("health weights must be non-negative, got %v", w)
		}
		sum += w
	}
	if sum <= 0 {
		return fmt.Errorf("health weights must not all be zero")
	}

	if p.AutoAdjust.TrailingPeriods < 1 {
		return fmt.Errorf("auto-adjust trailing periods must be at least 1, got %d", p.AutoAdjust.TrailingPeriods)
	}
	if len(p.AutoAdjust.Weights) != p.AutoAdjust.TrailingPeriods {
		return fmt.Errorf("auto-adjust needs %d weights, got %d", p.AutoAdjust.TrailingPeriods, len(p.AutoAdjust.Weights))
	}
	for _, w := range p.AutoAdjust.Weights {
		if w < 0 {
			return fmt.Errorf("auto-adjust weights must be non-negative, got %v", w)
		}
	}
	if p.AutoAdjust.MaxDecreasePercent < 0 || p.AutoAdjust.MaxDecreasePercent > 100 {
		return fmt.Errorf("max decrease percent out of range: %v", p.AutoAdjust.MaxDecreasePercent)
	}

	if p.Alerts.DefaultThresholdPercent < 0 || p.Alerts.DefaultThresholdPercent > 100 {
		return fmt.Errorf("default alert threshold out of range: %v", p.Alerts.DefaultThresholdPercent)
	}
	return nil
}

// HealthWeights converts the policy into the scorer's weight set.
func (p Policy) HealthWeights() health.Weights {
	return health.Weights{
		Savings:       p.Health.SavingsWeight,
		Adherence:     p.Health.AdherenceWeight,
		Goals:         p.Health.GoalsWeight,
		Consistency:   p.Health.ConsistencyWeight,
		EmergencyFund: p.Health.EmergencyFundWeight,
	}
}

// BudgetAutoAdjust converts the policy into the tracker's parameters.
func (p Policy) BudgetAutoAdjust() budget.AutoAdjustPolicy {
	return budget.AutoAdjustPolicy{
		TrailingPeriods:    p.AutoAdjust.TrailingPeriods,
		Weights:            p.AutoAdjust.Weights,
		MaxDecreasePercent: p.AutoAdjust.MaxDecreasePercent,
	}
}
