// Package health computes composite financial-health metrics over an
// evaluation window. Scoring is pure: the same inputs and window always
// produce an identical snapshot, which makes snapshots safe to memoize.
package health

import (
	"math"
	"sort"
	"time"

	"fintrack/internal/budget"
	"fintrack/internal/core"
	"fintrack/internal/goals"
)

// Metric is an optional component value. Absent metrics are excluded from
// the composite and their weight redistributed, instead of poisoning the
// score with a NaN sentinel.
type Metric struct {
	Value   float64
	Defined bool
}

func defined(v float64) Metric { return Metric{Value: v, Defined: true} }

// Window is the evaluation range, end exclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Weights are the composite shares of each component before
// renormalization over the defined ones. Policy, supplied by config.
type Weights struct {
	Savings       float64
	Adherence     float64
	Goals         float64
	Consistency   float64
	EmergencyFund float64
}

// DefaultWeights mirror the documented policy split.
func DefaultWeights() Weights {
	return Weights{
		Savings:       0.30,
		Adherence:     0.25,
		Goals:         0.20,
		Consistency:   0.15,
		EmergencyFund: 0.10,
	}
}

// Inputs carries everything the scorer reads. LiquidSavings is a
// configuration figure supplied by a collaborator; it cannot be derived
// from transactions without an account-tagging convention.
type Inputs struct {
	Transactions     []core.Transaction
	BudgetStates     []budget.PeriodState
	GoalSnapshots    []goals.Snapshot
	LiquidSavings    core.Money
	HasLiquidSavings bool
}

// Snapshot is the computed health picture for one window.
type Snapshot struct {
	Window              Window
	TotalIncome         core.Money
	TotalExpense        core.Money
	SavingsRate         Metric
	BudgetAdherence     Metric
	GoalProgress        Metric
	SpendingConsistency Metric
	EmergencyFundRatio  Metric
	Composite           Metric
}

// minConsistencyMonths is the least history the consistency index needs
// before it stops reporting insufficient data.
const minConsistencyMonths = 3

// Score aggregates the inputs over the window. Cent sums are integer and
// associative, so the result is invariant under transaction reordering.
func Score(w Window, in Inputs, weights Weights) Snapshot {
	snap := Snapshot{Window: w}

	monthly := map[string]int64{}
	for _, txn := range in.Transactions {
		if !w.contains(txn.Timestamp) {
			continue
		}
		switch txn.Kind {
		case core.Income:
			snap.TotalIncome = snap.TotalIncome.Add(txn.Amount)
		case core.Expense:
			snap.TotalExpense = snap.TotalExpense.Add(txn.Amount)
			monthly[txn.Timestamp.UTC().Format("2006-01")] += txn.Amount.Cents
		}
	}

	// Savings rate: defined even at zero income, where it reports 0
	// rather than dividing.
	if snap.TotalIncome.Cents > 0 {
		net := snap.TotalIncome.Cents - snap.TotalExpense.Cents
		snap.SavingsRate = defined(float64(net) / float64(snap.TotalIncome.Cents))
	} else {
		snap.SavingsRate = defined(0)
	}

	snap.BudgetAdherence = adherence(in.BudgetStates)
	snap.GoalProgress = goalProgress(in.GoalSnapshots)
	snap.SpendingConsistency = consistency(monthly)

	if in.HasLiquidSavings {
		if mean := meanMonthlyExpense(monthly); mean > 0 {
			snap.EmergencyFundRatio = defined(float64(in.LiquidSavings.Cents) / (mean * 6))
		}
	}

	snap.Composite = composite(snap, weights)
	return snap
}

// adherence averages min(1, limit/spent) over the supplied budget states;
// a period with no spend counts as fully adherent.
func adherence(states []budget.PeriodState) Metric {
	if len(states) == 0 {
		return Metric{}
	}
	var sum float64
	for _, st := range states {
		if st.Spent.Cents <= 0 {
			sum++
			continue
		}
		r := float64(st.EffectiveLimit.Cents) / float64(st.Spent.Cents)
		if r > 1 {
			r = 1
		}
		sum += r
	}
	return defined(sum / float64(len(states)))
}

// goalProgress averages contributed/target, each goal capped at 1 before
// averaging so an overshoot cannot mask a lagging goal.
func goalProgress(snaps []goals.Snapshot) Metric {
	if len(snaps) == 0 {
		return Metric{}
	}
	var sum float64
	for _, g := range snaps {
		r := float64(g.Contributed.Cents) / float64(g.Target.Cents)
		if r > 1 {
			r = 1
		}
		if r < 0 {
			r = 0
		}
		sum += r
	}
	return defined(sum / float64(len(snaps)))
}

// consistency is 1 - coefficient of variation of the monthly expense
// totals. Under three months of history, or with a zero mean, it reports
// insufficient data.
func consistency(monthly map[string]int64) Metric {
	if len(monthly) < minConsistencyMonths {
		return Metric{}
	}
	mean := meanMonthlyExpense(monthly)
	if mean <= 0 {
		return Metric{}
	}
	// Iterate in key order: float accumulation over random map order
	// would break bit-identical recomputation.
	months := make([]string, 0, len(monthly))
	for m := range monthly {
		months = append(months, m)
	}
	sort.Strings(months)
	var variance float64
	for _, m := range months {
		d := float64(monthly[m]) - mean
		variance += d * d
	}
	variance /= float64(len(monthly))
	return defined(1 - math.Sqrt(variance)/mean)
}

func meanMonthlyExpense(monthly map[string]int64) float64 {
	if len(monthly) == 0 {
		return 0
	}
	var sum int64
	for _, total := range monthly {
		sum += total
	}
	return float64(sum) / float64(len(monthly))
}

// composite is the weighted sum of the defined components, each
// normalized to [0,1] first, with weights renormalized over whatever is
// present.
func composite(snap Snapshot, w Weights) Metric {
	type part struct {
		m      Metric
		weight float64
		norm   func(float64) float64
	}
	parts := []part{
		// Savings rate is conceptually [-1,1]; shift it into [0,1].
		{snap.SavingsRate, w.Savings, func(v float64) float64 { return (clamp(v, -1, 1) + 1) / 2 }},
		{snap.BudgetAdherence, w.Adherence, func(v float64) float64 { return clamp(v, 0, 1) }},
		{snap.GoalProgress, w.Goals, func(v float64) float64 { return clamp(v, 0, 1) }},
		{snap.SpendingConsistency, w.Consistency, func(v float64) float64 { return clamp(v, 0, 1) }},
		{snap.EmergencyFundRatio, w.EmergencyFund, func(v float64) float64 { return clamp(v, 0, 1) }},
	}

	var sum, weightSum float64
	for _, p := range parts {
		if !p.m.Defined || p.weight <= 0 {
			continue
		}
		sum += p.weight * p.norm(p.m.Value)
		weightSum += p.weight
	}
	if weightSum == 0 {
		return Metric{}
	}
	return defined(sum / weightSum)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
