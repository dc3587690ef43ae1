// Package budget derives per-period spend state for a single budget
// definition: lazy period materialization, rollover of unused balances,
// and set-once alert detection.
package budget

import (
	"errors"
	"time"

	"fintrack/internal/core"
)

const (
	AlertThreshold AlertKind = "threshold"
	AlertExceeded  AlertKind = "exceeded"
)

const (
	StatusGood    = "good"
	StatusOnTrack = "on_track"
	StatusWarning = "warning"
	StatusOver    = "over_budget"
)

type AlertKind string

// Alert is a pure state transition recorded on a period. Dispatching it
// anywhere is the facade's concern.
type Alert struct {
	BudgetID    string
	PeriodIndex int
	Kind        AlertKind
	At          time.Time
}

// PeriodState is the derived state of one (budget, period index) pair.
// Snapshots handed out by the tracker are value copies and stay immutable.
type PeriodState struct {
	Index          int
	Start          time.Time
	End            time.Time
	Spent          core.Money
	CarriedIn      core.Money
	EffectiveLimit core.Money
	AlertFired     bool
	Exceeded       bool
}

// Remaining is the unspent part of the effective limit; negative when the
// budget is blown.
func (s PeriodState) Remaining() core.Money {
	return s.EffectiveLimit.Sub(s.Spent)
}

// SpentPercent is spend as a percentage of the effective limit.
func (s PeriodState) SpentPercent() float64 {
	if s.EffectiveLimit.Cents <= 0 {
		if s.Spent.Cents > 0 {
			return 100
		}
		return 0
	}
	return float64(s.Spent.Cents) / float64(s.EffectiveLimit.Cents) * 100
}

// StatusText classifies the period for display collaborators.
func (s PeriodState) StatusText() string {
	switch {
	case s.Exceeded:
		return StatusOver
	case s.AlertFired:
		return StatusWarning
	case s.SpentPercent() > 50:
		return StatusOnTrack
	default:
		return StatusGood
	}
}

var ErrNoPeriods = errors.New("no completed periods")

// Tracker owns the derived period states of one budget. It is not safe
// for concurrent use; the engine serializes access per budget identity.
type Tracker struct {
	def      core.BudgetDefinition
	periods  map[int]*PeriodState
	resolved int // highest index with carried-in computed, -1 before any
}

func NewTracker(def core.BudgetDefinition) *Tracker {
	return &Tracker{
		def:      def,
		periods:  make(map[int]*PeriodState),
		resolved: -1,
	}
}

func (t *Tracker) Definition() core.BudgetDefinition {
	return t.def
}

// ensure returns the state for index, creating a bare one (bounds only)
// on first touch.
func (t *Tracker) ensure(index int) (*PeriodState, error) {
	if st, ok := t.periods[index]; ok {
		return st, nil
	}
	p, err := core.PeriodAt(t.def.Anchor, t.def.Period, index)
	if err != nil {
		return nil, err
	}
	st := &PeriodState{Index: index, Start: p.Start, End: p.End}
	t.periods[index] = st
	return st, nil
}

// resolveThrough fills carried-in balances and effective limits forward up
// to and including index. Iterative by construction: rollover depends on
// the prior period, and walking forward from the last resolved index keeps
// the work bounded without recursion.
func (t *Tracker) resolveThrough(index int, asOf time.Time) ([]Alert, error) {
	var fired []Alert
	for i := t.resolved + 1; i <= index; i++ {
		st, err := t.ensure(i)
		if err != nil {
			return fired, err
		}
		var carried core.Money
		if t.def.Rollover && i > 0 {
			prev := t.periods[i-1]
			if rest := prev.EffectiveLimit.Sub(prev.Spent); rest.Cents > 0 {
				carried = rest
			}
		}
		st.CarriedIn = carried
		st.EffectiveLimit = t.def.Amount.Add(carried)
		fired = append(fired, t.evaluate(st, asOf)...)
		t.resolved = i
	}
	return fired, nil
}

// evaluate re-checks the alert and exceeded flags. Both are set-once per
// period, so repeated evaluation is idempotent.
func (t *Tracker) evaluate(st *PeriodState, asOf time.Time) []Alert {
	var fired []Alert
	limit := st.EffectiveLimit.Cents
	if !st.AlertFired {
		over := limit <= 0 && st.Spent.Cents > 0
		if limit > 0 && float64(st.Spent.Cents)*100 >= t.def.AlertThreshold*float64(limit) {
			over = true
		}
		if over {
			st.AlertFired = true
			fired = append(fired, Alert{
				BudgetID:    t.def.ID,
				PeriodIndex: st.Index,
				Kind:        AlertThreshold,
				At:          asOf,
			})
		}
	}
	if !st.Exceeded && st.Spent.Cents > limit {
		st.Exceeded = true
		fired = append(fired, Alert{
			BudgetID:    t.def.ID,
			PeriodIndex: st.Index,
			Kind:        AlertExceeded,
			At:          asOf,
		})
	}
	return fired
}

// Matches reports whether a transaction counts against this budget: an
// expense in the budget's category dated on or after the anchor.
func (t *Tracker) Matches(txn core.Transaction) bool {
	if txn.Kind != core.Expense || txn.Category != t.def.Category {
		return false
	}
	_, err := core.PeriodBounds(t.def.Anchor, t.def.Period, txn.Timestamp)
	return err == nil
}

// Record aggregates a transaction into its period. Income and non-matching
// categories are ignored, as are transactions dated before the anchor.
// Alerts are evaluated only for periods that have started by asOf;
// a transaction in a future period sits unevaluated until queried.
func (t *Tracker) Record(txn core.Transaction, asOf time.Time) ([]Alert, error) {
	if txn.Kind != core.Expense || txn.Category != t.def.Category {
		return nil, nil
	}
	p, err := core.PeriodBounds(t.def.Anchor, t.def.Period, txn.Timestamp)
	if err != nil {
		if errors.Is(err, core.ErrBeforeAnchor) {
			return nil, nil
		}
		return nil, err
	}

	st, err := t.ensure(p.Index)
	if err != nil {
		return nil, err
	}
	st.Spent = st.Spent.Add(txn.Amount)

	current, err := core.PeriodBounds(t.def.Anchor, t.def.Period, asOf)
	if err != nil {
		// asOf before anchor: nothing has started yet.
		if errors.Is(err, core.ErrBeforeAnchor) {
			return nil, nil
		}
		return nil, err
	}
	if p.Index > current.Index {
		return nil, nil
	}
	if p.Index <= t.resolved {
		fired := t.evaluate(st, asOf)
		// A late transaction in a closed period shrinks every later
		// carried-in balance; recompute them in place. Flags stay
		// set-once, so this never un-fires an alert.
		if t.def.Rollover {
			fired = append(fired, t.recarry(p.Index+1, asOf)...)
		}
		return fired, nil
	}
	return t.resolveThrough(p.Index, asOf)
}

// recarry recomputes carried-in and effective limits from index forward
// through the resolved range, re-evaluating flags as it goes.
func (t *Tracker) recarry(from int, asOf time.Time) []Alert {
	var fired []Alert
	for i := from; i <= t.resolved; i++ {
		st := t.periods[i]
		var carried core.Money
		if i > 0 {
			prev := t.periods[i-1]
			if rest := prev.EffectiveLimit.Sub(prev.Spent); rest.Cents > 0 {
				carried = rest
			}
		}
		st.CarriedIn = carried
		st.EffectiveLimit = t.def.Amount.Add(carried)
		fired = append(fired, t.evaluate(st, asOf)...)
	}
	return fired
}

// StatusAt returns a snapshot of the period containing asOf, resolving
// earlier periods on demand.
func (t *Tracker) StatusAt(asOf time.Time) (PeriodState, error) {
	p, err := core.PeriodBounds(t.def.Anchor, t.def.Period, asOf)
	if err != nil {
		return PeriodState{}, err
	}
	if _, err := t.resolveThrough(p.Index, asOf); err != nil {
		return PeriodState{}, err
	}
	return *t.periods[p.Index], nil
}

// PendingAlerts resolves the period containing asOf and returns any alerts
// that fired during resolution. The scheduler calls this so threshold
// crossings caused by rollover shrinkage surface without new spend.
func (t *Tracker) PendingAlerts(asOf time.Time) ([]Alert, error) {
	p, err := core.PeriodBounds(t.def.Anchor, t.def.Period, asOf)
	if err != nil {
		return nil, err
	}
	return t.resolveThrough(p.Index, asOf)
}

// completedSpend returns the spent totals of completed periods as of a
// date, most recent first, up to limit entries.
func (t *Tracker) completedSpend(asOf time.Time, limit int) ([]core.Money, error) {
	current, err := core.PeriodBounds(t.def.Anchor, t.def.Period, asOf)
	if err != nil {
		return nil, err
	}
	if current.Index == 0 {
		return nil, nil
	}
	if _, err := t.resolveThrough(current.Index, asOf); err != nil {
		return nil, err
	}
	var out []core.Money
	for i := current.Index - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, t.periods[i].Spent)
	}
	return out, nil
}
