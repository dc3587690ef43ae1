// Package goals derives milestone state and completion forecasts for a
// single goal from explicitly attributed contribution transactions.
package goals

import (
	"time"

	"fintrack/internal/core"
)

// MilestonePercents are the fixed checkpoints every goal carries.
var MilestonePercents = []int{25, 50, 75, 100}

// Milestone is a checkpoint on the way to the target. Reached is
// monotonic: a later withdrawal never clears it.
type Milestone struct {
	Percent   int
	Reached   bool
	ReachedAt time.Time
}

// MilestoneEvent reports a milestone crossed by one attribution.
type MilestoneEvent struct {
	GoalID  string
	Percent int
	At      time.Time
}

type contribution struct {
	amount core.Money // signed: withdrawals are negative
	at     time.Time
}

// State owns the derived progress of one goal. Like the budget tracker it
// is single-writer; the engine serializes access per goal identity.
type State struct {
	def           core.GoalDefinition
	contributed   core.Money
	milestones    []Milestone
	contributions []contribution
	completedAt   time.Time
}

func NewState(def core.GoalDefinition) *State {
	ms := make([]Milestone, len(MilestonePercents))
	for i, pct := range MilestonePercents {
		ms[i] = Milestone{Percent: pct}
	}
	return &State{def: def, milestones: ms}
}

func (s *State) Definition() core.GoalDefinition {
	return s.def
}

// Attribute applies a transaction the collaborator has linked to this
// goal. Income adds to the contributed amount, an expense is a withdrawal.
// Contributions past 100% are accepted; the amount is never capped at the
// target.
func (s *State) Attribute(txn core.Transaction) ([]MilestoneEvent, error) {
	if err := txn.Validate(); err != nil {
		return nil, err
	}
	amount := txn.Amount
	if txn.Kind == core.Expense {
		amount = core.Money{Cents: -amount.Cents}
	}
	s.contributed = s.contributed.Add(amount)
	s.contributions = append(s.contributions, contribution{amount: amount, at: txn.Timestamp})

	events := s.recompute(txn.Timestamp)
	if s.completedAt.IsZero() && s.contributed.Cents >= s.def.Target.Cents {
		s.completedAt = txn.Timestamp
	}
	return events, nil
}

// recompute marks every milestone whose threshold the contributed amount
// now meets, stamping it with the triggering transaction's timestamp.
// Reached flags are never reversed.
func (s *State) recompute(at time.Time) []MilestoneEvent {
	var events []MilestoneEvent
	for i := range s.milestones {
		m := &s.milestones[i]
		if m.Reached {
			continue
		}
		if s.contributed.Cents*100 >= int64(m.Percent)*s.def.Target.Cents {
			m.Reached = true
			m.ReachedAt = at
			events = append(events, MilestoneEvent{GoalID: s.def.ID, Percent: m.Percent, At: at})
		}
	}
	return events
}

// Snapshot is an immutable view of goal progress as of a point in time.
type Snapshot struct {
	GoalID          string
	Name            string
	Priority        core.Priority
	Target          core.Money
	Contributed     core.Money
	Remaining       core.Money
	ProgressPercent float64
	Milestones      []Milestone
	Completed       bool
	CompletedAt     time.Time
	Overdue         bool
	DaysRemaining   int

	// RequiredPerDay is the contribution rate needed to hit the target
	// date; undefined once the date has passed or the goal is done.
	RequiredPerDay    core.Money
	HasRequiredRate   bool
	DailyNeeded       core.Money
	OnTrack           bool

	// Projected completion from the trailing contribution rate;
	// HasForecast is false when no recent contributions exist
	// (rate undefined, reported as a value rather than an error).
	ProjectedCompletion time.Time
	HasForecast         bool
}

// forecastWindowMonths is the trailing observation span for the average
// contribution rate.
const forecastWindowMonths = 3

func (s *State) Snapshot(asOf time.Time) Snapshot {
	snap := Snapshot{
		GoalID:      s.def.ID,
		Name:        s.def.Name,
		Priority:    s.def.Priority,
		Target:      s.def.Target,
		Contributed: s.contributed,
		Milestones:  append([]Milestone(nil), s.milestones...),
		CompletedAt: s.completedAt,
	}
	if rest := s.def.Target.Sub(s.contributed); rest.Cents > 0 {
		snap.Remaining = rest
	}
	if s.def.Target.Cents > 0 {
		snap.ProgressPercent = float64(s.contributed.Cents) / float64(s.def.Target.Cents) * 100
	}
	snap.Completed = s.contributed.Cents >= s.def.Target.Cents

	days := int(dateOf(s.def.TargetDate).Sub(dateOf(asOf)).Hours() / 24)
	if days > 0 {
		snap.DaysRemaining = days
		if !snap.Completed {
			snap.RequiredPerDay = core.Money{Cents: ceilDiv(snap.Remaining.Cents, int64(days))}
			snap.HasRequiredRate = true
			snap.DailyNeeded = snap.RequiredPerDay
		}
	} else if !snap.Completed {
		snap.Overdue = true
	}

	snap.OnTrack = s.onTrack(asOf, snap.ProgressPercent)

	if !snap.Completed {
		if rate := s.trailingDailyRate(asOf); rate > 0 {
			need := float64(snap.Remaining.Cents) / rate
			snap.ProjectedCompletion = dateOf(asOf).AddDate(0, 0, int(need+0.5))
			snap.HasForecast = true
		}
	}
	return snap
}

// trailingDailyRate averages net contributions over the trailing forecast
// window, in cents per day. Zero means the rate is undefined.
func (s *State) trailingDailyRate(asOf time.Time) float64 {
	start := dateOf(asOf).AddDate(0, -forecastWindowMonths, 0)
	var sum int64
	for _, c := range s.contributions {
		if c.at.Before(start) || c.at.After(asOf) {
			continue
		}
		sum += c.amount.Cents
	}
	if sum <= 0 {
		return 0
	}
	days := dateOf(asOf).Sub(start).Hours() / 24
	if days < 1 {
		days = 1
	}
	return float64(sum) / days
}

// onTrack compares actual progress with linear expected progress between
// creation and target date, with a 10% tolerance.
func (s *State) onTrack(asOf time.Time, progressPercent float64) bool {
	total := dateOf(s.def.TargetDate).Sub(dateOf(s.def.CreatedAt)).Hours() / 24
	if total <= 0 {
		return true
	}
	elapsed := dateOf(asOf).Sub(dateOf(s.def.CreatedAt)).Hours() / 24
	expected := elapsed / total * 100
	return progressPercent >= expected*0.9
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
