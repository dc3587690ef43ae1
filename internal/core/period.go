package core

import "time"

// Period is one budget window. Start is inclusive, End exclusive, and
// Index counts complete periods since the anchor, starting at 0.
type Period struct {
	Index int
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

func monthsPerPeriod(kind PeriodKind) int {
	switch kind {
	case Monthly:
		return 1
	case Quarterly:
		return 3
	case Yearly:
		return 12
	}
	return 0
}

// dateOf truncates a timestamp to its UTC calendar day. Period math works
// on dates; intra-day times never move a boundary.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// addMonthsClamped advances a date by n calendar months, keeping the
// anchor's day-of-month but clamping to the target month's length, so an
// anchor on the 31st lands on the 28th/29th/30th where needed. Each
// boundary is computed from the anchor, never from the previous boundary,
// so clamping does not drift.
func addMonthsClamped(anchor time.Time, n int) time.Time {
	y, m, d := anchor.Date()
	total := int(m) - 1 + n
	ty := y + total/12
	tm := time.Month(total%12 + 1)
	if total < 0 && total%12 != 0 {
		ty--
		tm = time.Month(total%12 + 12 + 1)
	}
	if max := daysInMonth(ty, tm); d > max {
		d = max
	}
	return time.Date(ty, tm, d, 0, 0, 0, 0, time.UTC)
}

// PeriodAt returns the period with the given zero-based index.
func PeriodAt(anchor time.Time, kind PeriodKind, index int) (Period, error) {
	if err := kind.Validate(); err != nil {
		return Period{}, err
	}
	start := dateOf(anchor)
	if kind == Weekly {
		return Period{
			Index: index,
			Start: start.AddDate(0, 0, 7*index),
			End:   start.AddDate(0, 0, 7*(index+1)),
		}, nil
	}
	step := monthsPerPeriod(kind)
	return Period{
		Index: index,
		Start: addMonthsClamped(start, index*step),
		End:   addMonthsClamped(start, (index+1)*step),
	}, nil
}

// PeriodBounds locates the period containing the reference date. It is
// pure and deterministic; both the budget tracker and the goal engine rely
// on it producing identical boundaries for identical inputs. A reference
// before the anchor reports ErrBeforeAnchor.
func PeriodBounds(anchor time.Time, kind PeriodKind, ref time.Time) (Period, error) {
	if err := kind.Validate(); err != nil {
		return Period{}, err
	}
	start := dateOf(anchor)
	day := dateOf(ref)
	if day.Before(start) {
		return Period{}, ErrBeforeAnchor
	}

	if kind == Weekly {
		days := int(day.Sub(start).Hours() / 24)
		return PeriodAt(anchor, kind, days/7)
	}

	step := monthsPerPeriod(kind)
	months := (day.Year()-start.Year())*12 + int(day.Month()) - int(start.Month())
	idx := months / step
	if idx < 0 {
		idx = 0
	}
	// The day-of-month clamp can put the estimate one off in either
	// direction; settle it against the real boundaries.
	for {
		p, err := PeriodAt(anchor, kind, idx)
		if err != nil {
			return Period{}, err
		}
		if day.Before(p.Start) {
			idx--
			continue
		}
		if !day.Before(p.End) {
			idx++
			continue
		}
		return p, nil
	}
}
