package core

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodBoundsWeekly(t *testing.T) {
	anchor := date(2024, time.January, 1)
	cases := []struct {
		ref       time.Time
		idx       int
		start, en time.Time
	}{
		{date(2024, time.January, 1), 0, date(2024, time.January, 1), date(2024, time.January, 8)},
		{date(2024, time.January, 7), 0, date(2024, time.January, 1), date(2024, time.January, 8)},
		{date(2024, time.January, 8), 1, date(2024, time.January, 8), date(2024, time.January, 15)},
		{date(2024, time.March, 4), 9, date(2024, time.March, 4), date(2024, time.March, 11)},
	}
	for i, tc := range cases {
		p, err := PeriodBounds(anchor, Weekly, tc.ref)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if p.Index != tc.idx || !p.Start.Equal(tc.start) || !p.End.Equal(tc.en) {
			t.Fatalf("case %d: got (%d, %v, %v)", i, p.Index, p.Start, p.End)
		}
	}
}

func TestPeriodBoundsMonthlyClamped(t *testing.T) {
	// Anchor on the 31st clamps to shorter months.
	anchor := date(2024, time.January, 31)
	p, err := PeriodBounds(anchor, Monthly, date(2024, time.February, 29))
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if p.Index != 1 || !p.Start.Equal(date(2024, time.February, 29)) || !p.End.Equal(date(2024, time.March, 31)) {
		t.Fatalf("got (%d, %v, %v)", p.Index, p.Start, p.End)
	}

	p, err = PeriodBounds(anchor, Monthly, date(2024, time.February, 28))
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if p.Index != 0 || !p.End.Equal(date(2024, time.February, 29)) {
		t.Fatalf("got (%d, %v, %v)", p.Index, p.Start, p.End)
	}
}

func TestPeriodBoundsQuarterlyAndYearly(t *testing.T) {
	anchor := date(2024, time.February, 15)

	p, err := PeriodBounds(anchor, Quarterly, date(2024, time.July, 1))
	if err != nil {
		t.Fatalf("quarterly: %v", err)
	}
	if p.Index != 1 || !p.Start.Equal(date(2024, time.May, 15)) || !p.End.Equal(date(2024, time.August, 15)) {
		t.Fatalf("quarterly got (%d, %v, %v)", p.Index, p.Start, p.End)
	}

	p, err = PeriodBounds(anchor, Yearly, date(2026, time.January, 1))
	if err != nil {
		t.Fatalf("yearly: %v", err)
	}
	if p.Index != 1 || !p.Start.Equal(date(2025, time.February, 15)) || !p.End.Equal(date(2026, time.February, 15)) {
		t.Fatalf("yearly got (%d, %v, %v)", p.Index, p.Start, p.End)
	}
}

func TestPeriodBoundsErrors(t *testing.T) {
	anchor := date(2024, time.January, 1)
	if _, err := PeriodBounds(anchor, Monthly, date(2023, time.December, 31)); !errors.Is(err, ErrBeforeAnchor) {
		t.Fatalf("expected ErrBeforeAnchor, got %v", err)
	}
	if _, err := PeriodBounds(anchor, "daily", date(2024, time.June, 1)); !errors.Is(err, ErrInvalidPeriodKind) {
		t.Fatalf("expected ErrInvalidPeriodKind, got %v", err)
	}
}

func TestPeriodBoundsIgnoresTimeOfDay(t *testing.T) {
	anchor := date(2024, time.January, 1)
	late := time.Date(2024, time.January, 31, 23, 59, 59, 0, time.UTC)
	p, err := PeriodBounds(anchor, Monthly, late)
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if p.Index != 0 {
		t.Fatalf("expected index 0, got %d", p.Index)
	}
}

func TestPeriodAtMatchesBounds(t *testing.T) {
	anchor := date(2024, time.March, 31)
	for _, kind := range []PeriodKind{Weekly, Monthly, Quarterly, Yearly} {
		for idx := 0; idx < 8; idx++ {
			p, err := PeriodAt(anchor, kind, idx)
			if err != nil {
				t.Fatalf("%s/%d: %v", kind, idx, err)
			}
			got, err := PeriodBounds(anchor, kind, p.Start)
			if err != nil {
				t.Fatalf("%s/%d: %v", kind, idx, err)
			}
			if got.Index != idx || !got.Start.Equal(p.Start) || !got.End.Equal(p.End) {
				t.Fatalf("%s/%d: round trip got (%d, %v, %v)", kind, idx, got.Index, got.Start, got.End)
			}
		}
	}
}
