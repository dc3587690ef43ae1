package budget

import (
	"testing"
	"time"

	"fintrack/internal/core"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func foodBudget(rollover bool) core.BudgetDefinition {
	return core.BudgetDefinition{
		ID:             "b-food",
		Name:           "Food",
		Category:       "Food",
		Period:         core.Monthly,
		Amount:         core.Money{Cents: 50000},
		AlertThreshold: 80,
		Rollover:       rollover,
		Anchor:         date(2024, time.January, 1),
	}
}

func expense(id string, cents int64, ts time.Time) core.Transaction {
	return core.Transaction{
		ID:        id,
		Kind:      core.Expense,
		Amount:    core.Money{Cents: cents},
		Category:  "Food",
		Timestamp: ts,
	}
}

func TestAlertFiresAtThreshold(t *testing.T) {
	tr := NewTracker(foodBudget(false))
	asOf := date(2024, time.January, 31)

	alerts, err := tr.Record(expense("t1", 20000, date(2024, time.January, 5)), asOf)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("unexpected alerts at 40%%: %v", alerts)
	}

	alerts, err = tr.Record(expense("t2", 22000, date(2024, time.January, 20)), asOf)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Kind != AlertThreshold || alerts[0].PeriodIndex != 0 {
		t.Fatalf("expected one threshold alert, got %v", alerts)
	}

	st, err := tr.StatusAt(asOf)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Spent.Cents != 42000 || st.EffectiveLimit.Cents != 50000 {
		t.Fatalf("got spent=%d limit=%d", st.Spent.Cents, st.EffectiveLimit.Cents)
	}
	if !st.AlertFired || st.Exceeded {
		t.Fatalf("got alert=%v exceeded=%v", st.AlertFired, st.Exceeded)
	}
	if st.StatusText() != StatusWarning {
		t.Fatalf("got status %q", st.StatusText())
	}
}

func TestAlertIsSetOnce(t *testing.T) {
	tr := NewTracker(foodBudget(false))
	asOf := date(2024, time.January, 31)

	if _, err := tr.Record(expense("t1", 45000, date(2024, time.January, 5)), asOf); err != nil {
		t.Fatalf("record: %v", err)
	}
	alerts, err := tr.Record(expense("t2", 1000, date(2024, time.January, 6)), asOf)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("alert fired twice: %v", alerts)
	}
}

func TestExceededInFebruary(t *testing.T) {
	tr := NewTracker(foodBudget(false))
	asOf := date(2024, time.February, 28)

	alerts, err := tr.Record(expense("t1", 52000, date(2024, time.February, 10)), asOf)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected threshold+exceeded, got %v", alerts)
	}

	st, err := tr.StatusAt(asOf)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.Exceeded || !st.AlertFired {
		t.Fatalf("got alert=%v exceeded=%v", st.AlertFired, st.Exceeded)
	}
	if st.StatusText() != StatusOver {
		t.Fatalf("got status %q", st.StatusText())
	}
}

func TestRolloverCarriesUnusedBalance(t *testing.T) {
	tr := NewTracker(foodBudget(true))

	if _, err := tr.Record(expense("t1", 30000, date(2024, time.January, 10)), date(2024, time.January, 10)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := tr.Record(expense("t2", 10000, date(2024, time.February, 10)), date(2024, time.February, 10)); err != nil {
		t.Fatalf("record: %v", err)
	}

	st, err := tr.StatusAt(date(2024, time.March, 15))
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	// Jan leaves 200, Feb limit 700 with 100 spent leaves 600.
	if st.CarriedIn.Cents != 60000 || st.EffectiveLimit.Cents != 110000 {
		t.Fatalf("got carried=%d limit=%d", st.CarriedIn.Cents, st.EffectiveLimit.Cents)
	}
}

func TestRolloverInvariantAcrossPeriods(t *testing.T) {
	tr := NewTracker(foodBudget(true))
	spends := []int64{48000, 61000, 10000, 0, 52000}
	for i, cents := range spends {
		ts := date(2024, time.January, 1).AddDate(0, i, 5)
		if cents == 0 {
			continue
		}
		if _, err := tr.Record(expense(ts.Format("2006-01"), cents, ts), ts); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	asOf := date(2024, time.June, 1)
	if _, err := tr.StatusAt(asOf); err != nil {
		t.Fatalf("status: %v", err)
	}
	for i := 1; i <= 5; i++ {
		prev, cur := tr.periods[i-1], tr.periods[i]
		want := prev.EffectiveLimit.Cents - prev.Spent.Cents
		if want < 0 {
			want = 0
		}
		if cur.CarriedIn.Cents != want {
			t.Fatalf("period %d carried=%d want %d", i, cur.CarriedIn.Cents, want)
		}
	}
}

func TestNoRolloverLimitEqualsAmount(t *testing.T) {
	tr := NewTracker(foodBudget(false))
	if _, err := tr.Record(expense("t1", 10000, date(2024, time.January, 10)), date(2024, time.January, 10)); err != nil {
		t.Fatalf("record: %v", err)
	}
	for _, asOf := range []time.Time{
		date(2024, time.January, 15),
		date(2024, time.March, 15),
		date(2024, time.August, 15),
	} {
		st, err := tr.StatusAt(asOf)
		if err != nil {
			t.Fatalf("status at %v: %v", asOf, err)
		}
		if st.EffectiveLimit.Cents != 50000 || st.CarriedIn.Cents != 0 {
			t.Fatalf("at %v got limit=%d carried=%d", asOf, st.EffectiveLimit.Cents, st.CarriedIn.Cents)
		}
	}
}

func TestIgnoresNonMatchingTransactions(t *testing.T) {
	tr := NewTracker(foodBudget(false))
	asOf := date(2024, time.January, 31)

	income := core.Transaction{ID: "i1", Kind: core.Income, Amount: core.Money{Cents: 99999}, Category: "Food", Timestamp: date(2024, time.January, 5)}
	other := core.Transaction{ID: "o1", Kind: core.Expense, Amount: core.Money{Cents: 99999}, Category: "Travel", Timestamp: date(2024, time.January, 5)}
	early := expense("e1", 99999, date(2023, time.December, 25))

	for _, txn := range []core.Transaction{income, other, early} {
		alerts, err := tr.Record(txn, asOf)
		if err != nil || len(alerts) != 0 {
			t.Fatalf("txn %s: alerts=%v err=%v", txn.ID, alerts, err)
		}
	}

	st, err := tr.StatusAt(asOf)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Spent.Cents != 0 {
		t.Fatalf("spent=%d, want 0", st.Spent.Cents)
	}
}

func TestFuturePeriodRecordedButNotEvaluated(t *testing.T) {
	tr := NewTracker(foodBudget(false))
	asOf := date(2024, time.January, 10)

	alerts, err := tr.Record(expense("t1", 52000, date(2024, time.March, 5)), asOf)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("future period produced alerts: %v", alerts)
	}

	// Querying the period later surfaces the flags.
	st, err := tr.StatusAt(date(2024, time.March, 20))
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Spent.Cents != 52000 || !st.Exceeded {
		t.Fatalf("got spent=%d exceeded=%v", st.Spent.Cents, st.Exceeded)
	}
}

func TestStatusSnapshotIsStable(t *testing.T) {
	tr := NewTracker(foodBudget(true))
	if _, err := tr.Record(expense("t1", 12300, date(2024, time.January, 3)), date(2024, time.January, 3)); err != nil {
		t.Fatalf("record: %v", err)
	}
	asOf := date(2024, time.February, 14)
	a, err := tr.StatusAt(asOf)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	b, err := tr.StatusAt(asOf)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if a != b {
		t.Fatalf("snapshots differ: %+v vs %+v", a, b)
	}
}

func TestLateTransactionShrinksLaterCarry(t *testing.T) {
	tr := NewTracker(foodBudget(true))
	if _, err := tr.Record(expense("t1", 20000, date(2024, time.January, 10)), date(2024, time.January, 10)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := tr.StatusAt(date(2024, time.February, 5)); err != nil {
		t.Fatalf("status: %v", err)
	}

	// Late January expense arrives after February resolved.
	if _, err := tr.Record(expense("t2", 25000, date(2024, time.January, 28)), date(2024, time.February, 5)); err != nil {
		t.Fatalf("record: %v", err)
	}
	st, err := tr.StatusAt(date(2024, time.February, 5))
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.CarriedIn.Cents != 5000 {
		t.Fatalf("carried=%d, want 5000", st.CarriedIn.Cents)
	}
}
