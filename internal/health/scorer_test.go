package health

import (
	"math/rand"
	"testing"
	"time"

	"fintrack/internal/budget"
	"fintrack/internal/core"
	"fintrack/internal/goals"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func window2024() Window {
	return Window{Start: date(2024, time.January, 1), End: date(2025, time.January, 1)}
}

func txn(id string, kind core.TxnKind, cents int64, ts time.Time) core.Transaction {
	return core.Transaction{ID: id, Kind: kind, Amount: core.Money{Cents: cents}, Category: "General", Timestamp: ts}
}

func TestSavingsRateZeroIncome(t *testing.T) {
	in := Inputs{Transactions: []core.Transaction{
		txn("e1", core.Expense, 50000, date(2024, time.March, 1)),
	}}
	snap := Score(window2024(), in, DefaultWeights())
	if !snap.SavingsRate.Defined || snap.SavingsRate.Value != 0 {
		t.Fatalf("got %+v", snap.SavingsRate)
	}
}

func TestSavingsRateNegative(t *testing.T) {
	in := Inputs{Transactions: []core.Transaction{
		txn("i1", core.Income, 100000, date(2024, time.March, 1)),
		txn("e1", core.Expense, 150000, date(2024, time.March, 2)),
	}}
	snap := Score(window2024(), in, DefaultWeights())
	if !snap.SavingsRate.Defined || snap.SavingsRate.Value != -0.5 {
		t.Fatalf("got %+v", snap.SavingsRate)
	}
}

func TestConsistencyInsufficientData(t *testing.T) {
	in := Inputs{Transactions: []core.Transaction{
		txn("e1", core.Expense, 10000, date(2024, time.January, 5)),
		txn("e2", core.Expense, 10000, date(2024, time.February, 5)),
	}}
	snap := Score(window2024(), in, DefaultWeights())
	if snap.SpendingConsistency.Defined {
		t.Fatalf("expected insufficient data, got %+v", snap.SpendingConsistency)
	}
}

func TestConsistencyPerfectlyEvenSpend(t *testing.T) {
	var txns []core.Transaction
	for i, m := range []time.Month{time.January, time.February, time.March} {
		txns = append(txns, txn(string(rune('a'+i)), core.Expense, 30000, date(2024, m, 10)))
	}
	snap := Score(window2024(), Inputs{Transactions: txns}, DefaultWeights())
	if !snap.SpendingConsistency.Defined || snap.SpendingConsistency.Value != 1 {
		t.Fatalf("got %+v", snap.SpendingConsistency)
	}
}

func TestAdherenceAndGoalProgress(t *testing.T) {
	in := Inputs{
		BudgetStates: []budget.PeriodState{
			{Spent: core.Money{Cents: 40000}, EffectiveLimit: core.Money{Cents: 50000}}, // adherent
			{Spent: core.Money{Cents: 100000}, EffectiveLimit: core.Money{Cents: 50000}}, // 0.5
			{Spent: core.Money{}, EffectiveLimit: core.Money{Cents: 50000}},              // untouched, counts 1
		},
		GoalSnapshots: []goals.Snapshot{
			{Contributed: core.Money{Cents: 50000}, Target: core.Money{Cents: 100000}},  // 0.5
			{Contributed: core.Money{Cents: 300000}, Target: core.Money{Cents: 100000}}, // capped at 1
		},
	}
	snap := Score(window2024(), in, DefaultWeights())
	if !snap.BudgetAdherence.Defined || !near(snap.BudgetAdherence.Value, (1+0.5+1)/3) {
		t.Fatalf("adherence %+v", snap.BudgetAdherence)
	}
	if !snap.GoalProgress.Defined || !near(snap.GoalProgress.Value, 0.75) {
		t.Fatalf("goal progress %+v", snap.GoalProgress)
	}
}

func TestEmergencyFundRatio(t *testing.T) {
	var txns []core.Transaction
	for i, m := range []time.Month{time.January, time.February, time.March} {
		txns = append(txns, txn(string(rune('a'+i)), core.Expense, 100000, date(2024, m, 10)))
	}
	in := Inputs{
		Transactions:     txns,
		LiquidSavings:    core.Money{Cents: 300000},
		HasLiquidSavings: true,
	}
	snap := Score(window2024(), in, DefaultWeights())
	// 3000 saved against 1000/month * 6.
	if !snap.EmergencyFundRatio.Defined || !near(snap.EmergencyFundRatio.Value, 0.5) {
		t.Fatalf("got %+v", snap.EmergencyFundRatio)
	}

	// Without the collaborator-supplied figure the ratio is absent.
	in.HasLiquidSavings = false
	snap = Score(window2024(), in, DefaultWeights())
	if snap.EmergencyFundRatio.Defined {
		t.Fatalf("expected absent ratio")
	}
}

func TestCompositeRenormalizesOverDefined(t *testing.T) {
	// Only income/expense data: savings defined, consistency undefined
	// (1 month), no budgets, no goals, no liquid savings.
	in := Inputs{Transactions: []core.Transaction{
		txn("i1", core.Income, 100000, date(2024, time.March, 1)),
		txn("e1", core.Expense, 50000, date(2024, time.March, 5)),
	}}
	snap := Score(window2024(), in, DefaultWeights())
	// Savings rate 0.5 normalizes to 0.75 and is the only component, so
	// the composite equals it exactly after renormalization.
	if !snap.Composite.Defined || !near(snap.Composite.Value, 0.75) {
		t.Fatalf("got %+v", snap.Composite)
	}
}

func TestCompositeInvariantUnderReordering(t *testing.T) {
	var txns []core.Transaction
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		kind := core.Expense
		if i%3 == 0 {
			kind = core.Income
		}
		m := time.Month(1 + i%12)
		txns = append(txns, txn(string(rune('a'+i%26))+string(rune('0'+i/26)), kind, int64(1000+r.Intn(90000)), date(2024, m, 1+i%28)))
	}
	in := Inputs{Transactions: txns}
	before := Score(window2024(), in, DefaultWeights())

	shuffled := append([]core.Transaction(nil), txns...)
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	after := Score(window2024(), Inputs{Transactions: shuffled}, DefaultWeights())

	if before != after {
		t.Fatalf("snapshots differ:\n%+v\n%+v", before, after)
	}
}

func near(got, want float64) bool {
	d := got - want
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
