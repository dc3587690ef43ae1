package core

import (
	"testing"
	"time"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		ID:        "t1",
		Kind:      Expense,
		Amount:    Money{Cents: 1250},
		Category:  "Food",
		Timestamp: time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{ID: "", Kind: Expense, Amount: Money{Cents: 1}, Category: "c", Timestamp: good.Timestamp},
		{ID: "t", Kind: "transfer", Amount: Money{Cents: 1}, Category: "c", Timestamp: good.Timestamp},
		{ID: "t", Kind: Income, Amount: Money{Cents: -1}, Category: "c", Timestamp: good.Timestamp},
		{ID: "t", Kind: Income, Amount: Money{Cents: 1}, Category: "", Timestamp: good.Timestamp},
		{ID: "t", Kind: Income, Amount: Money{Cents: 1}, Category: "c"}, // zero time
	}
	for i, txn := range bads {
		if err := txn.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}

	zero := good
	zero.Amount = Money{Cents: 0}
	if err := zero.Validate(); err != nil {
		t.Fatalf("zero amount should be accepted, got %v", err)
	}
}

func TestBudgetDefinitionValidate(t *testing.T) {
	anchor := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	good := BudgetDefinition{
		ID:             "b1",
		Name:           "Food",
		Category:       "Food",
		Period:         Monthly,
		Amount:         Money{Cents: 50000},
		AlertThreshold: 80,
		Anchor:         anchor,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		mutate func(*BudgetDefinition)
	}{
		{func(b *BudgetDefinition) { b.Name = " " }},
		{func(b *BudgetDefinition) { b.Category = "" }},
		{func(b *BudgetDefinition) { b.Period = "fortnightly" }},
		{func(b *BudgetDefinition) { b.Amount = Money{Cents: 0} }},
		{func(b *BudgetDefinition) { b.AlertThreshold = 101 }},
		{func(b *BudgetDefinition) { b.AlertThreshold = -1 }},
		{func(b *BudgetDefinition) { b.Anchor = time.Time{} }},
	}
	for i, tc := range cases {
		b := good
		tc.mutate(&b)
		if err := b.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestGoalDefinitionValidate(t *testing.T) {
	good := GoalDefinition{
		ID:         "g1",
		Name:       "Emergency Fund",
		Target:     Money{Cents: 1000000},
		TargetDate: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Priority:   PriorityHigh,
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := good
	bad.Target = Money{Cents: 0}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for zero target")
	}
	bad = good
	bad.Priority = "urgent"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for unknown priority")
	}
}
