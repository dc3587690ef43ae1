package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// TransactionMessage is the wire form of a feed transaction. The producer
// guarantees at-most-once semantics per ID; redeliveries are acked and
// dropped on our side.
type TransactionMessage struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Amount       string    `json:"amount"` // decimal major units, e.g. "12.34"
	Category     string    `json:"category"`
	OccurredAt   time.Time `json:"occurred_at"`
	Account      string    `json:"account,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	GoalID       string    `json:"goal_id,omitempty"`
	RecurringRef string    `json:"recurring_ref,omitempty"`
}

// ToTransaction converts the wire form into the domain record.
func (m *TransactionMessage) ToTransaction() (core.Transaction, error) {
	cents, err := core.ParseDecimalToCents(m.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", m.Amount, err)
	}
	txn := core.Transaction{
		ID:           m.ID,
		Kind:         core.TxnKind(m.Kind),
		Amount:       core.Money{Cents: cents},
		Category:     m.Category,
		Timestamp:    m.OccurredAt,
		Account:      m.Account,
		Tags:         m.Tags,
		GoalID:       m.GoalID,
		RecurringRef: m.RecurringRef,
	}
	if err := txn.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return txn, nil
}

func TransactionMessageFromJSON(data []byte) (*TransactionMessage, error) {
	var msg TransactionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// BudgetAlertMessage announces a threshold or exceeded transition on one
// budget period.
type BudgetAlertMessage struct {
	BudgetID    string    `json:"budget_id"`
	PeriodIndex int       `json:"period_index"`
	Kind        string    `json:"kind"`
	Timestamp   time.Time `json:"timestamp"`
}

// GoalMilestoneMessage announces a crossed goal milestone.
type GoalMilestoneMessage struct {
	GoalID    string    `json:"goal_id"`
	Percent   int       `json:"percent"`
	Timestamp time.Time `json:"timestamp"`
}

func (m *BudgetAlertMessage) ToJSON() ([]byte, error)   { return json.Marshal(m) }
func (m *GoalMilestoneMessage) ToJSON() ([]byte, error) { return json.Marshal(m) }
