package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TxnKind = "income"
	Expense TxnKind = "expense"
)

const (
	Weekly    PeriodKind = "weekly"
	Monthly   PeriodKind = "monthly"
	Quarterly PeriodKind = "quarterly"
	Yearly    PeriodKind = "yearly"
)

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

type (
	TxnKind    string
	PeriodKind string
	Priority   string

	Money struct {
		Cents int64
	}

	// Transaction is an immutable record supplied by the transaction feed.
	// The engine only reads it; edits upstream produce a new version under
	// the same ID.
	Transaction struct {
		ID           string
		Kind         TxnKind
		Amount       Money
		Category     string
		Timestamp    time.Time
		Account      string
		Tags         []string
		GoalID       string // explicit goal attribution, empty if none
		RecurringRef string // schedule that produced this record, if any
	}

	// BudgetDefinition is user-owned configuration. The engine never
	// mutates it; auto-adjust recommendations are applied through an
	// explicit upsert by the caller.
	BudgetDefinition struct {
		ID             string
		Name           string
		Category       string
		Period         PeriodKind
		Amount         Money
		AlertThreshold float64 // percent of effective limit, 0-100
		Rollover       bool
		Anchor         time.Time
		AutoAdjust     bool
	}

	GoalDefinition struct {
		ID         string
		Name       string
		Target     Money
		TargetDate time.Time
		Category   string
		Priority   Priority
		CreatedAt  time.Time
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyID           = errors.New("empty id")
	ErrEmptyName         = errors.New("empty name")
	ErrInvalidKind       = errors.New("invalid transaction kind")
	ErrInvalidPeriodKind = errors.New("invalid period kind")
	ErrInvalidThreshold  = errors.New("alert threshold out of range")
	ErrInvalidPriority   = errors.New("invalid priority")
	ErrZeroTime          = errors.New("zero time")
	ErrBeforeAnchor      = errors.New("reference date before anchor")
)

func (k TxnKind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidKind
	}
}

func (k PeriodKind) Validate() error {
	switch k {
	case Weekly, Monthly, Quarterly, Yearly:
		return nil
	default:
		return ErrInvalidPeriodKind
	}
}

func (p Priority) Validate() error {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return nil
	default:
		return ErrInvalidPriority
	}
}

// Validate checks a transaction as delivered by the feed. Zero amounts are
// accepted; negative amounts are not representable upstream and rejected.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if t.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if t.Timestamp.IsZero() {
		return ErrZeroTime
	}
	if strings.TrimSpace(t.Category) == "" {
		return errors.New("empty category")
	}
	return nil
}

func (b BudgetDefinition) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(b.Category) == "" {
		return errors.New("empty category")
	}
	if err := b.Period.Validate(); err != nil {
		return err
	}
	if b.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if b.AlertThreshold < 0 || b.AlertThreshold > 100 {
		return ErrInvalidThreshold
	}
	if b.Anchor.IsZero() {
		return ErrZeroTime
	}
	return nil
}

func (g GoalDefinition) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if g.Target.Cents <= 0 {
		return ErrInvalidAmount
	}
	if g.TargetDate.IsZero() {
		return ErrZeroTime
	}
	if g.CreatedAt.IsZero() {
		return ErrZeroTime
	}
	if err := g.Priority.Validate(); err != nil {
		return err
	}
	return nil
}
