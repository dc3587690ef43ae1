// Package storage persists the transaction log and the budget/goal
// definitions in SQLite. Derived state is never stored; the engine is
// rehydrated from the log at startup.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

// ErrDuplicateID is returned when an insert collides with an existing
// primary key, i.e. the feed redelivered a transaction.
var ErrDuplicateID = errors.New("duplicate id")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AppendTransaction writes a feed transaction to the log. Redelivered
// ids report ErrDuplicateID so the consumer can ack and move on.
func (r *SQLiteRepository) AppendTransaction(ctx context.Context, txn core.Transaction) error {
	tags, err := encodeTags(txn.Tags)
	if err != nil {
		return fmt.Errorf("encode tags for %s: %w", txn.ID, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, kind, amount_cents, category, occurred_at, account, tags, goal_id, recurring_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, string(txn.Kind), txn.Amount.Cents, txn.Category,
		txn.Timestamp.UTC().Format(time.RFC3339Nano), txn.Account,
		tags, txn.GoalID, txn.RecurringRef,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("transaction %s: %w", txn.ID, ErrDuplicateID)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the whole log ordered by occurrence then id,
// the replay order the engine rehydrates from.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, amount_cents, category, occurred_at, account, tags, goal_id, recurring_ref
		FROM transactions
		ORDER BY occurred_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			txn        core.Transaction
			kind       string
			occurredAt string
			tags       string
		)
		if err := rows.Scan(&txn.ID, &kind, &txn.Amount.Cents, &txn.Category,
			&occurredAt, &txn.Account, &tags, &txn.GoalID, &txn.RecurringRef); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txn.Kind = core.TxnKind(kind)
		ts, err := time.Parse(time.RFC3339Nano, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parse occurred_at for %s: %w", txn.ID, err)
		}
		txn.Timestamp = ts
		if txn.Tags, err = decodeTags(tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", txn.ID, err)
		}
		out = append(out, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// UpsertBudget stores a budget definition.
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, def core.BudgetDefinition) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (id, name, category, period, amount_cents, alert_threshold, rollover, anchor, auto_adjust, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			period = excluded.period,
			amount_cents = excluded.amount_cents,
			alert_threshold = excluded.alert_threshold,
			rollover = excluded.rollover,
			anchor = excluded.anchor,
			auto_adjust = excluded.auto_adjust,
			updated_at = datetime('now')`,
		def.ID, def.Name, def.Category, string(def.Period), def.Amount.Cents,
		def.AlertThreshold, boolToInt(def.Rollover),
		def.Anchor.UTC().Format(time.RFC3339), boolToInt(def.AutoAdjust),
	)
	if err != nil {
		return fmt.Errorf("upsert budget %s: %w", def.ID, err)
	}
	return nil
}

// DeleteBudget removes a budget definition.
func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete budget %s: %w", id, err)
	}
	return nil
}

// ListBudgets returns all stored budget definitions.
func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.BudgetDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, category, period, amount_cents, alert_threshold, rollover, anchor, auto_adjust
		FROM budgets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetDefinition
	for rows.Next() {
		var (
			def              core.BudgetDefinition
			period, anchor   string
			rollover, adjust int
		)
		if err := rows.Scan(&def.ID, &def.Name, &def.Category, &period,
			&def.Amount.Cents, &def.AlertThreshold, &rollover, &anchor, &adjust); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		def.Period = core.PeriodKind(period)
		ts, err := time.Parse(time.RFC3339, anchor)
		if err != nil {
			return nil, fmt.Errorf("parse anchor for %s: %w", def.ID, err)
		}
		def.Anchor = ts
		def.Rollover = rollover != 0
		def.AutoAdjust = adjust != 0
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

// UpsertGoal stores a goal definition.
func (r *SQLiteRepository) UpsertGoal(ctx context.Context, def core.GoalDefinition) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goals (id, name, target_cents, target_date, category, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			target_cents = excluded.target_cents,
			target_date = excluded.target_date,
			category = excluded.category,
			priority = excluded.priority,
			updated_at = datetime('now')`,
		def.ID, def.Name, def.Target.Cents,
		def.TargetDate.UTC().Format(time.RFC3339), def.Category,
		string(def.Priority), def.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert goal %s: %w", def.ID, err)
	}
	return nil
}

// DeleteGoal removes a goal definition.
func (r *SQLiteRepository) DeleteGoal(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete goal %s: %w", id, err)
	}
	return nil
}

// ListGoals returns all stored goal definitions.
func (r *SQLiteRepository) ListGoals(ctx context.Context) ([]core.GoalDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, target_cents, target_date, category, priority, created_at
		FROM goals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var out []core.GoalDefinition
	for rows.Next() {
		var (
			def                            core.GoalDefinition
			targetDate, priority, created  string
		)
		if err := rows.Scan(&def.ID, &def.Name, &def.Target.Cents,
			&targetDate, &def.Category, &priority, &created); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		def.Priority = core.Priority(priority)
		td, err := time.Parse(time.RFC3339, targetDate)
		if err != nil {
			return nil, fmt.Errorf("parse target_date for %s: %w", def.ID, err)
		}
		def.TargetDate = td
		ca, err := time.Parse(time.RFC3339, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for %s: %w", def.ID, err)
		}
		def.CreatedAt = ca
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	return out, nil
}

// Tags are stored as a JSON array so values containing the old comma
// separator survive the round trip.
func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "", nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeTags(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
