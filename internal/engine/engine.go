// Package engine is the single entry point the outer layers see. It owns
// all derived state (budget period states, goal progress, health
// snapshots), serializes recomputation per entity, and reports alert side
// effects through a non-blocking sink.
package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/budget"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/goals"
	"fintrack/internal/health"
	"fintrack/internal/log"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateTransaction = errors.New("duplicate transaction id")
)

// AlertSink receives alert and milestone events. Implementations must not
// block; the engine invokes them asynchronously and never waits.
type AlertSink interface {
	OnBudgetAlert(alert budget.Alert)
	OnGoalMilestone(event goals.MilestoneEvent)
}

// Options configures an engine. Zero-value fields fall back to defaults.
type Options struct {
	AutoAdjust    budget.AutoAdjustPolicy
	HealthWeights health.Weights
	Sink          AlertSink
	Logger        *log.Logger
	Now           func() time.Time
	CacheSize     int
}

type budgetEntry struct {
	mu      sync.Mutex
	tracker *budget.Tracker
}

type goalEntry struct {
	mu    sync.Mutex
	state *goals.State
}

type Engine struct {
	mu      sync.RWMutex
	budgets map[string]*budgetEntry
	goals   map[string]*goalEntry
	txns    []core.Transaction
	seen    map[string]struct{}
	version uint64
	writing int // records in flight past the version bump

	liquid    core.Money
	hasLiquid bool

	autoAdjust budget.AutoAdjustPolicy
	weights    health.Weights
	sink       AlertSink
	logger     *log.Logger
	now        func() time.Time
	snapshots  *cache.LRU[health.Snapshot]
}

func New(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.ParseLevel("info"))
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = 64
	}
	if opts.AutoAdjust.TrailingPeriods == 0 {
		opts.AutoAdjust = budget.DefaultAutoAdjustPolicy()
	}
	if opts.HealthWeights == (health.Weights{}) {
		opts.HealthWeights = health.DefaultWeights()
	}
	return &Engine{
		budgets:    make(map[string]*budgetEntry),
		goals:      make(map[string]*goalEntry),
		seen:       make(map[string]struct{}),
		autoAdjust: opts.AutoAdjust,
		weights:    opts.HealthWeights,
		sink:       opts.Sink,
		logger:     opts.Logger.WithComponent(log.ComponentEngine),
		now:        opts.Now,
		snapshots:  cache.NewLRU[health.Snapshot](opts.CacheSize),
	}
}

// RecordResult reports what one transaction touched.
type RecordResult struct {
	AffectedBudgetIDs []string
	AffectedGoalIDs   []string
	FiredAlerts       []budget.Alert
	Milestones        []goals.MilestoneEvent
}

// RecordTransaction feeds one transaction into every matching budget and,
// when attributed, into its goal. Delivery is at-most-once by id: a
// duplicate is rejected with ErrDuplicateTransaction and counted nowhere.
func (e *Engine) RecordTransaction(txn core.Transaction) (RecordResult, error) {
	res, err := e.record(txn, true)
	if err != nil {
		return res, err
	}
	e.dispatch(res)
	return res, nil
}

func (e *Engine) record(txn core.Transaction, bumpVersion bool) (RecordResult, error) {
	var res RecordResult
	if err := txn.Validate(); err != nil {
		return res, fmt.Errorf("validate transaction: %w", err)
	}

	e.mu.Lock()
	if _, dup := e.seen[txn.ID]; dup {
		e.mu.Unlock()
		return res, fmt.Errorf("transaction %s: %w", txn.ID, ErrDuplicateTransaction)
	}
	var ge *goalEntry
	if txn.GoalID != "" {
		var ok bool
		if ge, ok = e.goals[txn.GoalID]; !ok {
			e.mu.Unlock()
			return res, fmt.Errorf("goal %s: %w", txn.GoalID, ErrNotFound)
		}
	}
	e.seen[txn.ID] = struct{}{}
	e.txns = append(e.txns, txn)
	if bumpVersion {
		e.version++
	}
	e.writing++
	entries := make([]*budgetEntry, 0, len(e.budgets))
	ids := make([]string, 0, len(e.budgets))
	for id := range e.budgets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		entries = append(entries, e.budgets[id])
	}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.writing--
		e.mu.Unlock()
	}()

	asOf := e.now()
	for _, be := range entries {
		be.mu.Lock()
		if !be.tracker.Matches(txn) {
			be.mu.Unlock()
			continue
		}
		alerts, err := be.tracker.Record(txn, asOf)
		id := be.tracker.Definition().ID
		be.mu.Unlock()
		if err != nil {
			return res, fmt.Errorf("budget %s: record: %w", id, err)
		}
		res.AffectedBudgetIDs = append(res.AffectedBudgetIDs, id)
		res.FiredAlerts = append(res.FiredAlerts, alerts...)
	}

	if ge != nil {
		ge.mu.Lock()
		events, err := ge.state.Attribute(txn)
		ge.mu.Unlock()
		if err != nil {
			return res, fmt.Errorf("goal %s: attribute: %w", txn.GoalID, err)
		}
		res.AffectedGoalIDs = append(res.AffectedGoalIDs, txn.GoalID)
		res.Milestones = append(res.Milestones, events...)
	}
	return res, nil
}

// dispatch hands side effects to the sink without blocking the caller.
func (e *Engine) dispatch(res RecordResult) {
	if e.sink == nil || (len(res.FiredAlerts) == 0 && len(res.Milestones) == 0) {
		return
	}
	alerts := append([]budget.Alert(nil), res.FiredAlerts...)
	milestones := append([]goals.MilestoneEvent(nil), res.Milestones...)
	go func() {
		for _, a := range alerts {
			e.sink.OnBudgetAlert(a)
		}
		for _, m := range milestones {
			e.sink.OnGoalMilestone(m)
		}
	}()
}

// Rehydrate replays a stored transaction log. Duplicates are skipped and
// nothing reaches the sink: replayed alerts are history, not news.
func (e *Engine) Rehydrate(txns []core.Transaction) error {
	for _, txn := range txns {
		if _, err := e.record(txn, false); err != nil {
			if errors.Is(err, ErrDuplicateTransaction) {
				continue
			}
			if errors.Is(err, ErrNotFound) {
				e.logger.Warn("dropping attribution to unknown goal during rehydrate",
					log.FieldTxnID, txn.ID, log.FieldGoalID, txn.GoalID)
				unlinked := txn
				unlinked.GoalID = ""
				if _, err := e.record(unlinked, false); err != nil && !errors.Is(err, ErrDuplicateTransaction) {
					return fmt.Errorf("rehydrate %s: %w", txn.ID, err)
				}
				continue
			}
			return fmt.Errorf("rehydrate %s: %w", txn.ID, err)
		}
	}
	e.mu.Lock()
	e.version++
	e.mu.Unlock()
	return nil
}

// GetBudgetStatus returns the period snapshot containing asOf.
func (e *Engine) GetBudgetStatus(id string, asOf time.Time) (budget.PeriodState, error) {
	e.mu.RLock()
	be, ok := e.budgets[id]
	e.mu.RUnlock()
	if !ok {
		return budget.PeriodState{}, fmt.Errorf("budget %s: %w", id, ErrNotFound)
	}
	be.mu.Lock()
	defer be.mu.Unlock()
	st, err := be.tracker.StatusAt(asOf)
	if err != nil {
		return budget.PeriodState{}, fmt.Errorf("budget %s: %w", id, err)
	}
	return st, nil
}

// GetGoalStatus returns the goal snapshot as of now.
func (e *Engine) GetGoalStatus(id string) (goals.Snapshot, error) {
	e.mu.RLock()
	ge, ok := e.goals[id]
	e.mu.RUnlock()
	if !ok {
		return goals.Snapshot{}, fmt.Errorf("goal %s: %w", id, ErrNotFound)
	}
	ge.mu.Lock()
	defer ge.mu.Unlock()
	return ge.state.Snapshot(e.now()), nil
}

// GetHealthScore computes (or recalls) the health snapshot for a window.
// Memoization is keyed by window plus state version, so an
// unchanged engine returns the identical snapshot.
func (e *Engine) GetHealthScore(w health.Window) (health.Snapshot, error) {
	e.mu.RLock()
	version := e.version
	quiet := e.writing == 0
	key := fmt.Sprintf("%d|%d|%d", w.Start.UnixNano(), w.End.UnixNano(), version)
	if snap, ok := e.snapshots.Get(key); ok {
		e.mu.RUnlock()
		return snap, nil
	}
	in := health.Inputs{
		Transactions:     e.txns,
		LiquidSavings:    e.liquid,
		HasLiquidSavings: e.hasLiquid,
	}
	budgetIDs := sortedKeys(e.budgets)
	goalIDs := sortedKeys(e.goals)
	e.mu.RUnlock()

	for _, id := range budgetIDs {
		st, err := e.GetBudgetStatus(id, w.End)
		if err != nil {
			// A budget anchored after the window has no period to score.
			if errors.Is(err, core.ErrBeforeAnchor) {
				continue
			}
			return health.Snapshot{}, err
		}
		in.BudgetStates = append(in.BudgetStates, st)
	}
	for _, id := range goalIDs {
		e.mu.RLock()
		ge, ok := e.goals[id]
		e.mu.RUnlock()
		if !ok {
			continue
		}
		ge.mu.Lock()
		in.GoalSnapshots = append(in.GoalSnapshots, ge.state.Snapshot(w.End))
		ge.mu.Unlock()
	}

	snap := health.Score(w, in, e.weights)

	// The inputs were gathered after releasing e.mu. A record that
	// overlapped the gather, in either direction, would let state from
	// another version leak into a snapshot filed under this key, so
	// memoize only when no write was in flight on either side of the
	// gather and the version never moved.
	e.mu.RLock()
	cacheable := quiet && e.version == version && e.writing == 0
	e.mu.RUnlock()
	if cacheable {
		e.snapshots.Set(key, snap)
	}
	return snap, nil
}

// UpsertBudget installs or replaces a budget definition, rebuilds its
// derived state from the transaction log and invalidates cached
// snapshots. Definitions without an id get one assigned.
func (e *Engine) UpsertBudget(def core.BudgetDefinition) (core.BudgetDefinition, error) {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	if err := def.Validate(); err != nil {
		return core.BudgetDefinition{}, fmt.Errorf("budget %s: %w", def.ID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	tracker := budget.NewTracker(def)
	asOf := e.now()
	for _, txn := range e.txns {
		if !tracker.Matches(txn) {
			continue
		}
		if _, err := tracker.Record(txn, asOf); err != nil {
			return core.BudgetDefinition{}, fmt.Errorf("budget %s: replay: %w", def.ID, err)
		}
	}
	e.budgets[def.ID] = &budgetEntry{tracker: tracker}
	e.version++
	e.snapshots.Purge()
	e.logger.Info("budget definition upserted",
		log.FieldOperation, log.OpUpsert, log.FieldBudgetID, def.ID, log.FieldCategory, def.Category)
	return def, nil
}

// RemoveBudget drops a budget and its derived state.
func (e *Engine) RemoveBudget(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.budgets[id]; !ok {
		return fmt.Errorf("budget %s: %w", id, ErrNotFound)
	}
	delete(e.budgets, id)
	e.version++
	e.snapshots.Purge()
	e.logger.Info("budget definition removed", log.FieldOperation, log.OpRemove, log.FieldBudgetID, id)
	return nil
}

// UpsertGoal installs or replaces a goal definition and rebuilds its
// progress from the attributed transactions in the log.
func (e *Engine) UpsertGoal(def core.GoalDefinition) (core.GoalDefinition, error) {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	if err := def.Validate(); err != nil {
		return core.GoalDefinition{}, fmt.Errorf("goal %s: %w", def.ID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	state := goals.NewState(def)
	for _, txn := range e.txns {
		if txn.GoalID != def.ID {
			continue
		}
		if _, err := state.Attribute(txn); err != nil {
			return core.GoalDefinition{}, fmt.Errorf("goal %s: replay: %w", def.ID, err)
		}
	}
	e.goals[def.ID] = &goalEntry{state: state}
	e.version++
	e.snapshots.Purge()
	e.logger.Info("goal definition upserted",
		log.FieldOperation, log.OpUpsert, log.FieldGoalID, def.ID)
	return def, nil
}

// RemoveGoal drops a goal and its derived state.
func (e *Engine) RemoveGoal(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.goals[id]; !ok {
		return fmt.Errorf("goal %s: %w", id, ErrNotFound)
	}
	delete(e.goals, id)
	e.version++
	e.snapshots.Purge()
	e.logger.Info("goal definition removed", log.FieldOperation, log.OpRemove, log.FieldGoalID, id)
	return nil
}

// SetLiquidSavings updates the collaborator-supplied liquid savings
// figure used by the emergency-fund ratio.
func (e *Engine) SetLiquidSavings(m core.Money) {
	e.mu.Lock()
	e.liquid = m
	e.hasLiquid = true
	e.version++
	e.mu.Unlock()
	e.snapshots.Purge()
}

// ListBudgets returns the installed budget definitions, sorted by id.
func (e *Engine) ListBudgets() []core.BudgetDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]core.BudgetDefinition, 0, len(e.budgets))
	for _, id := range sortedKeys(e.budgets) {
		out = append(out, e.budgets[id].tracker.Definition())
	}
	return out
}

// ListGoals returns the installed goal definitions, sorted by id.
func (e *Engine) ListGoals() []core.GoalDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]core.GoalDefinition, 0, len(e.goals))
	for _, id := range sortedKeys(e.goals) {
		out = append(out, e.goals[id].state.Definition())
	}
	return out
}

// ReevaluateAlerts resolves every budget's current period and dispatches
// alerts that surfaced without new spend, e.g. after a definition edit or
// a rollover shrink at a period boundary.
func (e *Engine) ReevaluateAlerts(asOf time.Time) []budget.Alert {
	e.mu.RLock()
	ids := sortedKeys(e.budgets)
	entries := make([]*budgetEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, e.budgets[id])
	}
	e.mu.RUnlock()

	var fired []budget.Alert
	for _, be := range entries {
		be.mu.Lock()
		alerts, err := be.tracker.PendingAlerts(asOf)
		id := be.tracker.Definition().ID
		be.mu.Unlock()
		if err != nil {
			if !errors.Is(err, core.ErrBeforeAnchor) {
				e.logger.Warn("alert re-evaluation failed",
					log.FieldOperation, log.OpReevaluate, log.FieldBudgetID, id, log.FieldError, err)
			}
			continue
		}
		fired = append(fired, alerts...)
	}
	e.dispatch(RecordResult{FiredAlerts: fired})
	return fired
}

// ApplyAutoAdjust recomputes the budgeted amount of every auto-adjust
// budget from its recent completed periods and applies changes through
// the regular upsert path, so "definitions mutate only by explicit edit"
// stays literally true. It returns the definitions that changed.
func (e *Engine) ApplyAutoAdjust(asOf time.Time) ([]core.BudgetDefinition, error) {
	var changed []core.BudgetDefinition
	for _, def := range e.ListBudgets() {
		if !def.AutoAdjust {
			continue
		}
		e.mu.RLock()
		be, ok := e.budgets[def.ID]
		e.mu.RUnlock()
		if !ok {
			continue
		}
		be.mu.Lock()
		rec, ok, err := be.tracker.RecommendNextAmount(asOf, e.autoAdjust)
		be.mu.Unlock()
		if err != nil {
			if errors.Is(err, core.ErrBeforeAnchor) {
				continue
			}
			return changed, fmt.Errorf("budget %s: recommend: %w", def.ID, err)
		}
		if !ok || rec.Cents == def.Amount.Cents {
			continue
		}
		def.Amount = rec
		if _, err := e.UpsertBudget(def); err != nil {
			return changed, err
		}
		e.logger.Info("auto-adjust applied",
			log.FieldOperation, log.OpAutoAdjust, log.FieldBudgetID, def.ID, log.FieldAmountCents, rec.Cents)
		changed = append(changed, def)
	}
	return changed, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
