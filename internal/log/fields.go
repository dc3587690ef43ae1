package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldTxnID       = "txn_id"
	FieldBudgetID    = "budget_id"
	FieldGoalID      = "goal_id"
	FieldPeriodIndex = "period_index"
	FieldAlertKind   = "alert_kind"
	FieldMilestone   = "milestone_percent"
	FieldAmountCents = "amount_cents"
	FieldCategory    = "category"
	FieldWindowStart = "window_start"
	FieldWindowEnd   = "window_end"
	FieldQueue       = "queue"
	FieldExchange    = "exchange"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentEngine    = "engine"
	ComponentBudget    = "budget"
	ComponentGoal      = "goal"
	ComponentHealth    = "health"
	ComponentStorage   = "storage"
	ComponentNotify    = "notify"
	ComponentScheduler = "scheduler"
)

// Operations defines standard operation names
const (
	OpRecord     = "record"
	OpUpsert     = "upsert"
	OpRemove     = "remove"
	OpStatus     = "status"
	OpScore      = "score"
	OpRehydrate  = "rehydrate"
	OpPublish    = "publish"
	OpConsume    = "consume"
	OpReevaluate = "reevaluate"
	OpAutoAdjust = "auto_adjust"
	OpStartup    = "startup"
	OpShutdown   = "shutdown"
)
