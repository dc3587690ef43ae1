package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fintrack/internal/budget"
	"fintrack/internal/core"
	"fintrack/internal/engine"
	"fintrack/internal/goals"
	"fintrack/internal/health"
)

type budgetStatusResponse struct {
	BudgetID       string    `json:"budget_id"`
	PeriodIndex    int       `json:"period_index"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
	SpentCents     int64     `json:"spent_cents"`
	CarriedInCents int64     `json:"carried_in_cents"`
	LimitCents     int64     `json:"limit_cents"`
	RemainingCents int64     `json:"remaining_cents"`
	SpentPercent   float64   `json:"spent_percent"`
	AlertFired     bool      `json:"alert_fired"`
	Exceeded       bool      `json:"exceeded"`
	Status         string    `json:"status"`
}

func budgetStatusFrom(id string, st budget.PeriodState) budgetStatusResponse {
	return budgetStatusResponse{
		BudgetID:       id,
		PeriodIndex:    st.Index,
		PeriodStart:    st.Start,
		PeriodEnd:      st.End,
		SpentCents:     st.Spent.Cents,
		CarriedInCents: st.CarriedIn.Cents,
		LimitCents:     st.EffectiveLimit.Cents,
		RemainingCents: st.Remaining().Cents,
		SpentPercent:   st.SpentPercent(),
		AlertFired:     st.AlertFired,
		Exceeded:       st.Exceeded,
		Status:         st.StatusText(),
	}
}

type milestoneResponse struct {
	Percent   int        `json:"percent"`
	Reached   bool       `json:"reached"`
	ReachedAt *time.Time `json:"reached_at,omitempty"`
}

type goalStatusResponse struct {
	GoalID              string              `json:"goal_id"`
	Name                string              `json:"name"`
	Priority            string              `json:"priority"`
	TargetCents         int64               `json:"target_cents"`
	ContributedCents    int64               `json:"contributed_cents"`
	RemainingCents      int64               `json:"remaining_cents"`
	ProgressPercent     float64             `json:"progress_percent"`
	Milestones          []milestoneResponse `json:"milestones"`
	Completed           bool                `json:"completed"`
	CompletedAt         *time.Time          `json:"completed_at,omitempty"`
	Overdue             bool                `json:"overdue"`
	DaysRemaining       int                 `json:"days_remaining"`
	RequiredPerDayCents *int64              `json:"required_per_day_cents,omitempty"`
	OnTrack             bool                `json:"on_track"`
	ProjectedCompletion *time.Time          `json:"projected_completion,omitempty"`
}

func goalStatusFrom(snap goals.Snapshot) goalStatusResponse {
	resp := goalStatusResponse{
		GoalID:           snap.GoalID,
		Name:             snap.Name,
		Priority:         string(snap.Priority),
		TargetCents:      snap.Target.Cents,
		ContributedCents: snap.Contributed.Cents,
		RemainingCents:   snap.Remaining.Cents,
		ProgressPercent:  snap.ProgressPercent,
		Completed:        snap.Completed,
		Overdue:          snap.Overdue,
		DaysRemaining:    snap.DaysRemaining,
		OnTrack:          snap.OnTrack,
	}
	for _, m := range snap.Milestones {
		mr := milestoneResponse{Percent: m.Percent, Reached: m.Reached}
		if m.Reached {
			at := m.ReachedAt
			mr.ReachedAt = &at
		}
		resp.Milestones = append(resp.Milestones, mr)
	}
	if snap.Completed {
		at := snap.CompletedAt
		resp.CompletedAt = &at
	}
	if snap.HasRequiredRate {
		cents := snap.RequiredPerDay.Cents
		resp.RequiredPerDayCents = &cents
	}
	if snap.HasForecast {
		at := snap.ProjectedCompletion
		resp.ProjectedCompletion = &at
	}
	return resp
}

type metricResponse struct {
	Value   *float64 `json:"value,omitempty"`
	Defined bool     `json:"defined"`
}

func metricFrom(m health.Metric) metricResponse {
	if !m.Defined {
		return metricResponse{}
	}
	v := m.Value
	return metricResponse{Value: &v, Defined: true}
}

type healthScoreResponse struct {
	WindowStart         time.Time      `json:"window_start"`
	WindowEnd           time.Time      `json:"window_end"`
	TotalIncomeCents    int64          `json:"total_income_cents"`
	TotalExpenseCents   int64          `json:"total_expense_cents"`
	SavingsRate         metricResponse `json:"savings_rate"`
	BudgetAdherence     metricResponse `json:"budget_adherence"`
	GoalProgress        metricResponse `json:"goal_progress"`
	SpendingConsistency metricResponse `json:"spending_consistency"`
	EmergencyFundRatio  metricResponse `json:"emergency_fund_ratio"`
	Composite           metricResponse `json:"composite"`
}

type budgetSummary struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Period         string  `json:"period"`
	AmountCents    int64   `json:"amount_cents"`
	AlertThreshold float64 `json:"alert_threshold"`
	Rollover       bool    `json:"rollover"`
	AutoAdjust     bool    `json:"auto_adjust"`
}

type goalSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	TargetCents int64     `json:"target_cents"`
	TargetDate  time.Time `json:"target_date"`
	Priority    string    `json:"priority"`
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	out := make([]budgetSummary, 0)
	for _, def := range s.eng.ListBudgets() {
		out = append(out, budgetSummary{
			ID:             def.ID,
			Name:           def.Name,
			Category:       def.Category,
			Period:         string(def.Period),
			AmountCents:    def.Amount.Cents,
			AlertThreshold: def.AlertThreshold,
			Rollover:       def.Rollover,
			AutoAdjust:     def.AutoAdjust,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "as_of must be RFC 3339")
			return
		}
		asOf = t
	}

	st, err := s.eng.GetBudgetStatus(id, asOf)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNotFound):
			writeError(w, http.StatusNotFound, "budget not found")
		case errors.Is(err, core.ErrBeforeAnchor):
			writeError(w, http.StatusUnprocessableEntity, "as_of precedes the budget anchor")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, budgetStatusFrom(id, st))
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	out := make([]goalSummary, 0)
	for _, def := range s.eng.ListGoals() {
		out = append(out, goalSummary{
			ID:          def.ID,
			Name:        def.Name,
			TargetCents: def.Target.Cents,
			TargetDate:  def.TargetDate,
			Priority:    string(def.Priority),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGoalStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.eng.GetGoalStatus(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			writeError(w, http.StatusNotFound, "goal not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, goalStatusFrom(snap))
}

func (s *Server) handleHealthScore(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}
	if !end.After(start) {
		writeError(w, http.StatusBadRequest, "end must be after start")
		return
	}

	snap, err := s.eng.GetHealthScore(health.Window{Start: start, End: end})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, healthScoreResponse{
		WindowStart:         snap.Window.Start,
		WindowEnd:           snap.Window.End,
		TotalIncomeCents:    snap.TotalIncome.Cents,
		TotalExpenseCents:   snap.TotalExpense.Cents,
		SavingsRate:         metricFrom(snap.SavingsRate),
		BudgetAdherence:     metricFrom(snap.BudgetAdherence),
		GoalProgress:        metricFrom(snap.GoalProgress),
		SpendingConsistency: metricFrom(snap.SpendingConsistency),
		EmergencyFundRatio:  metricFrom(snap.EmergencyFundRatio),
		Composite:           metricFrom(snap.Composite),
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
