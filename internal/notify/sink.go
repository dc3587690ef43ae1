package notify

import (
	"context"

	"fintrack/internal/budget"
	"fintrack/internal/goals"
	"fintrack/internal/log"
)

// Sink bridges engine events onto the alert queue. Publish failures are
// logged and swallowed: alert delivery is best-effort and must never
// stall accounting.
type Sink struct {
	client *Client
	logger *log.Logger
}

func NewSink(client *Client, logger *log.Logger) *Sink {
	return &Sink{
		client: client,
		logger: logger.WithComponent(log.ComponentNotify),
	}
}

func (s *Sink) OnBudgetAlert(alert budget.Alert) {
	msg := &BudgetAlertMessage{
		BudgetID:    alert.BudgetID,
		PeriodIndex: alert.PeriodIndex,
		Kind:        string(alert.Kind),
		Timestamp:   alert.At,
	}
	if err := s.client.PublishBudgetAlert(context.Background(), msg); err != nil {
		s.logger.Error("publish budget alert failed",
			log.FieldOperation, log.OpPublish,
			log.FieldBudgetID, alert.BudgetID,
			log.FieldAlertKind, string(alert.Kind),
			log.FieldError, err)
	}
}

func (s *Sink) OnGoalMilestone(event goals.MilestoneEvent) {
	msg := &GoalMilestoneMessage{
		GoalID:    event.GoalID,
		Percent:   event.Percent,
		Timestamp: event.At,
	}
	if err := s.client.PublishGoalMilestone(context.Background(), msg); err != nil {
		s.logger.Error("publish goal milestone failed",
			log.FieldOperation, log.OpPublish,
			log.FieldGoalID, event.GoalID,
			log.FieldMilestone, event.Percent,
			log.FieldError, err)
	}
}
