// Package scheduler drives the periodic maintenance jobs: alert
// re-evaluation at period boundaries and budget auto-adjustment.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"fintrack/internal/engine"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// Scheduler runs the re-evaluation job on a cron schedule. Auto-adjusted
// budget amounts are persisted so a restart rehydrates the adjusted
// definitions, not the originals.
type Scheduler struct {
	cron   *cron.Cron
	eng    *engine.Engine
	repo   *storage.SQLiteRepository
	logger *log.Logger
	now    func() time.Time
}

func New(spec string, eng *engine.Engine, repo *storage.SQLiteRepository, logger *log.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		eng:    eng,
		repo:   repo,
		logger: logger.WithComponent(log.ComponentScheduler),
		now:    time.Now,
	}

	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("add cron job %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", log.FieldOperation, log.OpStartup)
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped", log.FieldOperation, log.OpShutdown)
}

func (s *Scheduler) run() {
	now := s.now()

	alerts := s.eng.ReevaluateAlerts(now)
	s.logger.Info("re-evaluated alerts",
		log.FieldOperation, log.OpReevaluate,
		"fired", len(alerts))

	changed, err := s.eng.ApplyAutoAdjust(now)
	if err != nil {
		s.logger.Error("auto-adjust failed",
			log.FieldOperation, log.OpAutoAdjust,
			log.FieldError, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, def := range changed {
		if err := s.repo.UpsertBudget(ctx, def); err != nil {
			s.logger.Error("persist adjusted budget failed",
				log.FieldOperation, log.OpAutoAdjust,
				log.FieldBudgetID, def.ID,
				log.FieldError, err)
			continue
		}
		s.logger.Info("budget auto-adjusted",
			log.FieldOperation, log.OpAutoAdjust,
			log.FieldBudgetID, def.ID,
			log.FieldAmountCents, def.Amount.Cents)
	}
}
