package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/api"
	"fintrack/internal/config"
	"fintrack/internal/engine"
	"fintrack/internal/log"
	"fintrack/internal/notify"
	"fintrack/internal/scheduler"
	"fintrack/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.New(log.ParseLevel("info")).Error("Configuration load failed", log.FieldError, err)
		os.Exit(1)
	}

	logger := log.New(log.ParseLevel(cfg.LogLevel))
	log.SetDefault(logger)
	logger.Info("Starting fintrackd", log.FieldOperation, log.OpStartup)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	policy := config.DefaultPolicy()
	if cfg.PolicyFile != "" {
		policy, err = config.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			logger.Error("Policy load failed", log.FieldError, err, "path", cfg.PolicyFile)
			os.Exit(1)
		}
		logger.Info("Policy loaded", "path", cfg.PolicyFile)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := notify.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.FeedQueue, cfg.AlertQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	eng := engine.New(engine.Options{
		AutoAdjust:    policy.BudgetAutoAdjust(),
		HealthWeights: policy.HealthWeights(),
		Sink:          notify.NewSink(amqpClient, logger),
		Logger:        logger,
	})

	if err := loadState(eng, repo, policy, logger); err != nil {
		logger.Error("Failed to load stored state", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.HasLiquidSavings {
		eng.SetLiquidSavings(cfg.LiquidSavings)
	}

	sched, err := scheduler.New(cfg.ReevalSchedule, eng, repo, logger)
	if err != nil {
		logger.Error("Failed to initialize scheduler", log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start()
	defer sched.Stop()

	srv := api.NewServer(cfg.HTTPAddr, eng, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeTransactions(gctx, func(msg *notify.TransactionMessage) error {
			return handleFeedMessage(gctx, eng, repo, logger, msg)
		})
	})
	g.Go(func() error {
		logger.Info("HTTP API listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Stopped gracefully", log.FieldOperation, log.OpShutdown)
}

// loadState installs stored definitions and replays the transaction log.
// Stored budgets without an explicit alert threshold inherit the policy
// default.
func loadState(eng *engine.Engine, repo *storage.SQLiteRepository, policy config.Policy, logger *log.Logger) error {
	ctx := context.Background()

	budgets, err := repo.ListBudgets(ctx)
	if err != nil {
		return err
	}
	for _, def := range budgets {
		if def.AlertThreshold == 0 {
			def.AlertThreshold = policy.Alerts.DefaultThresholdPercent
		}
		if _, err := eng.UpsertBudget(def); err != nil {
			return err
		}
	}

	goals, err := repo.ListGoals(ctx)
	if err != nil {
		return err
	}
	for _, def := range goals {
		if _, err := eng.UpsertGoal(def); err != nil {
			return err
		}
	}

	txns, err := repo.ListTransactions(ctx)
	if err != nil {
		return err
	}
	if err := eng.Rehydrate(txns); err != nil {
		return err
	}

	logger.Info("State loaded",
		log.FieldOperation, log.OpRehydrate,
		"budgets", len(budgets),
		"goals", len(goals),
		"transactions", len(txns))
	return nil
}

// handleFeedMessage persists and records one feed transaction. Malformed
// messages, redeliveries and unknown-goal attributions are dropped; only
// transient failures bubble up so the broker requeues the delivery.
func handleFeedMessage(ctx context.Context, eng *engine.Engine, repo *storage.SQLiteRepository, logger *log.Logger, msg *notify.TransactionMessage) error {
	txn, err := msg.ToTransaction()
	if err != nil {
		logger.Warn("Dropping malformed feed message",
			log.FieldOperation, log.OpConsume,
			log.FieldTxnID, msg.ID,
			log.FieldError, err)
		return nil
	}

	if err := repo.AppendTransaction(ctx, txn); err != nil && !errors.Is(err, storage.ErrDuplicateID) {
		return err
	}

	res, err := eng.RecordTransaction(txn)
	if err != nil && errors.Is(err, engine.ErrNotFound) {
		// Record it unlinked, exactly as rehydration replays the stored
		// row, so live and restarted state agree.
		logger.Warn("Dropping attribution to unknown goal",
			log.FieldOperation, log.OpConsume,
			log.FieldTxnID, txn.ID,
			log.FieldGoalID, txn.GoalID)
		unlinked := txn
		unlinked.GoalID = ""
		res, err = eng.RecordTransaction(unlinked)
	}
	if err != nil {
		if errors.Is(err, engine.ErrDuplicateTransaction) {
			logger.Debug("Skipping redelivered transaction",
				log.FieldOperation, log.OpConsume,
				log.FieldTxnID, txn.ID)
			return nil
		}
		return err
	}

	logger.Info("Transaction recorded",
		log.FieldOperation, log.OpRecord,
		log.FieldTxnID, txn.ID,
		log.FieldAmountCents, txn.Amount.Cents,
		log.FieldCategory, txn.Category,
		"budgets", len(res.AffectedBudgetIDs),
		"goals", len(res.AffectedGoalIDs),
		"alerts", len(res.FiredAlerts))
	return nil
}
