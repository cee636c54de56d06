package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm_followup_backend/internal/advisors"
	"crm_followup_backend/internal/calendar"
	"crm_followup_backend/internal/events"
	"crm_followup_backend/internal/notify"
	"crm_followup_backend/internal/prospects"
	"crm_followup_backend/internal/scheduler"
	"crm_followup_backend/platform/config"
	"crm_followup_backend/platform/db"
	"crm_followup_backend/platform/logger"
	"crm_followup_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	cal, err := calendar.NewService(cfg, log)
	if err != nil {
		log.Error("failed to load business calendar", "error", err)
		panic("failed to load business calendar: " + err.Error())
	}

	// SIGHUP swaps in an edited schedule file without a restart. The worker
	// has no HTTP surface, so the signal is its reload trigger.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			log.Info("SIGHUP received, reloading schedule")
			_ = cal.Reload()
		}
	}()

	val := validator.New()

	// Worker-side engine wiring (no HTTP handlers required).
	advisorsModule := advisors.NewModule(pool, val, cfg, log)
	prospectsModule := prospects.NewModule(pool, advisorsModule.SelectionPolicy(), cal, eventBus, val, cfg, log)

	dispatcher := notify.NewDispatcher(notify.NewSender(cfg), advisorsModule.Repository(), log)
	dispatcher.Subscribe(eventBus)

	sweepDispatcher, err := scheduler.NewSweepDispatcher(cfg, log)
	if err != nil {
		log.Error("failed to initialize sweep dispatcher", "error", err)
		panic("failed to initialize sweep dispatcher: " + err.Error())
	}
	defer func() { _ = sweepDispatcher.Close() }()
	go sweepDispatcher.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, prospectsModule.Engine(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
