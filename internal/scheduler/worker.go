package scheduler

import (
	"context"
	"fmt"

	"crm_followup_backend/internal/prospects/escalation"
	"crm_followup_backend/platform/config"
	"crm_followup_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// SweepRunner executes one escalation pass.
type SweepRunner interface {
	RunSweep(ctx context.Context, filters escalation.Filters) (escalation.Summary, error)
}

// Worker consumes sweep tasks and hands them to the engine.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner SweepRunner
	log    *logger.Logger
}

// NewWorker creates the asynq worker.
func NewWorker(cfg config.SchedulerConfig, runner SweepRunner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		runner: runner,
		log:    log,
	}

	mux.HandleFunc(TaskEscalationSweep, w.handleEscalationSweep)

	return w, nil
}

func (w *Worker) handleEscalationSweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseEscalationSweepPayload(task)
	if err != nil {
		return err
	}

	filters := escalation.Filters{MinValue: payload.MinValue}
	for _, raw := range payload.AdvisorIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid advisor id in sweep payload: %w", err)
		}
		filters.AdvisorIDs = append(filters.AdvisorIDs, id)
	}

	summary, err := w.runner.RunSweep(ctx, filters)
	if err != nil {
		return err
	}

	w.log.Info("scheduled sweep finished",
		"candidates", summary.Candidates,
		"eligible", summary.Eligible,
		"reassigned", summary.Reassigned,
		"released", summary.Released,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return nil
}

// Run blocks until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
