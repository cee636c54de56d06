package scheduler

import (
	"context"
	"errors"
	"time"

	"crm_followup_backend/platform/config"
	"crm_followup_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// SweepDispatcher enqueues an escalation sweep on a fixed interval.
// The sweep itself is idempotent, so a duplicate enqueue is harmless;
// uniqueness just avoids queuing work nobody needs.
type SweepDispatcher struct {
	client   *Client
	interval time.Duration
	log      *logger.Logger
}

func NewSweepDispatcher(cfg config.SchedulerConfig, log *logger.Logger) (*SweepDispatcher, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	interval := cfg.GetSweepInterval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &SweepDispatcher{
		client:   client,
		interval: interval,
		log:      log,
	}, nil
}

func (d *SweepDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *SweepDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		payload := EscalationSweepPayload{RequestedAt: time.Now().UTC()}
		if err := d.client.EnqueueSweep(ctx, payload, d.interval); err != nil {
			if errors.Is(err, asynq.ErrDuplicateTask) {
				continue
			}
			d.log.Warn("enqueue escalation sweep failed", "error", err)
			continue
		}
		d.log.Info("escalation sweep enqueued")
	}
}
