package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type schedulerConfig struct {
	redisURL string
	queue    string
}

func (c schedulerConfig) GetRedisURL() string             { return c.redisURL }
func (c schedulerConfig) GetRedisTLSInsecure() bool       { return false }
func (c schedulerConfig) GetAsynqQueueName() string       { return c.queue }
func (c schedulerConfig) GetAsynqConcurrency() int        { return 1 }
func (c schedulerConfig) GetSweepInterval() time.Duration { return time.Minute }

func TestEnqueueSweep(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := schedulerConfig{redisURL: "redis://" + mr.Addr(), queue: "sweeps"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	payload := EscalationSweepPayload{RequestedAt: time.Now().UTC()}
	if err := client.EnqueueSweep(context.Background(), payload, 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer inspector.Close()

	pending, err := inspector.ListPendingTasks("sweeps")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(pending))
	}
	if pending[0].Type != TaskEscalationSweep {
		t.Fatalf("task type = %q, want %q", pending[0].Type, TaskEscalationSweep)
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(schedulerConfig{}); err == nil {
		t.Fatal("expected error for missing redis url")
	}
}
