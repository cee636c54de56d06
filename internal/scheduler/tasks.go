// Package scheduler drives the escalation sweep from outside the engine:
// an asynq worker executes sweeps, a ticker dispatcher enqueues them.
package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskEscalationSweep = "escalation.sweep"

// EscalationSweepPayload carries one sweep request. AdvisorIDs and MinValue
// narrow the invocation; empty means sweep everything eligible.
type EscalationSweepPayload struct {
	AdvisorIDs  []string  `json:"advisorIds,omitempty"`
	MinValue    *float64  `json:"minValue,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

func NewEscalationSweepTask(payload EscalationSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEscalationSweep, data), nil
}

func ParseEscalationSweepPayload(task *asynq.Task) (EscalationSweepPayload, error) {
	var payload EscalationSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return EscalationSweepPayload{}, err
	}
	return payload, nil
}
