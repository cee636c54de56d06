package notify

import (
	"context"
	"fmt"

	"crm_followup_backend/internal/events"
	"crm_followup_backend/platform/logger"

	"github.com/google/uuid"
)

// AdvisorDirectory resolves an advisor id to a notification address.
type AdvisorDirectory interface {
	AdvisorEmail(ctx context.Context, advisorID uuid.UUID) (string, error)
}

// Dispatcher subscribes to transition events and forwards human-readable
// notifications through the Sender. Delivery failures are logged, never
// propagated back into the engine.
type Dispatcher struct {
	sender    Sender
	directory AdvisorDirectory
	log       *logger.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(sender Sender, directory AdvisorDirectory, log *logger.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, directory: directory, log: log}
}

// Subscribe registers the dispatcher on the bus for every transition event.
func (d *Dispatcher) Subscribe(bus events.Bus) {
	bus.Subscribe(events.ProspectReassigned{}.EventName(), events.HandlerFunc(d.onReassigned))
	bus.Subscribe(events.ProspectReleasedToPool{}.EventName(), events.HandlerFunc(d.onReleased))
	bus.Subscribe(events.ProspectClaimed{}.EventName(), events.HandlerFunc(d.onClaimed))
	bus.Subscribe(events.FollowUpOverdue{}.EventName(), events.HandlerFunc(d.onOverdue))
}

func (d *Dispatcher) onReassigned(ctx context.Context, event events.Event) error {
	e, ok := event.(events.ProspectReassigned)
	if !ok {
		return nil
	}
	d.notify(ctx, e.ToAdvisorID,
		"Prospect reassigned to you",
		fmt.Sprintf("Prospect %s was moved to you after its follow-up went unanswered (reassignment %d).", e.ProspectID, e.Reassignments),
	)
	d.notify(ctx, e.FromAdvisorID,
		"Prospect reassigned away",
		fmt.Sprintf("Prospect %s left your portfolio: the open follow-up passed its grace window.", e.ProspectID),
	)
	return nil
}

func (d *Dispatcher) onReleased(ctx context.Context, event events.Event) error {
	e, ok := event.(events.ProspectReleasedToPool)
	if !ok {
		return nil
	}
	d.notify(ctx, e.FromAdvisorID,
		"Prospect released to the free pool",
		fmt.Sprintf("Prospect %s exhausted its reassignment budget and is now in the free pool.", e.ProspectID),
	)
	return nil
}

func (d *Dispatcher) onClaimed(ctx context.Context, event events.Event) error {
	e, ok := event.(events.ProspectClaimed)
	if !ok {
		return nil
	}
	d.notify(ctx, e.AdvisorID,
		"Prospect claimed",
		fmt.Sprintf("You claimed prospect %s. Your first follow-up is already scheduled.", e.ProspectID),
	)
	return nil
}

func (d *Dispatcher) onOverdue(ctx context.Context, event events.Event) error {
	e, ok := event.(events.FollowUpOverdue)
	if !ok {
		return nil
	}
	d.notify(ctx, e.AdvisorID,
		"Follow-up overdue",
		fmt.Sprintf("Your follow-up for prospect %s is %.1f business hours past its deadline.", e.ProspectID, e.OverdueHours),
	)
	return nil
}

func (d *Dispatcher) notify(ctx context.Context, advisorID uuid.UUID, subject, body string) {
	email, err := d.directory.AdvisorEmail(ctx, advisorID)
	if err != nil {
		d.log.Error("notification skipped, advisor lookup failed", "error", err, "advisorId", advisorID.String())
		return
	}
	if email == "" {
		return
	}
	if err := d.sender.Send(ctx, email, subject, body); err != nil {
		d.log.Error("notification delivery failed", "error", err, "advisorId", advisorID.String())
	}
}
