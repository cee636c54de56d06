// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"crm_followup_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Follow-up Lifecycle Events
// =============================================================================

// FollowUpCompleted is published when an advisor records the outcome of a
// follow-up. SuccessorID is set when the reschedule-on-completion policy
// created a new scheduled follow-up.
type FollowUpCompleted struct {
	BaseEvent
	FollowUpID      uuid.UUID  `json:"followUpId"`
	ProspectID      uuid.UUID  `json:"prospectId"`
	AdvisorID       uuid.UUID  `json:"advisorId"`
	OutcomeCategory string     `json:"outcomeCategory"`
	SuccessorID     *uuid.UUID `json:"successorId,omitempty"`
}

func (e FollowUpCompleted) EventName() string { return "followups.completed" }

// FollowUpOverdue is published when the escalation engine picks up a
// follow-up whose deadline survived past the grace window.
type FollowUpOverdue struct {
	BaseEvent
	FollowUpID   uuid.UUID `json:"followUpId"`
	ProspectID   uuid.UUID `json:"prospectId"`
	AdvisorID    uuid.UUID `json:"advisorId"`
	OverdueHours float64   `json:"overdueHours"`
}

func (e FollowUpOverdue) EventName() string { return "followups.overdue" }

// =============================================================================
// Prospect Ownership Events
// =============================================================================

// ProspectReassigned is published when the escalation engine moves a
// prospect from one advisor to another.
type ProspectReassigned struct {
	BaseEvent
	ProspectID    uuid.UUID `json:"prospectId"`
	FromAdvisorID uuid.UUID `json:"fromAdvisorId"`
	ToAdvisorID   uuid.UUID `json:"toAdvisorId"`
	Reassignments int       `json:"reassignments"`
	Reason        string    `json:"reason"`
}

func (e ProspectReassigned) EventName() string { return "prospects.reassigned" }

// ProspectReleasedToPool is published when a prospect exhausts its
// reassignment budget and is released into the free pool.
type ProspectReleasedToPool struct {
	BaseEvent
	ProspectID    uuid.UUID `json:"prospectId"`
	FromAdvisorID uuid.UUID `json:"fromAdvisorId"`
	Reassignments int       `json:"reassignments"`
	Reason        string    `json:"reason"`
}

func (e ProspectReleasedToPool) EventName() string { return "prospects.released_to_pool" }

// ProspectClaimed is published when an advisor wins a free-pool claim race.
type ProspectClaimed struct {
	BaseEvent
	ProspectID uuid.UUID `json:"prospectId"`
	AdvisorID  uuid.UUID `json:"advisorId"`
	FollowUpID uuid.UUID `json:"followUpId"`
	Reason     string    `json:"reason"`
}

func (e ProspectClaimed) EventName() string { return "prospects.claimed" }

// ProspectStageChanged is published when a prospect moves between pipeline
// stages. A move into Won or Lost closes the open follow-up.
type ProspectStageChanged struct {
	BaseEvent
	ProspectID uuid.UUID `json:"prospectId"`
	OldStage   string    `json:"oldStage"`
	NewStage   string    `json:"newStage"`
}

func (e ProspectStageChanged) EventName() string { return "prospects.stage_changed" }
