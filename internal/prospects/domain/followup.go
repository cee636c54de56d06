package domain

import (
	"time"

	"crm_followup_backend/internal/calendar"

	"github.com/google/uuid"
)

// Follow-up contact types.
const (
	FollowUpCall     = "Call"
	FollowUpEmail    = "Email"
	FollowUpWhatsApp = "WhatsApp"
	FollowUpMeeting  = "Meeting"
	FollowUpVisit    = "Visit"
)

var knownFollowUpTypes = map[string]struct{}{
	FollowUpCall:     {},
	FollowUpEmail:    {},
	FollowUpWhatsApp: {},
	FollowUpMeeting:  {},
	FollowUpVisit:    {},
}

// IsKnownFollowUpType reports whether the contact type is recognized.
func IsKnownFollowUpType(followUpType string) bool {
	_, ok := knownFollowUpTypes[followUpType]
	return ok
}

// Outcome categories recorded on completion.
const (
	OutcomeInterested    = "Interested"
	OutcomeNotInterested = "NotInterested"
	OutcomeNoAnswer      = "NoAnswer"
)

var knownOutcomes = map[string]struct{}{
	OutcomeInterested:    {},
	OutcomeNotInterested: {},
	OutcomeNoAnswer:      {},
}

// IsKnownOutcome reports whether the outcome category is recognized.
func IsKnownOutcome(outcome string) bool {
	_, ok := knownOutcomes[outcome]
	return ok
}

// RequiresSuccessor reports whether completing with this outcome creates a
// new scheduled follow-up by default. NotInterested ends the thread;
// Interested and NoAnswer keep the prospect on the advisor's agenda.
func RequiresSuccessor(outcome string) bool {
	return outcome == OutcomeInterested || outcome == OutcomeNoAnswer
}

// FollowUpState is the derived lifecycle state of a follow-up.
type FollowUpState string

const (
	StateScheduled  FollowUpState = "Scheduled"
	StateCompleted  FollowUpState = "Completed"
	StateOverdue    FollowUpState = "Overdue"
	StateSuperseded FollowUpState = "Superseded"
)

// FollowUp is one scheduled or completed contact attempt tied to exactly one
// prospect. Overdue is never stored; it is derived from the deadline on read.
type FollowUp struct {
	ID              uuid.UUID
	ProspectID      uuid.UUID
	AdvisorID       uuid.UUID
	Type            string
	ScheduledAt     time.Time
	Deadline        time.Time
	Completed       bool
	CompletedAt     *time.Time
	Superseded      bool
	SupersededAt    *time.Time
	OutcomeCategory *string
	OutcomeNotes    *string
	Visible         bool
	CreatedAt       time.Time
}

// Open reports whether the follow-up is the prospect's live one: neither
// completed nor superseded.
func (f FollowUp) Open() bool {
	return !f.Completed && !f.Superseded
}

// State derives the lifecycle state at the given instant.
func (f FollowUp) State(now time.Time) FollowUpState {
	switch {
	case f.Superseded:
		return StateSuperseded
	case f.Completed:
		return StateCompleted
	case now.After(f.Deadline):
		return StateOverdue
	default:
		return StateScheduled
	}
}

// OverdueBusinessHours returns how many business hours have elapsed since
// the deadline, or 0 if the follow-up is not overdue.
func (f FollowUp) OverdueBusinessHours(now time.Time, ws calendar.WeekSchedule) float64 {
	if f.State(now) != StateOverdue {
		return 0
	}
	return calendar.BusinessHoursBetween(f.Deadline, now, ws)
}

// EligibleForEscalation reports whether the follow-up has been overdue for at
// least graceHours of business time. The boundary is inclusive: exactly
// graceHours qualifies.
func (f FollowUp) EligibleForEscalation(now time.Time, ws calendar.WeekSchedule, graceHours float64) bool {
	if f.State(now) != StateOverdue {
		return false
	}
	return calendar.BusinessHoursBetween(f.Deadline, now, ws) >= graceHours
}
