// Package followups implements the follow-up lifecycle commands: completing
// with an outcome, rescheduling, and closing on pipeline exit.
package followups

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm_followup_backend/internal/calendar"
	"crm_followup_backend/internal/events"
	"crm_followup_backend/internal/prospects/domain"
	"crm_followup_backend/internal/prospects/repository"
	"crm_followup_backend/platform/apperr"
	"crm_followup_backend/platform/config"
	"crm_followup_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs.
type Store interface {
	GetFollowUpByID(ctx context.Context, id uuid.UUID) (domain.FollowUp, error)
	CompleteFollowUp(ctx context.Context, p repository.CompleteFollowUpParams) (domain.FollowUp, *domain.FollowUp, error)
	RescheduleFollowUp(ctx context.Context, followUpID uuid.UUID, replacement domain.FollowUp, at time.Time) (domain.FollowUp, error)
	CloseOpenFollowUp(ctx context.Context, prospectID uuid.UUID, at time.Time) (bool, error)
}

// Calendar exposes the active week schedule.
type Calendar interface {
	Schedule() calendar.WeekSchedule
}

// Service executes follow-up commands.
type Service struct {
	store    Store
	calendar Calendar
	bus      events.Bus
	cfg      config.EngineConfig
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates the follow-up service.
func NewService(store Store, cal Calendar, bus events.Bus, cfg config.EngineConfig, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		calendar: cal,
		bus:      bus,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// CompleteParams carries the advisor's recorded outcome.
type CompleteParams struct {
	AdvisorID       uuid.UUID
	OutcomeCategory string
	OutcomeNotes    string
	// DeclineSuccessor suppresses the reschedule-on-completion policy for
	// outcomes that would otherwise schedule a next contact.
	DeclineSuccessor bool
	// RescheduleTo, when set, is the successor's deadline. Must fall inside
	// business hours. When nil the default deadline offset applies.
	RescheduleTo *time.Time
}

// CompleteResult reports the completion and the successor, if one was
// scheduled.
type CompleteResult struct {
	Completed domain.FollowUp
	Successor *domain.FollowUp
}

// Complete records the outcome of the prospect's open follow-up. Outcomes
// Interested and NoAnswer schedule a successor by default so the prospect
// stays on the advisor's agenda; NotInterested ends the thread. Completing a
// follow-up that is no longer the open one is a caller bug and is rejected,
// never repaired.
func (s *Service) Complete(ctx context.Context, followUpID uuid.UUID, p CompleteParams) (CompleteResult, error) {
	if !domain.IsKnownOutcome(p.OutcomeCategory) {
		return CompleteResult{}, apperr.Validation(fmt.Sprintf("unknown outcome category %q", p.OutcomeCategory))
	}
	if p.OutcomeNotes == "" {
		return CompleteResult{}, apperr.Validation("outcome notes are required")
	}

	fu, err := s.store.GetFollowUpByID(ctx, followUpID)
	if err != nil {
		return CompleteResult{}, s.mapStoreErr(err, "followups.Complete")
	}

	now := s.now()
	var successor *domain.FollowUp
	if domain.RequiresSuccessor(p.OutcomeCategory) && !p.DeclineSuccessor {
		deadline, err := s.successorDeadline(now, p.RescheduleTo)
		if err != nil {
			return CompleteResult{}, err
		}
		successor = &domain.FollowUp{
			ID:          uuid.New(),
			ProspectID:  fu.ProspectID,
			AdvisorID:   fu.AdvisorID,
			Type:        fu.Type,
			ScheduledAt: now,
			Deadline:    deadline,
			Visible:     true,
		}
	}

	completed, saved, err := s.store.CompleteFollowUp(ctx, repository.CompleteFollowUpParams{
		FollowUpID:      followUpID,
		OutcomeCategory: p.OutcomeCategory,
		OutcomeNotes:    p.OutcomeNotes,
		CompletedAt:     now,
		Successor:       successor,
	})
	if err != nil {
		return CompleteResult{}, s.mapStoreErr(err, "followups.Complete")
	}

	event := events.FollowUpCompleted{
		BaseEvent:       events.NewBaseEvent(),
		FollowUpID:      completed.ID,
		ProspectID:      completed.ProspectID,
		AdvisorID:       p.AdvisorID,
		OutcomeCategory: p.OutcomeCategory,
	}
	if saved != nil {
		event.SuccessorID = &saved.ID
	}
	s.bus.Publish(ctx, event)

	return CompleteResult{Completed: completed, Successor: saved}, nil
}

// RescheduleParams carries a deadline move.
type RescheduleParams struct {
	AdvisorID   uuid.UUID
	NewDeadline time.Time
	Reason      string
}

// Reschedule supersedes the open follow-up and creates a fresh scheduled one
// with the new deadline. Deadlines outside business hours are rejected before
// anything is written, so the open follow-up survives a bad request intact.
func (s *Service) Reschedule(ctx context.Context, followUpID uuid.UUID, p RescheduleParams) (domain.FollowUp, error) {
	now := s.now()
	if !p.NewDeadline.After(now) {
		return domain.FollowUp{}, apperr.Validation("new deadline must be in the future")
	}
	if !s.calendar.Schedule().Contains(p.NewDeadline) {
		return domain.FollowUp{}, apperr.Validation("new deadline falls outside business hours")
	}

	fu, err := s.store.GetFollowUpByID(ctx, followUpID)
	if err != nil {
		return domain.FollowUp{}, s.mapStoreErr(err, "followups.Reschedule")
	}

	replacement := domain.FollowUp{
		ID:          uuid.New(),
		ProspectID:  fu.ProspectID,
		AdvisorID:   fu.AdvisorID,
		Type:        fu.Type,
		ScheduledAt: now,
		Deadline:    p.NewDeadline,
		Visible:     true,
	}

	saved, err := s.store.RescheduleFollowUp(ctx, followUpID, replacement, now)
	if err != nil {
		return domain.FollowUp{}, s.mapStoreErr(err, "followups.Reschedule")
	}

	s.log.WithContext(ctx).Info("follow-up rescheduled",
		"followUpId", followUpID.String(),
		"newFollowUpId", saved.ID.String(),
		"newDeadline", saved.Deadline,
		"reason", p.Reason,
	)
	return saved, nil
}

// CloseForStageExit closes the prospect's open follow-up without a successor.
// Called when a prospect enters a terminal pipeline stage. Closing when
// nothing is open is a no-op.
func (s *Service) CloseForStageExit(ctx context.Context, prospectID uuid.UUID) error {
	closed, err := s.store.CloseOpenFollowUp(ctx, prospectID, s.now())
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to close follow-up", err).WithOp("followups.CloseForStageExit")
	}
	if closed {
		s.log.WithContext(ctx).Info("open follow-up closed on pipeline exit", "prospectId", prospectID.String())
	}
	return nil
}

// successorDeadline resolves the next deadline. An explicit target must land
// inside business hours; the derived default is pushed to the next open
// moment when the offset lands in closed time.
func (s *Service) successorDeadline(now time.Time, explicit *time.Time) (time.Time, error) {
	ws := s.calendar.Schedule()

	if explicit != nil {
		if !explicit.After(now) {
			return time.Time{}, apperr.Validation("reschedule target must be in the future")
		}
		if !ws.Contains(*explicit) {
			return time.Time{}, apperr.Validation("reschedule target falls outside business hours")
		}
		return *explicit, nil
	}

	deadline := now.Add(s.cfg.GetDefaultDeadlineOffset())
	if !ws.Contains(deadline) {
		next := calendar.NextOpenAfter(deadline, ws)
		if next.IsZero() {
			return time.Time{}, apperr.Internal("schedule has no open hours")
		}
		deadline = next
	}
	return deadline, nil
}

func (s *Service) mapStoreErr(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrFollowUpNotFound):
		return apperr.NotFound("follow-up not found").WithOp(op)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("prospect not found").WithOp(op)
	case errors.Is(err, repository.ErrFollowUpNotOpen):
		return apperr.Invariant("follow-up is not the current open one").WithOp(op)
	default:
		return apperr.Wrap(apperr.KindInternal, "storage failure", err).WithOp(op)
	}
}
