// Package claims implements the free-pool claim command: first writer wins,
// every other contender is told who won.
package claims

import (
	"context"
	"errors"
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
	ClaimProspect(ctx context.Context, p repository.ClaimProspectParams) (domain.Prospect, domain.FollowUp, error)
}

// Calendar exposes the active week schedule.
type Calendar interface {
	Schedule() calendar.WeekSchedule
}

// Service arbitrates claim attempts.
type Service struct {
	store    Store
	calendar Calendar
	bus      events.Bus
	cfg      config.EngineConfig
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates the claim service.
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

// Result reports a won claim.
type Result struct {
	Prospect domain.Prospect
	FollowUp domain.FollowUp
}

// ConflictDetails names the advisor who holds the prospect after a lost
// claim. Carried on the conflict error so the caller can render "already
// taken by X".
type ConflictDetails struct {
	ProspectID      uuid.UUID  `json:"prospectId"`
	WinnerAdvisorID *uuid.UUID `json:"winnerAdvisorId,omitempty"`
}

// Claim takes the prospect for the advisor. Under concurrent claims exactly
// one caller gets a Result; the rest get a conflict error carrying the
// winner's identity. The winning write also schedules the advisor's first
// follow-up with the default deadline and resets the reassignment counter.
func (s *Service) Claim(ctx context.Context, prospectID, advisorID uuid.UUID) (Result, error) {
	now := s.now()
	deadline := s.defaultDeadline(now)

	prospect, fu, err := s.store.ClaimProspect(ctx, repository.ClaimProspectParams{
		ProspectID: prospectID,
		AdvisorID:  advisorID,
		NewFollowUp: domain.FollowUp{
			ID:          uuid.New(),
			ProspectID:  prospectID,
			AdvisorID:   advisorID,
			Type:        domain.FollowUpCall,
			ScheduledAt: now,
			Deadline:    deadline,
			Visible:     true,
		},
		At: now,
	})
	if err != nil {
		return Result{}, s.mapClaimErr(ctx, err, prospectID, advisorID)
	}

	s.log.WithContext(ctx).ClaimEvent(prospectID.String(), advisorID.String(), true)
	s.bus.Publish(ctx, events.ProspectClaimed{
		BaseEvent:  events.NewBaseEvent(),
		ProspectID: prospectID,
		AdvisorID:  advisorID,
		FollowUpID: fu.ID,
		Reason:     domain.TransferReasonFreePoolClaim,
	})

	return Result{Prospect: prospect, FollowUp: fu}, nil
}

// defaultDeadline applies the configured offset, pushed to the next open
// moment when it lands in closed hours.
func (s *Service) defaultDeadline(now time.Time) time.Time {
	ws := s.calendar.Schedule()
	deadline := now.Add(s.cfg.GetDefaultDeadlineOffset())
	if !ws.Contains(deadline) {
		if next := calendar.NextOpenAfter(deadline, ws); !next.IsZero() {
			deadline = next
		}
	}
	return deadline
}

func (s *Service) mapClaimErr(ctx context.Context, err error, prospectID, advisorID uuid.UUID) error {
	var conflict *repository.ClaimConflictError
	if errors.As(err, &conflict) {
		s.log.WithContext(ctx).ClaimEvent(prospectID.String(), advisorID.String(), false)
		return apperr.Conflict("prospect already claimed by another advisor").
			WithOp("claims.Claim").
			WithDetails(ConflictDetails{
				ProspectID:      conflict.ProspectID,
				WinnerAdvisorID: conflict.WinnerAdvisorID,
			})
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("prospect not found").WithOp("claims.Claim")
	}
	return apperr.Wrap(apperr.KindInternal, "claim failed", err).WithOp("claims.Claim")
}
