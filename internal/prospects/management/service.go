// Package management implements prospect administration: intake, listing,
// stage moves, and the score-ordered work queue.
package management

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"crm_followup_backend/internal/calendar"
	"crm_followup_backend/internal/events"
	"crm_followup_backend/internal/prospects/domain"
	"crm_followup_backend/internal/prospects/repository"
	"crm_followup_backend/internal/prospects/scoring"
	"crm_followup_backend/platform/apperr"
	"crm_followup_backend/platform/config"
	"crm_followup_backend/platform/logger"
	"crm_followup_backend/platform/phone"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs.
type Store interface {
	CreateProspect(ctx context.Context, p domain.Prospect) (domain.Prospect, error)
	GetProspectByID(ctx context.Context, id uuid.UUID) (domain.Prospect, error)
	ListProspects(ctx context.Context, filter repository.ProspectFilter) ([]domain.Prospect, error)
	UpdateProspectStage(ctx context.Context, id uuid.UUID, stage string) (string, error)
	UpdateProspectValue(ctx context.Context, id uuid.UUID, estimatedValue float64, closeProbability int) error
	CreateFollowUp(ctx context.Context, fu domain.FollowUp) (domain.FollowUp, error)
	GetOpenFollowUp(ctx context.Context, prospectID uuid.UUID) (domain.FollowUp, error)
	ListTransfers(ctx context.Context, prospectID uuid.UUID) ([]domain.Transfer, error)
	ListAdvisorAgenda(ctx context.Context, advisorID uuid.UUID) ([]repository.OverdueCandidate, error)
}

// FollowUpCloser closes a prospect's open follow-up on pipeline exit.
type FollowUpCloser interface {
	CloseForStageExit(ctx context.Context, prospectID uuid.UUID) error
}

// Calendar exposes the active week schedule.
type Calendar interface {
	Schedule() calendar.WeekSchedule
}

// Service executes prospect administration commands.
type Service struct {
	store    Store
	closer   FollowUpCloser
	calendar Calendar
	bus      events.Bus
	cfg      config.EngineConfig
	phoneCfg config.PhoneConfig
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates the management service.
func NewService(store Store, closer FollowUpCloser, cal Calendar, bus events.Bus, cfg config.EngineConfig, phoneCfg config.PhoneConfig, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		closer:   closer,
		calendar: cal,
		bus:      bus,
		cfg:      cfg,
		phoneCfg: phoneCfg,
		log:      log,
		now:      time.Now,
	}
}

// CreateParams carries a prospect intake.
type CreateParams struct {
	Name             string
	Email            string
	Phone            string
	EstimatedValue   float64
	CloseProbability int
	AdvisorID        uuid.UUID
	FollowUpType     string
	FirstDeadline    *time.Time
}

// CreateResult pairs the new prospect with its first scheduled follow-up.
type CreateResult struct {
	Prospect domain.Prospect
	FollowUp domain.FollowUp
}

// Create registers a prospect in stage New, owned by the given advisor, with
// its first follow-up already on the advisor's agenda. The deadline defaults
// to the configured offset pushed into business hours; an explicit first
// deadline must fall inside business hours.
func (s *Service) Create(ctx context.Context, p CreateParams) (CreateResult, error) {
	now := s.now()
	ws := s.calendar.Schedule()

	deadline, err := s.firstDeadline(now, ws, p.FirstDeadline)
	if err != nil {
		return CreateResult{}, err
	}

	followUpType := p.FollowUpType
	if followUpType == "" {
		followUpType = domain.FollowUpCall
	}
	if !domain.IsKnownFollowUpType(followUpType) {
		return CreateResult{}, apperr.Validation(fmt.Sprintf("unknown follow-up type %q", followUpType))
	}

	advisorID := p.AdvisorID
	prospect, err := s.store.CreateProspect(ctx, domain.Prospect{
		ID:               uuid.New(),
		Code:             newProspectCode(),
		Name:             p.Name,
		Email:            p.Email,
		Phone:            phone.NormalizeE164(p.Phone, s.phoneCfg.GetDefaultPhoneRegion()),
		EstimatedValue:   p.EstimatedValue,
		CloseProbability: p.CloseProbability,
		Stage:            domain.StageNew,
		AdvisorID:        &advisorID,
	})
	if err != nil {
		return CreateResult{}, apperr.Wrap(apperr.KindInternal, "failed to create prospect", err).WithOp("management.Create")
	}

	fu, err := s.store.CreateFollowUp(ctx, domain.FollowUp{
		ID:          uuid.New(),
		ProspectID:  prospect.ID,
		AdvisorID:   advisorID,
		Type:        followUpType,
		ScheduledAt: now,
		Deadline:    deadline,
		Visible:     true,
	})
	if err != nil {
		return CreateResult{}, apperr.Wrap(apperr.KindInternal, "failed to create first follow-up", err).WithOp("management.Create")
	}

	return CreateResult{Prospect: prospect, FollowUp: fu}, nil
}

// Get returns a prospect by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Prospect, error) {
	p, err := s.store.GetProspectByID(ctx, id)
	if err != nil {
		return domain.Prospect{}, s.mapStoreErr(err, "management.Get")
	}
	return p, nil
}

// List returns prospects matching the filter.
func (s *Service) List(ctx context.Context, filter repository.ProspectFilter) ([]domain.Prospect, error) {
	items, err := s.store.ListProspects(ctx, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list prospects", err).WithOp("management.List")
	}
	return items, nil
}

// ListTransfers returns a prospect's ownership history.
func (s *Service) ListTransfers(ctx context.Context, prospectID uuid.UUID) ([]domain.Transfer, error) {
	if _, err := s.store.GetProspectByID(ctx, prospectID); err != nil {
		return nil, s.mapStoreErr(err, "management.ListTransfers")
	}
	items, err := s.store.ListTransfers(ctx, prospectID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list transfers", err).WithOp("management.ListTransfers")
	}
	return items, nil
}

// UpdateStage moves a prospect between pipeline stages. Entering Won or Lost
// exits the pipeline: the open follow-up is closed without a successor.
func (s *Service) UpdateStage(ctx context.Context, id uuid.UUID, stage string) (domain.Prospect, error) {
	if !domain.IsKnownStage(stage) {
		return domain.Prospect{}, apperr.Validation(fmt.Sprintf("unknown stage %q", stage))
	}

	oldStage, err := s.store.UpdateProspectStage(ctx, id, stage)
	if err != nil {
		return domain.Prospect{}, s.mapStoreErr(err, "management.UpdateStage")
	}

	if domain.IsTerminalStage(stage) && !domain.IsTerminalStage(oldStage) {
		if err := s.closer.CloseForStageExit(ctx, id); err != nil {
			return domain.Prospect{}, err
		}
	}

	s.bus.Publish(ctx, events.ProspectStageChanged{
		BaseEvent:  events.NewBaseEvent(),
		ProspectID: id,
		OldStage:   oldStage,
		NewStage:   stage,
	})

	return s.Get(ctx, id)
}

// UpdateValue sets the estimated value and close probability.
func (s *Service) UpdateValue(ctx context.Context, id uuid.UUID, estimatedValue float64, closeProbability int) (domain.Prospect, error) {
	if err := s.store.UpdateProspectValue(ctx, id, estimatedValue, closeProbability); err != nil {
		return domain.Prospect{}, s.mapStoreErr(err, "management.UpdateValue")
	}
	return s.Get(ctx, id)
}

// WorkItem is one entry in an advisor's queue.
type WorkItem struct {
	Prospect     domain.Prospect
	FollowUp     domain.FollowUp
	Score        float64
	OverdueHours float64
}

// WorkQueue returns the advisor's open follow-ups ordered by descending
// urgency/value score.
func (s *Service) WorkQueue(ctx context.Context, advisorID uuid.UUID) ([]WorkItem, error) {
	agenda, err := s.store.ListAdvisorAgenda(ctx, advisorID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load work queue", err).WithOp("management.WorkQueue")
	}

	now := s.now()
	ws := s.calendar.Schedule()

	items := make([]WorkItem, 0, len(agenda))
	for _, c := range agenda {
		overdue := c.FollowUp.OverdueBusinessHours(now, ws)
		items = append(items, WorkItem{
			Prospect: c.Prospect,
			FollowUp: c.FollowUp,
			Score: scoring.Score(scoring.Input{
				EstimatedValue:       c.Prospect.EstimatedValue,
				CloseProbability:     c.Prospect.CloseProbability,
				OverdueBusinessHours: overdue,
			}),
			OverdueHours: overdue,
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })

	return items, nil
}

// firstDeadline resolves the first follow-up deadline at intake.
func (s *Service) firstDeadline(now time.Time, ws calendar.WeekSchedule, explicit *time.Time) (time.Time, error) {
	if explicit != nil {
		if !explicit.After(now) {
			return time.Time{}, apperr.Validation("first deadline must be in the future")
		}
		if !ws.Contains(*explicit) {
			return time.Time{}, apperr.Validation("first deadline falls outside business hours")
		}
		return *explicit, nil
	}

	deadline := now.Add(s.cfg.GetDefaultDeadlineOffset())
	if !ws.Contains(deadline) {
		if next := calendar.NextOpenAfter(deadline, ws); !next.IsZero() {
			deadline = next
		}
	}
	return deadline, nil
}

func (s *Service) mapStoreErr(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("prospect not found").WithOp(op)
	case errors.Is(err, repository.ErrFollowUpNotFound):
		return apperr.NotFound("follow-up not found").WithOp(op)
	default:
		return apperr.Wrap(apperr.KindInternal, "storage failure", err).WithOp(op)
	}
}

// newProspectCode generates a short human-facing reference like P-3F2A9C1D.
func newProspectCode() string {
	return "P-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
