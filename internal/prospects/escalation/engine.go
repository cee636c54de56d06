// Package escalation implements the overdue sweep: follow-ups that sat past
// their deadline for the grace window get their prospect moved to another
// advisor, or released into the free pool once the reassignment budget is
// spent.
package escalation

import (
	"context"
	"errors"
	"sync"
	"time"

	"crm_followup_backend/internal/calendar"
	"crm_followup_backend/internal/events"
	"crm_followup_backend/internal/prospects/domain"
	"crm_followup_backend/internal/prospects/repository"
	"crm_followup_backend/platform/config"
	"crm_followup_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// maxParallelProspects caps how many per-prospect transactions run at once.
const maxParallelProspects = 8

// Store is the persistence surface the engine needs.
type Store interface {
	ListOverdueCandidates(ctx context.Context, now time.Time) ([]repository.OverdueCandidate, error)
	ReassignOverdue(ctx context.Context, p repository.ReassignOverdueParams) (domain.FollowUp, error)
	ReleaseOverdue(ctx context.Context, p repository.ReleaseOverdueParams) error
}

// SelectionPolicy picks the next advisor for a reassigned prospect. The
// excluded advisors must not be returned.
type SelectionPolicy interface {
	SelectNextAdvisor(ctx context.Context, prospect domain.Prospect, exclude []uuid.UUID) (uuid.UUID, error)
}

// Calendar exposes the active week schedule.
type Calendar interface {
	Schedule() calendar.WeekSchedule
}

// Filters narrow which eligible follow-ups a sweep invocation processes.
// They never change eligibility itself: a filtered-out prospect stays
// eligible and is picked up by a later, wider sweep.
type Filters struct {
	AdvisorIDs []uuid.UUID
	MinValue   *float64
}

func (f Filters) matches(p domain.Prospect) bool {
	if f.MinValue != nil && p.EstimatedValue < *f.MinValue {
		return false
	}
	if len(f.AdvisorIDs) > 0 {
		if p.AdvisorID == nil {
			return false
		}
		for _, id := range f.AdvisorIDs {
			if *p.AdvisorID == id {
				return true
			}
		}
		return false
	}
	return true
}

// Failure reports one prospect whose transaction did not apply.
type Failure struct {
	ProspectID uuid.UUID `json:"prospectId"`
	Err        string    `json:"error"`
}

// Summary reports one sweep invocation. Skipped counts prospects whose state
// changed between the candidate read and the write; they are not failures.
type Summary struct {
	Candidates int       `json:"candidates"`
	Eligible   int       `json:"eligible"`
	Reassigned int       `json:"reassigned"`
	Released   int       `json:"released"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Failures   []Failure `json:"failures,omitempty"`
}

// Engine runs escalation sweeps. It holds no state between invocations;
// every sweep re-derives eligibility from storage, which is what makes the
// sweep idempotent and safe to retry in full.
type Engine struct {
	store    Store
	policy   SelectionPolicy
	calendar Calendar
	bus      events.Bus
	cfg      config.EngineConfig
	log      *logger.Logger
	now      func() time.Time
}

// NewEngine creates the escalation engine.
func NewEngine(store Store, policy SelectionPolicy, cal Calendar, bus events.Bus, cfg config.EngineConfig, log *logger.Logger) *Engine {
	return &Engine{
		store:    store,
		policy:   policy,
		calendar: cal,
		bus:      bus,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// RunSweep processes every eligible overdue follow-up once. Prospects are
// handled in parallel; each one is a single transaction, so a failure aborts
// only that prospect and is reported in the summary while the rest of the
// batch proceeds.
func (e *Engine) RunSweep(ctx context.Context, filters Filters) (Summary, error) {
	started := e.now()
	ws := e.calendar.Schedule()
	grace := e.cfg.GetGracePeriodHours()

	candidates, err := e.store.ListOverdueCandidates(ctx, started)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	summary.Candidates = len(candidates)

	eligible := make([]repository.OverdueCandidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.FollowUp.EligibleForEscalation(started, ws, grace) {
			continue
		}
		if !filters.matches(c.Prospect) {
			continue
		}
		eligible = append(eligible, c)
	}
	summary.Eligible = len(eligible)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelProspects)

	for _, c := range eligible {
		g.Go(func() error {
			outcome, err := e.processCandidate(gctx, c, ws, started)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && outcome == outcomeReassigned:
				summary.Reassigned++
			case err == nil && outcome == outcomeReleased:
				summary.Released++
			case isStale(err):
				summary.Skipped++
			default:
				summary.Failed++
				summary.Failures = append(summary.Failures, Failure{
					ProspectID: c.Prospect.ID,
					Err:        err.Error(),
				})
			}
			// One prospect's failure never aborts the batch.
			return nil
		})
	}
	_ = g.Wait()

	e.log.WithContext(ctx).SweepSummary(
		summary.Candidates, summary.Reassigned, summary.Released,
		summary.Skipped, summary.Failed,
		float64(e.now().Sub(started).Milliseconds()),
	)
	return summary, nil
}

type sweepOutcome int

const (
	outcomeReassigned sweepOutcome = iota
	outcomeReleased
)

func (e *Engine) processCandidate(ctx context.Context, c repository.OverdueCandidate, ws calendar.WeekSchedule, now time.Time) (sweepOutcome, error) {
	fromAdvisorID := *c.Prospect.AdvisorID

	// Reassign while budget remains; once the counter reaches the cap the
	// prospect goes to the free pool and the counter stops moving.
	if c.Prospect.Reassignments < e.cfg.GetMaxReassignments() {
		return outcomeReassigned, e.reassign(ctx, c, ws, now, fromAdvisorID)
	}
	return outcomeReleased, e.release(ctx, c, ws, now, fromAdvisorID)
}

// publishOverdue follows the committed escalation write: a candidate whose
// transaction was skipped or failed emits no event and triggers no
// notification, so a stuck prospect is not re-announced every interval.
func (e *Engine) publishOverdue(ctx context.Context, c repository.OverdueCandidate, ws calendar.WeekSchedule, now time.Time, advisorID uuid.UUID) {
	e.bus.Publish(ctx, events.FollowUpOverdue{
		BaseEvent:    events.NewBaseEvent(),
		FollowUpID:   c.FollowUp.ID,
		ProspectID:   c.Prospect.ID,
		AdvisorID:    advisorID,
		OverdueHours: c.FollowUp.OverdueBusinessHours(now, ws),
	})
}

func (e *Engine) reassign(ctx context.Context, c repository.OverdueCandidate, ws calendar.WeekSchedule, now time.Time, fromAdvisorID uuid.UUID) error {
	toAdvisorID, err := e.policy.SelectNextAdvisor(ctx, c.Prospect, []uuid.UUID{fromAdvisorID})
	if err != nil {
		return err
	}

	deadline := now.Add(e.cfg.GetDefaultDeadlineOffset())
	if !ws.Contains(deadline) {
		if next := calendar.NextOpenAfter(deadline, ws); !next.IsZero() {
			deadline = next
		}
	}

	_, err = e.store.ReassignOverdue(ctx, repository.ReassignOverdueParams{
		ProspectID:    c.Prospect.ID,
		FollowUpID:    c.FollowUp.ID,
		FromAdvisorID: fromAdvisorID,
		ToAdvisorID:   toAdvisorID,
		NewFollowUp: domain.FollowUp{
			ID:          uuid.New(),
			ProspectID:  c.Prospect.ID,
			AdvisorID:   toAdvisorID,
			Type:        c.FollowUp.Type,
			ScheduledAt: now,
			Deadline:    deadline,
			Visible:     true,
		},
		At: now,
	})
	if err != nil {
		return err
	}

	e.publishOverdue(ctx, c, ws, now, fromAdvisorID)
	e.bus.Publish(ctx, events.ProspectReassigned{
		BaseEvent:     events.NewBaseEvent(),
		ProspectID:    c.Prospect.ID,
		FromAdvisorID: fromAdvisorID,
		ToAdvisorID:   toAdvisorID,
		Reassignments: c.Prospect.Reassignments + 1,
		Reason:        domain.TransferReasonOverdue,
	})
	return nil
}

func (e *Engine) release(ctx context.Context, c repository.OverdueCandidate, ws calendar.WeekSchedule, now time.Time, fromAdvisorID uuid.UUID) error {
	err := e.store.ReleaseOverdue(ctx, repository.ReleaseOverdueParams{
		ProspectID:    c.Prospect.ID,
		FollowUpID:    c.FollowUp.ID,
		FromAdvisorID: fromAdvisorID,
		At:            now,
	})
	if err != nil {
		return err
	}

	e.publishOverdue(ctx, c, ws, now, fromAdvisorID)
	e.bus.Publish(ctx, events.ProspectReleasedToPool{
		BaseEvent:     events.NewBaseEvent(),
		ProspectID:    c.Prospect.ID,
		FromAdvisorID: fromAdvisorID,
		Reassignments: c.Prospect.Reassignments,
		Reason:        domain.TransferReasonOverdue,
	})
	return nil
}

// isStale reports whether the write lost to a concurrent change, which the
// sweep treats as already-handled rather than failed.
func isStale(err error) bool {
	return errors.Is(err, repository.ErrFollowUpNotOpen) ||
		errors.Is(err, repository.ErrOwnerChanged) ||
		errors.Is(err, repository.ErrFollowUpNotFound) ||
		errors.Is(err, repository.ErrNotFound)
}
