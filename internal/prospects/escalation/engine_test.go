package escalation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crm_followup_backend/internal/calendar"
	"crm_followup_backend/internal/prospects/domain"
	"crm_followup_backend/internal/prospects/repository"
	platformevents "crm_followup_backend/platform/events"
	"crm_followup_backend/platform/logger"

	"github.com/google/uuid"
)

// memStore applies the same all-or-nothing per-prospect semantics as the SQL
// store: each write re-checks owner and open state under the lock and either
// applies everything or nothing.
type memStore struct {
	mu        sync.Mutex
	prospects map[uuid.UUID]*domain.Prospect
	followUps map[uuid.UUID]*domain.FollowUp
	transfers []domain.Transfer

	listCalls int
}

func newMemStore() *memStore {
	return &memStore{
		prospects: make(map[uuid.UUID]*domain.Prospect),
		followUps: make(map[uuid.UUID]*domain.FollowUp),
	}
}

func (s *memStore) add(p domain.Prospect, fu domain.FollowUp) {
	s.prospects[p.ID] = &p
	s.followUps[fu.ID] = &fu
}

func (s *memStore) ListOverdueCandidates(_ context.Context, now time.Time) ([]repository.OverdueCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++

	var out []repository.OverdueCandidate
	for _, fu := range s.followUps {
		if !fu.Open() || !fu.Deadline.Before(now) {
			continue
		}
		p := s.prospects[fu.ProspectID]
		if p == nil || p.FreePool || p.AdvisorID == nil || domain.IsTerminalStage(p.Stage) {
			continue
		}
		out = append(out, repository.OverdueCandidate{Prospect: *p, FollowUp: *fu})
	}
	return out, nil
}

func (s *memStore) checkLocked(prospectID, followUpID, fromAdvisorID uuid.UUID) (*domain.Prospect, *domain.FollowUp, error) {
	p := s.prospects[prospectID]
	if p == nil {
		return nil, nil, repository.ErrNotFound
	}
	if p.FreePool || p.AdvisorID == nil || *p.AdvisorID != fromAdvisorID {
		return nil, nil, repository.ErrOwnerChanged
	}
	fu := s.followUps[followUpID]
	if fu == nil {
		return nil, nil, repository.ErrFollowUpNotFound
	}
	if !fu.Open() {
		return nil, nil, repository.ErrFollowUpNotOpen
	}
	return p, fu, nil
}

func (s *memStore) ReassignOverdue(_ context.Context, params repository.ReassignOverdueParams) (domain.FollowUp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, fu, err := s.checkLocked(params.ProspectID, params.FollowUpID, params.FromAdvisorID)
	if err != nil {
		return domain.FollowUp{}, err
	}

	fu.Superseded = true
	fu.SupersededAt = &params.At
	toAdvisorID := params.ToAdvisorID
	p.AdvisorID = &toAdvisorID
	p.Reassignments++
	saved := params.NewFollowUp
	s.followUps[saved.ID] = &saved
	s.transfers = append(s.transfers, domain.Transfer{
		ID:            uuid.New(),
		ProspectID:    params.ProspectID,
		FromAdvisorID: &params.FromAdvisorID,
		ToAdvisorID:   &toAdvisorID,
		Reason:        domain.TransferReasonOverdue,
		OccurredAt:    params.At,
	})
	return saved, nil
}

func (s *memStore) ReleaseOverdue(_ context.Context, params repository.ReleaseOverdueParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, fu, err := s.checkLocked(params.ProspectID, params.FollowUpID, params.FromAdvisorID)
	if err != nil {
		return err
	}

	fu.Superseded = true
	fu.SupersededAt = &params.At
	p.AdvisorID = nil
	p.FreePool = true
	s.transfers = append(s.transfers, domain.Transfer{
		ID:            uuid.New(),
		ProspectID:    params.ProspectID,
		FromAdvisorID: &params.FromAdvisorID,
		ToAdvisorID:   nil,
		Reason:        domain.TransferReasonOverdue,
		OccurredAt:    params.At,
	})
	return nil
}

// openFollowUpFor returns the prospect's open follow-up, if any.
func (s *memStore) openFollowUpFor(prospectID uuid.UUID) *domain.FollowUp {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fu := range s.followUps {
		if fu.ProspectID == prospectID && fu.Open() {
			return fu
		}
	}
	return nil
}

// freshAdvisorPolicy hands out a new advisor id per reassignment, never one
// from the exclude list.
type freshAdvisorPolicy struct {
	mu     sync.Mutex
	err    error
	picked []uuid.UUID
}

func (p *freshAdvisorPolicy) SelectNextAdvisor(_ context.Context, _ domain.Prospect, exclude []uuid.UUID) (uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return uuid.Nil, p.err
	}
	next := uuid.New()
	for containsID(exclude, next) {
		next = uuid.New()
	}
	p.picked = append(p.picked, next)
	return next, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

type staticCalendar struct{ ws calendar.WeekSchedule }

func (c staticCalendar) Schedule() calendar.WeekSchedule { return c.ws }

type recordingBus struct {
	mu        sync.Mutex
	published []platformevents.Event
}

func (b *recordingBus) Publish(_ context.Context, e platformevents.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e platformevents.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, platformevents.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.published))
	for _, e := range b.published {
		out = append(out, e.EventName())
	}
	return out
}

type engineConfig struct {
	grace  float64
	max    int
	offset time.Duration
}

func (c engineConfig) GetGracePeriodHours() float64            { return c.grace }
func (c engineConfig) GetMaxReassignments() int                { return c.max }
func (c engineConfig) GetDefaultDeadlineOffset() time.Duration { return c.offset }

type engineFixture struct {
	engine *Engine
	store  *memStore
	policy *freshAdvisorPolicy
	bus    *recordingBus
	now    time.Time
}

func newFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		store:  newMemStore(),
		policy: &freshAdvisorPolicy{},
		bus:    &recordingBus{},
	}
	f.engine = NewEngine(
		f.store, f.policy, staticCalendar{ws: calendar.DefaultSchedule()}, f.bus,
		engineConfig{grace: 18, max: 2, offset: 24 * time.Hour},
		logger.New("test"),
	)
	f.engine.now = func() time.Time { return f.now }
	return f
}

func ownedProspect(advisorID uuid.UUID, reassignments int, value float64) domain.Prospect {
	return domain.Prospect{
		ID:               uuid.New(),
		Code:             "P-0001",
		Name:             "Test Prospect",
		EstimatedValue:   value,
		CloseProbability: 60,
		Stage:            domain.StageQuoted,
		AdvisorID:        &advisorID,
		Reassignments:    reassignments,
	}
}

func overdueFollowUp(p domain.Prospect, deadline time.Time) domain.FollowUp {
	return domain.FollowUp{
		ID:          uuid.New(),
		ProspectID:  p.ID,
		AdvisorID:   *p.AdvisorID,
		Type:        domain.FollowUpCall,
		ScheduledAt: deadline.Add(-24 * time.Hour),
		Deadline:    deadline,
		Visible:     true,
	}
}

// Monday 2026-01-05 through the following week, default schedule:
// Mon-Fri 08-18 (10h/day), Sat 09-12 (3h), Sun closed.
func jan(day, hour int) time.Time {
	return time.Date(2026, time.January, day, hour, 0, 0, 0, time.UTC)
}

func TestSweepReassignsAfterGraceWindow(t *testing.T) {
	f := newFixture(t)
	advisorID := uuid.New()
	p := ownedProspect(advisorID, 0, 15_000)
	// Deadline Monday 10:00; by Wednesday 10:00 the follow-up has been
	// overdue 20 business hours (Mon 8 + Tue 10 + Wed 2), past the 18h grace.
	fu := overdueFollowUp(p, jan(5, 10))
	f.store.add(p, fu)
	f.now = jan(7, 10)

	summary, err := f.engine.RunSweep(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("RunSweep returned error: %v", err)
	}
	if summary.Reassigned != 1 || summary.Released != 0 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	got := f.store.prospects[p.ID]
	if got.Reassignments != 1 {
		t.Fatalf("reassignment counter = %d, want 1", got.Reassignments)
	}
	if got.AdvisorID == nil || *got.AdvisorID == advisorID {
		t.Fatal("prospect still owned by the old advisor")
	}
	if got.FreePool {
		t.Fatal("prospect released instead of reassigned")
	}

	open := f.store.openFollowUpFor(p.ID)
	if open == nil {
		t.Fatal("no open follow-up after reassignment")
	}
	if open.AdvisorID != *got.AdvisorID {
		t.Fatal("new follow-up not owned by the new advisor")
	}
	if len(f.store.transfers) != 1 || f.store.transfers[0].Reason != domain.TransferReasonOverdue {
		t.Fatalf("unexpected transfers: %+v", f.store.transfers)
	}
}

func TestSweepRespectsGraceWindow(t *testing.T) {
	f := newFixture(t)
	p := ownedProspect(uuid.New(), 0, 15_000)
	// Deadline Tuesday 16:00; by Wednesday 10:00 only 4 business hours have
	// passed (Tue 2 + Wed 2). Past the wall-clock deadline, inside the grace.
	fu := overdueFollowUp(p, jan(6, 16))
	f.store.add(p, fu)
	f.now = jan(7, 10)

	summary, err := f.engine.RunSweep(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("RunSweep returned error: %v", err)
	}
	if summary.Candidates != 1 {
		t.Fatalf("candidates = %d, want 1", summary.Candidates)
	}
	if summary.Eligible != 0 || summary.Reassigned != 0 || summary.Released != 0 {
		t.Fatalf("follow-up inside grace window was processed: %+v", summary)
	}
}

func TestSweepIdempotent(t *testing.T) {
	f := newFixture(t)
	p := ownedProspect(uuid.New(), 0, 15_000)
	f.store.add(p, overdueFollowUp(p, jan(5, 10)))
	f.now = jan(7, 10)

	first, err := f.engine.RunSweep(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("first sweep returned error: %v", err)
	}
	if first.Reassigned != 1 {
		t.Fatalf("first sweep reassigned = %d, want 1", first.Reassigned)
	}

	// No intervening changes: the replacement follow-up's deadline is in the
	// future, so the second sweep finds nothing to do.
	second, err := f.engine.RunSweep(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("second sweep returned error: %v", err)
	}
	if second.Eligible != 0 || second.Reassigned != 0 || second.Released != 0 || second.Failed != 0 {
		t.Fatalf("second sweep was not a no-op: %+v", second)
	}
	if len(f.store.transfers) != 1 {
		t.Fatalf("transfers = %d after two sweeps, want 1", len(f.store.transfers))
	}
}

func TestSweepReassignmentCap(t *testing.T) {
	f := newFixture(t)
	firstAdvisor := uuid.New()
	p := ownedProspect(firstAdvisor, 0, 15_000)
	f.store.add(p, overdueFollowUp(p, jan(5, 10)))

	// Miss one: Wednesday 10:00, 20 business hours past Monday 10:00.
	f.now = jan(7, 10)
	if s, _ := f.engine.RunSweep(context.Background(), Filters{}); s.Reassigned != 1 {
		t.Fatalf("miss 1: %+v", s)
	}
	// Miss two: the replacement deadline was Thursday 10:00; by Monday the
	// 12th at 12:00 it is 25 business hours overdue.
	f.now = jan(12, 12)
	if s, _ := f.engine.RunSweep(context.Background(), Filters{}); s.Reassigned != 1 {
		t.Fatalf("miss 2: %+v", s)
	}
	// Miss three: replacement deadline Tuesday the 13th 12:00; by Thursday
	// the 15th at 12:00 it is 20 business hours overdue. Budget exhausted.
	f.now = jan(15, 12)
	s, err := f.engine.RunSweep(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("miss 3 sweep returned error: %v", err)
	}
	if s.Released != 1 || s.Reassigned != 0 {
		t.Fatalf("miss 3: %+v", s)
	}

	got := f.store.prospects[p.ID]
	if !got.FreePool || got.AdvisorID != nil {
		t.Fatalf("prospect not released to pool: %+v", got)
	}
	if got.Reassignments != 2 {
		t.Fatalf("reassignment counter = %d, want 2", got.Reassignments)
	}
	if open := f.store.openFollowUpFor(p.ID); open != nil {
		t.Fatal("pooled prospect still has an open follow-up")
	}
	if len(f.store.transfers) != 3 {
		t.Fatalf("transfers = %d, want 3", len(f.store.transfers))
	}
	last := f.store.transfers[2]
	if last.ToAdvisorID != nil {
		t.Fatal("final transfer should have no gaining advisor")
	}
}

func TestSweepFiltersNarrowOnly(t *testing.T) {
	f := newFixture(t)
	advisorA := uuid.New()
	advisorB := uuid.New()
	pa := ownedProspect(advisorA, 0, 15_000)
	pb := ownedProspect(advisorB, 0, 2_000)
	f.store.add(pa, overdueFollowUp(pa, jan(5, 10)))
	f.store.add(pb, overdueFollowUp(pb, jan(5, 10)))
	f.now = jan(7, 10)

	minValue := 10_000.0
	summary, err := f.engine.RunSweep(context.Background(), Filters{
		AdvisorIDs: []uuid.UUID{advisorA},
		MinValue:   &minValue,
	})
	if err != nil {
		t.Fatalf("RunSweep returned error: %v", err)
	}
	if summary.Reassigned != 1 {
		t.Fatalf("filtered sweep reassigned = %d, want 1", summary.Reassigned)
	}
	if f.store.prospects[pb.ID].Reassignments != 0 {
		t.Fatal("filtered-out prospect was processed")
	}

	// The filtered-out prospect stayed eligible; a wider sweep picks it up.
	wider, err := f.engine.RunSweep(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("wider sweep returned error: %v", err)
	}
	if wider.Reassigned != 1 {
		t.Fatalf("wider sweep reassigned = %d, want 1", wider.Reassigned)
	}
	if f.store.prospects[pb.ID].Reassignments != 1 {
		t.Fatal("previously filtered prospect not processed by wider sweep")
	}
}

func TestSweepFailureIsolatedPerProspect(t *testing.T) {
	f := newFixture(t)
	// One prospect fails advisor selection; the other must still go through.
	pFail := ownedProspect(uuid.New(), 0, 15_000)
	pOK := ownedProspect(uuid.New(), 2, 15_000) // budget spent: release path, no policy call
	f.store.add(pFail, overdueFollowUp(pFail, jan(5, 10)))
	f.store.add(pOK, overdueFollowUp(pOK, jan(5, 10)))
	f.now = jan(7, 10)
	f.policy.err = errors.New("no active advisors")

	summary, err := f.engine.RunSweep(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("RunSweep returned error: %v", err)
	}
	if summary.Failed != 1 || summary.Released != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].ProspectID != pFail.ID {
		t.Fatalf("failure not attributed to the right prospect: %+v", summary.Failures)
	}
	if open := f.store.openFollowUpFor(pFail.ID); open == nil {
		t.Fatal("failed prospect's follow-up was mutated")
	}
}

func TestSweepFailedCandidateEmitsNoEvents(t *testing.T) {
	f := newFixture(t)
	p := ownedProspect(uuid.New(), 0, 15_000)
	f.store.add(p, overdueFollowUp(p, jan(5, 10)))
	f.now = jan(7, 10)
	f.policy.err = errors.New("no active advisors")

	summary, err := f.engine.RunSweep(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("RunSweep returned error: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	// The overdue event follows the committed write. A candidate whose
	// transaction did not apply stays silent, so the next sweep interval
	// does not re-announce it to the advisor.
	if names := f.bus.names(); len(names) != 0 {
		t.Fatalf("events published for an unprocessed candidate: %v", names)
	}
}

func TestSweepScenarioSingleMiss(t *testing.T) {
	f := newFixture(t)
	advisorID := uuid.New()
	p := ownedProspect(advisorID, 0, 15_000)
	p.CloseProbability = 60
	// Deadline Monday 10:00, sweep Wednesday 10:00: 20 business hours
	// overdue against the 18 hour grace period.
	f.store.add(p, overdueFollowUp(p, jan(5, 10)))
	f.now = jan(7, 10)

	summary, err := f.engine.RunSweep(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("RunSweep returned error: %v", err)
	}
	if summary.Reassigned != 1 {
		t.Fatalf("reassigned = %d, want 1", summary.Reassigned)
	}

	got := f.store.prospects[p.ID]
	if got.Reassignments != 1 {
		t.Fatalf("counter = %d, want 1", got.Reassignments)
	}
	if *got.AdvisorID == advisorID {
		t.Fatal("prospect not moved to a different advisor")
	}
	if f.store.openFollowUpFor(p.ID) == nil {
		t.Fatal("no new scheduled follow-up")
	}
	if len(f.store.transfers) != 1 || f.store.transfers[0].Reason != domain.TransferReasonOverdue {
		t.Fatalf("unexpected transfers: %+v", f.store.transfers)
	}

	names := f.bus.names()
	wantEvents := map[string]bool{"followups.overdue": false, "prospects.reassigned": false}
	for _, n := range names {
		if _, ok := wantEvents[n]; ok {
			wantEvents[n] = true
		}
	}
	for name, seen := range wantEvents {
		if !seen {
			t.Fatalf("event %s not published (got %v)", name, names)
		}
	}
}
