package management

import (
	"context"
	"testing"
	"time"

	"crm_followup_backend/internal/calendar"
	"crm_followup_backend/internal/prospects/domain"
	"crm_followup_backend/internal/prospects/repository"
	"crm_followup_backend/platform/apperr"
	platformevents "crm_followup_backend/platform/events"
	"crm_followup_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	prospects map[uuid.UUID]domain.Prospect
	followUps map[uuid.UUID]domain.FollowUp
	transfers map[uuid.UUID][]domain.Transfer
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		prospects: make(map[uuid.UUID]domain.Prospect),
		followUps: make(map[uuid.UUID]domain.FollowUp),
		transfers: make(map[uuid.UUID][]domain.Transfer),
	}
}

func (s *fakeStore) CreateProspect(_ context.Context, p domain.Prospect) (domain.Prospect, error) {
	s.prospects[p.ID] = p
	return p, nil
}

func (s *fakeStore) GetProspectByID(_ context.Context, id uuid.UUID) (domain.Prospect, error) {
	p, ok := s.prospects[id]
	if !ok {
		return domain.Prospect{}, repository.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) ListProspects(_ context.Context, _ repository.ProspectFilter) ([]domain.Prospect, error) {
	out := make([]domain.Prospect, 0, len(s.prospects))
	for _, p := range s.prospects {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeStore) UpdateProspectStage(_ context.Context, id uuid.UUID, stage string) (string, error) {
	p, ok := s.prospects[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	old := p.Stage
	p.Stage = stage
	s.prospects[id] = p
	return old, nil
}

func (s *fakeStore) UpdateProspectValue(_ context.Context, id uuid.UUID, value float64, probability int) error {
	p, ok := s.prospects[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.EstimatedValue = value
	p.CloseProbability = probability
	s.prospects[id] = p
	return nil
}

func (s *fakeStore) CreateFollowUp(_ context.Context, fu domain.FollowUp) (domain.FollowUp, error) {
	s.followUps[fu.ID] = fu
	return fu, nil
}

func (s *fakeStore) GetOpenFollowUp(_ context.Context, prospectID uuid.UUID) (domain.FollowUp, error) {
	for _, fu := range s.followUps {
		if fu.ProspectID == prospectID && fu.Open() {
			return fu, nil
		}
	}
	return domain.FollowUp{}, repository.ErrFollowUpNotFound
}

func (s *fakeStore) ListTransfers(_ context.Context, prospectID uuid.UUID) ([]domain.Transfer, error) {
	return s.transfers[prospectID], nil
}

func (s *fakeStore) ListAdvisorAgenda(_ context.Context, advisorID uuid.UUID) ([]repository.OverdueCandidate, error) {
	var out []repository.OverdueCandidate
	for _, fu := range s.followUps {
		if !fu.Open() || fu.AdvisorID != advisorID || !fu.Visible {
			continue
		}
		p := s.prospects[fu.ProspectID]
		if p.FreePool {
			continue
		}
		out = append(out, repository.OverdueCandidate{Prospect: p, FollowUp: fu})
	}
	return out, nil
}

type recordingCloser struct{ closed []uuid.UUID }

func (c *recordingCloser) CloseForStageExit(_ context.Context, prospectID uuid.UUID) error {
	c.closed = append(c.closed, prospectID)
	return nil
}

type staticCalendar struct{ ws calendar.WeekSchedule }

func (c staticCalendar) Schedule() calendar.WeekSchedule { return c.ws }

type nopBus struct{}

func (nopBus) Publish(context.Context, platformevents.Event)           {}
func (nopBus) PublishSync(context.Context, platformevents.Event) error { return nil }
func (nopBus) Subscribe(string, platformevents.Handler)                {}

type engineConfig struct{}

func (engineConfig) GetGracePeriodHours() float64            { return 18 }
func (engineConfig) GetMaxReassignments() int                { return 2 }
func (engineConfig) GetDefaultDeadlineOffset() time.Duration { return 24 * time.Hour }

type phoneConfig struct{}

func (phoneConfig) GetDefaultPhoneRegion() string { return "MX" }

func newTestService(store *fakeStore, closer *recordingCloser, now time.Time) *Service {
	svc := NewService(store, closer, staticCalendar{ws: calendar.DefaultSchedule()}, nopBus{}, engineConfig{}, phoneConfig{}, logger.New("test"))
	svc.now = func() time.Time { return now }
	return svc
}

func monday(hour int) time.Time {
	return time.Date(2026, time.January, 5, hour, 0, 0, 0, time.UTC)
}

func TestCreateSchedulesFirstFollowUp(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingCloser{}, monday(9))
	advisorID := uuid.New()

	res, err := svc.Create(context.Background(), CreateParams{
		Name:             "Ana Torres",
		EstimatedValue:   15_000,
		CloseProbability: 60,
		AdvisorID:        advisorID,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if res.Prospect.Stage != domain.StageNew {
		t.Fatalf("stage = %s, want New", res.Prospect.Stage)
	}
	if res.Prospect.AdvisorID == nil || *res.Prospect.AdvisorID != advisorID {
		t.Fatal("prospect not owned by the intake advisor")
	}
	if res.Prospect.Code == "" {
		t.Fatal("prospect code not generated")
	}
	if res.FollowUp.Type != domain.FollowUpCall {
		t.Fatalf("default follow-up type = %s, want Call", res.FollowUp.Type)
	}
	// Monday 09:00 + 24h is Tuesday 09:00, inside business hours.
	want := monday(9).Add(24 * time.Hour)
	if !res.FollowUp.Deadline.Equal(want) {
		t.Fatalf("first deadline = %v, want %v", res.FollowUp.Deadline, want)
	}
}

func TestCreateExplicitDeadlineValidation(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingCloser{}, monday(9))

	sunday := time.Date(2026, time.January, 11, 10, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), CreateParams{
		Name:          "Ana Torres",
		AdvisorID:     uuid.New(),
		FirstDeadline: &sunday,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.prospects) != 0 {
		t.Fatal("prospect created despite invalid first deadline")
	}
}

func TestUpdateStageTerminalClosesFollowUp(t *testing.T) {
	store := newFakeStore()
	closer := &recordingCloser{}
	svc := newTestService(store, closer, monday(9))

	res, err := svc.Create(context.Background(), CreateParams{
		Name:      "Ana Torres",
		AdvisorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	updated, err := svc.UpdateStage(context.Background(), res.Prospect.ID, domain.StageWon)
	if err != nil {
		t.Fatalf("UpdateStage returned error: %v", err)
	}
	if updated.Stage != domain.StageWon {
		t.Fatalf("stage = %s, want Won", updated.Stage)
	}
	if len(closer.closed) != 1 || closer.closed[0] != res.Prospect.ID {
		t.Fatal("open follow-up not closed on pipeline exit")
	}
}

func TestUpdateStageNonTerminalKeepsFollowUp(t *testing.T) {
	store := newFakeStore()
	closer := &recordingCloser{}
	svc := newTestService(store, closer, monday(9))

	res, err := svc.Create(context.Background(), CreateParams{
		Name:      "Ana Torres",
		AdvisorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := svc.UpdateStage(context.Background(), res.Prospect.ID, domain.StageQuoted); err != nil {
		t.Fatalf("UpdateStage returned error: %v", err)
	}
	if len(closer.closed) != 0 {
		t.Fatal("follow-up closed on a non-terminal stage move")
	}
}

func TestUpdateStageUnknownRejected(t *testing.T) {
	svc := newTestService(newFakeStore(), &recordingCloser{}, monday(9))

	_, err := svc.UpdateStage(context.Background(), uuid.New(), "Paused")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWorkQueueOrderedByScore(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &recordingCloser{}, monday(9))
	advisorID := uuid.New()

	// Three prospects with the same advisor and increasingly heavy deals.
	var created []CreateResult
	for _, value := range []float64{1_000, 500_000, 50_000} {
		res, err := svc.Create(context.Background(), CreateParams{
			Name:             "Prospect",
			EstimatedValue:   value,
			CloseProbability: 60,
			AdvisorID:        advisorID,
		})
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		created = append(created, res)
	}

	queue, err := svc.WorkQueue(context.Background(), advisorID)
	if err != nil {
		t.Fatalf("WorkQueue returned error: %v", err)
	}
	if len(queue) != 3 {
		t.Fatalf("queue length = %d, want 3", len(queue))
	}
	for i := 1; i < len(queue); i++ {
		if queue[i].Score > queue[i-1].Score {
			t.Fatalf("queue not sorted by descending score: %+v", queue)
		}
	}
	if queue[0].Prospect.EstimatedValue != 500_000 {
		t.Fatalf("heaviest deal not first: got value %.0f", queue[0].Prospect.EstimatedValue)
	}
}

func TestGetMissingProspect(t *testing.T) {
	svc := newTestService(newFakeStore(), &recordingCloser{}, monday(9))

	_, err := svc.Get(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
