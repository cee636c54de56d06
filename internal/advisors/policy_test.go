package advisors

import (
	"context"
	"testing"
	"time"

	"crm_followup_backend/internal/prospects/domain"
	"crm_followup_backend/platform/apperr"
	"crm_followup_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeLoadLister struct {
	loads       []Load
	lastExclude []uuid.UUID
}

func (f *fakeLoadLister) ListActiveByLoad(_ context.Context, exclude []uuid.UUID) ([]Load, error) {
	f.lastExclude = exclude
	out := make([]Load, 0, len(f.loads))
	for _, l := range f.loads {
		if !containsID(exclude, l.Advisor.ID) {
			out = append(out, l)
		}
	}
	return out, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func advisorLoad(openCount int) Load {
	return Load{
		Advisor: Advisor{
			ID:        uuid.New(),
			Name:      "Advisor",
			Active:    true,
			CreatedAt: time.Now(),
		},
		OpenCount: openCount,
	}
}

func TestSelectNextAdvisorPicksLightest(t *testing.T) {
	light := advisorLoad(1)
	heavy := advisorLoad(9)
	lister := &fakeLoadLister{loads: []Load{light, heavy}}
	policy := NewLeastLoadedPolicy(lister, logger.New("test"))

	got, err := policy.SelectNextAdvisor(context.Background(), domain.Prospect{ID: uuid.New()}, nil)
	if err != nil {
		t.Fatalf("SelectNextAdvisor returned error: %v", err)
	}
	if got != light.Advisor.ID {
		t.Fatalf("selected %s, want lightest advisor %s", got, light.Advisor.ID)
	}
}

func TestSelectNextAdvisorRespectsExclusion(t *testing.T) {
	excluded := advisorLoad(0)
	other := advisorLoad(5)
	lister := &fakeLoadLister{loads: []Load{excluded, other}}
	policy := NewLeastLoadedPolicy(lister, logger.New("test"))

	got, err := policy.SelectNextAdvisor(context.Background(), domain.Prospect{ID: uuid.New()}, []uuid.UUID{excluded.Advisor.ID})
	if err != nil {
		t.Fatalf("SelectNextAdvisor returned error: %v", err)
	}
	if got == excluded.Advisor.ID {
		t.Fatal("excluded advisor was selected")
	}
	if got != other.Advisor.ID {
		t.Fatalf("selected %s, want %s", got, other.Advisor.ID)
	}
}

func TestSelectNextAdvisorNoCandidates(t *testing.T) {
	only := advisorLoad(0)
	lister := &fakeLoadLister{loads: []Load{only}}
	policy := NewLeastLoadedPolicy(lister, logger.New("test"))

	_, err := policy.SelectNextAdvisor(context.Background(), domain.Prospect{ID: uuid.New()}, []uuid.UUID{only.Advisor.ID})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict when no advisor is available, got %v", err)
	}
}
