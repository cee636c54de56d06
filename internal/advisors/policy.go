package advisors

import (
	"context"

	"crm_followup_backend/internal/prospects/domain"
	"crm_followup_backend/platform/apperr"
	"crm_followup_backend/platform/logger"

	"github.com/google/uuid"
)

// LoadLister returns active advisors ordered by open follow-up count.
type LoadLister interface {
	ListActiveByLoad(ctx context.Context, exclude []uuid.UUID) ([]Load, error)
}

// LeastLoadedPolicy hands a reassigned prospect to the active advisor with
// the fewest open follow-ups, never one from the exclude list.
type LeastLoadedPolicy struct {
	repo LoadLister
	log  *logger.Logger
}

// NewLeastLoadedPolicy creates the policy.
func NewLeastLoadedPolicy(repo LoadLister, log *logger.Logger) *LeastLoadedPolicy {
	return &LeastLoadedPolicy{repo: repo, log: log}
}

// SelectNextAdvisor picks the lightest eligible advisor.
func (p *LeastLoadedPolicy) SelectNextAdvisor(ctx context.Context, prospect domain.Prospect, exclude []uuid.UUID) (uuid.UUID, error) {
	loads, err := p.repo.ListActiveByLoad(ctx, exclude)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.KindInternal, "failed to load advisor candidates", err).WithOp("advisors.SelectNextAdvisor")
	}
	if len(loads) == 0 {
		return uuid.Nil, apperr.Conflict("no active advisor available for reassignment").WithOp("advisors.SelectNextAdvisor")
	}

	chosen := loads[0]
	p.log.WithContext(ctx).Info("advisor selected for reassignment",
		"prospectId", prospect.ID.String(),
		"advisorId", chosen.Advisor.ID.String(),
		"openFollowUps", chosen.OpenCount,
	)
	return chosen.Advisor.ID, nil
}
