package advisors

import (
	apphttp "crm_followup_backend/internal/http"
	"crm_followup_backend/platform/config"
	"crm_followup_backend/platform/logger"
	"crm_followup_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the advisors bounded context implementing http.Module.
type Module struct {
	handler *Handler
	policy  *LeastLoadedPolicy
	repo    *Repository
}

// NewModule wires the advisor repository, selection policy, and handler.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, cfg config.PhoneConfig, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	return &Module{
		handler: NewHandler(repo, val, cfg.GetDefaultPhoneRegion()),
		policy:  NewLeastLoadedPolicy(repo, log),
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "advisors"
}

// RegisterRoutes mounts the advisor routes on the protected group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

// SelectionPolicy returns the least-loaded policy for the escalation engine.
func (m *Module) SelectionPolicy() *LeastLoadedPolicy {
	return m.policy
}

// Repository returns the advisor store, also used as the notification
// directory.
func (m *Module) Repository() *Repository {
	return m.repo
}
