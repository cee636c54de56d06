// Package prospects provides the prospect pipeline bounded context: intake,
// follow-up lifecycle, claims, and the escalation engine.
package prospects

import (
	"crm_followup_backend/internal/calendar"
	"crm_followup_backend/internal/events"
	apphttp "crm_followup_backend/internal/http"
	"crm_followup_backend/internal/prospects/claims"
	"crm_followup_backend/internal/prospects/escalation"
	"crm_followup_backend/internal/prospects/followups"
	"crm_followup_backend/internal/prospects/handler"
	"crm_followup_backend/internal/prospects/management"
	"crm_followup_backend/internal/prospects/repository"
	"crm_followup_backend/platform/config"
	"crm_followup_backend/platform/logger"
	"crm_followup_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the prospects bounded context implementing http.Module.
type Module struct {
	handler *handler.Handler
	engine  *escalation.Engine
}

// NewModule wires the prospect pipeline: shared repository, the focused
// services, and the escalation engine with the given selection policy.
func NewModule(pool *pgxpool.Pool, policy escalation.SelectionPolicy, cal *calendar.Service, eventBus events.Bus, val *validator.Validator, cfg *config.Config, log *logger.Logger) *Module {
	repo := repository.New(pool)

	followUpSvc := followups.NewService(repo, cal, eventBus, cfg, log)
	claimSvc := claims.NewService(repo, cal, eventBus, cfg, log)
	mgmtSvc := management.NewService(repo, followUpSvc, cal, eventBus, cfg, cfg, log)
	engine := escalation.NewEngine(repo, policy, cal, eventBus, cfg, log)

	h := handler.New(mgmtSvc, followUpSvc, claimSvc, engine, val)

	return &Module{
		handler: h,
		engine:  engine,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "prospects"
}

// RegisterRoutes mounts the pipeline routes on the protected group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected, ctx.ClaimRateLimiter.RateLimit())
}

// Engine returns the escalation engine for the scheduler worker.
func (m *Module) Engine() *escalation.Engine {
	return m.engine
}
