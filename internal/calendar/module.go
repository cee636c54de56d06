package calendar

import (
	"net/http"

	apphttp "crm_followup_backend/internal/http"
	"crm_followup_backend/platform/apperr"
	"crm_followup_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module exposes the business calendar over HTTP, implementing http.Module.
// Its single route swaps in an edited schedule file without a restart.
type Module struct {
	service *Service
}

// NewModule wraps the calendar service for route registration.
func NewModule(service *Service) *Module {
	return &Module{service: service}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "calendar"
}

// RegisterRoutes mounts the calendar routes on the protected group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/calendar/reload", m.Reload)
}

// Reload re-reads the schedule file. A failed reload reports the error and
// keeps the previous schedule active.
func (m *Module) Reload(c *gin.Context) {
	if err := m.service.Reload(); err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "schedule reload failed", err).WithOp("calendar.Reload"))
		return
	}
	httpkit.JSON(c, http.StatusOK, gin.H{"status": "reloaded"})
}
