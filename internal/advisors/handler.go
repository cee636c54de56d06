package advisors

import (
	"net/http"
	"time"

	"crm_followup_backend/platform/httpkit"
	"crm_followup_backend/platform/phone"
	"crm_followup_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createAdvisorRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=100"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone,omitempty" validate:"omitempty,min=5,max=20"`
}

type advisorResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

func toAdvisorResponse(a Advisor) advisorResponse {
	return advisorResponse{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Phone:     a.Phone,
		Active:    a.Active,
		CreatedAt: a.CreatedAt,
	}
}

// Handler exposes advisor registration and listing.
type Handler struct {
	repo          *Repository
	val           *validator.Validator
	defaultRegion string
}

// NewHandler creates the advisor handler.
func NewHandler(repo *Repository, val *validator.Validator, defaultRegion string) *Handler {
	return &Handler{repo: repo, val: val, defaultRegion: defaultRegion}
}

// RegisterRoutes mounts the advisor routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	advisors := rg.Group("/advisors")
	{
		advisors.GET("", h.List)
		advisors.POST("", h.Create)
		advisors.GET("/:id", h.GetByID)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req createAdvisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	saved, err := h.repo.Create(c.Request.Context(), Advisor{
		ID:     uuid.New(),
		Name:   req.Name,
		Email:  req.Email,
		Phone:  phone.NormalizeE164(req.Phone, h.defaultRegion),
		Active: true,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toAdvisorResponse(saved))
}

func (h *Handler) List(c *gin.Context) {
	items, err := h.repo.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]advisorResponse, 0, len(items))
	for _, a := range items {
		out = append(out, toAdvisorResponse(a))
	}
	httpkit.OK(c, out)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}

	a, err := h.repo.GetByID(c.Request.Context(), id)
	if err == ErrAdvisorNotFound {
		httpkit.Error(c, http.StatusNotFound, "advisor not found", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toAdvisorResponse(a))
}
