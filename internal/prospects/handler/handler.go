// Package handler exposes the prospect pipeline over HTTP.
package handler

import (
	"net/http"
	"time"

	"crm_followup_backend/internal/prospects/claims"
	"crm_followup_backend/internal/prospects/escalation"
	"crm_followup_backend/internal/prospects/followups"
	"crm_followup_backend/internal/prospects/management"
	"crm_followup_backend/internal/prospects/repository"
	"crm_followup_backend/internal/prospects/transport"
	"crm_followup_backend/platform/httpkit"
	"crm_followup_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	management *management.Service
	followups  *followups.Service
	claims     *claims.Service
	engine     *escalation.Engine
	val        *validator.Validator
}

func New(mgmt *management.Service, fus *followups.Service, cls *claims.Service, engine *escalation.Engine, val *validator.Validator) *Handler {
	return &Handler{
		management: mgmt,
		followups:  fus,
		claims:     cls,
		engine:     engine,
		val:        val,
	}
}

// RegisterRoutes mounts the pipeline routes. The claim route carries its own
// stricter rate limiter.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, claimLimit gin.HandlerFunc) {
	prospects := rg.Group("/prospects")
	{
		prospects.GET("", h.List)
		prospects.POST("", h.Create)
		prospects.GET("/free-pool", h.ListFreePool)
		prospects.GET("/:id", h.GetByID)
		prospects.PATCH("/:id/stage", h.UpdateStage)
		prospects.PATCH("/:id/value", h.UpdateValue)
		prospects.GET("/:id/transfers", h.ListTransfers)
		prospects.POST("/:id/claim", claimLimit, h.Claim)
	}

	followups := rg.Group("/followups")
	{
		followups.POST("/:id/complete", h.CompleteFollowUp)
		followups.POST("/:id/reschedule", h.RescheduleFollowUp)
	}

	rg.GET("/advisors/:id/queue", h.WorkQueue)
	rg.POST("/escalation/sweep", h.RunSweep)
}

// ListFreePool returns unowned prospects waiting to be claimed.
func (h *Handler) ListFreePool(c *gin.Context) {
	freePool := true
	items, err := h.management.List(c.Request.Context(), repository.ProspectFilter{FreePool: &freePool})
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.ProspectResponse, 0, len(items))
	for _, p := range items {
		out = append(out, transport.ToProspectResponse(p))
	}
	httpkit.OK(c, out)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateProspectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	res, err := h.management.Create(c.Request.Context(), management.CreateParams{
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		EstimatedValue:   req.EstimatedValue,
		CloseProbability: req.CloseProbability,
		AdvisorID:        req.AdvisorID,
		FollowUpType:     req.FollowUpType,
		FirstDeadline:    req.FirstDeadline,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, gin.H{
		"prospect": transport.ToProspectResponse(res.Prospect),
		"followUp": transport.ToFollowUpResponse(res.FollowUp, time.Now()),
	})
}

func (h *Handler) List(c *gin.Context) {
	var req transport.ListProspectsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	var filter repository.ProspectFilter
	if req.Stage != "" {
		filter.Stage = &req.Stage
	}
	if req.AdvisorID != "" {
		advisorID, err := uuid.Parse(req.AdvisorID)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		filter.AdvisorID = &advisorID
	}
	if req.FreePool != nil {
		filter.FreePool = req.FreePool
	}
	if req.MinValue > 0 {
		filter.MinValue = &req.MinValue
	}

	items, err := h.management.List(c.Request.Context(), filter)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.ProspectResponse, 0, len(items))
	for _, p := range items {
		out = append(out, transport.ToProspectResponse(p))
	}
	httpkit.OK(c, out)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	p, err := h.management.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToProspectResponse(p))
}

func (h *Handler) UpdateStage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.UpdateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	p, err := h.management.UpdateStage(c.Request.Context(), id, req.Stage)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToProspectResponse(p))
}

func (h *Handler) UpdateValue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.UpdateValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	p, err := h.management.UpdateValue(c.Request.Context(), id, req.EstimatedValue, req.CloseProbability)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToProspectResponse(p))
}

func (h *Handler) ListTransfers(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	items, err := h.management.ListTransfers(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.TransferResponse, 0, len(items))
	for _, t := range items {
		out = append(out, transport.ToTransferResponse(t))
	}
	httpkit.OK(c, out)
}

func (h *Handler) Claim(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.ClaimProspectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	res, err := h.claims.Claim(c.Request.Context(), id, req.AdvisorID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ClaimProspectResponse{
		Prospect: transport.ToProspectResponse(res.Prospect),
		FollowUp: transport.ToFollowUpResponse(res.FollowUp, time.Now()),
	})
}

func (h *Handler) CompleteFollowUp(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.CompleteFollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	res, err := h.followups.Complete(c.Request.Context(), id, followups.CompleteParams{
		AdvisorID:        req.AdvisorID,
		OutcomeCategory:  req.OutcomeCategory,
		OutcomeNotes:     req.OutcomeNotes,
		DeclineSuccessor: req.DeclineSuccessor,
		RescheduleTo:     req.RescheduleTo,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	now := time.Now()
	out := transport.CompleteFollowUpResponse{
		Completed: transport.ToFollowUpResponse(res.Completed, now),
	}
	if res.Successor != nil {
		successor := transport.ToFollowUpResponse(*res.Successor, now)
		out.Successor = &successor
	}
	httpkit.OK(c, out)
}

func (h *Handler) RescheduleFollowUp(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.RescheduleFollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	saved, err := h.followups.Reschedule(c.Request.Context(), id, followups.RescheduleParams{
		AdvisorID:   req.AdvisorID,
		NewDeadline: req.NewDeadline,
		Reason:      req.Reason,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToFollowUpResponse(saved, time.Now()))
}

func (h *Handler) WorkQueue(c *gin.Context) {
	advisorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	items, err := h.management.WorkQueue(c.Request.Context(), advisorID)
	if httpkit.HandleError(c, err) {
		return
	}

	now := time.Now()
	out := make([]transport.WorkItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, transport.WorkItemResponse{
			Prospect:     transport.ToProspectResponse(item.Prospect),
			FollowUp:     transport.ToFollowUpResponse(item.FollowUp, now),
			Score:        item.Score,
			OverdueHours: item.OverdueHours,
		})
	}
	httpkit.OK(c, out)
}

// RunSweep triggers an on-demand escalation pass ("process overdue now").
func (h *Handler) RunSweep(c *gin.Context) {
	var req transport.RunSweepRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	summary, err := h.engine.RunSweep(c.Request.Context(), escalation.Filters{
		AdvisorIDs: req.AdvisorIDs,
		MinValue:   req.MinValue,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}
