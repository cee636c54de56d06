// Package transport defines the HTTP request and response DTOs for the
// prospect pipeline.
package transport

import (
	"time"

	"crm_followup_backend/internal/prospects/domain"

	"github.com/google/uuid"
)

// Request DTOs

type CreateProspectRequest struct {
	Name             string     `json:"name" validate:"required,min=1,max=200"`
	Email            string     `json:"email,omitempty" validate:"omitempty,email"`
	Phone            string     `json:"phone,omitempty" validate:"omitempty,min=5,max=20"`
	EstimatedValue   float64    `json:"estimatedValue" validate:"gte=0"`
	CloseProbability int        `json:"closeProbability" validate:"gte=0,lte=100"`
	AdvisorID        uuid.UUID  `json:"advisorId" validate:"required"`
	FollowUpType     string     `json:"followUpType,omitempty" validate:"omitempty,oneof=Call Email WhatsApp Meeting Visit"`
	FirstDeadline    *time.Time `json:"firstDeadline,omitempty"`
}

type UpdateStageRequest struct {
	Stage string `json:"stage" validate:"required,oneof=New Quoted Negotiating Won Lost"`
}

type UpdateValueRequest struct {
	EstimatedValue   float64 `json:"estimatedValue" validate:"gte=0"`
	CloseProbability int     `json:"closeProbability" validate:"gte=0,lte=100"`
}

type CompleteFollowUpRequest struct {
	AdvisorID        uuid.UUID  `json:"advisorId" validate:"required"`
	OutcomeCategory  string     `json:"outcomeCategory" validate:"required,oneof=Interested NotInterested NoAnswer"`
	OutcomeNotes     string     `json:"outcomeNotes" validate:"required,min=1,max=2000"`
	DeclineSuccessor bool       `json:"declineSuccessor,omitempty"`
	RescheduleTo     *time.Time `json:"rescheduleTo,omitempty"`
}

type RescheduleFollowUpRequest struct {
	AdvisorID   uuid.UUID `json:"advisorId" validate:"required"`
	NewDeadline time.Time `json:"newDeadline" validate:"required"`
	Reason      string    `json:"reason,omitempty" validate:"max=500"`
}

type ClaimProspectRequest struct {
	AdvisorID uuid.UUID `json:"advisorId" validate:"required"`
}

type RunSweepRequest struct {
	AdvisorIDs []uuid.UUID `json:"advisorIds,omitempty"`
	MinValue   *float64    `json:"minValue,omitempty" validate:"omitempty,gte=0"`
}

type ListProspectsRequest struct {
	Stage     string  `form:"stage" validate:"omitempty,oneof=New Quoted Negotiating Won Lost"`
	AdvisorID string  `form:"advisorId" validate:"omitempty,uuid"`
	FreePool  *bool   `form:"freePool"`
	MinValue  float64 `form:"minValue" validate:"gte=0"`
}

// Response DTOs

type ProspectResponse struct {
	ID               uuid.UUID  `json:"id"`
	Code             string     `json:"code"`
	Name             string     `json:"name"`
	Email            string     `json:"email,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	EstimatedValue   float64    `json:"estimatedValue"`
	CloseProbability int        `json:"closeProbability"`
	Stage            string     `json:"stage"`
	AdvisorID        *uuid.UUID `json:"advisorId,omitempty"`
	FreePool         bool       `json:"freePool"`
	Reassignments    int        `json:"reassignments"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type FollowUpResponse struct {
	ID              uuid.UUID  `json:"id"`
	ProspectID      uuid.UUID  `json:"prospectId"`
	AdvisorID       uuid.UUID  `json:"advisorId"`
	Type            string     `json:"type"`
	ScheduledAt     time.Time  `json:"scheduledAt"`
	Deadline        time.Time  `json:"deadline"`
	State           string     `json:"state"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	OutcomeCategory *string    `json:"outcomeCategory,omitempty"`
	OutcomeNotes    *string    `json:"outcomeNotes,omitempty"`
	Visible         bool       `json:"visible"`
	CreatedAt       time.Time  `json:"createdAt"`
}

type TransferResponse struct {
	ID            uuid.UUID  `json:"id"`
	ProspectID    uuid.UUID  `json:"prospectId"`
	FromAdvisorID *uuid.UUID `json:"fromAdvisorId,omitempty"`
	ToAdvisorID   *uuid.UUID `json:"toAdvisorId,omitempty"`
	Reason        string     `json:"reason"`
	OccurredAt    time.Time  `json:"occurredAt"`
}

// WorkItemResponse is one entry in an advisor's score-ordered work queue.
type WorkItemResponse struct {
	Prospect     ProspectResponse `json:"prospect"`
	FollowUp     FollowUpResponse `json:"followUp"`
	Score        float64          `json:"score"`
	OverdueHours float64          `json:"overdueHours"`
}

type CompleteFollowUpResponse struct {
	Completed FollowUpResponse  `json:"completed"`
	Successor *FollowUpResponse `json:"successor,omitempty"`
}

type ClaimProspectResponse struct {
	Prospect ProspectResponse `json:"prospect"`
	FollowUp FollowUpResponse `json:"followUp"`
}

// Converters

func ToProspectResponse(p domain.Prospect) ProspectResponse {
	return ProspectResponse{
		ID:               p.ID,
		Code:             p.Code,
		Name:             p.Name,
		Email:            p.Email,
		Phone:            p.Phone,
		EstimatedValue:   p.EstimatedValue,
		CloseProbability: p.CloseProbability,
		Stage:            p.Stage,
		AdvisorID:        p.AdvisorID,
		FreePool:         p.FreePool,
		Reassignments:    p.Reassignments,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func ToFollowUpResponse(fu domain.FollowUp, now time.Time) FollowUpResponse {
	return FollowUpResponse{
		ID:              fu.ID,
		ProspectID:      fu.ProspectID,
		AdvisorID:       fu.AdvisorID,
		Type:            fu.Type,
		ScheduledAt:     fu.ScheduledAt,
		Deadline:        fu.Deadline,
		State:           string(fu.State(now)),
		CompletedAt:     fu.CompletedAt,
		OutcomeCategory: fu.OutcomeCategory,
		OutcomeNotes:    fu.OutcomeNotes,
		Visible:         fu.Visible,
		CreatedAt:       fu.CreatedAt,
	}
}

func ToTransferResponse(t domain.Transfer) TransferResponse {
	return TransferResponse{
		ID:            t.ID,
		ProspectID:    t.ProspectID,
		FromAdvisorID: t.FromAdvisorID,
		ToAdvisorID:   t.ToAdvisorID,
		Reason:        t.Reason,
		OccurredAt:    t.OccurredAt,
	}
}
