package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm_followup_backend/internal/prospects/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ClaimConflictError is returned when the prospect was claimed by someone
// else first. WinnerAdvisorID identifies the current owner when one exists.
type ClaimConflictError struct {
	ProspectID      uuid.UUID
	WinnerAdvisorID *uuid.UUID
}

func (e *ClaimConflictError) Error() string {
	return "prospect already claimed"
}

// ClaimProspectParams carries one claim attempt.
type ClaimProspectParams struct {
	ProspectID  uuid.UUID
	AdvisorID   uuid.UUID
	NewFollowUp domain.FollowUp
	At          time.Time
}

// ClaimProspect atomically takes a prospect out of the free pool. The write
// is a conditional update guarded on free_pool, so under concurrent claims
// exactly one advisor's update matches and every other attempt observes zero
// rows and receives a ClaimConflictError naming the winner. A successful
// claim resets the reassignment counter, schedules the claimer's first
// follow-up, and records the transfer, all in one transaction.
func (r *Repository) ClaimProspect(ctx context.Context, p ClaimProspectParams) (domain.Prospect, domain.FollowUp, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Prospect{}, domain.FollowUp{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	claimed, err := scanProspect(tx.QueryRow(ctx, `
		UPDATE prospects
		SET advisor_id = $2, free_pool = false, reassignments = 0, updated_at = now()
		WHERE id = $1 AND free_pool = true
		RETURNING `+prospectColumns,
		p.ProspectID, p.AdvisorID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Prospect{}, domain.FollowUp{}, r.claimConflict(ctx, p.ProspectID)
	}
	if err != nil {
		return domain.Prospect{}, domain.FollowUp{}, fmt.Errorf("failed to claim prospect: %w", err)
	}

	fu, err := insertFollowUp(ctx, tx, p.NewFollowUp)
	if err != nil {
		return domain.Prospect{}, domain.FollowUp{}, fmt.Errorf("failed to create follow-up for claimer: %w", err)
	}

	if err := insertTransferTx(ctx, tx, domain.Transfer{
		ID:            uuid.New(),
		ProspectID:    p.ProspectID,
		FromAdvisorID: nil,
		ToAdvisorID:   &p.AdvisorID,
		Reason:        domain.TransferReasonFreePoolClaim,
		OccurredAt:    p.At,
	}); err != nil {
		return domain.Prospect{}, domain.FollowUp{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Prospect{}, domain.FollowUp{}, err
	}
	return claimed, fu, nil
}

// claimConflict resolves who holds the prospect after a lost claim. Reads
// outside the claim transaction on purpose: the loser's transaction must not
// hold locks while reporting.
func (r *Repository) claimConflict(ctx context.Context, prospectID uuid.UUID) error {
	var advisorID *uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT advisor_id FROM prospects WHERE id = $1`, prospectID).Scan(&advisorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to resolve claim winner: %w", err)
	}
	return &ClaimConflictError{ProspectID: prospectID, WinnerAdvisorID: advisorID}
}
