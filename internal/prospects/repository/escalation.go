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

// OverdueCandidate pairs a prospect with its open, past-deadline follow-up.
type OverdueCandidate struct {
	Prospect domain.Prospect
	FollowUp domain.FollowUp
}

const candidateColumns = `
	p.id, p.code, p.name, p.email, p.phone, p.estimated_value, p.close_probability,
	p.stage, p.advisor_id, p.free_pool, p.reassignments, p.created_at, p.updated_at,
	f.id, f.prospect_id, f.advisor_id, f.type, f.scheduled_at, f.deadline,
	f.completed, f.completed_at, f.superseded, f.superseded_at, f.outcome_category, f.outcome_notes,
	f.visible, f.created_at`

// ListOverdueCandidates returns owned, non-terminal prospects whose open
// follow-up passed its deadline before now. Grace-period filtering happens in
// the engine, against the business calendar; the query only pre-filters on
// wall-clock deadline.
func (r *Repository) ListOverdueCandidates(ctx context.Context, now time.Time) ([]OverdueCandidate, error) {
	query := `
		SELECT ` + candidateColumns + `
		FROM prospects p
		JOIN followups f ON f.prospect_id = p.id AND NOT f.completed AND NOT f.superseded
		WHERE NOT p.free_pool
		  AND p.advisor_id IS NOT NULL
		  AND p.stage NOT IN ($2, $3)
		  AND f.deadline < $1
		ORDER BY f.deadline`

	rows, err := r.pool.Query(ctx, query, now, domain.StageWon, domain.StageLost)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue candidates: %w", err)
	}
	defer rows.Close()

	return collectCandidates(rows)
}

// ListAdvisorAgenda returns the advisor's prospects paired with their open
// follow-ups. Sorting by score happens in the service layer.
func (r *Repository) ListAdvisorAgenda(ctx context.Context, advisorID uuid.UUID) ([]OverdueCandidate, error) {
	query := `
		SELECT ` + candidateColumns + `
		FROM prospects p
		JOIN followups f ON f.prospect_id = p.id AND NOT f.completed AND NOT f.superseded
		WHERE p.advisor_id = $1 AND NOT p.free_pool AND f.visible
		ORDER BY f.deadline`

	rows, err := r.pool.Query(ctx, query, advisorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list advisor agenda: %w", err)
	}
	defer rows.Close()

	return collectCandidates(rows)
}

func collectCandidates(rows pgx.Rows) ([]OverdueCandidate, error) {
	items := make([]OverdueCandidate, 0)
	for rows.Next() {
		var c OverdueCandidate
		err := rows.Scan(
			&c.Prospect.ID, &c.Prospect.Code, &c.Prospect.Name, &c.Prospect.Email, &c.Prospect.Phone,
			&c.Prospect.EstimatedValue, &c.Prospect.CloseProbability, &c.Prospect.Stage,
			&c.Prospect.AdvisorID, &c.Prospect.FreePool, &c.Prospect.Reassignments,
			&c.Prospect.CreatedAt, &c.Prospect.UpdatedAt,
			&c.FollowUp.ID, &c.FollowUp.ProspectID, &c.FollowUp.AdvisorID, &c.FollowUp.Type,
			&c.FollowUp.ScheduledAt, &c.FollowUp.Deadline,
			&c.FollowUp.Completed, &c.FollowUp.CompletedAt,
			&c.FollowUp.Superseded, &c.FollowUp.SupersededAt,
			&c.FollowUp.OutcomeCategory, &c.FollowUp.OutcomeNotes,
			&c.FollowUp.Visible, &c.FollowUp.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidates: %w", err)
	}
	return items, nil
}

// ReassignOverdueParams carries one escalated transfer to a new advisor.
type ReassignOverdueParams struct {
	ProspectID    uuid.UUID
	FollowUpID    uuid.UUID
	FromAdvisorID uuid.UUID
	ToAdvisorID   uuid.UUID
	NewFollowUp   domain.FollowUp
	At            time.Time
}

// ReassignOverdue moves an overdue prospect to a new advisor in one
// transaction: the old follow-up is superseded, a fresh one is created for the
// new owner, the reassignment counter increments, and a transfer record is
// written. If the follow-up was completed or the owner changed since the sweep
// read its state, nothing is applied and ErrFollowUpNotOpen or
// ErrOwnerChanged is returned; the sweep treats both as a skip.
func (r *Repository) ReassignOverdue(ctx context.Context, p ReassignOverdueParams) (domain.FollowUp, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.FollowUp{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockOwnedProspect(ctx, tx, p.ProspectID, p.FromAdvisorID); err != nil {
		return domain.FollowUp{}, err
	}
	if err := lockOpenFollowUp(ctx, tx, p.FollowUpID); err != nil {
		return domain.FollowUp{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE followups SET superseded = true, superseded_at = $2 WHERE id = $1`,
		p.FollowUpID, p.At,
	); err != nil {
		return domain.FollowUp{}, fmt.Errorf("failed to supersede follow-up: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE prospects
		SET advisor_id = $2, reassignments = reassignments + 1, updated_at = now()
		WHERE id = $1`,
		p.ProspectID, p.ToAdvisorID,
	); err != nil {
		return domain.FollowUp{}, fmt.Errorf("failed to reassign prospect: %w", err)
	}

	saved, err := insertFollowUp(ctx, tx, p.NewFollowUp)
	if err != nil {
		return domain.FollowUp{}, fmt.Errorf("failed to create follow-up for new advisor: %w", err)
	}

	if err := insertTransferTx(ctx, tx, domain.Transfer{
		ID:            uuid.New(),
		ProspectID:    p.ProspectID,
		FromAdvisorID: &p.FromAdvisorID,
		ToAdvisorID:   &p.ToAdvisorID,
		Reason:        domain.TransferReasonOverdue,
		OccurredAt:    p.At,
	}); err != nil {
		return domain.FollowUp{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.FollowUp{}, err
	}
	return saved, nil
}

// ReleaseOverdueParams carries one release into the free pool.
type ReleaseOverdueParams struct {
	ProspectID    uuid.UUID
	FollowUpID    uuid.UUID
	FromAdvisorID uuid.UUID
	At            time.Time
}

// ReleaseOverdue moves an exhausted prospect into the free pool in one
// transaction: the open follow-up is superseded without successor, ownership
// is cleared, and a transfer record with no destination advisor is written.
// Stale sweep state yields ErrFollowUpNotOpen or ErrOwnerChanged, same as
// ReassignOverdue.
func (r *Repository) ReleaseOverdue(ctx context.Context, p ReleaseOverdueParams) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockOwnedProspect(ctx, tx, p.ProspectID, p.FromAdvisorID); err != nil {
		return err
	}
	if err := lockOpenFollowUp(ctx, tx, p.FollowUpID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE followups SET superseded = true, superseded_at = $2 WHERE id = $1`,
		p.FollowUpID, p.At,
	); err != nil {
		return fmt.Errorf("failed to supersede follow-up: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE prospects
		SET advisor_id = NULL, free_pool = true, updated_at = now()
		WHERE id = $1`,
		p.ProspectID,
	); err != nil {
		return fmt.Errorf("failed to release prospect: %w", err)
	}

	if err := insertTransferTx(ctx, tx, domain.Transfer{
		ID:            uuid.New(),
		ProspectID:    p.ProspectID,
		FromAdvisorID: &p.FromAdvisorID,
		ToAdvisorID:   nil,
		Reason:        domain.TransferReasonOverdue,
		OccurredAt:    p.At,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// lockOwnedProspect acquires a row lock on the prospect and verifies the
// expected advisor still owns it.
func lockOwnedProspect(ctx context.Context, tx pgx.Tx, prospectID, advisorID uuid.UUID) error {
	var (
		currentAdvisor *uuid.UUID
		freePool       bool
	)
	err := tx.QueryRow(ctx, `
		SELECT advisor_id, free_pool FROM prospects WHERE id = $1 FOR UPDATE`,
		prospectID,
	).Scan(&currentAdvisor, &freePool)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock prospect: %w", err)
	}
	if freePool || currentAdvisor == nil || *currentAdvisor != advisorID {
		return ErrOwnerChanged
	}
	return nil
}
