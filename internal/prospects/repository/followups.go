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

// GetFollowUpByID returns a single follow-up.
func (r *Repository) GetFollowUpByID(ctx context.Context, id uuid.UUID) (domain.FollowUp, error) {
	query := `SELECT ` + followUpColumns + ` FROM followups WHERE id = $1`

	fu, err := scanFollowUp(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.FollowUp{}, ErrFollowUpNotFound
	}
	if err != nil {
		return domain.FollowUp{}, fmt.Errorf("failed to get follow-up: %w", err)
	}
	return fu, nil
}

// GetOpenFollowUp returns the prospect's current open follow-up.
func (r *Repository) GetOpenFollowUp(ctx context.Context, prospectID uuid.UUID) (domain.FollowUp, error) {
	query := `SELECT ` + followUpColumns + `
		FROM followups
		WHERE prospect_id = $1 AND NOT completed AND NOT superseded`

	fu, err := scanFollowUp(r.pool.QueryRow(ctx, query, prospectID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.FollowUp{}, ErrFollowUpNotFound
	}
	if err != nil {
		return domain.FollowUp{}, fmt.Errorf("failed to get open follow-up: %w", err)
	}
	return fu, nil
}

// CreateFollowUp inserts a new follow-up and returns the stored row.
func (r *Repository) CreateFollowUp(ctx context.Context, fu domain.FollowUp) (domain.FollowUp, error) {
	saved, err := insertFollowUp(ctx, r.pool, fu)
	if err != nil {
		return domain.FollowUp{}, fmt.Errorf("failed to create follow-up: %w", err)
	}
	return saved, nil
}

// CompleteFollowUpParams carries the completion write.
type CompleteFollowUpParams struct {
	FollowUpID      uuid.UUID
	OutcomeCategory string
	OutcomeNotes    string
	CompletedAt     time.Time
	// Successor, when non-nil, is inserted in the same transaction as the
	// completion so the prospect is never left without an agenda entry by a
	// half-applied write.
	Successor *domain.FollowUp
}

// CompleteFollowUp marks the follow-up completed and optionally inserts its
// successor atomically. Returns ErrFollowUpNotOpen if the follow-up was
// already completed or superseded.
func (r *Repository) CompleteFollowUp(ctx context.Context, p CompleteFollowUpParams) (domain.FollowUp, *domain.FollowUp, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.FollowUp{}, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockOpenFollowUp(ctx, tx, p.FollowUpID); err != nil {
		return domain.FollowUp{}, nil, err
	}

	completed, err := scanFollowUp(tx.QueryRow(ctx, `
		UPDATE followups
		SET completed = true, completed_at = $2, outcome_category = $3, outcome_notes = $4
		WHERE id = $1
		RETURNING `+followUpColumns,
		p.FollowUpID, p.CompletedAt, p.OutcomeCategory, p.OutcomeNotes,
	))
	if err != nil {
		return domain.FollowUp{}, nil, fmt.Errorf("failed to complete follow-up: %w", err)
	}

	var successor *domain.FollowUp
	if p.Successor != nil {
		saved, err := insertFollowUp(ctx, tx, *p.Successor)
		if err != nil {
			return domain.FollowUp{}, nil, fmt.Errorf("failed to create successor follow-up: %w", err)
		}
		successor = &saved
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.FollowUp{}, nil, err
	}
	return completed, successor, nil
}

// RescheduleFollowUp supersedes the open follow-up and inserts its
// replacement in one transaction.
func (r *Repository) RescheduleFollowUp(ctx context.Context, followUpID uuid.UUID, replacement domain.FollowUp, at time.Time) (domain.FollowUp, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.FollowUp{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockOpenFollowUp(ctx, tx, followUpID); err != nil {
		return domain.FollowUp{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE followups SET superseded = true, superseded_at = $2 WHERE id = $1`,
		followUpID, at,
	); err != nil {
		return domain.FollowUp{}, fmt.Errorf("failed to supersede follow-up: %w", err)
	}

	saved, err := insertFollowUp(ctx, tx, replacement)
	if err != nil {
		return domain.FollowUp{}, fmt.Errorf("failed to create replacement follow-up: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.FollowUp{}, err
	}
	return saved, nil
}

// CloseOpenFollowUp supersedes the prospect's open follow-up without a
// replacement (pipeline exit). Closing when no open follow-up exists is a
// no-op and reports false.
func (r *Repository) CloseOpenFollowUp(ctx context.Context, prospectID uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE followups SET superseded = true, superseded_at = $2
		WHERE prospect_id = $1 AND NOT completed AND NOT superseded`,
		prospectID, at,
	)
	if err != nil {
		return false, fmt.Errorf("failed to close open follow-up: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// querier abstracts pool vs transaction for shared statements.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func insertFollowUp(ctx context.Context, q querier, fu domain.FollowUp) (domain.FollowUp, error) {
	return scanFollowUp(q.QueryRow(ctx, `
		INSERT INTO followups
			(id, prospect_id, advisor_id, type, scheduled_at, deadline, visible)
		VALUES
			($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+followUpColumns,
		fu.ID, fu.ProspectID, fu.AdvisorID, fu.Type, fu.ScheduledAt, fu.Deadline, fu.Visible,
	))
}

// lockOpenFollowUp acquires a row lock on the follow-up and verifies it is
// still open, so concurrent completions and sweeps serialize per follow-up.
func lockOpenFollowUp(ctx context.Context, tx pgx.Tx, followUpID uuid.UUID) error {
	var completed, superseded bool
	err := tx.QueryRow(ctx, `
		SELECT completed, superseded FROM followups WHERE id = $1 FOR UPDATE`,
		followUpID,
	).Scan(&completed, &superseded)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrFollowUpNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock follow-up: %w", err)
	}
	if completed || superseded {
		return ErrFollowUpNotOpen
	}
	return nil
}

func scanFollowUp(row scannable) (domain.FollowUp, error) {
	var fu domain.FollowUp
	err := row.Scan(
		&fu.ID, &fu.ProspectID, &fu.AdvisorID, &fu.Type,
		&fu.ScheduledAt, &fu.Deadline,
		&fu.Completed, &fu.CompletedAt,
		&fu.Superseded, &fu.SupersededAt,
		&fu.OutcomeCategory, &fu.OutcomeNotes,
		&fu.Visible, &fu.CreatedAt,
	)
	return fu, err
}
