package repository

import (
	"context"
	"fmt"

	"crm_followup_backend/internal/prospects/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transferColumns = `id, prospect_id, from_advisor_id, to_advisor_id, reason, occurred_at`

// ListTransfers returns the prospect's transfer history, oldest first.
func (r *Repository) ListTransfers(ctx context.Context, prospectID uuid.UUID) ([]domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE prospect_id = $1 ORDER BY occurred_at`

	rows, err := r.pool.Query(ctx, query, prospectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Transfer, 0)
	for rows.Next() {
		var t domain.Transfer
		if err := rows.Scan(&t.ID, &t.ProspectID, &t.FromAdvisorID, &t.ToAdvisorID, &t.Reason, &t.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfers: %w", err)
	}

	return items, nil
}

// insertTransferTx appends a transfer record inside the caller's transaction.
// Transfers are append-only; there is no update path.
func insertTransferTx(ctx context.Context, tx pgx.Tx, t domain.Transfer) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transfers (id, prospect_id, from_advisor_id, to_advisor_id, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.ProspectID, t.FromAdvisorID, t.ToAdvisorID, t.Reason, t.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record transfer: %w", err)
	}
	return nil
}
