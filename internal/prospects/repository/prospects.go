package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crm_followup_backend/internal/prospects/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProspectFilter narrows prospect listings. Nil fields are ignored.
type ProspectFilter struct {
	Stage     *string
	AdvisorID *uuid.UUID
	FreePool  *bool
	MinValue  *float64
}

// CreateProspect inserts a new prospect and returns the stored row.
func (r *Repository) CreateProspect(ctx context.Context, p domain.Prospect) (domain.Prospect, error) {
	query := `
		INSERT INTO prospects
			(id, code, name, email, phone, estimated_value, close_probability, stage, advisor_id, free_pool, reassignments)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + prospectColumns

	row := r.pool.QueryRow(ctx, query,
		p.ID, p.Code, p.Name, p.Email, p.Phone,
		p.EstimatedValue, p.CloseProbability, p.Stage,
		p.AdvisorID, p.FreePool, p.Reassignments,
	)

	saved, err := scanProspect(row)
	if err != nil {
		return domain.Prospect{}, fmt.Errorf("failed to create prospect: %w", err)
	}
	return saved, nil
}

// GetProspectByID returns a single prospect.
func (r *Repository) GetProspectByID(ctx context.Context, id uuid.UUID) (domain.Prospect, error) {
	query := `SELECT ` + prospectColumns + ` FROM prospects WHERE id = $1`

	p, err := scanProspect(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Prospect{}, ErrNotFound
	}
	if err != nil {
		return domain.Prospect{}, fmt.Errorf("failed to get prospect: %w", err)
	}
	return p, nil
}

// ListProspects returns prospects matching the filter, newest first.
func (r *Repository) ListProspects(ctx context.Context, filter ProspectFilter) ([]domain.Prospect, error) {
	var (
		conditions []string
		args       []interface{}
	)

	addCondition := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.Stage != nil {
		addCondition("stage = $%d", *filter.Stage)
	}
	if filter.AdvisorID != nil {
		addCondition("advisor_id = $%d", *filter.AdvisorID)
	}
	if filter.FreePool != nil {
		addCondition("free_pool = $%d", *filter.FreePool)
	}
	if filter.MinValue != nil {
		addCondition("estimated_value >= $%d", *filter.MinValue)
	}

	query := `SELECT ` + prospectColumns + ` FROM prospects`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list prospects: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Prospect, 0)
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prospect: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prospects: %w", err)
	}

	return items, nil
}

// UpdateProspectStage sets the pipeline stage and returns the previous one.
func (r *Repository) UpdateProspectStage(ctx context.Context, id uuid.UUID, stage string) (string, error) {
	var oldStage string
	err := r.pool.QueryRow(ctx, `
		UPDATE prospects AS p
		SET stage = $2, updated_at = now()
		FROM (SELECT id, stage FROM prospects WHERE id = $1 FOR UPDATE) AS old
		WHERE p.id = old.id
		RETURNING old.stage`,
		id, stage,
	).Scan(&oldStage)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to update prospect stage: %w", err)
	}
	return oldStage, nil
}

// UpdateProspectValue updates the estimated value and close probability.
func (r *Repository) UpdateProspectValue(ctx context.Context, id uuid.UUID, estimatedValue float64, closeProbability int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE prospects
		SET estimated_value = $2, close_probability = $3, updated_at = now()
		WHERE id = $1`,
		id, estimatedValue, closeProbability,
	)
	if err != nil {
		return fmt.Errorf("failed to update prospect value: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanProspect(row scannable) (domain.Prospect, error) {
	var p domain.Prospect
	err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.Email, &p.Phone,
		&p.EstimatedValue, &p.CloseProbability, &p.Stage,
		&p.AdvisorID, &p.FreePool, &p.Reassignments,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
