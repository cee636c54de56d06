package advisors

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAdvisorNotFound indicates the advisor does not exist.
var ErrAdvisorNotFound = errors.New("advisor not found")

// Repository is the PostgreSQL-backed advisor store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an advisor repository on the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const advisorColumns = `id, name, email, phone, active, created_at`

// Create inserts a new advisor.
func (r *Repository) Create(ctx context.Context, a Advisor) (Advisor, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO advisors (id, name, email, phone, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+advisorColumns,
		a.ID, a.Name, a.Email, a.Phone, a.Active,
	)
	saved, err := scanAdvisor(row)
	if err != nil {
		return Advisor{}, fmt.Errorf("failed to create advisor: %w", err)
	}
	return saved, nil
}

// GetByID returns a single advisor.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Advisor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+advisorColumns+` FROM advisors WHERE id = $1`, id)
	a, err := scanAdvisor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Advisor{}, ErrAdvisorNotFound
	}
	if err != nil {
		return Advisor{}, fmt.Errorf("failed to get advisor: %w", err)
	}
	return a, nil
}

// AdvisorEmail returns the advisor's notification address.
func (r *Repository) AdvisorEmail(ctx context.Context, id uuid.UUID) (string, error) {
	var email string
	err := r.pool.QueryRow(ctx, `SELECT email FROM advisors WHERE id = $1`, id).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrAdvisorNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get advisor email: %w", err)
	}
	return email, nil
}

// List returns all advisors, active first, newest last.
func (r *Repository) List(ctx context.Context) ([]Advisor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+advisorColumns+` FROM advisors ORDER BY active DESC, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list advisors: %w", err)
	}
	defer rows.Close()

	items := make([]Advisor, 0)
	for rows.Next() {
		a, err := scanAdvisor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan advisor: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate advisors: %w", err)
	}
	return items, nil
}

// ListActiveByLoad returns active advisors ordered by their open follow-up
// count, lightest first. Ties break on advisor creation order so the
// ordering is stable.
func (r *Repository) ListActiveByLoad(ctx context.Context, exclude []uuid.UUID) ([]Load, error) {
	query := `
		SELECT a.id, a.name, a.email, a.phone, a.active, a.created_at,
			COUNT(f.id) AS open_count
		FROM advisors a
		LEFT JOIN followups f
			ON f.advisor_id = a.id AND NOT f.completed AND NOT f.superseded
		WHERE a.active AND NOT (a.id = ANY($1))
		GROUP BY a.id
		ORDER BY open_count, a.created_at`

	if exclude == nil {
		exclude = []uuid.UUID{}
	}

	rows, err := r.pool.Query(ctx, query, exclude)
	if err != nil {
		return nil, fmt.Errorf("failed to list advisors by load: %w", err)
	}
	defer rows.Close()

	items := make([]Load, 0)
	for rows.Next() {
		var l Load
		err := rows.Scan(&l.Advisor.ID, &l.Advisor.Name, &l.Advisor.Email, &l.Advisor.Phone,
			&l.Advisor.Active, &l.Advisor.CreatedAt, &l.OpenCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan advisor load: %w", err)
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate advisor loads: %w", err)
	}
	return items, nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanAdvisor(row scannable) (Advisor, error) {
	var a Advisor
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.Active, &a.CreatedAt)
	return a, err
}
