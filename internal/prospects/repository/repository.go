// Package repository provides data access for prospects, follow-ups, and
// transfer records on PostgreSQL.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors returned by the repository. Services map these onto typed
// apperr errors at the boundary.
var (
	// ErrNotFound indicates the prospect does not exist.
	ErrNotFound = errors.New("prospect not found")
	// ErrFollowUpNotFound indicates the follow-up does not exist.
	ErrFollowUpNotFound = errors.New("follow-up not found")
	// ErrFollowUpNotOpen indicates the follow-up was already completed or
	// superseded; the caller was operating on stale state.
	ErrFollowUpNotOpen = errors.New("follow-up is not open")
	// ErrOwnerChanged indicates the prospect's ownership moved between the
	// caller reading state and writing; the operation was not applied.
	ErrOwnerChanged = errors.New("prospect ownership changed")
)

// Repository is the PostgreSQL-backed store.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a repository on the given pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const prospectColumns = `id, code, name, email, phone, estimated_value, close_probability,
	stage, advisor_id, free_pool, reassignments, created_at, updated_at`

const followUpColumns = `id, prospect_id, advisor_id, type, scheduled_at, deadline,
	completed, completed_at, superseded, superseded_at, outcome_category, outcome_notes,
	visible, created_at`
