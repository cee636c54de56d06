// Package domain holds the core records and state rules of the prospect
// pipeline: prospects, follow-ups, and ownership transfers.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline stages.
const (
	StageNew         = "New"
	StageQuoted      = "Quoted"
	StageNegotiating = "Negotiating"
	StageWon         = "Won"
	StageLost        = "Lost"
)

var knownStages = map[string]struct{}{
	StageNew:         {},
	StageQuoted:      {},
	StageNegotiating: {},
	StageWon:         {},
	StageLost:        {},
}

// IsKnownStage reports whether the stage is a recognized pipeline stage.
func IsKnownStage(stage string) bool {
	_, ok := knownStages[stage]
	return ok
}

// IsTerminalStage reports whether the stage exits the pipeline. A prospect
// entering a terminal stage has its open follow-up closed without successor.
func IsTerminalStage(stage string) bool {
	return stage == StageWon || stage == StageLost
}

// Prospect is a sales lead tracked through pipeline stages. It is owned by
// exactly one advisor, or by no one while FreePool is set; the two are
// mutually exclusive and exhaustive.
type Prospect struct {
	ID               uuid.UUID
	Code             string
	Name             string
	Email            string
	Phone            string
	EstimatedValue   float64
	CloseProbability int
	Stage            string
	AdvisorID        *uuid.UUID
	FreePool         bool
	Reassignments    int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Owned reports whether an advisor currently owns the prospect.
func (p Prospect) Owned() bool {
	return p.AdvisorID != nil && !p.FreePool
}
