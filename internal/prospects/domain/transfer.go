package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transfer reasons.
const (
	TransferReasonOverdue       = "Overdue"
	TransferReasonFreePoolClaim = "FreePoolClaim"
)

// Transfer is an immutable audit entry recorded each time a prospect changes
// owning advisor through the engine. ToAdvisorID is nil when the prospect was
// released into the free pool. Append-only, never mutated.
type Transfer struct {
	ID            uuid.UUID
	ProspectID    uuid.UUID
	FromAdvisorID *uuid.UUID
	ToAdvisorID   *uuid.UUID
	Reason        string
	OccurredAt    time.Time
}
