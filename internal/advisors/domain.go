// Package advisors provides advisor identity and the least-loaded selection
// policy used by the escalation engine. Full personnel management lives
// elsewhere; this context only knows who can receive prospects.
package advisors

import (
	"time"

	"github.com/google/uuid"
)

// Advisor is a sales advisor who can own prospects.
type Advisor struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     string
	Active    bool
	CreatedAt time.Time
}

// Load pairs an advisor with their current open follow-up count.
type Load struct {
	Advisor   Advisor
	OpenCount int
}
