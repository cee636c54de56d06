// Package scoring computes the urgency/value score used to order advisor work
// queues and rank sweep candidates. The score is a pure function of its
// inputs: same snapshot in, same number out, no clock reads, no storage.
// It is used for sorting and alerting only, never to decide a transition.
package scoring

import "math"

const (
	// scoreVersion tracks the scoring model for debugging and analysis.
	// Bump this when changing the formula significantly.
	scoreVersion = "2026-v1"

	// Maximum contribution from each factor. The three caps sum to 100 so
	// the total stays in a fixed 0-100 range.
	maxValueContribution       = 40.0 // estimated deal value, log-scaled
	maxProbabilityContribution = 30.0 // advisor-estimated close probability
	maxOverdueContribution     = 30.0 // business hours past the deadline

	// valueReference is the estimated value that earns the full value
	// contribution. Chosen above the largest deals seen in practice so the
	// log curve stays discriminating across the real range.
	valueReference = 1_000_000.0

	// overdueHalfLife is the overdue-hours point at which half of the
	// overdue contribution is earned. Saturating rather than linear: being
	// 100 hours late should not drown out every value signal.
	overdueHalfLife = 24.0
)

// Input is a snapshot of the prospect and its follow-up at scoring time.
type Input struct {
	EstimatedValue       float64 // currency amount, >= 0
	CloseProbability     int     // 0-100
	OverdueBusinessHours float64 // 0 when not overdue
}

// Version returns the scoring model identifier.
func Version() string { return scoreVersion }

// Score maps a snapshot to a 0-100 urgency/value score. Monotonically
// non-decreasing in every input:
//
//	value:       maxValue * log(1+v) / log(1+valueReference), capped at maxValue
//	probability: maxProb  * p / 100
//	overdue:     maxOverdue * h / (h + overdueHalfLife)
//
// The value term is log-scaled so a $200k deal outranks a $20k one without a
// $2M outlier flattening everything else; doubling the value never lowers
// the score.
func Score(in Input) float64 {
	return valueScore(in.EstimatedValue) +
		probabilityScore(in.CloseProbability) +
		overdueScore(in.OverdueBusinessHours)
}

func valueScore(value float64) float64 {
	if value <= 0 {
		return 0
	}
	s := maxValueContribution * math.Log1p(value) / math.Log1p(valueReference)
	return math.Min(s, maxValueContribution)
}

func probabilityScore(probability int) float64 {
	if probability <= 0 {
		return 0
	}
	if probability >= 100 {
		return maxProbabilityContribution
	}
	return maxProbabilityContribution * float64(probability) / 100
}

func overdueScore(hours float64) float64 {
	if hours <= 0 {
		return 0
	}
	return maxOverdueContribution * hours / (hours + overdueHalfLife)
}
