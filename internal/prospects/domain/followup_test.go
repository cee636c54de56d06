package domain

import (
	"testing"
	"time"

	"crm_followup_backend/internal/calendar"
)

// 2026-01-05 is a Monday.
func monday(hour, minute int) time.Time {
	return time.Date(2026, time.January, 5, hour, minute, 0, 0, time.UTC)
}

func TestFollowUpStateDerivation(t *testing.T) {
	deadline := monday(12, 0)
	base := FollowUp{Deadline: deadline}

	if got := base.State(monday(10, 0)); got != StateScheduled {
		t.Fatalf("before deadline: got %s, want %s", got, StateScheduled)
	}
	if got := base.State(monday(13, 0)); got != StateOverdue {
		t.Fatalf("after deadline: got %s, want %s", got, StateOverdue)
	}

	completedAt := monday(11, 0)
	completed := FollowUp{Deadline: deadline, Completed: true, CompletedAt: &completedAt}
	if got := completed.State(monday(13, 0)); got != StateCompleted {
		t.Fatalf("completed follow-up past deadline: got %s, want %s", got, StateCompleted)
	}

	superseded := FollowUp{Deadline: deadline, Superseded: true}
	if got := superseded.State(monday(13, 0)); got != StateSuperseded {
		t.Fatalf("superseded follow-up: got %s, want %s", got, StateSuperseded)
	}
}

func TestOverdueBusinessHoursSkipsClosedTime(t *testing.T) {
	ws := calendar.DefaultSchedule()

	// Deadline Friday 16:00, checked Monday 10:00:
	// Fri 16-18 (2h) + Sat 9-12 (3h) + Mon 8-10 (2h) = 7h.
	fu := FollowUp{Deadline: time.Date(2026, time.January, 2, 16, 0, 0, 0, time.UTC)}
	got := fu.OverdueBusinessHours(monday(10, 0), ws)
	if got != 7.0 {
		t.Fatalf("expected 7.0 overdue business hours, got %v", got)
	}

	notOverdue := FollowUp{Deadline: monday(12, 0)}
	if got := notOverdue.OverdueBusinessHours(monday(10, 0), ws); got != 0 {
		t.Fatalf("expected 0 for non-overdue follow-up, got %v", got)
	}
}

func TestEligibleForEscalationInclusiveBoundary(t *testing.T) {
	ws := calendar.DefaultSchedule()

	// Deadline Monday 08:00; by Tuesday 16:00 exactly 18 business hours
	// elapsed (Mon 08-18 = 10h, Tue 08-16 = 8h).
	fu := FollowUp{Deadline: monday(8, 0)}
	boundary := time.Date(2026, time.January, 6, 16, 0, 0, 0, time.UTC)

	if !fu.EligibleForEscalation(boundary, ws, 18) {
		t.Fatal("exactly 18 business hours overdue must be eligible")
	}
	if fu.EligibleForEscalation(boundary.Add(-time.Minute), ws, 18) {
		t.Fatal("just under 18 business hours must not be eligible")
	}

	completed := FollowUp{Deadline: monday(8, 0), Completed: true}
	if completed.EligibleForEscalation(boundary, ws, 18) {
		t.Fatal("completed follow-up must never be eligible")
	}
}

func TestRequiresSuccessor(t *testing.T) {
	if !RequiresSuccessor(OutcomeInterested) {
		t.Fatal("Interested must schedule a successor")
	}
	if !RequiresSuccessor(OutcomeNoAnswer) {
		t.Fatal("NoAnswer must schedule a successor")
	}
	if RequiresSuccessor(OutcomeNotInterested) {
		t.Fatal("NotInterested must not schedule a successor")
	}
}

func TestStageHelpers(t *testing.T) {
	for _, stage := range []string{StageNew, StageQuoted, StageNegotiating, StageWon, StageLost} {
		if !IsKnownStage(stage) {
			t.Fatalf("stage %s should be known", stage)
		}
	}
	if IsKnownStage("Paused") {
		t.Fatal("unknown stage accepted")
	}
	if !IsTerminalStage(StageWon) || !IsTerminalStage(StageLost) {
		t.Fatal("Won and Lost are terminal")
	}
	if IsTerminalStage(StageNegotiating) {
		t.Fatal("Negotiating is not terminal")
	}
}
