package model

import (
	"strings"
	"testing"
)

func TestJobStatusTerminal(t *testing.T) {
	cases := map[JobStatus]bool{
		StatusQueued:    false,
		StatusRunning:   false,
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	}
	for st, want := range cases {
		if got := st.Terminal(); got != want {
			t.Fatalf("%s.Terminal() = %v, want %v", st, got, want)
		}
	}
	if JobStatus("archived").Valid() {
		t.Fatalf("unknown status must not be valid")
	}
}

func TestJobValidatePlanID(t *testing.T) {
	j := PlanningJob{ID: "j1", Status: StatusCompleted, Progress: 100, PlanID: "p1"}
	if err := j.Validate(); err != nil {
		t.Fatalf("valid completed job rejected: %v", err)
	}

	j.PlanID = ""
	if err := j.Validate(); err == nil {
		t.Fatalf("completed job without plan id accepted")
	}

	j = PlanningJob{ID: "j1", Status: StatusRunning, Progress: 40, PlanID: "p1"}
	err := j.Validate()
	if err == nil {
		t.Fatalf("non-terminal job with plan id accepted")
	}
	if !strings.Contains(err.Error(), "plan id") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJobValidateProgressBounds(t *testing.T) {
	for _, p := range []int{-1, 101} {
		j := PlanningJob{ID: "j1", Status: StatusRunning, Progress: p}
		if err := j.Validate(); err == nil {
			t.Fatalf("progress %d accepted", p)
		}
	}
	j := PlanningJob{ID: "j1", Status: StatusQueued, Progress: 0}
	if err := j.Validate(); err != nil {
		t.Fatalf("queued job rejected: %v", err)
	}
}
