package task

import (
	"testing"
	"time"
)

func TestParseEnergy(t *testing.T) {
	for _, s := range []string{"low", "medium", "high"} {
		e, err := ParseEnergy(s)
		if err != nil {
			t.Fatalf("ParseEnergy(%q): %v", s, err)
		}
		if string(e) != s {
			t.Errorf("ParseEnergy(%q) = %q", s, e)
		}
	}

	for _, s := range []string{"", "Medium", "HIGH", "critical", "none"} {
		if _, err := ParseEnergy(s); err == nil {
			t.Errorf("ParseEnergy(%q): expected error", s)
		}
	}
}

func TestPendingDerivation(t *testing.T) {
	now := time.Now()

	fresh := &Task{ID: "a"}
	if !fresh.Pending() {
		t.Error("fresh task should be pending")
	}

	done := &Task{ID: "b", CompletedAt: &now}
	if done.Pending() {
		t.Error("completed task should not be pending")
	}

	muted := &Task{ID: "c", IsMuted: true}
	if muted.Pending() {
		t.Error("muted task should not be pending")
	}

	// A task can be both completed and muted; either alone is terminal.
	both := &Task{ID: "d", IsMuted: true, CompletedAt: &now}
	if both.Pending() {
		t.Error("completed+muted task should not be pending")
	}

	// Rejections never change eligibility on their own.
	rejected := &Task{ID: "e", RejectionCount: 99, LastRejectedAt: &now}
	if !rejected.Pending() {
		t.Error("rejected task should still be pending")
	}
}
