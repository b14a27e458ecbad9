package engage

import (
	"testing"
	"time"
)

func TestCooldown_ReadyBeforeFirstSuccess(t *testing.T) {
	tr := NewCooldownTracker(0, 0)
	if !tr.Ready(ActionPost) {
		t.Error("post should be ready before any success")
	}
	if !tr.Ready(ActionBrowse) {
		t.Error("browse should be ready before any success")
	}
}

func TestCooldown_BlocksUntilIntervalElapses(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := NewCooldownTracker(120*time.Minute, 40*time.Minute)
	tr.clock = func() time.Time { return now }

	tr.RecordSuccess(ActionPost)
	tr.RecordSuccess(ActionBrowse)

	if tr.Ready(ActionPost) {
		t.Error("post should be on cooldown right after success")
	}

	// 40 minutes later browse is ready again but post is not.
	now = now.Add(40 * time.Minute)
	if !tr.Ready(ActionBrowse) {
		t.Error("browse should be ready after 40m")
	}
	if tr.Ready(ActionPost) {
		t.Error("post should still be on cooldown after 40m")
	}
	if got := tr.Remaining(ActionPost); got != 80*time.Minute {
		t.Errorf("Remaining(post) = %v, want 80m", got)
	}

	now = now.Add(80 * time.Minute)
	if !tr.Ready(ActionPost) {
		t.Error("post should be ready after the full 120m")
	}
}

func TestCooldown_SuccessRestartsInterval(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := NewCooldownTracker(time.Hour, time.Hour)
	tr.clock = func() time.Time { return now }

	tr.RecordSuccess(ActionPost)
	now = now.Add(time.Hour)
	tr.RecordSuccess(ActionPost)

	now = now.Add(30 * time.Minute)
	if tr.Ready(ActionPost) {
		t.Error("cooldown should restart from the latest success")
	}
}
