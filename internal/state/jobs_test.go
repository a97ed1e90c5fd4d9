package state

import (
	"testing"
	"time"
)

// fakeClock steps a tracker's notion of time deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker(clock *fakeClock) *Tracker {
	tr := NewTracker()
	tr.now = clock.now
	n := 0
	tr.newID = func() string {
		n++
		return "job-" + string(rune('0'+n))
	}
	return tr
}

func TestTracker_CompleteCycle(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	tr := newTestTracker(clock)

	if rec := tr.Observe("printing", "benchy.3mf", 0); rec != nil {
		t.Fatalf("opening a job must not return a record")
	}
	if !tr.Open() {
		t.Fatalf("expected an open job")
	}

	clock.advance(90 * time.Second)
	rec := tr.Observe("complete", "benchy.3mf", 12.5)
	if rec == nil {
		t.Fatalf("completing must close the record")
	}
	if rec.Status != JobStatusCompleted {
		t.Fatalf("status = %s, want completed", rec.Status)
	}
	if rec.TotalDuration != 90 {
		t.Fatalf("duration = %f, want 90", rec.TotalDuration)
	}
	if rec.EndTime == nil || *rec.EndTime-rec.StartTime != 90 {
		t.Fatalf("end-start mismatch: %v %v", rec.StartTime, rec.EndTime)
	}
	if rec.FilamentUsed != 12.5 {
		t.Fatalf("filament = %f", rec.FilamentUsed)
	}
	if tr.Open() {
		t.Fatalf("no job should remain open")
	}
}

func TestTracker_ErrorClosesThenCompleteIsNoop(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	tr := newTestTracker(clock)

	tr.Observe("printing", "a.gcode", 0)
	rec := tr.Observe("error", "a.gcode", 0)
	if rec == nil || rec.Status != JobStatusError {
		t.Fatalf("expected one closed error record, got %v", rec)
	}

	// Complete without an intervening printing: nothing was open.
	if rec := tr.Observe("complete", "a.gcode", 0); rec != nil {
		t.Fatalf("complete with no open job must be a no-op, got %v", rec)
	}
}

func TestTracker_StandbyWhileOpenIsImplicitCancel(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	tr := newTestTracker(clock)

	tr.Observe("printing", "b.gcode", 0)
	rec := tr.Observe("standby", "b.gcode", 0)
	if rec == nil || rec.Status != JobStatusCancelled {
		t.Fatalf("standby mid-job should cancel, got %v", rec)
	}
}

func TestTracker_PauseKeepsJobOpen(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	tr := newTestTracker(clock)

	tr.Observe("printing", "c.gcode", 0)
	if rec := tr.Observe("paused", "c.gcode", 0); rec != nil {
		t.Fatalf("pausing must not close the record")
	}
	if !tr.Open() {
		t.Fatalf("job should still be open while paused")
	}
	if rec := tr.Observe("printing", "c.gcode", 0); rec != nil {
		t.Fatalf("resume must not open a second record")
	}
	rec := tr.Observe("complete", "c.gcode", 0)
	if rec == nil || rec.Status != JobStatusCompleted {
		t.Fatalf("expected a single completed record, got %v", rec)
	}
}

func TestTracker_RepeatedStateIsNoop(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	tr := newTestTracker(clock)

	tr.Observe("printing", "d.gcode", 0)
	if rec := tr.Observe("printing", "d.gcode", 0); rec != nil {
		t.Fatalf("repeated printing report must be a no-op")
	}
	if rec := tr.Observe("standby", "d.gcode", 0); rec == nil {
		t.Fatalf("the open job should still close normally")
	}
	if rec := tr.Observe("standby", "d.gcode", 0); rec != nil {
		t.Fatalf("repeated standby report must be a no-op")
	}
}
