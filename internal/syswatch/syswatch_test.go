package syswatch

import (
	"testing"
	"time"
)

func newTestWatcher(uptimeSecs uint64) (*Watcher, *time.Time) {
	current := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	w := New(nil)
	w.now = func() time.Time { return current }
	w.uptime = func() (uint64, error) { return uptimeSecs, nil }
	return w, &current
}

func TestPollFirstCallNeverEdges(t *testing.T) {
	w, _ := newTestWatcher(86400)
	if w.Poll() {
		t.Fatal("first poll must not report an edge")
	}
}

func TestPollSteadyTicksNoEdge(t *testing.T) {
	w, now := newTestWatcher(86400)
	w.Poll()
	for i := 0; i < 5; i++ {
		*now = now.Add(2 * time.Second)
		if w.Poll() {
			t.Fatalf("steady 2s cadence reported an edge at tick %d", i)
		}
	}
}

func TestPollDetectsSuspendGap(t *testing.T) {
	w, now := newTestWatcher(86400)
	w.Poll()
	*now = now.Add(8 * time.Hour) // machine slept overnight
	if !w.Poll() {
		t.Fatal("8 hour gap must report a resume edge")
	}
	// next tick back to normal
	*now = now.Add(2 * time.Second)
	if w.Poll() {
		t.Fatal("tick after the edge must be quiet")
	}
}

func TestPollDetectsRebootInsideGap(t *testing.T) {
	w, now := newTestWatcher(10) // machine has been up 10 seconds
	w.Poll()
	*now = now.Add(time.Minute)
	if !w.Poll() {
		t.Fatal("reboot inside the gap must report an edge")
	}
}

func TestPollBelowThresholdIsQuiet(t *testing.T) {
	w, now := newTestWatcher(86400)
	w.Poll()
	*now = now.Add(29 * time.Second) // long GC pause, not a suspend
	if w.Poll() {
		t.Fatal("sub-threshold gap must not report an edge")
	}
}

func TestPollReportsAnnouncedWake(t *testing.T) {
	w, now := newTestWatcher(86400)
	w.Poll()
	w.SetSleeping(true)
	// a nap shorter than the gap threshold, announced by the OS
	*now = now.Add(10 * time.Second)
	w.SetSleeping(false)
	if !w.Poll() {
		t.Fatal("announced wake must report a resume edge")
	}
	*now = now.Add(2 * time.Second)
	if w.Poll() {
		t.Fatal("edge must be consumed by the first poll")
	}
}

func TestSleepingFlag(t *testing.T) {
	w, _ := newTestWatcher(86400)
	if w.Sleeping() {
		t.Fatal("fresh watcher should be awake")
	}
	w.SetSleeping(true)
	if !w.Sleeping() {
		t.Fatal("flag not set")
	}
	w.SetSleeping(false)
	if w.Sleeping() {
		t.Fatal("flag not cleared")
	}
}
