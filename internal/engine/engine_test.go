package engine

import (
	"testing"
	"time"

	"github.com/loykin/deskpulse/internal/config"
	"github.com/loykin/deskpulse/internal/signal"
)

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func testConfig() config.AppConfig {
	cfg := config.Default()
	cfg.ShortBreakMinutes = 1
	cfg.BreakResetMinutes = 1
	cfg.ProlongedSeatedMinutes = 5
	return cfg
}

func newTestEngine(buf *signal.Buffer) *Engine {
	e := New(buf, testConfig())
	e.SetNowFunc(func() time.Time { return fixedNow })
	return e
}

func inputRecord(ts time.Time, events float64) signal.Record {
	return signal.Record{Timestamp: ts, InputEvents: signal.F(events)}
}

func visionRecord(ts time.Time, confidence, posture float64, state string) signal.Record {
	return signal.Record{
		Timestamp:          ts,
		PresenceConfidence: signal.F(confidence),
		PostureScore:       signal.F(posture),
		PostureState:       state,
	}
}

func TestEmptyBufferIsShortBreak(t *testing.T) {
	e := newTestEngine(signal.NewBuffer(8))
	snap := e.ComputeSnapshot()
	if snap.State != StateShortBreak {
		t.Fatalf("state = %s, want SHORT_BREAK", snap.State)
	}
	if snap.Score != 0 {
		t.Fatalf("score = %v, want 0", snap.Score)
	}
	if snap.Metrics.BreakMinutes != 1 {
		t.Fatalf("break_minutes = %v, want break_reset_minutes", snap.Metrics.BreakMinutes)
	}
}

func TestActiveWithRecentEvents(t *testing.T) {
	buf := signal.NewBuffer(8)
	buf.Append(inputRecord(fixedNow.Add(-30*time.Second), 25))
	e := newTestEngine(buf)

	snap := e.ComputeSnapshot()
	if snap.State != StateActive {
		t.Fatalf("state = %s, want ACTIVE", snap.State)
	}
	if snap.Metrics.SeatedMinutes >= 1 || snap.Metrics.BreakMinutes >= 1 {
		t.Fatalf("seated=%v break=%v, both should be < 1",
			snap.Metrics.SeatedMinutes, snap.Metrics.BreakMinutes)
	}
	if snap.Score <= 0 {
		t.Fatalf("score = %v, want > 0", snap.Score)
	}
}

func TestIdempotentWithoutNewData(t *testing.T) {
	buf := signal.NewBuffer(8)
	buf.Append(inputRecord(fixedNow.Add(-30*time.Second), 25))
	e := newTestEngine(buf)

	first := e.ComputeSnapshot()
	second := e.ComputeSnapshot()
	if first.State != second.State || first.Score != second.Score {
		t.Fatalf("snapshots diverged: %+v vs %+v", first, second)
	}
}

func TestShortBreakAfterInactivity(t *testing.T) {
	buf := signal.NewBuffer(8)
	buf.Append(inputRecord(fixedNow.Add(-5*time.Minute), 10))
	e := newTestEngine(buf)

	snap := e.ComputeSnapshot()
	if snap.State != StateShortBreak {
		t.Fatalf("state = %s, want SHORT_BREAK", snap.State)
	}
	if snap.Metrics.BreakMinutes < 5 {
		t.Fatalf("break_minutes = %v, want >= 5", snap.Metrics.BreakMinutes)
	}
}

func TestProlongedWhenSeatedLong(t *testing.T) {
	buf := signal.NewBuffer(8)
	buf.Append(inputRecord(fixedNow.Add(-10*time.Second), 15))
	e := newTestEngine(buf)
	e.seatedStartedAt = fixedNow.Add(-10 * time.Minute)

	snap := e.ComputeSnapshot()
	if snap.State != StateProlongedSeated {
		t.Fatalf("state = %s, want PROLONGED_SEATED", snap.State)
	}
	if snap.Metrics.SeatedMinutes < 10 {
		t.Fatalf("seated_minutes = %v, want >= 10", snap.Metrics.SeatedMinutes)
	}
	// full seated ratio floors the score at exactly zero
	if snap.Score != 0 {
		t.Fatalf("score = %v, want exactly 0", snap.Score)
	}
}

func TestBreakDominatesProlonged(t *testing.T) {
	buf := signal.NewBuffer(8)
	buf.Append(inputRecord(fixedNow.Add(-30*time.Minute), 10))
	e := newTestEngine(buf)
	e.seatedStartedAt = fixedNow.Add(-3 * time.Hour)

	snap := e.ComputeSnapshot()
	if snap.State != StateShortBreak {
		t.Fatalf("state = %s, break must win over seated duration", snap.State)
	}
	if snap.Metrics.SeatedMinutes != 0 {
		t.Fatalf("seated timer should reset on break, got %v", snap.Metrics.SeatedMinutes)
	}
}

func TestMonotonicSeatedUntilBreakReset(t *testing.T) {
	buf := signal.NewBuffer(8)
	t0 := fixedNow
	buf.Append(inputRecord(t0, 10))
	e := New(buf, testConfig())

	var prev float64
	for _, offset := range []time.Duration{10 * time.Second, 30 * time.Second, 50 * time.Second} {
		now := t0.Add(offset)
		e.SetNowFunc(func() time.Time { return now })
		snap := e.ComputeSnapshot()
		if snap.Metrics.SeatedMinutes < prev {
			t.Fatalf("seated_minutes decreased: %v -> %v at +%s", prev, snap.Metrics.SeatedMinutes, offset)
		}
		prev = snap.Metrics.SeatedMinutes
	}

	// crossing break_reset resets the streak to zero
	now := t0.Add(2 * time.Minute)
	e.SetNowFunc(func() time.Time { return now })
	snap := e.ComputeSnapshot()
	if snap.Metrics.SeatedMinutes != 0 {
		t.Fatalf("seated_minutes = %v after break reset, want 0", snap.Metrics.SeatedMinutes)
	}
}

func TestVisionSustainsActiveState(t *testing.T) {
	buf := signal.NewBuffer(8)
	buf.Append(visionRecord(fixedNow.Add(-5*time.Second), 0.2, 0, PostureUnknown))
	buf.Append(inputRecord(fixedNow.Add(-2*time.Second), 10))
	e := newTestEngine(buf)

	snap := e.ComputeSnapshot()
	if snap.State != StateActive {
		t.Fatalf("state = %s; low confidence must not force a break when fresh input exists", snap.State)
	}
	if snap.Metrics.BreakMinutes >= 1 {
		t.Fatalf("break_minutes = %v, want < 1", snap.Metrics.BreakMinutes)
	}
}

func TestConfidentPresenceWithoutTypingCountsAsActivity(t *testing.T) {
	buf := signal.NewBuffer(8)
	// typing stopped 10 minutes ago, but the camera keeps seeing the user
	buf.Append(inputRecord(fixedNow.Add(-10*time.Minute), 10))
	buf.Append(visionRecord(fixedNow.Add(-20*time.Second), 0.9, 0.8, PostureUpright))
	e := newTestEngine(buf)

	snap := e.ComputeSnapshot()
	if snap.State == StateShortBreak {
		t.Fatalf("sustained visual presence must not classify as a break")
	}
	if snap.Metrics.BreakMinutes >= 1 {
		t.Fatalf("break_minutes = %v, want < 1", snap.Metrics.BreakMinutes)
	}
}

func TestLowConfidenceForcesBreakWithoutInput(t *testing.T) {
	buf := signal.NewBuffer(8)
	// stale input, and a fresh vision sample that cannot find the user
	buf.Append(inputRecord(fixedNow.Add(-90*time.Second), 10))
	buf.Append(visionRecord(fixedNow.Add(-5*time.Second), 0.1, 0, PostureAway))
	e := newTestEngine(buf)

	snap := e.ComputeSnapshot()
	if snap.State != StateShortBreak {
		t.Fatalf("state = %s; absent subject must override stale activity", snap.State)
	}
	if snap.Metrics.BreakMinutes < 1 {
		t.Fatalf("break_minutes = %v, want >= break_reset", snap.Metrics.BreakMinutes)
	}
}

func TestUntrackedVisionIsIgnored(t *testing.T) {
	buf := signal.NewBuffer(8)
	buf.Append(inputRecord(fixedNow.Add(-30*time.Second), 25))
	buf.Append(visionRecord(fixedNow.Add(-5*time.Second), 0.01, 0, PostureUntracked))
	e := newTestEngine(buf)

	snap := e.ComputeSnapshot()
	if snap.State != StateActive {
		t.Fatalf("state = %s; untracked vision must not influence the state", snap.State)
	}
	// untracked means posture modifier stays at the open default
	if snap.Metrics.PostureScore != 1 {
		t.Fatalf("posture_score = %v, want 1", snap.Metrics.PostureScore)
	}
}

func TestZeroPostureDoesNotCollapseScore(t *testing.T) {
	buf := signal.NewBuffer(8)
	buf.Append(inputRecord(fixedNow.Add(-30*time.Second), 25))
	buf.Append(visionRecord(fixedNow.Add(-5*time.Second), 0.9, 0, PostureUnknown))
	e := newTestEngine(buf)

	snap := e.ComputeSnapshot()
	if snap.Score <= 0 {
		t.Fatalf("score = %v; zero posture must fall back to the 0.5 modifier", snap.Score)
	}
}

func TestMalformedNumericsDegradeToZero(t *testing.T) {
	nan := 0.0
	nan /= nan
	buf := signal.NewBuffer(8)
	buf.Append(signal.Record{Timestamp: fixedNow.Add(-10 * time.Second), InputEvents: &nan})
	e := newTestEngine(buf)

	snap := e.ComputeSnapshot() // must not panic
	if snap.Metrics.ActivitySum != 0 {
		t.Fatalf("activity_sum = %v, want 0 for NaN input", snap.Metrics.ActivitySum)
	}
}

func TestResetStateStartsFreshStreak(t *testing.T) {
	buf := signal.NewBuffer(8)
	buf.Append(inputRecord(fixedNow.Add(-10*time.Second), 15))
	e := newTestEngine(buf)
	e.seatedStartedAt = fixedNow.Add(-10 * time.Minute)

	if snap := e.ComputeSnapshot(); snap.State != StateProlongedSeated {
		t.Fatalf("precondition failed: %s", snap.State)
	}
	e.ResetState()
	snap := e.ComputeSnapshot()
	if snap.State != StateActive {
		t.Fatalf("state after reset = %s, want ACTIVE", snap.State)
	}
	if snap.Metrics.SeatedMinutes >= 1 {
		t.Fatalf("seated_minutes after reset = %v", snap.Metrics.SeatedMinutes)
	}
}

func TestUpdateConfigTakesEffectNextSnapshot(t *testing.T) {
	buf := signal.NewBuffer(8)
	buf.Append(inputRecord(fixedNow.Add(-10*time.Second), 15))
	e := newTestEngine(buf)
	e.seatedStartedAt = fixedNow.Add(-10 * time.Minute)

	if snap := e.ComputeSnapshot(); snap.State != StateProlongedSeated {
		t.Fatalf("precondition failed: %s", snap.State)
	}
	cfg := testConfig()
	cfg.ProlongedSeatedMinutes = 30
	e.UpdateConfig(cfg)
	if snap := e.ComputeSnapshot(); snap.State != StateActive {
		t.Fatalf("state = %s after raising the threshold, want ACTIVE", snap.State)
	}
}

func TestVisualProbeDebounce(t *testing.T) {
	cfg := testConfig()
	cfg.ProlongedSeatedMinutes = 5
	buf := signal.NewBuffer(8)
	buf.Append(inputRecord(fixedNow.Add(-10*time.Second), 15))
	e := New(buf, cfg)
	e.SetNowFunc(func() time.Time { return fixedNow })
	// seated long enough to be within 95% of the prolonged threshold
	// but not past it
	e.seatedStartedAt = fixedNow.Add(-285 * time.Second) // 4.75 min = 0.95 * 5

	snap := e.ComputeSnapshot()
	if snap.State != StateActive {
		t.Fatalf("precondition: state = %s, want ACTIVE", snap.State)
	}
	if !e.ShouldTriggerVisualProbe(fixedNow) {
		t.Fatal("probe request expected at 95% of the prolonged threshold")
	}

	// still pending within the 90s window, no re-request
	if !e.ShouldTriggerVisualProbe(fixedNow.Add(60 * time.Second)) {
		t.Fatal("request should remain visible inside the probe window")
	}
	// window elapsed: request no longer reported
	if e.ShouldTriggerVisualProbe(fixedNow.Add(91 * time.Second)) {
		t.Fatal("request must expire after the probe window")
	}

	// firing the probe consumes the request
	e.MarkVisualProbeFired(fixedNow.Add(5 * time.Second))
	if e.ShouldTriggerVisualProbe(fixedNow.Add(10 * time.Second)) {
		t.Fatal("fired request must not re-trigger")
	}
}

func TestVisualProbeCooldownBlocksSecondRequest(t *testing.T) {
	cfg := testConfig()
	buf := signal.NewBuffer(8)
	e := New(buf, cfg)

	// keep the streak pinned just under the prolonged threshold at
	// every step so the debounce path stays in play
	step := func(now time.Time) Snapshot {
		buf.Clear()
		buf.Append(inputRecord(now.Add(-10*time.Second), 15))
		e.SetNowFunc(func() time.Time { return now })
		e.seatedStartedAt = now.Add(-285 * time.Second)
		return e.ComputeSnapshot()
	}

	step(fixedNow)
	if !e.ShouldTriggerVisualProbe(fixedNow) {
		t.Fatal("first request expected")
	}
	first := e.visualProbeRequestedAt

	// between window (90s) and cooldown (120s): no new request
	step(fixedNow.Add(100 * time.Second))
	if !e.visualProbeRequestedAt.Equal(first) {
		t.Fatal("re-request issued before the cooldown elapsed")
	}

	// past the cooldown: a fresh request replaces the old one
	step(fixedNow.Add(125 * time.Second))
	if e.visualProbeRequestedAt.Equal(first) {
		t.Fatal("expected a fresh request after the cooldown")
	}
}

func TestProbeRequestClearedWhenVisionConfirms(t *testing.T) {
	buf := signal.NewBuffer(8)
	buf.Append(inputRecord(fixedNow.Add(-10*time.Second), 15))
	e := newTestEngine(buf)
	e.seatedStartedAt = fixedNow.Add(-285 * time.Second)

	e.ComputeSnapshot()
	if !e.ShouldTriggerVisualProbe(fixedNow) {
		t.Fatal("precondition: probe request expected")
	}

	// a confident sample makes the request evaporate
	buf.Append(visionRecord(fixedNow.Add(-time.Second), 0.9, 0.8, PostureUpright))
	e.ComputeSnapshot()
	if e.ShouldTriggerVisualProbe(fixedNow) {
		t.Fatal("request should clear once vision confirms presence")
	}
}
