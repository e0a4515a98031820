// Package engine converts buffered sensor signals into a scored
// activity state. The state is re-derived from scratch every tick
// (level-triggered), so a missed tick never wedges the machine; the
// only cross-tick state are the seated anchor and the visual-probe
// debounce timestamps.
package engine

import (
	"math"
	"time"

	"github.com/loykin/deskpulse/internal/config"
	"github.com/loykin/deskpulse/internal/signal"
)

// State classifies the user's current activity.
type State string

const (
	StateActive          State = "ACTIVE"
	StateShortBreak      State = "SHORT_BREAK"
	StateProlongedSeated State = "PROLONGED_SEATED"
)

// Posture state labels, re-exported from the shared signal model.
const (
	PostureUnknown   = signal.PostureUnknown
	PostureUntracked = signal.PostureUntracked
	PostureUpright   = signal.PostureUpright
	PostureSlouch    = signal.PostureSlouch
	PostureAway      = signal.PostureAway
)

// Metrics carries the per-tick derived quantities alongside the state.
type Metrics struct {
	ActivitySum        float64 `json:"activity_sum"`
	NormalizedActivity float64 `json:"normalized_activity"`
	SeatedMinutes      float64 `json:"seated_minutes"`
	BreakMinutes       float64 `json:"break_minutes"`
	PresenceConfidence float64 `json:"presence_confidence"`
	PostureScore       float64 `json:"posture_score"`
	PostureState       string  `json:"posture_state"`
	Score              float64 `json:"score"`
	VisualProbePending bool    `json:"visual_probe_pending"`
}

// Snapshot is the immutable per-tick result of ComputeSnapshot.
type Snapshot struct {
	Score   float64 `json:"score"`
	State   State   `json:"state"`
	Metrics Metrics `json:"metrics"`
}

// BufferReader is the engine's view of the signal buffer.
type BufferReader interface {
	Snapshot() []signal.Record
}

const (
	probeWindow   = 90 * time.Second
	probeCooldown = 120 * time.Second
	// fraction of the prolonged threshold at which a probe becomes
	// worth its cost
	probeSeatedFraction = 0.95
	// below this the vision sample is treated as noise
	minTrustedConfidence = 0.05
)

// Engine owns the scoring logic and the seated/probe timers. It is
// driven by a single goroutine (the orchestrator); only the producers
// feeding the buffer run concurrently.
type Engine struct {
	buffer BufferReader
	cfg    config.AppConfig
	now    func() time.Time

	seatedStartedAt        time.Time
	visualProbeRequestedAt time.Time
	visualProbeTriggeredAt time.Time
}

// New creates an Engine reading from buffer with the given config.
func New(buffer BufferReader, cfg config.AppConfig) *Engine {
	return &Engine{buffer: buffer, cfg: cfg, now: time.Now}
}

// SetNowFunc overrides the clock, for tests.
func (e *Engine) SetNowFunc(now func() time.Time) { e.now = now }

// UpdateConfig swaps the thresholds. Timers are left alone; the next
// ComputeSnapshot re-derives everything against the new values.
func (e *Engine) UpdateConfig(cfg config.AppConfig) { e.cfg = cfg }

// ResetState clears the seated anchor and probe debounce so the next
// record starts a fresh seated streak. Used on manual refresh and on
// sleep/wake boundaries.
func (e *Engine) ResetState() {
	e.seatedStartedAt = time.Time{}
	e.visualProbeRequestedAt = time.Time{}
	e.visualProbeTriggeredAt = time.Time{}
}

// ComputeSnapshot derives the current score and state from the buffer.
// Safe to call repeatedly within a tick; apart from the seated anchor
// and the probe debounce it has no side effects.
func (e *Engine) ComputeSnapshot() Snapshot {
	now := e.now()
	records := e.buffer.Snapshot()
	if len(records) == 0 {
		// No data is a defined break state, never prolonged sitting.
		return Snapshot{
			Score: 0,
			State: StateShortBreak,
			Metrics: Metrics{
				BreakMinutes: float64(e.cfg.BreakResetMinutes),
				PostureState: PostureUnknown,
				PostureScore: 1,
			},
		}
	}

	activitySum, hasRecentInput := e.sumRecentActivity(now, records)
	normalized := 0.0
	if activitySum > 0 {
		normalized = math.Min(activitySum/e.baselineActivity(), 1)
	}

	lastActivityAt := e.lastActivityTime(records)
	if lastActivityAt.IsZero() {
		lastActivityAt = records[0].Timestamp
	}

	presence, hasPresence := latestPresence(records)
	trustedVision := hasPresence &&
		presence.postureState != PostureUntracked &&
		presence.confidence > minTrustedConfidence

	breakMinutes := math.Max(0, now.Sub(lastActivityAt).Minutes())

	// An absent or low-confidence subject overrides a stale "active"
	// timestamp once the keyboard has also gone quiet.
	if trustedVision && presence.confidence < e.cfg.VisionPresenceThreshold && !hasRecentInput {
		breakMinutes = math.Max(breakMinutes, float64(e.cfg.BreakResetMinutes))
	}

	seatedMinutes := e.updateSeatedTimer(now, lastActivityAt, breakMinutes)
	state := e.resolveState(seatedMinutes, breakMinutes)

	presenceConfidence := 0.0
	postureState := PostureUnknown
	if hasPresence {
		presenceConfidence = presence.confidence
		postureState = presence.postureState
	}
	e.updateVisualProbeState(now, seatedMinutes, breakMinutes, state, presenceConfidence, postureState)

	postureScore := 1.0
	if trustedVision {
		postureScore = presence.postureScore
	}
	score := e.computeScore(seatedMinutes, normalized, postureScore)

	return Snapshot{
		Score: score,
		State: state,
		Metrics: Metrics{
			ActivitySum:        activitySum,
			NormalizedActivity: normalized,
			SeatedMinutes:      seatedMinutes,
			BreakMinutes:       breakMinutes,
			PresenceConfidence: presenceConfidence,
			PostureScore:       postureScore,
			PostureState:       postureState,
			Score:              score,
			VisualProbePending: e.shouldRequestVisualProbe(now),
		},
	}
}

// ShouldTriggerVisualProbe reports whether an unexpired probe request
// is outstanding and has not been fired yet.
func (e *Engine) ShouldTriggerVisualProbe(now time.Time) bool {
	if now.IsZero() {
		now = e.now()
	}
	return e.shouldRequestVisualProbe(now)
}

// MarkVisualProbeFired stamps the outstanding request as handled so it
// is not re-fired.
func (e *Engine) MarkVisualProbeFired(now time.Time) {
	if e.visualProbeRequestedAt.IsZero() {
		return
	}
	if now.IsZero() {
		now = e.now()
	}
	e.visualProbeTriggeredAt = now
}

func (e *Engine) shouldRequestVisualProbe(now time.Time) bool {
	if e.visualProbeRequestedAt.IsZero() {
		return false
	}
	if !e.visualProbeTriggeredAt.IsZero() && !e.visualProbeTriggeredAt.Before(e.visualProbeRequestedAt) {
		return false
	}
	return now.Sub(e.visualProbeRequestedAt) <= probeWindow
}

// activityWindow is the trailing interval over which input volume is
// summed: the short-break threshold capped at five minutes.
func (e *Engine) activityWindow() time.Duration {
	minutes := e.cfg.ShortBreakMinutes
	if minutes > 5 {
		minutes = 5
	}
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}

// baselineActivity is the "modest expected rate" the raw sum is
// normalized against: one event per six seconds, floored at 20.
func (e *Engine) baselineActivity() float64 {
	return math.Max(e.activityWindow().Seconds()/6, 20)
}

func (e *Engine) sumRecentActivity(now time.Time, records []signal.Record) (sum float64, hasInput bool) {
	window := e.activityWindow()
	for _, r := range records {
		if now.Sub(r.Timestamp) > window {
			continue
		}
		v := signal.Float(r.InputEvents)
		if v > 0 {
			hasInput = true
			sum += v
		}
	}
	return sum, hasInput
}

// lastActivityTime scans newest to oldest for the moment the user was
// last demonstrably at the desk. Keyboard/mouse volume wins; failing
// that, a confident vision sample counts too, so reading or watching
// without typing does not register as a break.
func (e *Engine) lastActivityTime(records []signal.Record) time.Time {
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if signal.Float(r.InputEvents) > 0 {
			return r.Timestamp
		}
		if r.PresenceConfidence == nil {
			continue
		}
		if signal.Float(r.PresenceConfidence) < e.cfg.VisionPresenceThreshold {
			continue
		}
		if r.Present != nil && !*r.Present {
			continue
		}
		// No explicit presence flag: confidence alone is enough.
		return r.Timestamp
	}
	return time.Time{}
}

func (e *Engine) updateSeatedTimer(now, lastActivityAt time.Time, breakMinutes float64) float64 {
	if breakMinutes >= float64(e.cfg.BreakResetMinutes) {
		e.seatedStartedAt = time.Time{}
		return 0
	}
	if e.seatedStartedAt.IsZero() {
		// Back-date the streak to when continuous presence began.
		e.seatedStartedAt = lastActivityAt
	}
	return math.Max(0, now.Sub(e.seatedStartedAt).Minutes())
}

func (e *Engine) resolveState(seatedMinutes, breakMinutes float64) State {
	if breakMinutes >= float64(e.cfg.BreakResetMinutes) {
		return StateShortBreak
	}
	if seatedMinutes >= float64(e.cfg.ProlongedSeatedMinutes) {
		return StateProlongedSeated
	}
	return StateActive
}

// updateVisualProbeState maintains the request/trigger timestamps that
// throttle active camera sampling. A request is only raised while the
// seated streak is closing in on the prolonged threshold and vision
// cannot already confirm the user is there.
func (e *Engine) updateVisualProbeState(now time.Time, seatedMinutes, breakMinutes float64, state State, presenceConfidence float64, postureState string) {
	if state == StateProlongedSeated {
		return
	}

	if breakMinutes >= float64(e.cfg.BreakResetMinutes) {
		e.clearVisualProbe()
		return
	}

	threshold := float64(e.cfg.ProlongedSeatedMinutes) * probeSeatedFraction
	if seatedMinutes < threshold {
		e.clearVisualProbe()
		return
	}

	if presenceConfidence >= e.cfg.VisionPresenceThreshold && postureState != PostureUntracked {
		e.clearVisualProbe()
		return
	}

	if !e.visualProbeRequestedAt.IsZero() {
		elapsed := now.Sub(e.visualProbeRequestedAt)
		if elapsed <= probeWindow {
			return // already pending
		}
		if elapsed <= probeCooldown {
			return // recently tried, cool down
		}
	}

	e.visualProbeRequestedAt = now
	e.visualProbeTriggeredAt = time.Time{}
}

func (e *Engine) clearVisualProbe() {
	e.visualProbeRequestedAt = time.Time{}
	e.visualProbeTriggeredAt = time.Time{}
}

func (e *Engine) computeScore(seatedMinutes, normalizedActivity, postureScore float64) float64 {
	prolonged := float64(e.cfg.ProlongedSeatedMinutes)
	if prolonged < 1 {
		prolonged = 1
	}
	ratio := math.Min(seatedMinutes/prolonged, 1)
	modifier := postureScore
	if modifier <= 0 {
		// Zero posture usually means "unknown-low", not "confidently
		// bad"; do not let it null the whole score.
		modifier = 0.5
	}
	return math.Round((1-ratio)*normalizedActivity*modifier*1e4) / 1e4
}

type presenceSample struct {
	confidence   float64
	postureScore float64
	postureState string
}

// latestPresence returns the newest record carrying a vision sample.
func latestPresence(records []signal.Record) (presenceSample, bool) {
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if !r.HasVision() {
			continue
		}
		state := r.PostureState
		if state == "" {
			state = PostureUnknown
		}
		return presenceSample{
			confidence:   signal.Float(r.PresenceConfidence),
			postureScore: signal.Float(r.PostureScore),
			postureState: state,
		}, true
	}
	return presenceSample{}, false
}
