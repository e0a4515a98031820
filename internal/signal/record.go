package signal

import "time"

// Record is a single sensor observation. Each adapter fills only the
// fields it actually measured; a nil pointer (or empty PostureState)
// means the dimension was not reported in this record.
type Record struct {
	Timestamp time.Time

	// InputEvents is the keyboard/mouse/scroll event volume drained
	// since the adapter's previous record.
	InputEvents *float64
	// WindowWeight is the task-category weight of the foreground app.
	WindowWeight *float64

	// Vision dimensions.
	PresenceConfidence *float64
	PostureScore       *float64
	PostureState       string
	Present            *bool
}

// Posture state labels shared by the vision adapters and the engine.
const (
	PostureUnknown   = "unknown"
	PostureUntracked = "untracked"
	PostureUpright   = "upright"
	PostureSlouch    = "slouch"
	PostureAway      = "away"
	PostureNoPose    = "no_pose"
)

// HasVision reports whether this record carries a vision sample.
func (r Record) HasVision() bool { return r.PresenceConfidence != nil }

// Float returns *v coerced to a finite non-negative number. Nil and
// NaN/Inf degrade to 0 rather than erroring.
func Float(v *float64) float64 {
	if v == nil {
		return 0
	}
	f := *v
	if f != f || f > maxFinite || f < -maxFinite {
		return 0
	}
	return f
}

const maxFinite = 1e308

// F is a convenience constructor for optional numeric fields.
func F(v float64) *float64 { return &v }

// B is a convenience constructor for optional boolean fields.
func B(v bool) *bool { return &v }
