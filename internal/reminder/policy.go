// Package reminder decides when a sedentary notification is due and
// what it should say. The policy is deliberately stateful only in the
// last-fired timestamp: everything else is re-derived per tick from
// the current activity state and override flags.
package reminder

import (
	"math/rand"
	"time"
)

// Notification is a ready-to-deliver reminder message.
type Notification struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Body     string `json:"body"`
}

// DefaultSuggestions is the stock rotation of break prompts.
var DefaultSuggestions = []string{
	"You have been sitting for a while. Stand up and stretch for three minutes.",
	"Try a doorway chest stretch to loosen your shoulders and spine.",
	"Walk to the kitchen and refill your water. Your body will thank you.",
	"Look at something 20 meters away for 20 seconds to rest your eyes.",
}

// Policy owns the cooldown bookkeeping for sedentary reminders.
type Policy struct {
	cooldown       time.Duration
	suggestions    []string
	lastFiredAt    time.Time
	lastSuggestion string
	rng            *rand.Rand
}

// NewPolicy creates a Policy. An empty suggestion list falls back to
// DefaultSuggestions.
func NewPolicy(cooldown time.Duration, suggestions []string) *Policy {
	if len(suggestions) == 0 {
		suggestions = DefaultSuggestions
	}
	return &Policy{
		cooldown:    cooldown,
		suggestions: suggestions,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetCooldown swaps the cooldown, effective immediately.
func (p *Policy) SetCooldown(d time.Duration) { p.cooldown = d }

// Reset forgets the last firing, so the next prolonged episode starts
// fresh. Used on manual reset and on sleep.
func (p *Policy) Reset() { p.lastFiredAt = time.Time{} }

// Evaluate applies the reminder rule for one tick.
//
// prolonged is whether the current state is prolonged-seated; allowed
// is whether notifications may fire at all this tick (enabled, and no
// flow mode, snooze or quiet hours). It returns the notification to
// deliver, if any, and the minutes until the next reminder would fire
// (nil when no reminder is scheduled).
//
// Leaving the prolonged state clears the last-fired timestamp so each
// episode gets an immediate first reminder.
func (p *Policy) Evaluate(prolonged, allowed bool, now time.Time) (*Notification, *float64) {
	if !allowed {
		return nil, nil
	}
	if !prolonged {
		p.lastFiredAt = time.Time{}
		return nil, nil
	}

	if !p.lastFiredAt.IsZero() {
		elapsed := now.Sub(p.lastFiredAt)
		if elapsed < p.cooldown {
			remaining := (p.cooldown - elapsed).Minutes()
			return nil, &remaining
		}
	}

	suggestion := p.pickSuggestion()
	p.lastFiredAt = now
	p.lastSuggestion = suggestion
	next := p.cooldown.Minutes()
	return &Notification{
		Title:    "Time to move",
		Subtitle: "Sedentary reminder",
		Body:     suggestion,
	}, &next
}

// pickSuggestion avoids repeating the previous message when the pool
// has alternatives.
func (p *Policy) pickSuggestion() string {
	if len(p.suggestions) == 1 {
		return p.suggestions[0]
	}
	candidates := make([]string, 0, len(p.suggestions))
	for _, s := range p.suggestions {
		if s != p.lastSuggestion {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		candidates = p.suggestions
	}
	return candidates[p.rng.Intn(len(candidates))]
}
