package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const dayFormat = "2006-01-02"

// Tracker accumulates per-day counters in memory and flushes them to a
// Store at midnight (via cron) and on Close. A nil store keeps the
// tracker in-memory only.
type Tracker struct {
	mu      sync.Mutex
	day     string
	current Daily

	store *Store
	cron  *cron.Cron
	now   func() time.Time
	log   *slog.Logger
}

// NewTracker creates a tracker anchored to the current local day.
func NewTracker(store *Store, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	t := &Tracker{store: store, now: time.Now, log: log}
	t.day = t.now().Format(dayFormat)
	t.current = Daily{Day: t.day}
	return t
}

// SetNowFunc overrides the clock. Test hook.
func (t *Tracker) SetNowFunc(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	t.day = now().Format(dayFormat)
	t.current.Day = t.day
}

// Start schedules the midnight rollover.
func (t *Tracker) Start() error {
	c := cron.New()
	if _, err := c.AddFunc("@midnight", func() { t.Rollover() }); err != nil {
		return err
	}
	c.Start()
	t.mu.Lock()
	t.cron = c
	t.mu.Unlock()
	return nil
}

// Observe records one tick's worth of state. elapsed is the time since
// the previous tick, prolonged reports whether the session is currently
// in the prolonged-seated state, enteredBreak whether this tick is a
// transition into a break, and seatedSeconds the current seated streak.
func (t *Tracker) Observe(elapsed time.Duration, prolonged, enteredBreak bool, seatedSeconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked(t.now())
	if prolonged && elapsed > 0 {
		t.current.ProlongedSeconds += elapsed.Seconds()
	}
	if enteredBreak {
		t.current.BreakCount++
	}
	if seatedSeconds > t.current.LongestSeatedSeconds {
		t.current.LongestSeatedSeconds = seatedSeconds
	}
}

// Today returns a copy of the in-progress day.
func (t *Tracker) Today() Daily {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked(t.now())
	return t.current
}

// Rollover flushes the current day and starts a new one if the calendar
// day changed. Safe to call at any time; cron invokes it at midnight.
func (t *Tracker) Rollover() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked(t.now())
}

// rolloverLocked must be called with t.mu held.
func (t *Tracker) rolloverLocked(now time.Time) {
	day := now.Format(dayFormat)
	if day == t.day {
		return
	}
	t.flushLocked()
	t.day = day
	t.current = Daily{Day: day}
}

func (t *Tracker) flushLocked() {
	if t.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.store.Upsert(ctx, t.current); err != nil {
		t.log.Warn("daily stats flush failed", "day", t.current.Day, "error", err)
	}
}

// Close stops the cron schedule and flushes the in-progress day.
func (t *Tracker) Close() {
	t.mu.Lock()
	c := t.cron
	t.cron = nil
	t.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	t.mu.Lock()
	t.flushLocked()
	t.mu.Unlock()
}
