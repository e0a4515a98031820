// Package syswatch detects system suspend/resume so the tracker does
// not accrue phantom seated time overnight. It combines an explicit
// sleep flag (set by the platform layer when the OS announces sleep)
// with a heuristic for the silent case: across a suspend, the wall
// clock jumps while the tick cadence cannot have kept up.
package syswatch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/host"
)

// DefaultGapThreshold is the wall-clock discontinuity treated as a
// resume edge. Two ticks plus scheduling slack never legitimately
// spans this.
const DefaultGapThreshold = 30 * time.Second

// Watcher tracks the system sleep state.
type Watcher struct {
	mu            sync.Mutex
	sleeping      bool
	wokeAnnounced bool
	lastPoll      time.Time

	gap    time.Duration
	now    func() time.Time
	uptime func() (uint64, error)
	log    *slog.Logger
}

// New creates a Watcher with the default gap threshold.
func New(log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		gap:    DefaultGapThreshold,
		now:    time.Now,
		uptime: host.Uptime,
		log:    log,
	}
}

// SetSleeping records an OS sleep/wake announcement. A sleep-to-awake
// flip is remembered so the next Poll reports a resume edge even when
// the sleep was too short for the wall-clock heuristic.
func (w *Watcher) SetSleeping(sleeping bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sleeping && !sleeping {
		w.wokeAnnounced = true
	}
	w.sleeping = sleeping
}

// Sleeping reports the announced state.
func (w *Watcher) Sleeping() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sleeping
}

// Poll must be called once per tick. It returns true when a resume
// edge was detected since the previous call, either because the
// announced flag flipped from sleeping to awake elsewhere or because
// the wall clock jumped across a suspend the OS never announced
// (detected when the machine's uptime is shorter than the apparent
// gap would require, or simply when the gap dwarfs the tick cadence).
func (w *Watcher) Poll() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	defer func() { w.lastPoll = now }()

	if w.wokeAnnounced {
		w.wokeAnnounced = false
		w.log.Info("announced wake detected")
		return true
	}

	if w.lastPoll.IsZero() {
		return false
	}
	elapsed := now.Sub(w.lastPoll)
	if elapsed < w.gap {
		return false
	}
	// A reboot inside the gap also counts as a discontinuity.
	if up, err := w.uptime(); err == nil {
		if time.Duration(up)*time.Second < elapsed {
			w.log.Info("resume after reboot detected", "gap", elapsed)
			return true
		}
	}
	w.log.Info("wall-clock discontinuity detected", "gap", elapsed)
	return true
}
