package orchestrator

import (
	"sync"
	"time"

	"github.com/loykin/deskpulse/internal/config"
)

// sharedState holds the control inputs the HTTP layer writes and the
// tick loop reads. Each group has its own lock so a slow snapshot read
// never blocks a settings update; no lock is held across a blocking
// call.
type sharedState struct {
	controlMu    sync.Mutex
	flowUntil    *time.Time
	snoozedUntil *time.Time
	manualReset  bool

	settingsMu      sync.Mutex
	pendingSettings *config.UserSettings

	snapMu sync.RWMutex
	snap   DisplaySnapshot
}

func (s *sharedState) setFlow(until time.Time) {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()
	s.flowUntil = &until
}

func (s *sharedState) clearFlow() {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()
	s.flowUntil = nil
}

func (s *sharedState) snooze(until time.Time) {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()
	s.snoozedUntil = &until
}

func (s *sharedState) clearSnooze() {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()
	s.snoozedUntil = nil
}

func (s *sharedState) requestReset() {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()
	s.manualReset = true
}

// control returns the current flow and snooze deadlines, and consumes
// a pending manual reset.
func (s *sharedState) control() (flowUntil, snoozedUntil *time.Time, reset bool) {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()
	reset = s.manualReset
	s.manualReset = false
	return s.flowUntil, s.snoozedUntil, reset
}

func (s *sharedState) queueSettings(u config.UserSettings) {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	s.pendingSettings = &u
}

func (s *sharedState) takeSettings() (config.UserSettings, bool) {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	if s.pendingSettings == nil {
		return config.UserSettings{}, false
	}
	u := *s.pendingSettings
	s.pendingSettings = nil
	return u, true
}

func (s *sharedState) publish(snap DisplaySnapshot) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	s.snap = snap
}

func (s *sharedState) snapshot() DisplaySnapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}
