package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/deskpulse/internal/config"
	"github.com/loykin/deskpulse/internal/engine"
	"github.com/loykin/deskpulse/internal/metrics"
	"github.com/loykin/deskpulse/internal/monitor"
	"github.com/loykin/deskpulse/internal/reminder"
	"github.com/loykin/deskpulse/internal/signal"
	"github.com/loykin/deskpulse/internal/stats"
	"github.com/loykin/deskpulse/internal/syswatch"
	"github.com/loykin/deskpulse/internal/vision"
)

// DefaultTickInterval is how often the tick loop recomputes state.
const DefaultTickInterval = 2 * time.Second

const (
	defaultProbeDuration = 3 * time.Second
	defaultProbeInterval = 500 * time.Millisecond
)

var knownStates = []string{
	string(engine.StateActive),
	string(engine.StateShortBreak),
	string(engine.StateProlongedSeated),
}

// Notifier delivers a reminder to the user.
type Notifier interface {
	Notify(n reminder.Notification) error
}

// LogNotifier writes notifications to the log. It is the fallback when
// no platform notifier is wired.
type LogNotifier struct {
	Log *slog.Logger
}

func (l LogNotifier) Notify(n reminder.Notification) error {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("reminder", "title", n.Title, "body", n.Body)
	return nil
}

// DisplaySnapshot is the engine snapshot enriched with session controls
// and daily counters for display surfaces.
type DisplaySnapshot struct {
	Timestamp           time.Time      `json:"timestamp"`
	Score               float64        `json:"score"`
	State               engine.State   `json:"state"`
	Metrics             engine.Metrics `json:"metrics"`
	WindowCategory      string         `json:"window_category,omitempty"`
	WindowApp           string         `json:"window_app,omitempty"`
	FlowMode            bool           `json:"flow_mode"`
	FlowModeRemaining   *float64       `json:"flow_mode_remaining,omitempty"`
	SnoozedUntil        *time.Time     `json:"snoozed_until,omitempty"`
	QuietHoursActive    bool           `json:"quiet_hours_active"`
	Sleeping            bool           `json:"sleeping"`
	NextReminderMinutes *float64       `json:"next_reminder_minutes,omitempty"`
	Today               stats.Daily    `json:"today"`
}

// Options wires the orchestrator's collaborators. Buffer, Engine and
// Policy are required; the rest may be nil.
type Options struct {
	Config       config.AppConfig
	Buffer       *signal.Buffer
	Engine       *engine.Engine
	Vision       *vision.Adapter
	Controller   *vision.Controller
	Policy       *reminder.Policy
	Stats        *stats.Tracker
	Store        *stats.Store
	Watcher      *syswatch.Watcher
	Window       *monitor.WindowMonitor
	Notifier     Notifier
	Log          *slog.Logger
	TickInterval time.Duration
}

// Orchestrator owns the tick loop: it recomputes the engine snapshot,
// fires probes the engine requested, applies the reminder policy and
// publishes a display snapshot. Control methods (SetFlow, Snooze,
// ResetSession, UpdateSettings) are safe from any goroutine; changes
// take effect on the next tick.
type Orchestrator struct {
	cfgMu      sync.RWMutex
	cfg        config.AppConfig
	buffer     *signal.Buffer
	engine     *engine.Engine
	vision     *vision.Adapter
	controller *vision.Controller
	policy     *reminder.Policy
	stats      *stats.Tracker
	store      *stats.Store
	watcher    *syswatch.Watcher
	window     *monitor.WindowMonitor
	notifier   Notifier
	log        *slog.Logger
	interval   time.Duration

	probeDur time.Duration
	probeInt time.Duration

	state      sharedState
	quietSlots []reminder.QuietSlot
	prevState  engine.State
	lastTickAt time.Time
	now        func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an orchestrator; it does not start the loop.
func New(opts Options) *Orchestrator {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = LogNotifier{Log: log}
	}
	interval := opts.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Orchestrator{
		cfg:        opts.Config,
		buffer:     opts.Buffer,
		engine:     opts.Engine,
		vision:     opts.Vision,
		controller: opts.Controller,
		policy:     opts.Policy,
		stats:      opts.Stats,
		store:      opts.Store,
		watcher:    opts.Watcher,
		window:     opts.Window,
		notifier:   notifier,
		log:        log,
		interval:   interval,
		probeDur:   defaultProbeDuration,
		probeInt:   defaultProbeInterval,
		quietSlots: reminder.ParseQuietSlots(opts.Config.QuietHours),
		now:        time.Now,
	}
}

// SetNowFunc overrides the clock. Test hook.
func (o *Orchestrator) SetNowFunc(now func() time.Time) { o.now = now }

// Start launches the tick loop.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)
	o.lastTickAt = o.now()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.Tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Status returns the last published display snapshot.
func (o *Orchestrator) Status() DisplaySnapshot { return o.state.snapshot() }

// SetFlow enables flow mode for d: reminders are suppressed until the
// deadline passes. d <= 0 cancels an active flow session.
func (o *Orchestrator) SetFlow(d time.Duration) {
	if d <= 0 {
		o.state.clearFlow()
		return
	}
	o.state.setFlow(o.now().Add(d))
}

// Snooze suppresses reminders until now+d. The snooze is dropped early
// if the session leaves the prolonged-seated state.
func (o *Orchestrator) Snooze(d time.Duration) {
	if d <= 0 {
		o.state.clearSnooze()
		return
	}
	o.state.snooze(o.now().Add(d))
}

// ResetSession requests a full session reset on the next tick.
func (o *Orchestrator) ResetSession() { o.state.requestReset() }

// UpdateSettings queues user-editable settings for the next tick.
func (o *Orchestrator) UpdateSettings(u config.UserSettings) { o.state.queueSettings(u) }

// Settings returns the user-editable view of the active config.
func (o *Orchestrator) Settings() config.UserSettings {
	o.cfgMu.RLock()
	defer o.cfgMu.RUnlock()
	return config.SettingsFromConfig(o.cfg)
}

// History reads persisted daily stats, newest first. Returns nil when
// no store is configured.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]stats.Daily, error) {
	if o.store == nil {
		return nil, nil
	}
	return o.store.Recent(ctx, limit)
}

// Tick runs one iteration of the loop. Exported for tests; the Start
// goroutine is the only production caller.
func (o *Orchestrator) Tick(ctx context.Context) {
	now := o.now()
	elapsed := now.Sub(o.lastTickAt)
	o.lastTickAt = now

	if u, ok := o.state.takeSettings(); ok {
		o.applySettings(u)
	}

	flowUntil, snoozedUntil, reset := o.state.control()
	if flowUntil != nil && !now.Before(*flowUntil) {
		o.state.clearFlow()
		flowUntil = nil
	}
	flow := flowUntil != nil
	if reset {
		o.resetSession("manual reset")
	}

	if o.watcher != nil {
		if o.watcher.Poll() {
			o.resetSession("system wake")
		}
		if o.watcher.Sleeping() {
			o.publishSleeping(now)
			return
		}
	}

	snap := o.engine.ComputeSnapshot()
	metrics.IncTick()

	if o.vision != nil && o.engine.ShouldTriggerVisualProbe(now) {
		probeCtx, cancel := context.WithTimeout(ctx, o.probeDur+2*time.Second)
		err := o.vision.Probe(probeCtx, o.probeDur, o.probeInt)
		cancel()
		o.engine.MarkVisualProbeFired(o.now())
		metrics.IncVisualProbe()
		if err != nil {
			o.log.Warn("visual probe failed", "error", err)
		}
		snap = o.engine.ComputeSnapshot()
	}

	prolonged := snap.State == engine.StateProlongedSeated
	enteredBreak := snap.State == engine.StateShortBreak &&
		o.prevState != "" && o.prevState != engine.StateShortBreak
	if enteredBreak {
		metrics.IncBreak()
	}
	o.prevState = snap.State
	if o.stats != nil {
		o.stats.Observe(elapsed, prolonged, enteredBreak, snap.Metrics.SeatedMinutes*60)
	}

	if snoozedUntil != nil && (!prolonged || !now.Before(*snoozedUntil)) {
		o.state.clearSnooze()
		snoozedUntil = nil
	}
	snoozed := snoozedUntil != nil
	quietActive, quietRemain := reminder.QuietStatus(now, o.quietSlots)

	allowed := o.cfg.NotificationsEnabled && !flow && !snoozed && !quietActive
	n, next := o.policy.Evaluate(prolonged, allowed, now)
	if n != nil {
		if err := o.notifier.Notify(*n); err != nil {
			o.log.Warn("notification failed", "error", err)
		} else {
			metrics.IncNotification()
		}
	}
	if next == nil && prolonged {
		if snoozed {
			m := snoozedUntil.Sub(now).Minutes()
			next = &m
		} else if quietActive {
			next = &quietRemain
		}
	}

	if o.controller != nil {
		o.controller.Update(snap.Metrics.BreakMinutes, snap.Metrics.PresenceConfidence, snap.Metrics.PostureState, now)
	}

	metrics.SetScore(snap.Score)
	metrics.SetState(string(snap.State), knownStates)
	metrics.SetSeatedMinutes(snap.Metrics.SeatedMinutes)
	metrics.SetBreakMinutes(snap.Metrics.BreakMinutes)

	ds := DisplaySnapshot{
		Timestamp:           now,
		Score:               snap.Score,
		State:               snap.State,
		Metrics:             snap.Metrics,
		FlowMode:            flow,
		SnoozedUntil:        snoozedUntil,
		QuietHoursActive:    quietActive,
		NextReminderMinutes: next,
	}
	if flow {
		remaining := flowUntil.Sub(now).Minutes()
		ds.FlowModeRemaining = &remaining
	}
	if o.window != nil {
		info := o.window.LatestInfo()
		ds.WindowCategory = info.Category
		ds.WindowApp = info.AppName
	}
	if o.stats != nil {
		ds.Today = o.stats.Today()
	}
	o.state.publish(ds)
}

func (o *Orchestrator) applySettings(u config.UserSettings) {
	o.cfgMu.Lock()
	o.cfg = u.Apply(o.cfg)
	o.cfgMu.Unlock()
	o.engine.UpdateConfig(o.cfg)
	o.policy.SetCooldown(time.Duration(o.cfg.NotificationCooldownMinutes) * time.Minute)
	o.quietSlots = reminder.ParseQuietSlots(o.cfg.QuietHours)
	o.log.Info("settings applied",
		"prolonged_seated_minutes", o.cfg.ProlongedSeatedMinutes,
		"cooldown_minutes", o.cfg.NotificationCooldownMinutes)
}

func (o *Orchestrator) resetSession(reason string) {
	o.buffer.Clear()
	o.engine.ResetState()
	o.policy.Reset()
	o.prevState = ""
	o.log.Info("session reset", "reason", reason)
}

// publishSleeping freezes the display while the host is asleep: the
// user is away, so the session counts as a clean break.
func (o *Orchestrator) publishSleeping(now time.Time) {
	ds := DisplaySnapshot{
		Timestamp: now,
		Score:     1.0,
		State:     engine.StateShortBreak,
		Sleeping:  true,
	}
	if o.stats != nil {
		ds.Today = o.stats.Today()
	}
	o.state.publish(ds)
}
