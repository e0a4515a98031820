// Package deskpulse infers desk activity from input, window and camera
// signals and reminds the user to take breaks.
package deskpulse

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/deskpulse/internal/config"
	"github.com/loykin/deskpulse/internal/engine"
	"github.com/loykin/deskpulse/internal/metrics"
	"github.com/loykin/deskpulse/internal/monitor"
	"github.com/loykin/deskpulse/internal/orchestrator"
	"github.com/loykin/deskpulse/internal/reminder"
	iapi "github.com/loykin/deskpulse/internal/server"
	"github.com/loykin/deskpulse/internal/signal"
	"github.com/loykin/deskpulse/internal/stats"
	"github.com/loykin/deskpulse/internal/syswatch"
	"github.com/loykin/deskpulse/internal/vision"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = config.AppConfig

type UserSettings = config.UserSettings

type Snapshot = orchestrator.DisplaySnapshot

type Notification = reminder.Notification

type State = engine.State

type DailyStats = stats.Daily

// LoadConfig reads a TOML config file, overlaying it on the defaults.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config { return config.Default() }

// Options selects the platform adapters wired into a Tracker. Any nil
// source simply leaves that signal out of the inference.
type Options struct {
	Config   Config
	Camera   vision.Capturer          // nil (or Config.VisionEnabled=false) disables vision
	Input    monitor.EventSource      // keyboard/mouse event counts
	Window   monitor.ForegroundSource // frontmost app lookups
	Notifier orchestrator.Notifier    // defaults to logging reminders
	Log      *slog.Logger
}

// Tracker is a thin facade over the internal pipeline: signal buffer,
// inference engine, vision probes, reminder policy and daily stats.
type Tracker struct {
	cfg        Config
	log        *slog.Logger
	buf        *signal.Buffer
	eng        *engine.Engine
	adapter    *vision.Adapter
	controller *vision.Controller
	inputMon   *monitor.InputMonitor
	windowMon  *monitor.WindowMonitor
	store      *stats.Store
	tracker    *stats.Tracker
	orch       *orchestrator.Orchestrator
}

// New assembles a tracker; Start launches it.
func New(opts Options) (*Tracker, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	capacity := cfg.BufferSize
	if capacity <= 0 {
		capacity = signal.DefaultCapacity
	}
	buf := signal.NewBuffer(capacity)
	eng := engine.New(buf, cfg)

	t := &Tracker{cfg: cfg, log: log, buf: buf, eng: eng}

	if cfg.VisionEnabled && opts.Camera != nil {
		t.adapter = vision.NewAdapter(buf, opts.Camera, cfg.CaptureInterval(), log)
		ctrlCfg := vision.DefaultControllerConfig(
			time.Duration(cfg.BreakResetMinutes)*time.Minute,
			cfg.VisionPresenceThreshold,
		)
		t.controller = vision.NewController(t.adapter, ctrlCfg, log)
	}
	if opts.Input != nil {
		t.inputMon = monitor.NewInputMonitor(buf, opts.Input, time.Second, log)
	}
	if opts.Window != nil {
		t.windowMon = monitor.NewWindowMonitor(buf, opts.Window, cfg.WindowCategories, 2*time.Second, log)
	}

	if cfg.StatsPath != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		store, err := stats.Open(ctx, cfg.StatsPath)
		cancel()
		if err != nil {
			return nil, err
		}
		t.store = store
	}
	t.tracker = stats.NewTracker(t.store, log)

	t.orch = orchestrator.New(orchestrator.Options{
		Config:     cfg,
		Buffer:     buf,
		Engine:     eng,
		Vision:     t.adapter,
		Controller: t.controller,
		Policy:     reminder.NewPolicy(time.Duration(cfg.NotificationCooldownMinutes)*time.Minute, reminder.DefaultSuggestions),
		Stats:      t.tracker,
		Store:      t.store,
		Watcher:    syswatch.New(log),
		Window:     t.windowMon,
		Notifier:   opts.Notifier,
		Log:        log,
	})
	return t, nil
}

// Start launches the monitors, the vision loop and the tick loop.
func (t *Tracker) Start(ctx context.Context) error {
	if err := t.tracker.Start(); err != nil {
		return err
	}
	if t.adapter != nil {
		t.adapter.Start(ctx)
	}
	if t.inputMon != nil {
		t.inputMon.Start(ctx)
	}
	if t.windowMon != nil {
		t.windowMon.Start(ctx)
	}
	t.orch.Start(ctx)
	return nil
}

// Stop shuts the pipeline down in dependency order and flushes stats.
func (t *Tracker) Stop() {
	t.orch.Stop()
	if t.controller != nil {
		t.controller.Close()
	}
	if t.adapter != nil {
		// the adapter owns the capturer and releases it here
		t.adapter.Stop()
	}
	if t.inputMon != nil {
		t.inputMon.Stop()
	}
	if t.windowMon != nil {
		t.windowMon.Stop()
	}
	t.tracker.Close()
	if t.store != nil {
		_ = t.store.Close()
	}
}

func (t *Tracker) Status() Snapshot              { return t.orch.Status() }
func (t *Tracker) SetFlow(d time.Duration)       { t.orch.SetFlow(d) }
func (t *Tracker) Snooze(d time.Duration)        { t.orch.Snooze(d) }
func (t *Tracker) ResetSession()                 { t.orch.ResetSession() }
func (t *Tracker) UpdateSettings(u UserSettings) { t.orch.UpdateSettings(u) }
func (t *Tracker) Settings() UserSettings        { return t.orch.Settings() }
func (t *Tracker) History(ctx context.Context, limit int) ([]DailyStats, error) {
	return t.orch.History(ctx, limit)
}

// NewHTTPServer starts an HTTP server exposing the control API for this tracker.
func NewHTTPServer(addr, basePath string, t *Tracker) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, t.orch)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
