package monitor

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/loykin/deskpulse/internal/config"
	"github.com/loykin/deskpulse/internal/signal"
)

// ForegroundApp describes the frontmost application.
type ForegroundApp struct {
	BundleID string
	Name     string
}

// ForegroundSource reports the current frontmost application. ok is
// false when the desktop has no focused app (login screen, fast user
// switching).
type ForegroundSource interface {
	Frontmost() (app ForegroundApp, ok bool)
}

// neutralWeight applies when no category rule matches.
const neutralWeight = 0.6

// WindowMonitor polls the foreground application and publishes its
// configured task-category weight.
type WindowMonitor struct {
	buf      *signal.Buffer
	source   ForegroundSource
	rules    []config.WindowCategory
	interval time.Duration
	log      *slog.Logger

	mu       sync.Mutex
	lastInfo WindowInfo

	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// WindowInfo is the most recent classification, for display surfaces.
type WindowInfo struct {
	BundleID string  `json:"bundle_id"`
	AppName  string  `json:"app_name"`
	Category string  `json:"category"`
	Weight   float64 `json:"weight"`
}

// NewWindowMonitor creates a monitor polling source every interval
// (floored at one second) with the given category rules.
func NewWindowMonitor(buf *signal.Buffer, source ForegroundSource, rules []config.WindowCategory, interval time.Duration, log *slog.Logger) *WindowMonitor {
	if interval < time.Second {
		interval = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &WindowMonitor{buf: buf, source: source, rules: rules, interval: interval, log: log}
}

// Start launches the polling loop.
func (m *WindowMonitor) Start(ctx context.Context) {
	if m.started {
		return
	}
	m.started = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.loop(ctx)
}

// Stop cancels the loop and waits for it to unwind.
func (m *WindowMonitor) Stop() {
	if !m.started {
		return
	}
	m.cancel()
	<-m.done
	m.started = false
}

// LatestInfo returns the most recent classification.
func (m *WindowMonitor) LatestInfo() WindowInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastInfo
}

func (m *WindowMonitor) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.publishOnce()
		}
	}
}

func (m *WindowMonitor) publishOnce() {
	app, ok := m.source.Frontmost()
	if !ok {
		m.log.Debug("no foreground application")
		return
	}
	name, weight := Classify(m.rules, app)
	m.mu.Lock()
	m.lastInfo = WindowInfo{BundleID: app.BundleID, AppName: app.Name, Category: name, Weight: weight}
	m.mu.Unlock()
	m.buf.Append(signal.Record{
		Timestamp:    time.Now().UTC(),
		WindowWeight: signal.F(weight),
	})
}

// Classify matches app against the rules, first match wins. Patterns
// are case-insensitive substrings of the bundle id or app name. With
// no match the neutral category applies.
func Classify(rules []config.WindowCategory, app ForegroundApp) (category string, weight float64) {
	targets := []string{strings.ToLower(app.BundleID), strings.ToLower(app.Name)}
	for _, rule := range rules {
		for _, pattern := range rule.Patterns {
			p := strings.ToLower(pattern)
			if p == "" {
				continue
			}
			for _, target := range targets {
				if strings.Contains(target, p) {
					return rule.Name, rule.Weight
				}
			}
		}
	}
	return "neutral", neutralWeight
}
