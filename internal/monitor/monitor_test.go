package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/loykin/deskpulse/internal/config"
	"github.com/loykin/deskpulse/internal/signal"
)

type fakeEventSource struct {
	mu     sync.Mutex
	counts EventCounts
}

func (f *fakeEventSource) add(c EventCounts) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts.Keyboard += c.Keyboard
	f.counts.Mouse += c.Mouse
	f.counts.Scroll += c.Scroll
}

func (f *fakeEventSource) Drain() EventCounts {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.counts
	f.counts = EventCounts{}
	return out
}

func TestInputMonitorPublishesDrainedVolume(t *testing.T) {
	buf := signal.NewBuffer(8)
	src := &fakeEventSource{}
	src.add(EventCounts{Keyboard: 3, Mouse: 5, Scroll: 2})
	m := NewInputMonitor(buf, src, time.Second, nil)

	m.publishOnce()
	snap := buf.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected one record, got %d", len(snap))
	}
	if got := signal.Float(snap[0].InputEvents); got != 10 {
		t.Fatalf("input events = %v, want 10", got)
	}
	// drained source publishes nothing next round
	m.publishOnce()
	if buf.Len() != 1 {
		t.Fatalf("quiet poll must not publish, got %d records", buf.Len())
	}
}

func TestInputMonitorStartStop(t *testing.T) {
	buf := signal.NewBuffer(8)
	src := &fakeEventSource{}
	m := NewInputMonitor(buf, src, 100*time.Millisecond, nil)
	m.Start(context.Background())
	src.add(EventCounts{Keyboard: 1})
	time.Sleep(250 * time.Millisecond)
	m.Stop()
	if buf.Len() == 0 {
		t.Fatal("expected at least one published record")
	}
	m.Stop() // second stop is a no-op
}

type fixedForeground struct {
	app ForegroundApp
	ok  bool
}

func (f fixedForeground) Frontmost() (ForegroundApp, bool) { return f.app, f.ok }

func TestClassify(t *testing.T) {
	rules := config.Default().WindowCategories
	cases := []struct {
		app        ForegroundApp
		wantName   string
		wantWeight float64
	}{
		{ForegroundApp{BundleID: "com.microsoft.VSCode", Name: "Code"}, "work", 1.0},
		{ForegroundApp{BundleID: "com.apple.Terminal", Name: "Terminal"}, "work", 1.0},
		{ForegroundApp{BundleID: "us.zoom.xos", Name: "zoom.us"}, "meeting", 0.9},
		{ForegroundApp{BundleID: "com.google.Chrome", Name: "YouTube - Chrome"}, "leisure", 0.3},
		{ForegroundApp{BundleID: "com.example.Mystery", Name: "Mystery"}, "neutral", 0.6},
		{ForegroundApp{}, "neutral", 0.6},
	}
	for _, tc := range cases {
		name, weight := Classify(rules, tc.app)
		if name != tc.wantName || weight != tc.wantWeight {
			t.Errorf("Classify(%q/%q) = %s/%v, want %s/%v",
				tc.app.BundleID, tc.app.Name, name, weight, tc.wantName, tc.wantWeight)
		}
	}
}

func TestClassifyFirstRuleWins(t *testing.T) {
	rules := []config.WindowCategory{
		{Name: "special", Weight: 0.8, Patterns: []string{"chrome"}},
		{Name: "general", Weight: 0.5, Patterns: []string{"chrome", "safari"}},
	}
	name, weight := Classify(rules, ForegroundApp{Name: "Google Chrome"})
	if name != "special" || weight != 0.8 {
		t.Fatalf("got %s/%v, want special/0.8", name, weight)
	}
}

func TestClassifyIgnoresEmptyPatterns(t *testing.T) {
	rules := []config.WindowCategory{{Name: "broken", Weight: 0.1, Patterns: []string{""}}}
	name, weight := Classify(rules, ForegroundApp{Name: "Anything"})
	if name != "neutral" || weight != 0.6 {
		t.Fatalf("empty pattern must not match everything: %s/%v", name, weight)
	}
}

func TestWindowMonitorPublishesWeight(t *testing.T) {
	buf := signal.NewBuffer(8)
	src := fixedForeground{app: ForegroundApp{BundleID: "com.jetbrains.goland", Name: "GoLand"}, ok: true}
	rules := []config.WindowCategory{{Name: "work", Weight: 1.0, Patterns: []string{"goland"}}}
	m := NewWindowMonitor(buf, src, rules, time.Second, nil)

	m.publishOnce()
	snap := buf.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected one record, got %d", len(snap))
	}
	if got := signal.Float(snap[0].WindowWeight); got != 1.0 {
		t.Fatalf("window weight = %v, want 1.0", got)
	}
	info := m.LatestInfo()
	if info.Category != "work" || info.AppName != "GoLand" {
		t.Fatalf("latest info = %+v", info)
	}
}

func TestWindowMonitorSkipsWhenNoForeground(t *testing.T) {
	buf := signal.NewBuffer(8)
	m := NewWindowMonitor(buf, fixedForeground{ok: false}, nil, time.Second, nil)
	m.publishOnce()
	if buf.Len() != 0 {
		t.Fatalf("no record expected without a foreground app, got %d", buf.Len())
	}
}
