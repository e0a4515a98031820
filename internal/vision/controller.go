package vision

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/deskpulse/internal/signal"
)

// Prober is the controller's view of the adapter.
type Prober interface {
	Probe(ctx context.Context, duration, interval time.Duration) error
}

// ControllerConfig tunes the orchestration-level probe rate limiter.
// The engine has its own probe debounce; this one fires on a distinct
// trigger, the "ambiguous" band of break durations where ambient
// signals cannot tell a short break from an absent sensor.
type ControllerConfig struct {
	Ambiguous      time.Duration // lower edge of the interesting band
	BreakReset     time.Duration // upper edge; past it the break is already classified
	ProbeDuration  time.Duration
	ProbeInterval  time.Duration
	Cooldown       time.Duration
	ConfidenceHold float64 // at or above this, no probe is needed
}

// DefaultControllerConfig mirrors the production tuning: probe inside
// the 60s..break_reset band, 3-second bursts, 2-minute cooldown.
func DefaultControllerConfig(breakReset time.Duration, confidenceHold float64) ControllerConfig {
	return ControllerConfig{
		Ambiguous:      60 * time.Second,
		BreakReset:     breakReset,
		ProbeDuration:  3 * time.Second,
		ProbeInterval:  500 * time.Millisecond,
		Cooldown:       120 * time.Second,
		ConfidenceHold: confidenceHold,
	}
}

// Controller rate-limits active camera sampling. At most one probe
// burst is in flight at a time; adapter failures are logged and
// swallowed so hardware trouble never reaches the tick loop.
type Controller struct {
	adapter Prober
	cfg     ControllerConfig
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	lastProbeAt time.Time
	inFlight    bool
}

// NewController creates a Controller. adapter may be nil, in which
// case Update is a no-op (vision disabled).
func NewController(adapter Prober, cfg ControllerConfig, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{adapter: adapter, cfg: cfg, log: log, ctx: ctx, cancel: cancel}
}

// Update considers one tick's worth of ambient state and launches a
// probe burst when the break duration sits in the ambiguous band and
// vision cannot already vouch for the user.
func (c *Controller) Update(breakMinutes, presenceConfidence float64, postureState string, now time.Time) {
	if c.adapter == nil {
		return
	}
	breakDur := time.Duration(breakMinutes * float64(time.Minute))
	if breakDur < c.cfg.Ambiguous {
		return
	}
	if breakDur >= c.cfg.BreakReset {
		return
	}
	if presenceConfidence >= c.cfg.ConfidenceHold && postureState != signal.PostureUntracked {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lastProbeAt.IsZero() && now.Sub(c.lastProbeAt) < c.cfg.Cooldown {
		return
	}
	if c.inFlight {
		return
	}
	c.lastProbeAt = now
	c.inFlight = true
	c.wg.Add(1)
	go c.runProbe()
}

func (c *Controller) runProbe() {
	defer c.wg.Done()
	err := c.adapter.Probe(c.ctx, c.cfg.ProbeDuration, c.cfg.ProbeInterval)
	if err != nil && c.ctx.Err() == nil {
		c.log.Warn("visual probe failed", "err", err)
	}
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

// Close cancels any in-flight probe and waits for it to unwind. No
// background work survives the call.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}
