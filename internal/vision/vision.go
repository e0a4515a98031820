// Package vision feeds camera-derived presence and posture signals
// into the shared buffer. The pose model itself is external; this
// package only fuses its numeric output with a cheap frame-difference
// presence estimate and schedules when the camera is worth its cost.
package vision

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/loykin/deskpulse/internal/signal"
)

// Sample is one detection's worth of output, normalized to [0,1].
type Sample struct {
	Present      bool
	Confidence   float64
	PostureScore float64
	PostureState string
}

// Capturer produces one Sample per call. Implementations own the
// camera (or synthesize data) and must be safe for sequential use
// from the adapter's loop and probe bursts.
type Capturer interface {
	Capture(ctx context.Context) (Sample, error)
	Close() error
}

// ErrNoFrame is returned by capturers when the device yielded nothing
// usable this round. The adapter skips the publish and moves on.
var ErrNoFrame = errors.New("vision: no frame available")

// Adapter runs a passive low-rate capture loop and serves bounded
// active probe bursts, publishing every sample into the buffer.
type Adapter struct {
	buf      *signal.Buffer
	cap      Capturer
	interval time.Duration
	log      *slog.Logger

	mu      sync.Mutex // serializes passive loop vs probe bursts
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewAdapter wires a capturer to the buffer. interval is the passive
// capture cadence, floored at one second.
func NewAdapter(buf *signal.Buffer, c Capturer, interval time.Duration, log *slog.Logger) *Adapter {
	if interval < time.Second {
		interval = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{buf: buf, cap: c, interval: interval, log: log}
}

// Start launches the passive capture loop. Calling Start twice is a
// no-op.
func (a *Adapter) Start(ctx context.Context) {
	if a.started {
		return
	}
	a.started = true
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	go a.loop(ctx)
}

// Stop cancels the loop, waits for it to unwind, and releases the
// capturer.
func (a *Adapter) Stop() {
	if a.started {
		a.cancel()
		<-a.done
		a.started = false
	}
	if err := a.cap.Close(); err != nil {
		a.log.Debug("vision capturer close failed", "err", err)
	}
}

func (a *Adapter) loop(ctx context.Context) {
	defer close(a.done)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.captureOnce(ctx)
		}
	}
}

// Probe performs a bounded-duration active sampling burst, publishing
// each sample. It returns the first capture error; callers treat any
// error as "probe produced nothing" and must not crash on it.
func (a *Adapter) Probe(ctx context.Context, duration, interval time.Duration) error {
	if duration < 100*time.Millisecond {
		duration = 100 * time.Millisecond
	}
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	deadline := time.Now().Add(duration)
	for {
		sample, err := a.cap.Capture(ctx)
		if err != nil {
			if errors.Is(err, ErrNoFrame) {
				return nil
			}
			return err
		}
		a.publish(sample)
		if !time.Now().Before(deadline) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (a *Adapter) captureOnce(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sample, err := a.cap.Capture(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoFrame) {
			a.log.Debug("vision capture failed", "err", err)
		}
		return
	}
	a.publish(sample)
}

func (a *Adapter) publish(s Sample) {
	a.buf.Append(signal.Record{
		Timestamp:          time.Now().UTC(),
		PresenceConfidence: signal.F(clamp01(s.Confidence)),
		PostureScore:       signal.F(clamp01(s.PostureScore)),
		PostureState:       s.PostureState,
		Present:            signal.B(s.Present),
	})
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), 1)
}
