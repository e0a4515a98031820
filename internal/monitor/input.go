// Package monitor contains the ambient sensor adapters: keyboard and
// mouse volume, and foreground-window task weighting. The OS-level
// capture mechanisms (event taps, workspace APIs) sit behind small
// interfaces so the adapters stay testable and portable.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/loykin/deskpulse/internal/signal"
)

// EventCounts is the number of input events observed since the
// previous drain.
type EventCounts struct {
	Keyboard int
	Mouse    int
	Scroll   int
}

// Total sums all event classes.
func (c EventCounts) Total() int { return c.Keyboard + c.Mouse + c.Scroll }

// EventSource accumulates OS input events and hands them over in
// batches. Implementations must be safe for concurrent use: the OS
// callback thread increments while the monitor drains.
type EventSource interface {
	Drain() EventCounts
}

// InputMonitor periodically drains an EventSource and publishes the
// activity volume. Quiet polls publish nothing, matching the sparse
// record semantics (absence means "nothing to report").
type InputMonitor struct {
	buf      *signal.Buffer
	source   EventSource
	interval time.Duration
	log      *slog.Logger

	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewInputMonitor creates a monitor polling source every interval
// (floored at 100ms).
func NewInputMonitor(buf *signal.Buffer, source EventSource, interval time.Duration, log *slog.Logger) *InputMonitor {
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &InputMonitor{buf: buf, source: source, interval: interval, log: log}
}

// Start launches the polling loop.
func (m *InputMonitor) Start(ctx context.Context) {
	if m.started {
		return
	}
	m.started = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.loop(ctx)
}

// Stop cancels the loop and waits for it to unwind.
func (m *InputMonitor) Stop() {
	if !m.started {
		return
	}
	m.cancel()
	<-m.done
	m.started = false
}

func (m *InputMonitor) loop(ctx context.Context) {
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

func (m *InputMonitor) publishOnce() {
	counts := m.source.Drain()
	total := counts.Total()
	if total == 0 {
		return
	}
	m.log.Debug("input events drained",
		"keyboard", counts.Keyboard, "mouse", counts.Mouse, "scroll", counts.Scroll)
	m.buf.Append(signal.Record{
		Timestamp:   time.Now().UTC(),
		InputEvents: signal.F(float64(total)),
	})
}
