package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	activityScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "deskpulse",
			Subsystem: "engine",
			Name:      "activity_score",
			Help:      "Current activity score in [0,1].",
		},
	)
	activityState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "deskpulse",
			Subsystem: "engine",
			Name:      "activity_state",
			Help:      "Current activity state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
	seatedMinutes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "deskpulse",
			Subsystem: "engine",
			Name:      "seated_minutes",
			Help:      "Minutes of the current seated streak.",
		},
	)
	breakMinutes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "deskpulse",
			Subsystem: "engine",
			Name:      "break_minutes",
			Help:      "Minutes since the last detected activity.",
		},
	)
	notifications = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deskpulse",
			Subsystem: "reminder",
			Name:      "notifications_total",
			Help:      "Number of sedentary reminders fired.",
		},
	)
	visualProbes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deskpulse",
			Subsystem: "vision",
			Name:      "visual_probes_total",
			Help:      "Number of short camera probes triggered.",
		},
	)
	breaks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deskpulse",
			Subsystem: "engine",
			Name:      "breaks_total",
			Help:      "Number of transitions into the short-break state.",
		},
	)
	ticks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deskpulse",
			Subsystem: "engine",
			Name:      "ticks_total",
			Help:      "Number of engine recomputation ticks.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{activityScore, activityState, seatedMinutes, breakMinutes, notifications, visualProbes, breaks, ticks}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func SetScore(score float64) {
	if regOK.Load() {
		activityScore.Set(score)
	}
}

func SetState(state string, known []string) {
	if regOK.Load() {
		for _, s := range known {
			var v float64
			if s == state {
				v = 1
			}
			activityState.WithLabelValues(s).Set(v)
		}
	}
}

func SetSeatedMinutes(m float64) {
	if regOK.Load() {
		seatedMinutes.Set(m)
	}
}

func SetBreakMinutes(m float64) {
	if regOK.Load() {
		breakMinutes.Set(m)
	}
}

func IncNotification() {
	if regOK.Load() {
		notifications.Inc()
	}
}

func IncVisualProbe() {
	if regOK.Load() {
		visualProbes.Inc()
	}
}

func IncBreak() {
	if regOK.Load() {
		breaks.Inc()
	}
}

func IncTick() {
	if regOK.Load() {
		ticks.Inc()
	}
}
