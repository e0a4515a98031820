package vision

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/loykin/deskpulse/internal/signal"
)

// SimulatedCapturer synthesizes a slowly drifting presence signal for
// development machines without a usable camera.
type SimulatedCapturer struct {
	mu    sync.Mutex
	phase float64
	rng   *rand.Rand
}

// NewSimulatedCapturer creates a capturer seeded with seed (0 for a
// fixed default, handy in tests).
func NewSimulatedCapturer(seed int64) *SimulatedCapturer {
	if seed == 0 {
		seed = 1
	}
	return &SimulatedCapturer{rng: rand.New(rand.NewSource(seed))}
}

func (s *SimulatedCapturer) Capture(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	presenceChance := 0.85 + 0.1*math.Sin(s.phase)
	s.phase += 0.3
	present := s.rng.Float64() < presenceChance

	if !present {
		return Sample{
			Present:      false,
			Confidence:   0.1 + 0.3*s.rng.Float64(),
			PostureScore: 0,
			PostureState: signal.PostureAway,
		}, nil
	}
	posture := s.rng.NormFloat64()*0.1 + 0.8
	if posture < 0.2 {
		posture = 0.2
	}
	if posture > 1 {
		posture = 1
	}
	state := signal.PostureSlouch
	if posture > 0.7 {
		state = signal.PostureUpright
	}
	return Sample{
		Present:      true,
		Confidence:   0.7 + 0.25*s.rng.Float64(),
		PostureScore: posture,
		PostureState: state,
	}, nil
}

func (s *SimulatedCapturer) Close() error { return nil }
