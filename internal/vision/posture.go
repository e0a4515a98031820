package vision

import "github.com/loykin/deskpulse/internal/signal"

// PostureEstimate is the numeric output of an external pose model.
type PostureEstimate struct {
	Present      bool
	Confidence   float64
	PostureScore float64
	PostureState string
}

// PostureEstimator abstracts the pose-model backend. deskpulse ships
// only StubEstimator; real backends plug in here.
type PostureEstimator interface {
	// Estimate runs the model on one BGR frame (raw bytes, row-major,
	// 3 channels). ok=false means the model produced nothing usable
	// and the caller should fall back to frame differencing.
	Estimate(frame []byte, width, height int) (est PostureEstimate, ok bool)
	Close() error
}

// StubEstimator is the built-in no-model backend: it always reports
// "nothing usable", leaving presence entirely to frame differencing.
type StubEstimator struct{}

func (StubEstimator) Estimate([]byte, int, int) (PostureEstimate, bool) {
	return PostureEstimate{}, false
}

func (StubEstimator) Close() error { return nil }

// fuseSample merges a frame-difference score with an optional pose
// estimate into the published Sample. The diff score is mean absolute
// luma difference against the previous frame; diffThreshold is the
// motion level considered "someone is there".
func fuseSample(diffScore, diffThreshold float64, est *PostureEstimate) Sample {
	if diffThreshold <= 0 {
		diffThreshold = 1
	}
	diffPresent := diffScore > diffThreshold
	diffConfidence := diffScore / (diffThreshold * 3)
	if diffConfidence > 1 {
		diffConfidence = 1
	}

	if est == nil {
		// No pose model at all: motion alone decides, but posture
		// stays untracked so the engine does not trust the score.
		s := Sample{Present: diffPresent, Confidence: diffConfidence}
		if diffPresent {
			s.PostureScore = 0.5
			s.PostureState = signal.PostureUntracked
		} else {
			s.PostureState = signal.PostureNoPose
		}
		return s
	}

	s := Sample{
		Present:      est.Present || diffPresent,
		Confidence:   est.Confidence,
		PostureScore: est.PostureScore,
		PostureState: est.PostureState,
	}
	if diffConfidence > s.Confidence {
		s.Confidence = diffConfidence
	}
	if !est.Present {
		s.PostureState = signal.PostureUntracked
		if diffPresent && s.PostureScore < 0.2 {
			// Motion without a tracked pose: still likely a person.
			s.PostureScore = 0.2
		}
	}
	return s
}
