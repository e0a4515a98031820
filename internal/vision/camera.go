package vision

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

const defaultDiffThreshold = 15.0

// CameraCapturer reads frames from a local camera via OpenCV and
// derives a presence confidence from frame differencing, optionally
// refined by an external pose estimator.
type CameraCapturer struct {
	mu        sync.Mutex
	cam       *gocv.VideoCapture
	prev      gocv.Mat
	hasPrev   bool
	threshold float64
	estimator PostureEstimator
}

// NewCameraCapturer opens camera deviceID. estimator may be nil.
func NewCameraCapturer(deviceID int, estimator PostureEstimator) (*CameraCapturer, error) {
	cam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", deviceID, err)
	}
	return &CameraCapturer{
		cam:       cam,
		prev:      gocv.NewMat(),
		threshold: defaultDiffThreshold,
		estimator: estimator,
	}, nil
}

// Capture grabs one frame and fuses diff presence with the pose
// estimate. The first frame after open only seeds the diff baseline.
func (c *CameraCapturer) Capture(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	img := gocv.NewMat()
	defer func() { _ = img.Close() }()
	if ok := c.cam.Read(&img); !ok || img.Empty() {
		return Sample{}, ErrNoFrame
	}

	gray := gocv.NewMat()
	defer func() { _ = gray.Close() }()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	diffScore := 0.0
	if c.hasPrev {
		diff := gocv.NewMat()
		gocv.AbsDiff(gray, c.prev, &diff)
		diffScore = diff.Mean().Val1
		_ = diff.Close()
	}
	gray.CopyTo(&c.prev)
	c.hasPrev = true

	var est *PostureEstimate
	if c.estimator != nil {
		if e, ok := c.estimator.Estimate(img.ToBytes(), img.Cols(), img.Rows()); ok {
			est = &e
		}
	}
	return fuseSample(diffScore, c.threshold, est), nil
}

// Close releases the camera and the estimator.
func (c *CameraCapturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.prev.Close()
	if c.estimator != nil {
		_ = c.estimator.Close()
	}
	return c.cam.Close()
}
