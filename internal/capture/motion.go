package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	// AnalysisWidth is the width frames are shrunk to before comparison.
	AnalysisWidth = 320

	blurKernel = 21
	pixelDelta = 25
)

// MotionDetector compares each frame with the previous one and reports the
// share of pixels that changed.
type MotionDetector struct {
	mu        sync.Mutex
	threshold float64
	baseline  gocv.Mat
	primed    bool
}

// NewMotionDetector creates a detector that reports motion when more than
// threshold percent of pixels change between frames.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{threshold: threshold, baseline: gocv.NewMat()}
}

// Detect reports whether frame moved relative to the previous frame and the
// percentage of changed pixels. The first frame, and any frame whose size
// differs from its predecessor, only sets the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	if frame == nil || frame.Empty() {
		return false, 0
	}

	current := prepare(*frame)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.primed || m.baseline.Rows() != current.Rows() || m.baseline.Cols() != current.Cols() {
		m.swap(current)
		return false, 0
	}

	changed := changedPercent(m.baseline, current)
	m.swap(current)
	return changed > m.threshold, changed
}

// swap replaces the baseline with img and takes ownership of it.
func (m *MotionDetector) swap(img gocv.Mat) {
	m.baseline.Close()
	m.baseline = img
	m.primed = true
}

// prepare returns a blurred grayscale copy of frame no wider than
// AnalysisWidth.
func prepare(frame gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if frame.Channels() > 1 {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	if gray.Cols() > AnalysisWidth {
		small := gocv.NewMat()
		size := image.Pt(AnalysisWidth, gray.Rows()*AnalysisWidth/gray.Cols())
		gocv.Resize(gray, &small, size, 0, 0, gocv.InterpolationArea)
		gray.Close()
		gray = small
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Pt(blurKernel, blurKernel), 0, 0, gocv.BorderDefault)
	gray.Close()
	return blurred
}

func changedPercent(a, b gocv.Mat) float64 {
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a, b, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, pixelDelta, 255, gocv.ThresholdBinary)

	return float64(gocv.CountNonZero(mask)) / float64(mask.Rows()*mask.Cols()) * 100
}

// Reset forgets the baseline.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseline.Close()
	m.baseline = gocv.NewMat()
	m.primed = false
}

// Close releases the baseline. The detector may be reused afterwards.
func (m *MotionDetector) Close() {
	m.Reset()
}

// SetThreshold changes the motion threshold. Non-positive values are
// ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}

// Threshold returns the current motion threshold.
func (m *MotionDetector) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}
