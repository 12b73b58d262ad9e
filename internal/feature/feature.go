// Package feature turns a decoded frame into the fixed-length hand pose
// vector consumed by the classifier.
package feature

import (
	"errors"
	"log/slog"
	"sort"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/apperr"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/logging"
)

const (
	// MaxHands is the number of hands encoded into a Vector.
	MaxHands = 2
	// ValuesPerHand is 21 landmarks times (x, y, z).
	ValuesPerHand = detector.NumLandmarks * 3
	// Size is the length of every Vector.
	Size = MaxHands * ValuesPerHand
)

// Vector is the 126-value feature vector. Slots for missing hands are zero.
type Vector [Size]float64

// IsZero reports whether every component is exactly zero.
func (v Vector) IsZero() bool {
	return v == Vector{}
}

// Float32 returns the vector in the element type the model expects.
func (v Vector) Float32() []float32 {
	out := make([]float32, Size)
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Extractor runs the landmark detector and encodes its output.
type Extractor struct {
	detector detector.Detector
	logger   *slog.Logger
}

// NewExtractor creates an Extractor backed by det.
func NewExtractor(det detector.Detector, logger *slog.Logger) *Extractor {
	return &Extractor{
		detector: det,
		logger:   logging.OrDiscard(logger).With("component", "feature"),
	}
}

// Extract detects hands in a BGR image and returns their wrist-relative
// landmarks, left-most hand first. The image is not modified.
func (e *Extractor) Extract(img *gocv.Mat) (Vector, error) {
	if img == nil || img.Empty() {
		return Vector{}, apperr.New(apperr.KindExtraction, "feature.Extract", "empty image")
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	if err := gocv.CvtColor(*img, &rgb, gocv.ColorBGRToRGB); err != nil {
		return Vector{}, apperr.Wrap(apperr.KindExtraction, "feature.Extract", "convert to RGB", err)
	}

	hands, err := e.detector.Detect(&rgb)
	if err != nil {
		if errors.Is(err, detector.ErrUnavailable) {
			return Vector{}, apperr.WrapReason(apperr.KindExtraction, apperr.ReasonUnavailable,
				"feature.Extract", "landmark detector unavailable", err)
		}
		e.logger.Debug("detection failed, treating frame as empty", "error", err)
		hands = nil
	}

	return Encode(hands), nil
}

// Encode orders hands by wrist x, keeps the first MaxHands and writes their
// wrist-relative coordinates into a Vector.
func Encode(hands []detector.HandLandmarks) Vector {
	var v Vector
	if len(hands) == 0 {
		return v
	}

	ordered := make([]detector.HandLandmarks, len(hands))
	copy(ordered, hands)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Points[detector.Wrist].X < ordered[j].Points[detector.Wrist].X
	})
	if len(ordered) > MaxHands {
		ordered = ordered[:MaxHands]
	}

	for h, hand := range ordered {
		base := h * ValuesPerHand
		for i, p := range hand.WristRelative() {
			v[base+i*3] = p.X
			v[base+i*3+1] = p.Y
			v[base+i*3+2] = p.Z
		}
	}
	return v
}

// Hand returns the 63 values for hand slot i (0 or 1).
func (v Vector) Hand(i int) []float64 {
	return v[i*ValuesPerHand : (i+1)*ValuesPerHand]
}
