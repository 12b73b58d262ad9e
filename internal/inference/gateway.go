// Package inference classifies feature vectors against a trained model.
package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ayusman/mudra/internal/apperr"
	"github.com/ayusman/mudra/internal/feature"
)

// NoHandLabel is emitted when a frame contains no hands.
const NoHandLabel = "No Hand Detected"

// Prediction is the classification of a single frame.
type Prediction struct {
	Label      string
	Confidence float64
	NoHand     bool
}

// NoHand is the sentinel prediction for an all-zero vector.
var NoHand = Prediction{Label: NoHandLabel, Confidence: 0, NoHand: true}

// FormatConfidence renders c (0..1) as a percentage with one decimal.
// The no-hand sentinel renders as "0%".
func FormatConfidence(p Prediction) string {
	if p.NoHand {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", p.Confidence*100)
}

// Gateway wraps an Oracle with the label vocabulary.
type Gateway struct {
	oracle  Oracle
	labels  []string
	timeout time.Duration
}

// NewGateway creates a Gateway. A zero timeout disables the per-call
// deadline.
func NewGateway(oracle Oracle, labels []string, timeout time.Duration) *Gateway {
	return &Gateway{
		oracle:  oracle,
		labels:  labels,
		timeout: timeout,
	}
}

// Labels returns the vocabulary size.
func (g *Gateway) Labels() int {
	return len(g.labels)
}

// Classify returns the most probable label for v. All-zero vectors return
// NoHand without consulting the oracle.
func (g *Gateway) Classify(ctx context.Context, v feature.Vector) (Prediction, error) {
	const op = "inference.Classify"

	if v.IsZero() {
		return NoHand, nil
	}

	probs, err := g.predict(ctx, v)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Prediction{}, apperr.WrapReason(apperr.KindInference, apperr.ReasonTimeout, op, "oracle deadline exceeded", err)
		}
		return Prediction{}, apperr.Wrap(apperr.KindInference, op, "oracle failed", err)
	}

	if len(probs) == 0 || len(probs) != len(g.labels) {
		return Prediction{}, apperr.New(apperr.KindInference, op,
			fmt.Sprintf("distribution has %d entries, vocabulary has %d", len(probs), len(g.labels))).
			WithReason(apperr.ReasonShapeMismatch)
	}

	if i, ok := validDistribution(probs); !ok {
		return Prediction{}, apperr.New(apperr.KindInference, op,
			fmt.Sprintf("probability %d is %v", i, probs[i])).
			WithReason(apperr.ReasonBadDistribution)
	}

	best := ArgMax(probs)
	return Prediction{
		Label:      g.labels[best],
		Confidence: float64(probs[best]),
	}, nil
}

func (g *Gateway) predict(ctx context.Context, v feature.Vector) ([]float32, error) {
	if g.timeout <= 0 {
		return g.oracle.Predict(ctx, v)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		probs []float32
		err   error
	}
	done := make(chan result, 1)
	go func() {
		probs, err := g.oracle.Predict(ctx, v)
		done <- result{probs, err}
	}()

	select {
	case r := <-done:
		return r.probs, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// probabilityTolerance absorbs float32 rounding in a softmax output.
const probabilityTolerance = 1e-4

// validDistribution reports the first entry that is not a finite value in
// [0, 1].
func validDistribution(probs []float32) (int, bool) {
	for i, p := range probs {
		f := float64(p)
		if math.IsNaN(f) || math.IsInf(f, 0) || f < -probabilityTolerance || f > 1+probabilityTolerance {
			return i, false
		}
	}
	return 0, true
}

// ArgMax returns the index of the largest value. Ties resolve to the
// lowest index.
func ArgMax(values []float32) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
