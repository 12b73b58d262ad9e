package inference

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/apperr"
	"github.com/ayusman/mudra/internal/feature"
)

// Oracle maps a feature vector to a probability distribution over the
// label vocabulary.
type Oracle interface {
	Predict(ctx context.Context, v feature.Vector) ([]float32, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, v feature.Vector) ([]float32, error)

// Predict calls f.
func (f OracleFunc) Predict(ctx context.Context, v feature.Vector) ([]float32, error) {
	return f(ctx, v)
}

// NetOracle runs a trained network through the OpenCV DNN module.
// Forward passes are serialized; a single instance is shared by every
// session.
type NetOracle struct {
	mu  sync.Mutex
	net gocv.Net
}

// LoadNetOracle reads the model artifact at modelPath. configPath is
// optional and only needed by frameworks that split weights and graph.
func LoadNetOracle(modelPath, configPath string) (*NetOracle, error) {
	const op = "inference.LoadNetOracle"

	if _, err := os.Stat(modelPath); err != nil {
		return nil, apperr.Wrap(apperr.KindStartup, op, "model artifact not readable", err)
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, apperr.New(apperr.KindStartup, op, fmt.Sprintf("could not load model %s", modelPath))
	}
	return &NetOracle{net: net}, nil
}

// Predict runs one forward pass. ctx is checked before the pass starts;
// an in-flight pass cannot be interrupted.
func (o *NetOracle) Predict(ctx context.Context, v feature.Vector) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blob := gocv.NewMatWithSize(1, feature.Size, gocv.MatTypeCV32F)
	defer blob.Close()
	for i, x := range v {
		blob.SetFloatAt(0, i, float32(x))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.net.SetInput(blob, "")
	out := o.net.Forward("")
	defer out.Close()

	if out.Empty() {
		return nil, fmt.Errorf("network produced no output")
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read network output: %w", err)
	}

	probs := make([]float32, len(data))
	copy(probs, data)
	return probs, nil
}

// Close releases the network.
func (o *NetOracle) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.net.Close()
}
