// Package session runs the per-connection frame pipeline and tracks live
// sessions.
package session

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/ayusman/mudra/internal/apperr"
	"github.com/ayusman/mudra/internal/feature"
	"github.com/ayusman/mudra/internal/frame"
	"github.com/ayusman/mudra/internal/inference"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/protocol"
	"github.com/ayusman/mudra/internal/smooth"
)

// Deps are the shared, read-only collaborators every pipeline uses.
type Deps struct {
	Decoder    *frame.Decoder
	Extractor  *feature.Extractor
	Gateway    *inference.Gateway
	WindowSize int
}

// Stats counts what happened to a session's frames.
type Stats struct {
	Received  uint64 `json:"received"`
	Processed uint64 `json:"processed"`
	Skipped   uint64 `json:"skipped"`
	Dropped   uint64 `json:"dropped"`
	Emitted   uint64 `json:"emitted"`
}

type counters struct {
	received  atomic.Uint64
	processed atomic.Uint64
	skipped   atomic.Uint64
	dropped   atomic.Uint64
	emitted   atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Received:  c.received.Load(),
		Processed: c.processed.Load(),
		Skipped:   c.skipped.Load(),
		Dropped:   c.dropped.Load(),
		Emitted:   c.emitted.Load(),
	}
}

// Pipeline turns one frame payload into at most one result. It owns the
// session's smoothing window and must only be driven by one goroutine.
type Pipeline struct {
	deps   Deps
	window *smooth.Window
	stats  *counters
	logger *slog.Logger
}

// NewPipeline creates a Pipeline with an empty smoothing window.
func NewPipeline(deps Deps, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		deps:   deps,
		window: smooth.New(deps.WindowSize),
		stats:  &counters{},
		logger: logging.OrDiscard(logger),
	}
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return p.stats.snapshot()
}

// Process runs decode, extraction, classification and smoothing. emit is
// false when the frame produced nothing to send; failures are logged and
// counted, never returned.
func (p *Pipeline) Process(ctx context.Context, payload string) (result protocol.Result, emit bool) {
	if payload == "" {
		return protocol.Result{}, false
	}
	p.stats.processed.Add(1)

	img, err := p.deps.Decoder.Decode(payload)
	if err != nil {
		p.skip("decode", err)
		return protocol.Result{}, false
	}
	vec, err := p.deps.Extractor.Extract(img)
	img.Close()
	if err != nil {
		p.skip("extract", err)
		return protocol.Result{}, false
	}

	pred, err := p.deps.Gateway.Classify(ctx, vec)
	if err != nil {
		p.skip("classify", err)
		return protocol.Result{}, false
	}

	if pred.NoHand {
		return protocol.Result{Label: pred.Label, Confidence: inference.FormatConfidence(pred)}, true
	}

	label := p.window.Push(pred.Label)
	return protocol.Result{Label: label, Confidence: inference.FormatConfidence(pred)}, true
}

func (p *Pipeline) skip(stage string, err error) {
	p.stats.skipped.Add(1)

	level := slog.LevelWarn
	if apperr.IsKind(err, apperr.KindDecode) {
		level = slog.LevelDebug
	}
	p.logger.Log(context.Background(), level, "frame skipped",
		"stage", stage,
		"kind", apperr.KindOf(err),
		"reason", apperr.ReasonOf(err),
		"error", err)
}
