package app

import (
	"errors"
	"io"
	"log/slog"

	"github.com/ayusman/mudra/internal/apperr"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/inference"
	"github.com/ayusman/mudra/internal/logging"
)

// Models holds the loaded, read-only collaborators shared by every
// session.
type Models struct {
	Detector detector.Detector
	Oracle   inference.Oracle
	Labels   []string
}

// LoadModels loads the label vocabulary, starts the landmark detector and
// loads the classifier. Any failure is a startup error.
func LoadModels(cfg *config.Config, logger *slog.Logger) (*Models, error) {
	logger = logging.OrDiscard(logger)

	labels, err := inference.LoadVocabulary(cfg.Models.LabelsPath)
	if err != nil {
		return nil, err
	}

	det, err := StartDetector(cfg, logger)
	if err != nil {
		return nil, err
	}

	oracle, err := inference.LoadNetOracle(cfg.Models.ModelPath, cfg.Models.ConfigPath)
	if err != nil {
		det.Close()
		return nil, err
	}

	logger.Info("models loaded",
		"model", cfg.Models.ModelPath,
		"labels", len(labels),
		"detector", cfg.Detector.Script)

	return &Models{
		Detector: det,
		Oracle:   oracle,
		Labels:   labels,
	}, nil
}

// StartDetector creates the MediaPipe detector and waits for its service to
// come up once.
func StartDetector(cfg *config.Config, logger *slog.Logger) (*detector.MediaPipeDetector, error) {
	det, err := detector.NewMediaPipeDetector(DetectorConfig(cfg), logger)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStartup, "app.StartDetector", "hand detector", err)
	}
	if err := det.Start(); err != nil {
		det.Close()
		return nil, apperr.Wrap(apperr.KindStartup, "app.StartDetector", "hand detector", err)
	}
	return det, nil
}

// DetectorConfig maps the detector section of cfg.
func DetectorConfig(cfg *config.Config) detector.Config {
	return detector.Config{
		Python:          cfg.Detector.Python,
		Script:          cfg.Detector.Script,
		MaxHands:        cfg.Detector.MaxHands,
		MinConfidence:   cfg.Detector.MinConfidence,
		MinTrackingConf: cfg.Detector.MinTrackingConfidence,
		IdleTimeout:     cfg.Detector.IdleTimeout,
		StartTimeout:    cfg.Detector.StartTimeout,
		ResponseTimeout: cfg.Detector.ResponseTimeout,
	}
}

// Close releases the detector and, when it holds resources, the oracle.
func (m *Models) Close() error {
	var errs []error
	if m.Detector != nil {
		errs = append(errs, m.Detector.Close())
	}
	if c, ok := m.Oracle.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
