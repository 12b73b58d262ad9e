// Package detector finds hand landmarks in video frames.
package detector

import (
	"errors"
	"time"

	"gocv.io/x/gocv"
)

// ErrUnavailable means the landmark backend cannot be reached at all. A
// failure on one frame is reported with a different error.
var ErrUnavailable = errors.New("hand detector unavailable")

// Detector finds hands in RGB frames.
type Detector interface {
	// Detect returns the hands found in frame, or none. Hand order is not
	// stable between calls.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)
	Close() error
}

// Config configures the MediaPipe landmark service.
type Config struct {
	Python string // interpreter; empty prefers a local virtualenv
	Script string

	MaxHands        int
	MinConfidence   float64 // detection, 0..1
	MinTrackingConf float64 // tracking, 0..1

	// IdleTimeout stops the service after this long without frames. Zero
	// keeps it running.
	IdleTimeout time.Duration

	StartTimeout    time.Duration // wait for the ready marker; zero waits forever
	ResponseTimeout time.Duration // per frame; zero waits forever
}

// DefaultConfig matches the parameters the classifier was trained with.
func DefaultConfig() Config {
	return Config{
		Python:          "python3",
		Script:          "scripts/mediapipe_service.py",
		MaxHands:        2,
		MinConfidence:   0.7,
		MinTrackingConf: 0.5,
		IdleTimeout:     30 * time.Second,
		StartTimeout:    60 * time.Second,
		ResponseTimeout: 5 * time.Second,
	}
}
