package detector

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/logging"
)

// MediaPipeDetector runs hand landmark detection in a Python MediaPipe
// process. The process starts on Start or the first frame and stops after
// IdleTimeout without frames. It is shared by every caller, so requests
// are serialized.
type MediaPipeDetector struct {
	config Config
	script string
	logger *slog.Logger

	mu       sync.Mutex
	svc      *service
	lastUsed time.Time
	idle     *time.Timer
}

// NewMediaPipeDetector resolves the service script and interpreter. It
// fails when the script cannot be found; the process itself is not
// started yet.
func NewMediaPipeDetector(config Config, logger *slog.Logger) (*MediaPipeDetector, error) {
	script := resolveScript(config.Script)
	if script == "" {
		return nil, fmt.Errorf("mediapipe service script %q not found", config.Script)
	}
	if config.Python == "" {
		config.Python = resolvePython()
	}

	return &MediaPipeDetector{
		config: config,
		script: script,
		logger: logging.OrDiscard(logger).With("component", "mediapipe"),
	}, nil
}

// Start launches the service now instead of on the first frame, so a
// broken interpreter or missing MediaPipe install is reported at startup.
// A service stopped later for idleness is restarted by Detect.
func (d *MediaPipeDetector) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.svc != nil {
		return nil
	}
	if err := d.start(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	d.touch()
	return nil
}

// Detect expects an RGB frame.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.svc == nil {
		if err := d.start(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	line, err := d.svc.roundTrip(frame.Rows(), frame.Cols(), frame.ToBytes(), d.config.ResponseTimeout)
	if err != nil {
		d.logger.Warn("mediapipe service stopped responding", "error", err)
		d.stop()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	d.touch()
	return parseResponse(line)
}

func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stop()
}

func (d *MediaPipeDetector) start() error {
	svc, err := startService(d.config.Python, d.script, []string{
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	}, os.Stderr, d.config.StartTimeout)
	if err != nil {
		return err
	}

	d.svc = svc
	d.logger.Info("mediapipe service started", "pid", svc.pid(), "script", d.script)
	return nil
}

func (d *MediaPipeDetector) stop() error {
	if d.idle != nil {
		d.idle.Stop()
		d.idle = nil
	}
	if d.svc == nil {
		return nil
	}
	err := d.svc.stop()
	d.svc = nil
	return err
}

// touch records activity and rearms the idle timer.
func (d *MediaPipeDetector) touch() {
	d.lastUsed = time.Now()
	if d.config.IdleTimeout <= 0 {
		return
	}
	if d.idle != nil {
		d.idle.Stop()
	}
	d.idle = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.svc == nil || time.Since(d.lastUsed) < d.config.IdleTimeout {
			return
		}
		d.logger.Info("stopping idle mediapipe service")
		d.stop()
	})
}

// resolveScript finds configured as given, next to the binary, or under
// ~/.mudra, and returns an absolute path.
func resolveScript(configured string) string {
	if configured == "" {
		return ""
	}
	candidates := []string{configured}
	if !filepath.IsAbs(configured) {
		candidates = append(candidates,
			filepath.Join("..", configured),
			filepath.Join(executableDir(), configured),
			filepath.Join(os.Getenv("HOME"), ".mudra", configured),
		)
	}
	return firstFile(candidates)
}

// resolvePython prefers a project virtualenv over the system python3.
func resolvePython() string {
	venv := firstFile([]string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(executableDir(), "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".mudra/venv/bin/python"),
	})
	if venv == "" {
		return "python3"
	}
	return venv
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}

func firstFile(paths []string) string {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}
