// Package capture reads webcam frames for the streaming client and decides
// how often they are worth sending.
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/apperr"
)

const (
	DefaultFPS    = IdleFPS
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	ErrCameraNotOpen = errors.New("camera is not open")
	ErrReadFailed    = errors.New("camera returned no frame")
)

// Camera is a frame source. Every frame returned by ReadFrame is owned by
// the caller.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// Options configures a Webcam.
type Options struct {
	DeviceID int
	Width    int
	Height   int
	FPS      int

	// Mirror flips frames horizontally so signs arrive the way the signer
	// sees them on screen.
	Mirror bool
}

// DefaultOptions returns mirrored 640x480 capture from device 0.
func DefaultOptions() Options {
	return Options{
		Width:  DefaultWidth,
		Height: DefaultHeight,
		FPS:    DefaultFPS,
		Mirror: true,
	}
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.FPS <= 0 {
		o.FPS = DefaultFPS
	}
	return o
}

// Webcam captures from a local video device.
type Webcam struct {
	opts Options

	mu     sync.Mutex
	device *gocv.VideoCapture
	fps    int
	frames uint64
}

// NewCamera returns a Webcam for opts. Zero sizes and rates use the defaults.
func NewCamera(opts Options) *Webcam {
	opts = opts.withDefaults()
	return &Webcam{opts: opts, fps: opts.FPS}
}

// Open starts the device. Opening an open camera is a no-op.
func (w *Webcam) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.device != nil {
		return nil
	}

	device, err := gocv.OpenVideoCapture(w.opts.DeviceID)
	if err != nil {
		return apperr.Wrap(apperr.KindStartup, "capture.Open", fmt.Sprintf("open camera %d", w.opts.DeviceID), err)
	}
	device.Set(gocv.VideoCaptureFrameWidth, float64(w.opts.Width))
	device.Set(gocv.VideoCaptureFrameHeight, float64(w.opts.Height))
	device.Set(gocv.VideoCaptureFPS, float64(w.fps))

	w.device = device
	return nil
}

// Close releases the device.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.device == nil {
		return nil
	}
	err := w.device.Close()
	w.device = nil
	return err
}

// ReadFrame grabs the next BGR frame, mirrored when configured.
func (w *Webcam) ReadFrame() (*gocv.Mat, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.device == nil {
		return nil, ErrCameraNotOpen
	}

	img := gocv.NewMat()
	if !w.device.Read(&img) || img.Empty() {
		img.Close()
		return nil, ErrReadFailed
	}
	if w.opts.Mirror {
		gocv.Flip(img, &img, 1)
	}

	w.frames++
	return &img, nil
}

// SetFPS changes the requested capture rate. Non-positive rates are ignored.
func (w *Webcam) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.fps = fps
	if w.device != nil {
		w.device.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (w *Webcam) FPS() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fps
}

func (w *Webcam) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.device != nil
}

// Frames returns how many frames were read since creation.
func (w *Webcam) Frames() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}
