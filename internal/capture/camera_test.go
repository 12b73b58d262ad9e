package capture

import (
	"errors"
	"testing"

	"github.com/ayusman/mudra/internal/apperr"
)

func TestNewCamera_Defaults(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		wantWidth  int
		wantHeight int
		wantFPS    int
		wantMirror bool
	}{
		{"zero options", Options{}, DefaultWidth, DefaultHeight, DefaultFPS, false},
		{"default options", DefaultOptions(), DefaultWidth, DefaultHeight, DefaultFPS, true},
		{"explicit", Options{DeviceID: 2, Width: 1280, Height: 720, FPS: 30}, 1280, 720, 30, false},
		{"negative values", Options{Width: -1, Height: -1, FPS: -1}, DefaultWidth, DefaultHeight, DefaultFPS, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.opts)

			if cam.opts.Width != tt.wantWidth || cam.opts.Height != tt.wantHeight {
				t.Errorf("size = %dx%d, want %dx%d", cam.opts.Width, cam.opts.Height, tt.wantWidth, tt.wantHeight)
			}
			if cam.FPS() != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", cam.FPS(), tt.wantFPS)
			}
			if cam.opts.Mirror != tt.wantMirror {
				t.Errorf("Mirror = %v, want %v", cam.opts.Mirror, tt.wantMirror)
			}
			if cam.IsOpen() {
				t.Error("camera open before Open()")
			}
		})
	}
}

func TestWebcam_SetFPSIgnoresNonPositive(t *testing.T) {
	cam := NewCamera(DefaultOptions())

	for _, fps := range []int{12, 0, -3} {
		cam.SetFPS(fps)
	}
	if cam.FPS() != 12 {
		t.Errorf("FPS() = %d, want 12", cam.FPS())
	}
}

func TestWebcam_ClosedCamera(t *testing.T) {
	cam := NewCamera(DefaultOptions())

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
	if err := cam.Close(); err != nil {
		t.Errorf("Close() on closed camera = %v", err)
	}
	if cam.Frames() != 0 {
		t.Errorf("Frames() = %d, want 0", cam.Frames())
	}
}

func TestWebcam_Device(t *testing.T) {
	if testing.Short() {
		t.Skip("needs a video device")
	}

	cam := NewCamera(DefaultOptions())
	if err := cam.Open(); err != nil {
		if !apperr.IsKind(err, apperr.KindStartup) {
			t.Errorf("Open() error kind = %v, want startup", apperr.KindOf(err))
		}
		t.Skipf("no camera: %v", err)
	}
	defer cam.Close()

	img, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	defer img.Close()

	if img.Empty() || img.Channels() != 3 {
		t.Errorf("unexpected frame: empty=%v channels=%d", img.Empty(), img.Channels())
	}
	if cam.Frames() != 1 {
		t.Errorf("Frames() = %d, want 1", cam.Frames())
	}
}
