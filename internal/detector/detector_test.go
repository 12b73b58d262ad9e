package detector

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestHandLandmarks_WristRelative(t *testing.T) {
	t.Run("wrist triple is exactly zero", func(t *testing.T) {
		hand := HandLandmarks{Handedness: "Right", Score: 0.9}
		hand.Points[Wrist] = Point3D{X: 0.3141, Y: 0.2718, Z: -0.0123}
		for i := 1; i < NumLandmarks; i++ {
			hand.Points[i] = Point3D{
				X: 0.3141 + float64(i)*0.01,
				Y: 0.2718 - float64(i)*0.02,
				Z: -0.0123 + float64(i)*0.001,
			}
		}

		rel := hand.WristRelative()

		if rel[Wrist] != (Point3D{}) {
			t.Errorf("expected wrist at origin, got %+v", rel[Wrist])
		}
	})

	t.Run("translation invariant", func(t *testing.T) {
		hand := OpenPalmLandmarks()
		moved := hand.Translated(0.25, -0.1, 0.05)

		a := hand.WristRelative()
		b := moved.WristRelative()

		for i := 0; i < NumLandmarks; i++ {
			d := a[i].Sub(b[i])
			if abs(d.X) > 1e-12 || abs(d.Y) > 1e-12 || abs(d.Z) > 1e-12 {
				t.Fatalf("landmark %d differs after translation: %+v vs %+v", i, a[i], b[i])
			}
		}
	})

	t.Run("does not modify the receiver", func(t *testing.T) {
		hand := ThumbsUpLandmarks()
		before := hand.Points
		_ = hand.WristRelative()
		if hand.Points != before {
			t.Error("WristRelative must not mutate the hand")
		}
	})
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns a copy of configured hands", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands([]HandLandmarks{ThumbsUpLandmarks(), OpenPalmLandmarks()})

		hands, err := mock.Detect(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hands) != 2 {
			t.Fatalf("expected 2 hands, got %d", len(hands))
		}

		hands[0], hands[1] = hands[1], hands[0]
		again, _ := mock.Detect(nil)
		if again[0].Points != ThumbsUpLandmarks().Points {
			t.Error("caller reordering leaked into the mock")
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("counts calls", func(t *testing.T) {
		mock := NewMockDetector()
		for i := 0; i < 3; i++ {
			mock.Detect(nil)
		}
		if mock.Calls() != 3 {
			t.Errorf("Calls() = %d, want 3", mock.Calls())
		}
	})

	t.Run("serves queued results first", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands([]HandLandmarks{OpenPalmLandmarks()})
		mock.Queue(nil, []HandLandmarks{ThumbsUpLandmarks(), ThumbsUpLandmarks()})

		want := []int{0, 2, 1, 1}
		for i, n := range want {
			hands, err := mock.Detect(nil)
			if err != nil {
				t.Fatalf("call %d: unexpected error: %v", i, err)
			}
			if len(hands) != n {
				t.Errorf("call %d: got %d hands, want %d", i, len(hands), n)
			}
		}
	})

	t.Run("records Close", func(t *testing.T) {
		mock := NewMockDetector()
		mock.Close()
		if !mock.Closed() {
			t.Error("Closed() = false after Close")
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestFixtures(t *testing.T) {
	thumbs := ThumbsUpLandmarks()
	palm := OpenPalmLandmarks()

	if thumbs.Points[ThumbTip].Y >= thumbs.Points[ThumbMCP].Y {
		t.Error("thumbs up: thumb tip should be above thumb MCP (lower Y value)")
	}
	if palm.Points[MiddleMCP].Y-palm.Points[MiddleTip].Y < 0.2 {
		t.Error("open palm: middle finger should be extended")
	}
	if thumbs.WristRelative() == palm.WristRelative() {
		t.Error("fixtures should describe different poses")
	}
}

func TestParseResponse(t *testing.T) {
	full := `{"handedness":"Left","score":0.88,"points":[` + pointsJSON(NumLandmarks) + `]}`
	partial := `{"handedness":"Right","score":0.5,"points":[` + pointsJSON(5) + `]}`

	tests := []struct {
		name      string
		line      string
		wantHands int
		wantErr   bool
	}{
		{"no hands", `{"hands":[]}` + "\n", 0, false},
		{"one hand", `{"hands":[` + full + `]}` + "\n", 1, false},
		{"partial hand dropped", `{"hands":[` + partial + `,` + full + `]}`, 1, false},
		{"service error", `{"error":"bad frame"}`, 0, true},
		{"garbage", `not json`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hands, err := parseResponse([]byte(tt.line))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(hands) != tt.wantHands {
				t.Errorf("got %d hands, want %d", len(hands), tt.wantHands)
			}
		})
	}

	hands, _ := parseResponse([]byte(`{"hands":[` + full + `]}`))
	lm := hands[0]
	if lm.Handedness != "Left" || lm.Score != 0.88 {
		t.Errorf("metadata not preserved: %+v", lm)
	}
	if lm.Points[PinkyTip].X != float64(PinkyTip) {
		t.Errorf("pinky tip X = %f, want %d", lm.Points[PinkyTip].X, PinkyTip)
	}
}

func TestResolvePython(t *testing.T) {
	if got := resolvePython(); got == "" {
		t.Error("resolvePython() returned empty interpreter")
	}
}

func TestNewMediaPipeDetector(t *testing.T) {
	t.Run("missing script fails fast", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Script = filepath.Join(t.TempDir(), "absent.py")

		if _, err := NewMediaPipeDetector(cfg, nil); err == nil {
			t.Error("expected error for missing script")
		}
	})

	t.Run("existing script resolves to absolute path", func(t *testing.T) {
		script := filepath.Join(t.TempDir(), "svc.py")
		if err := os.WriteFile(script, []byte("print('ok')\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg := DefaultConfig()
		cfg.Script = script

		d, err := NewMediaPipeDetector(cfg, nil)
		if err != nil {
			t.Fatalf("NewMediaPipeDetector() error = %v", err)
		}
		if !filepath.IsAbs(d.script) {
			t.Errorf("script path %q is not absolute", d.script)
		}
		if err := d.Close(); err != nil {
			t.Errorf("Close() on unstarted detector = %v", err)
		}
	})
}

func pointsJSON(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		b, _ := json.Marshal(Point3D{X: float64(i), Y: float64(i) / 10, Z: 0})
		s += string(b)
	}
	return s
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
