// Package detector provides hand detection interfaces and types for gesture recognition.
package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D represents a 3D point in image-relative coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns p - q.
func (p Point3D) Sub(q Point3D) Point3D {
	return Point3D{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// WristRelative translates every landmark so the wrist sits at the origin.
// The wrist itself always comes out as exactly (0,0,0).
func (h HandLandmarks) WristRelative() [NumLandmarks]Point3D {
	var out [NumLandmarks]Point3D
	wrist := h.Points[Wrist]
	for i, p := range h.Points {
		out[i] = p.Sub(wrist)
	}
	return out
}

// Translated returns a copy of h with every point shifted by (dx, dy, dz).
func (h HandLandmarks) Translated(dx, dy, dz float64) HandLandmarks {
	shifted := h
	for i := range shifted.Points {
		shifted.Points[i].X += dx
		shifted.Points[i].Y += dy
		shifted.Points[i].Z += dz
	}
	return shifted
}
