// Package fixture builds synthetic frames and payloads for tests.
package fixture

import (
	"image/color"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/frame"
)

// Frame returns a w×h BGR image filled with c. The caller must Close it.
func Frame(w, h int, c color.RGBA) gocv.Mat {
	mat := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0),
		h, w, gocv.MatTypeCV8UC3,
	)
	return mat
}

// Payload encodes a solid w×h frame as a data URL in the given format.
func Payload(tb testing.TB, w, h int, format frame.Format) string {
	tb.Helper()

	mat := Frame(w, h, color.RGBA{R: 40, G: 120, B: 200, A: 255})
	defer mat.Close()

	payload, err := frame.Encode(mat, format)
	if err != nil {
		tb.Fatalf("encode fixture frame: %v", err)
	}
	return payload
}

// JPEGPayload is Payload for a small JPEG frame.
func JPEGPayload(tb testing.TB) string {
	tb.Helper()
	return Payload(tb, 64, 48, frame.FormatJPEG)
}
