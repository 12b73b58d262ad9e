package frame

import (
	"encoding/base64"
	"fmt"
	"strings"

	"gocv.io/x/gocv"
)

// Format is an output raster format for Encode.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

// Encode renders img as a data URL payload ("data:image/<fmt>;base64,<body>"),
// the inverse of Decoder.Decode.
func Encode(img gocv.Mat, format Format) (string, error) {
	if img.Empty() {
		return "", fmt.Errorf("encode frame: empty image")
	}

	var ext gocv.FileExt
	switch format {
	case FormatJPEG, "":
		format = FormatJPEG
		ext = gocv.JPEGFileExt
	case FormatPNG:
		ext = gocv.PNGFileExt
	case FormatWebP:
		ext = gocv.FileExt(".webp")
	default:
		return "", fmt.Errorf("encode frame: unsupported format %q", format)
	}

	buf, err := gocv.IMEncode(ext, img)
	if err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	var sb strings.Builder
	sb.WriteString("data:image/")
	sb.WriteString(string(format))
	sb.WriteString(";base64,")
	sb.WriteString(base64.StdEncoding.EncodeToString(buf.GetBytes()))
	return sb.String(), nil
}
