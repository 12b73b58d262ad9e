// Package frame turns "<format-tag>,<encoded-body>" payloads into decoded
// BGR images.
package frame

import (
	"bytes"
	"encoding/base64"
	"image"
	"strings"

	// Registered for image.DecodeConfig sniffing.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/apperr"
)

const (
	// DefaultMaxPayloadBytes bounds the encoded payload length.
	DefaultMaxPayloadBytes = 4 << 20
	// DefaultMaxPixels bounds width*height of an accepted image.
	DefaultMaxPixels = 1920 * 1080
)

var allowedFormats = map[string]bool{
	"jpeg": true,
	"jpg":  true,
	"png":  true,
	"webp": true,
	"gif":  true,
	"bmp":  true,
}

var bmpSignature = []byte{0x42, 0x4D}

// Options bounds the decoder's work per frame.
type Options struct {
	MaxPayloadBytes int
	MaxPixels       int
}

// Decoder decodes frame payloads. It holds no mutable state and is safe for
// concurrent use.
type Decoder struct {
	maxPayload int
	maxPixels  int
}

// NewDecoder creates a Decoder, applying defaults for zero options.
func NewDecoder(opts Options) *Decoder {
	d := &Decoder{
		maxPayload: opts.MaxPayloadBytes,
		maxPixels:  opts.MaxPixels,
	}
	if d.maxPayload <= 0 {
		d.maxPayload = DefaultMaxPayloadBytes
	}
	if d.maxPixels <= 0 {
		d.maxPixels = DefaultMaxPixels
	}
	return d
}

// Envelope is the parsed tag/body split of a payload.
type Envelope struct {
	MIME   string // e.g. "image/jpeg"; empty when the tag declares none
	Base64 bool
	Body   string
}

// ParseEnvelope splits payload at its first comma and parses the data-URL
// style tag in front of it.
func ParseEnvelope(payload string) (Envelope, error) {
	tag, body, ok := strings.Cut(payload, ",")
	if !ok {
		return Envelope{}, decodeErr(apperr.ReasonMalformedEnvelope, "missing tag/body separator")
	}

	env := Envelope{Body: body, Base64: true}

	tag = strings.TrimSpace(tag)
	if rest, found := strings.CutPrefix(tag, "data:"); found {
		params := strings.Split(rest, ";")
		env.MIME = strings.ToLower(strings.TrimSpace(params[0]))
		env.Base64 = false
		for _, p := range params[1:] {
			if strings.EqualFold(strings.TrimSpace(p), "base64") {
				env.Base64 = true
			}
		}
	}

	if !env.Base64 {
		return Envelope{}, decodeErr(apperr.ReasonMalformedEnvelope, "only base64 bodies are supported")
	}

	if env.MIME != "" {
		kind, sub, _ := strings.Cut(env.MIME, "/")
		if kind != "image" || !allowedFormats[sub] {
			return Envelope{}, decodeErr(apperr.ReasonUnsupportedFormat, "declared format "+env.MIME+" is not accepted")
		}
	}

	return env, nil
}

// Decode converts payload into an 8-bit, 3-channel BGR image. The caller
// owns the returned Mat and must Close it.
func (d *Decoder) Decode(payload string) (*gocv.Mat, error) {
	if len(payload) > d.maxPayload {
		return nil, decodeErr(apperr.ReasonTooLarge, "payload exceeds size limit")
	}

	env, err := ParseEnvelope(payload)
	if err != nil {
		return nil, err
	}

	body := strings.TrimSpace(env.Body)
	if body == "" {
		return nil, decodeErr(apperr.ReasonEmptyBody, "empty body")
	}

	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		// Some canvases emit unpadded base64.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(body, "="))
		if err != nil {
			return nil, apperr.WrapReason(apperr.KindDecode, apperr.ReasonMalformedEnvelope, "frame.Decode", "invalid base64 body", err)
		}
	}
	if len(data) == 0 {
		return nil, decodeErr(apperr.ReasonEmptyBody, "decoded body is empty")
	}

	if err := d.sniff(data); err != nil {
		return nil, err
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, apperr.WrapReason(apperr.KindDecode, apperr.ReasonUnsupportedFormat, "frame.Decode", "raster decode failed", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, decodeErr(apperr.ReasonUnsupportedFormat, "raster decode produced an empty image")
	}

	return &mat, nil
}

// sniff identifies the raster format from its header without decoding
// pixels and enforces the pixel budget.
func (d *Decoder) sniff(data []byte) error {
	if bytes.HasPrefix(data, bmpSignature) {
		// BMP has no decoder in the standard library; gocv checks it fully.
		return nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return decodeErr(apperr.ReasonUnsupportedFormat, "unrecognised raster format")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return decodeErr(apperr.ReasonUnsupportedFormat, "image has no pixels")
	}
	if cfg.Width*cfg.Height > d.maxPixels {
		return decodeErr(apperr.ReasonTooLarge, "image exceeds pixel limit")
	}
	return nil
}

func decodeErr(reason apperr.Reason, msg string) error {
	return apperr.New(apperr.KindDecode, "frame.Decode", msg).WithReason(reason)
}
