package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/client"
	"github.com/ayusman/mudra/internal/frame"
	"github.com/ayusman/mudra/internal/protocol"
)

type streamOptions struct {
	url       string
	device    int
	width     int
	height    int
	noMirror  bool
	codec     string
	format    string
	threshold float64
	idleFPS   int
	activeFPS int
	idleAfter time.Duration
	frames    int
}

func newStreamCommand(g *globals) *cobra.Command {
	defaults := client.DefaultConfig()
	camDefaults := capture.DefaultOptions()
	opts := streamOptions{}

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream webcam frames to a server and print predictions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.clientConfig()
			if err != nil {
				return err
			}

			cam := capture.NewCamera(capture.Options{
				DeviceID: opts.device,
				Width:    opts.width,
				Height:   opts.height,
				FPS:      opts.idleFPS,
				Mirror:   !opts.noMirror,
			})

			s := client.New(cam, cfg, g.logger)
			s.OnResult = func(r protocol.Result) {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", r.Label, r.Confidence)
			}
			return s.Run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.url, "url", defaults.URL, "server WebSocket URL")
	f.IntVar(&opts.device, "device", camDefaults.DeviceID, "camera device id")
	f.IntVar(&opts.width, "width", camDefaults.Width, "capture width")
	f.IntVar(&opts.height, "height", camDefaults.Height, "capture height")
	f.BoolVar(&opts.noMirror, "no-mirror", false, "send frames without flipping them horizontally")
	f.StringVar(&opts.codec, "codec", defaults.Codec.String(), "wire encoding: json or msgpack")
	f.StringVar(&opts.format, "format", string(defaults.Format), "image format: jpeg, png or webp")
	f.Float64Var(&opts.threshold, "motion-threshold", defaults.MotionThreshold, "percent of changed pixels that counts as motion")
	f.IntVar(&opts.idleFPS, "idle-fps", defaults.IdleFPS, "frame rate while nothing moves")
	f.IntVar(&opts.activeFPS, "active-fps", defaults.ActiveFPS, "frame rate while motion is seen")
	f.DurationVar(&opts.idleAfter, "idle-after", defaults.IdleAfter, "time without motion before dropping to the idle rate")
	f.IntVar(&opts.frames, "frames", 0, "stop after sending this many frames (0 streams until interrupted)")
	return cmd
}

func (o streamOptions) clientConfig() (client.Config, error) {
	cfg := client.DefaultConfig()
	cfg.URL = o.url
	cfg.MotionThreshold = o.threshold
	cfg.IdleFPS = o.idleFPS
	cfg.ActiveFPS = o.activeFPS
	cfg.IdleAfter = o.idleAfter
	cfg.MaxFrames = o.frames

	switch o.codec {
	case "json":
		cfg.Codec = protocol.JSON
	case "msgpack":
		cfg.Codec = protocol.MsgPack
	default:
		return cfg, fmt.Errorf("unknown codec %q (want json or msgpack)", o.codec)
	}

	switch format := frame.Format(o.format); format {
	case frame.FormatJPEG, frame.FormatPNG, frame.FormatWebP:
		cfg.Format = format
	default:
		return cfg, fmt.Errorf("unknown image format %q (want jpeg, png or webp)", o.format)
	}

	if o.idleFPS <= 0 || o.activeFPS <= 0 {
		return cfg, fmt.Errorf("frame rates must be positive")
	}
	return cfg, nil
}
