// Package client streams webcam frames to a mudra server and reports the
// predictions it sends back.
package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/mudra/internal/apperr"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/frame"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/protocol"
)

// Config controls a Streamer.
type Config struct {
	// URL is the server's WebSocket endpoint, e.g. ws://localhost:5000/ws.
	URL string

	Format frame.Format
	Codec  protocol.Codec

	MotionThreshold float64
	IdleFPS         int
	ActiveFPS       int
	IdleAfter       time.Duration

	// MaxFrames stops the stream after this many frames. Zero streams
	// until the context ends.
	MaxFrames int
}

// DefaultConfig returns a Config for a local server.
func DefaultConfig() Config {
	return Config{
		URL:             "ws://localhost:5000/ws",
		Format:          frame.FormatJPEG,
		Codec:           protocol.JSON,
		MotionThreshold: 1.0,
		IdleFPS:         capture.IdleFPS,
		ActiveFPS:       capture.ActiveFPS,
		IdleAfter:       capture.IdleTimeout,
	}
}

// Streamer reads frames from a camera and sends them to the server. Frames
// are sent at the idle rate until motion is seen, then at the active rate.
type Streamer struct {
	config   Config
	camera   capture.Camera
	motion   *capture.MotionDetector
	throttle *capture.Throttle
	dialer   *websocket.Dialer
	logger   *slog.Logger

	// OnResult, when set, is called for every prediction received.
	OnResult func(protocol.Result)

	mu        sync.Mutex
	sessionID string
	sent      int
	received  int
}

// New creates a Streamer for camera.
func New(camera capture.Camera, config Config, logger *slog.Logger) *Streamer {
	if config.Format == "" {
		config.Format = frame.FormatJPEG
	}
	return &Streamer{
		config:   config,
		camera:   camera,
		motion:   capture.NewMotionDetector(config.MotionThreshold),
		throttle: capture.NewThrottle(config.IdleFPS, config.ActiveFPS, config.IdleAfter),
		dialer:   websocket.DefaultDialer,
		logger:   logging.OrDiscard(logger).With("component", "client"),
	}
}

// Stats reports frames sent and results received so far.
func (s *Streamer) Stats() (sent, received int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent, s.received
}

// SessionID returns the id the server assigned, once known.
func (s *Streamer) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Run connects and streams until ctx ends, the server closes the
// connection or MaxFrames frames were sent.
func (s *Streamer) Run(ctx context.Context) error {
	const op = "client.Run"

	conn, _, err := s.dialer.DialContext(ctx, s.config.URL, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindTransport, op, "connect to "+s.config.URL, err)
	}
	defer conn.Close()

	if err := s.camera.Open(); err != nil {
		return apperr.Wrap(apperr.KindStartup, op, "open camera", err)
	}
	defer s.camera.Close()
	defer s.motion.Close()
	s.camera.SetFPS(s.throttle.FPS())

	s.logger.Info("streaming", "url", s.config.URL, "codec", s.config.Codec.String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(conn) })
	g.Go(func() error {
		err := s.sendLoop(gctx, conn)
		s.hangUp(conn)
		return err
	})

	err = g.Wait()
	if ctx.Err() != nil || errors.Is(err, errDone) {
		return nil
	}
	return err
}

var errDone = errors.New("stream finished")

const drainTimeout = 2 * time.Second

func (s *Streamer) sendLoop(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(s.throttle.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		img, err := s.camera.ReadFrame()
		if err != nil {
			if errors.Is(err, capture.ErrNoMoreFrames) {
				return errDone
			}
			s.logger.Warn("failed to read frame", "error", err)
			continue
		}

		moving, _ := s.motion.Detect(img)
		if fps, changed := s.throttle.Observe(moving, time.Now()); changed {
			s.camera.SetFPS(fps)
			ticker.Reset(s.throttle.Interval())
			s.logger.Debug("frame rate changed", "fps", fps, "active", s.throttle.Active())
		}

		payload, err := frame.Encode(*img, s.config.Format)
		img.Close()
		if err != nil {
			s.logger.Warn("failed to encode frame", "error", err)
			continue
		}

		if err := s.write(conn, protocol.NewFrame(payload)); err != nil {
			return err
		}

		s.mu.Lock()
		s.sent++
		sent := s.sent
		s.mu.Unlock()

		if s.config.MaxFrames > 0 && sent >= s.config.MaxFrames {
			s.drain(ctx, drainTimeout)
			return errDone
		}
	}
}

// drain waits until a result arrived for every frame sent or d elapses.
// The server may drop frames, so the wait is bounded.
func (s *Streamer) drain(ctx context.Context, d time.Duration) {
	deadline := time.NewTimer(d)
	defer deadline.Stop()
	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()

	for {
		if sent, received := s.Stats(); received >= sent {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-poll.C:
		}
	}
}

func (s *Streamer) write(conn *websocket.Conn, ev protocol.Event) error {
	data, err := s.config.Codec.Encode(ev)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(s.config.Codec.MessageType(), data); err != nil {
		return apperr.Wrap(apperr.KindTransport, "client.write", "send event", err)
	}
	return nil
}

// hangUp announces the disconnect and closes the socket, which also ends
// readLoop.
func (s *Streamer) hangUp(conn *websocket.Conn) {
	s.write(conn, protocol.Event{Event: protocol.EventDisconnect})
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	conn.Close()
}

func (s *Streamer) readLoop(conn *websocket.Conn) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return apperr.Wrap(apperr.KindTransport, "client.readLoop", "connection lost", err)
			}
			return errDone
		}

		ev, err := protocol.CodecFor(messageType).Decode(data)
		if err != nil {
			s.logger.Debug("ignoring undecodable message", "error", err)
			continue
		}

		switch ev.Event {
		case protocol.EventSession:
			if info, ok := ev.Data.(map[string]any); ok {
				id, _ := info["id"].(string)
				s.mu.Lock()
				s.sessionID = id
				s.mu.Unlock()
				s.logger.Info("session opened", "session_id", id)
			}
		case protocol.EventPredictionResult:
			result, err := protocol.DecodeResult(ev)
			if err != nil {
				s.logger.Debug("bad prediction_result", "error", err)
				continue
			}
			s.mu.Lock()
			s.received++
			s.mu.Unlock()

			s.logger.Info("prediction", "label", result.Label, "confidence", result.Confidence)
			if s.OnResult != nil {
				s.OnResult(result)
			}
		}
	}
}
