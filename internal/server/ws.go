package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/apperr"
	"github.com/ayusman/mudra/internal/protocol"
	"github.com/ayusman/mudra/internal/session"
)

const (
	defaultWriteTimeout   = 5 * time.Second
	defaultMaxMessageSize = 8 << 20
)

// StreamOptions configures the WebSocket endpoint.
type StreamOptions struct {
	// AllowedOrigins lists accepted Origin headers. Empty or "*" accepts
	// any origin.
	AllowedOrigins []string
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

// StreamHandler accepts streaming clients and binds each connection to a
// recognition session.
type StreamHandler struct {
	manager      *session.Manager
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	maxMessage   int64
	logger       *slog.Logger
}

// NewStreamHandler creates a new StreamHandler backed by manager.
func NewStreamHandler(manager *session.Manager, opts StreamOptions, logger *slog.Logger) *StreamHandler {
	h := &StreamHandler{
		manager:      manager,
		writeTimeout: opts.WriteTimeout,
		maxMessage:   opts.MaxMessageSize,
		logger:       logger,
	}
	if h.writeTimeout <= 0 {
		h.writeTimeout = defaultWriteTimeout
	}
	if h.maxMessage <= 0 {
		h.maxMessage = defaultMaxMessageSize
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: originChecker(opts.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// ServeHTTP upgrades the request and runs the connection's read loop.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	ws.SetReadLimit(h.maxMessage)

	c := &conn{ws: ws, writeTimeout: h.writeTimeout}
	defer c.close()

	id := uuid.NewString()
	sink := session.SinkFunc(func(result protocol.Result) error {
		return c.send(protocol.NewResult(result))
	})

	s, err := h.manager.Open(id, r.RemoteAddr, sink)
	if err != nil {
		h.logger.Error("failed to open session", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer h.manager.Close(id)

	// A session closed from elsewhere (server shutdown) ends the connection.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-s.Done():
			c.close()
		case <-stop:
		}
	}()

	if err := c.send(protocol.Event{Event: protocol.EventSession, Data: protocol.SessionInfo{ID: id}}); err != nil {
		h.logger.Debug("failed to announce session", "session_id", id, "error", err)
		return
	}

	h.readLoop(c, s)
}

func (h *StreamHandler) readLoop(c *conn, s *session.Session) {
	logger := h.logger.With("session_id", s.ID())

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("connection closed unexpectedly", "error", err)
			}
			return
		}

		codec := protocol.CodecFor(messageType)
		c.setCodec(codec)

		ev, err := codec.Decode(data)
		if err != nil {
			logger.Debug("ignoring undecodable message", "error", err)
			continue
		}

		switch {
		case ev.IsFrame():
			payload, ok := ev.FramePayload()
			if !ok {
				logger.Debug("ignoring frame with non-string data")
				continue
			}
			if !s.Submit(payload) {
				return
			}
		case ev.Event == protocol.EventDisconnect:
			return
		default:
			logger.Debug("ignoring unknown event", "event", ev.Event)
		}
	}
}

// conn serializes writes to one websocket and remembers which codec the
// client last used.
type conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	codec  atomic.Int32
	closed atomic.Bool
}

var errConnClosed = errors.New("connection closed")

func (c *conn) setCodec(codec protocol.Codec) {
	c.codec.Store(int32(codec))
}

func (c *conn) send(ev protocol.Event) error {
	codec := protocol.Codec(c.codec.Load())
	data, err := codec.Encode(ev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return errConnClosed
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.ws.WriteMessage(codec.MessageType(), data); err != nil {
		return apperr.Wrap(apperr.KindTransport, "server.send", "write message", err)
	}
	return nil
}

func (c *conn) close() {
	if c.closed.Swap(true) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.ws.Close()
}
