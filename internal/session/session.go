package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/protocol"
)

// Sink receives the results a session emits. Send is only ever called from
// the session's worker goroutine.
type Sink interface {
	Send(result protocol.Result) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(result protocol.Result) error

// Send calls f.
func (f SinkFunc) Send(result protocol.Result) error {
	return f(result)
}

// Summary describes a session for listings and the history store.
type Summary struct {
	ID        string    `json:"id"`
	Remote    string    `json:"remote,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
	Stats     Stats     `json:"stats"`
}

// Session is one client connection's pipeline and its worker goroutine.
type Session struct {
	id        string
	remote    string
	startedAt time.Time

	pipeline *Pipeline
	inbox    *inbox
	sink     Sink
	logger   *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	endedAt   time.Time
}

func newSession(id, remote string, deps Deps, sink Sink, logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With("session_id", id)

	s := &Session{
		id:        id,
		remote:    remote,
		startedAt: time.Now(),
		pipeline:  NewPipeline(deps, logger),
		inbox:     newInbox(),
		sink:      sink,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Submit hands a frame to the worker. A frame still waiting from an
// earlier Submit is dropped. Empty payloads are ignored and never displace
// a waiting frame. It returns false once the session is closed.
func (s *Session) Submit(payload string) bool {
	if payload == "" {
		select {
		case <-s.Done():
			return false
		default:
			return true
		}
	}

	replaced, ok := s.inbox.put(payload)
	if !ok {
		return false
	}
	s.pipeline.stats.received.Add(1)
	if replaced {
		s.pipeline.stats.dropped.Add(1)
	}
	return true
}

// Stats returns the session counters.
func (s *Session) Stats() Stats {
	return s.pipeline.Stats()
}

// Summary returns the session description with current counters.
func (s *Session) Summary() Summary {
	sum := Summary{
		ID:        s.id,
		Remote:    s.remote,
		StartedAt: s.startedAt,
		Stats:     s.Stats(),
	}
	select {
	case <-s.done:
		sum.EndedAt = s.endedAt
	default:
	}
	return sum
}

// Done is closed when the worker goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// close stops the worker and waits for it. Any pending frame is abandoned.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.inbox.close()
		s.cancel()
		<-s.done
	})
}

func (s *Session) run() {
	defer func() {
		s.endedAt = time.Now()
		close(s.done)
	}()

	for {
		payload, ok := s.inbox.take()
		if !ok {
			return
		}

		result, emit := s.pipeline.Process(s.ctx, payload)
		if !emit || s.ctx.Err() != nil {
			continue
		}

		if err := s.sink.Send(result); err != nil {
			s.logger.Warn("failed to deliver result", "error", err)
			continue
		}
		s.pipeline.stats.emitted.Add(1)
	}
}
