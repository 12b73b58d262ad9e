package session

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	evbus "github.com/asaskevich/EventBus"

	"github.com/ayusman/mudra/internal/apperr"
	"github.com/ayusman/mudra/internal/logging"
)

// Lifecycle topics published on the event bus. Handlers receive a Summary.
const (
	TopicOpened = "session:opened"
	TopicClosed = "session:closed"
)

// Manager owns the set of live sessions.
type Manager struct {
	deps     Deps
	bus      evbus.Bus
	logger   *slog.Logger
	sessions sync.Map // id -> *Session
	count    atomic.Int64
}

// NewManager creates a Manager. bus may be nil.
func NewManager(deps Deps, bus evbus.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		deps:   deps,
		bus:    bus,
		logger: logging.OrDiscard(logger).With("component", "session"),
	}
}

// Open starts a session that delivers its results to sink.
func (m *Manager) Open(id, remote string, sink Sink) (*Session, error) {
	if id == "" {
		return nil, apperr.New(apperr.KindTransport, "session.Open", "empty session id")
	}
	if sink == nil {
		return nil, apperr.New(apperr.KindTransport, "session.Open", "nil sink")
	}

	s := newSession(id, remote, m.deps, sink, m.logger)
	if _, loaded := m.sessions.LoadOrStore(id, s); loaded {
		s.close()
		return nil, apperr.New(apperr.KindTransport, "session.Open", fmt.Sprintf("session %s already exists", id))
	}
	m.count.Add(1)

	s.logger.Info("session started", "remote", remote)
	m.publish(TopicOpened, s.Summary())
	return s, nil
}

// Get looks up a live session.
func (m *Manager) Get(id string) (*Session, bool) {
	v, ok := m.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Submit routes a frame to session id. It returns false for unknown or
// closed sessions.
func (m *Manager) Submit(id, payload string) bool {
	s, ok := m.Get(id)
	if !ok {
		return false
	}
	return s.Submit(payload)
}

// Close ends session id and returns its final summary. Closing an unknown
// id is a no-op.
func (m *Manager) Close(id string) (Summary, bool) {
	v, ok := m.sessions.LoadAndDelete(id)
	if !ok {
		return Summary{}, false
	}
	s := v.(*Session)
	m.count.Add(-1)

	s.close()
	sum := s.Summary()

	s.logger.Info("session ended",
		"duration", sum.EndedAt.Sub(sum.StartedAt).Round(time.Millisecond),
		"received", sum.Stats.Received,
		"emitted", sum.Stats.Emitted,
		"skipped", sum.Stats.Skipped,
		"dropped", sum.Stats.Dropped)
	m.publish(TopicClosed, sum)
	return sum, true
}

// CloseAll ends every live session.
func (m *Manager) CloseAll() {
	m.sessions.Range(func(key, _ any) bool {
		m.Close(key.(string))
		return true
	})
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	return int(m.count.Load())
}

// Snapshot lists live sessions, oldest first.
func (m *Manager) Snapshot() []Summary {
	var out []Summary
	m.sessions.Range(func(_, v any) bool {
		out = append(out, v.(*Session).Summary())
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (m *Manager) publish(topic string, sum Summary) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(topic, sum)
}
