package store

import (
	"context"
	"log/slog"
	"time"

	evbus "github.com/asaskevich/EventBus"

	"github.com/ayusman/mudra/internal/apperr"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/session"
)

// Recorder persists a summary for every session:closed event.
type Recorder struct {
	repo   *SessionRepository
	bus    evbus.Bus
	logger *slog.Logger
}

// NewRecorder creates a Recorder writing into repo.
func NewRecorder(repo *SessionRepository, bus evbus.Bus, logger *slog.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		bus:    bus,
		logger: logging.OrDiscard(logger).With("component", "store"),
	}
}

// Start subscribes to session lifecycle events. Writes happen on the
// bus's async goroutine, one at a time.
func (r *Recorder) Start() error {
	if err := r.bus.SubscribeAsync(session.TopicClosed, r.handleClosed, true); err != nil {
		return apperr.Wrap(apperr.KindStorage, "store.Recorder.Start", "subscribe", err)
	}
	return nil
}

// Stop waits for queued writes and unsubscribes.
func (r *Recorder) Stop() {
	r.bus.WaitAsync()
	if err := r.bus.Unsubscribe(session.TopicClosed, r.handleClosed); err != nil {
		r.logger.Debug("unsubscribe failed", "error", err)
	}
}

func (r *Recorder) handleClosed(sum session.Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.repo.Record(ctx, FromSummary(sum)); err != nil {
		r.logger.Error("failed to record session", "session_id", sum.ID, "error", err)
	}
}

// FromSummary converts a session summary into a record.
func FromSummary(sum session.Summary) SessionRecord {
	ended := sum.EndedAt
	if ended.IsZero() {
		ended = time.Now()
	}
	return SessionRecord{
		ID:        sum.ID,
		Remote:    sum.Remote,
		StartedAt: sum.StartedAt,
		EndedAt:   ended,
		Received:  sum.Stats.Received,
		Processed: sum.Stats.Processed,
		Skipped:   sum.Stats.Skipped,
		Dropped:   sum.Stats.Dropped,
		Emitted:   sum.Stats.Emitted,
	}
}
