package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// SessionRecord is the persisted summary of a closed session.
type SessionRecord struct {
	ID        string    `json:"id"`
	Remote    string    `json:"remote,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Received  uint64    `json:"received"`
	Processed uint64    `json:"processed"`
	Skipped   uint64    `json:"skipped"`
	Dropped   uint64    `json:"dropped"`
	Emitted   uint64    `json:"emitted"`
}

// Duration returns how long the session was open.
func (r SessionRecord) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// SessionRepository reads and writes session records.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Record inserts r, replacing any row with the same id.
func (r *SessionRepository) Record(ctx context.Context, rec SessionRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions
		 (id, remote, started_at, ended_at, received, processed, skipped, dropped, emitted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Remote, rec.StartedAt.UnixMilli(), rec.EndedAt.UnixMilli(),
		int64(rec.Received), int64(rec.Processed), int64(rec.Skipped), int64(rec.Dropped), int64(rec.Emitted),
	)
	return err
}

// GetByID retrieves a session record by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*SessionRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, remote, started_at, ended_at, received, processed, skipped, dropped, emitted
		 FROM sessions WHERE id = ?`,
		id,
	)

	rec, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// List returns the most recently ended sessions, newest first. A limit of
// zero or less returns every row.
func (r *SessionRepository) List(ctx context.Context, limit int) ([]*SessionRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, remote, started_at, ended_at, received, processed, skipped, dropped, emitted
		 FROM sessions ORDER BY ended_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// Count returns the number of stored sessions.
func (r *SessionRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}

// DeleteBefore removes sessions that ended before t and returns how many
// rows were deleted.
func (r *SessionRepository) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE ended_at < ?`, t.UnixMilli())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*SessionRecord, error) {
	var (
		rec                                            SessionRecord
		started, ended                                 int64
		received, processed, skipped, dropped, emitted int64
	)
	err := sc.Scan(&rec.ID, &rec.Remote, &started, &ended,
		&received, &processed, &skipped, &dropped, &emitted)
	if err != nil {
		return nil, err
	}

	rec.StartedAt = time.UnixMilli(started)
	rec.EndedAt = time.UnixMilli(ended)
	rec.Received = uint64(received)
	rec.Processed = uint64(processed)
	rec.Skipped = uint64(skipped)
	rec.Dropped = uint64(dropped)
	rec.Emitted = uint64(emitted)
	return &rec, nil
}
