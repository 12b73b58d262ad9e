package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/mudra/internal/apperr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_CreatesFileAndDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "data", "sessions.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file missing: %v", err)
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNew_Schema(t *testing.T) {
	s := newTestStore(t)

	version, err := s.Version()
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("Version() = %d, want %d", version, SchemaVersion)
	}

	for _, obj := range []struct{ kind, name string }{
		{"table", "sessions"},
		{"index", "idx_sessions_ended_at"},
	} {
		var name string
		err := s.DB().QueryRow("SELECT name FROM sqlite_master WHERE type = ? AND name = ?", obj.kind, obj.name).Scan(&name)
		if err != nil {
			t.Errorf("%s %s missing: %v", obj.kind, obj.name, err)
		}
	}
}

func TestNew_ReopenKeepsVersion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")

	for i := 0; i < 3; i++ {
		s, err := New(dbPath)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		v, _ := s.Version()
		s.Close()
		if v != SchemaVersion {
			t.Errorf("open #%d: version = %d, want %d", i+1, v, SchemaVersion)
		}
	}
}

func TestNew_UnusablePath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New(filepath.Join(blocker, "sessions.db"))
	if !apperr.IsKind(err, apperr.KindStorage) {
		t.Errorf("New() error = %v, want storage error", err)
	}
}

func TestStore_ClosedStoreRejectsQueries(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("query succeeded after Close")
	}
}
