package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ironsheep/scan2pdf/internal/scan"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndGet(t *testing.T) {
	s := openStore(t)
	started := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	run := Run{
		ID:          "a",
		Started:     started,
		Finished:    started.Add(42 * time.Second),
		State:       scan.StageFailed,
		Kind:        scan.KindOCREngine,
		FailedStage: scan.StageRecognizing,
		Page:        2,
		Error:       "tesseract exited with status 1",
		Source:      "feeder",
		WorkDir:     "/tmp/scan2pdf-123",
		Retained:    true,
	}
	if err := s.Record(run); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := s.Get("a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Kind != scan.KindOCREngine || got.Page != 2 || !got.Started.Equal(started) || !got.Retained {
		t.Errorf("Get = %+v", got)
	}

	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.Record(Run{}); err == nil {
		t.Error("Record without ID should fail")
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := openStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"b", "c", "a"} {
		if err := s.Record(Run{ID: id, Started: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	tests := []struct {
		limit int
		want  []string
	}{
		{0, []string{"a", "c", "b"}},
		{2, []string{"a", "c"}},
		{10, []string{"a", "c", "b"}},
	}
	for _, tt := range tests {
		runs, err := s.List(tt.limit)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		var ids []string
		for _, r := range runs {
			ids = append(ids, r.ID)
		}
		if len(ids) != len(tt.want) {
			t.Fatalf("List(%d) = %v, want %v", tt.limit, ids, tt.want)
		}
		for i := range ids {
			if ids[i] != tt.want[i] {
				t.Errorf("List(%d) = %v, want %v", tt.limit, ids, tt.want)
				break
			}
		}
	}
}

func TestStore_RetainedAndMarkCleaned(t *testing.T) {
	s := openStore(t)
	s.Record(Run{ID: "ok", State: scan.StageSucceeded})
	s.Record(Run{ID: "kept", State: scan.StageFailed, WorkDir: "/tmp/x", Retained: true})

	kept, err := s.Retained()
	if err != nil {
		t.Fatalf("Retained failed: %v", err)
	}
	if len(kept) != 1 || kept[0].ID != "kept" {
		t.Fatalf("Retained = %+v", kept)
	}

	if err := s.MarkCleaned("kept"); err != nil {
		t.Fatalf("MarkCleaned failed: %v", err)
	}
	if kept, _ := s.Retained(); len(kept) != 0 {
		t.Errorf("Retained after clean = %+v", kept)
	}
	if err := s.MarkCleaned("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkCleaned(nope) error = %v", err)
	}
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s.Record(Run{ID: "persisted"})
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	if _, err := s.Get("persisted"); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}
