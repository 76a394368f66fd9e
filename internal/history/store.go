package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ironsheep/scan2pdf/internal/scan"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("runs")

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Run is the journal entry for one pipeline run.
type Run struct {
	ID       string     `json:"id"`
	Started  time.Time  `json:"started"`
	Finished time.Time  `json:"finished"`
	State    scan.Stage `json:"state"`

	// Kind, FailedStage, Page and Error describe a failed run.
	Kind        scan.Kind  `json:"kind,omitempty"`
	FailedStage scan.Stage `json:"failed_stage,omitempty"`
	Page        int        `json:"page,omitempty"`
	Error       string     `json:"error,omitempty"`

	Device   string `json:"device,omitempty"`
	Source   string `json:"source"`
	Color    string `json:"color"`
	PageSize string `json:"page_size"`
	OCR      bool   `json:"ocr"`

	PageCount    int    `json:"page_count"`
	OutputPath   string `json:"output_path,omitempty"`
	PublishedURL string `json:"published_url,omitempty"`
	WorkDir      string `json:"work_dir,omitempty"`
	// Retained is set while WorkDir still holds a failed run's pages.
	Retained bool `json:"retained"`
}

// Store is a bbolt-backed run journal.
type Store struct {
	path string
	db   *bolt.DB
	mu   sync.RWMutex
}

// Open opens or creates the journal at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for history: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Store{path: path, db: db}, nil
}

// Path returns the journal file location.
func (s *Store) Path() string { return s.path }

// Record stores run, replacing any entry with the same ID.
func (s *Store) Record(run Run) error {
	if run.ID == "" {
		return errors.New("run has no ID")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(run.ID), data)
	})
}

// Get returns the run with id.
func (s *Store) Get(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var run Run
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(v, &run)
	})
	return run, err
}

// List returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]Run, error) {
	runs, err := s.all()
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Started.After(runs[j].Started) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Retained returns failed runs whose working directory was kept.
func (s *Store) Retained() ([]Run, error) {
	runs, err := s.List(0)
	if err != nil {
		return nil, err
	}
	kept := runs[:0]
	for _, r := range runs {
		if r.Retained {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// MarkCleaned records that a run's working directory has been removed.
func (s *Store) MarkCleaned(id string) error {
	run, err := s.Get(id)
	if err != nil {
		return err
	}
	run.Retained = false
	return s.Record(run)
}

func (s *Store) all() ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []Run
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(_, v []byte) error {
			var r Run
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to decode run: %w", err)
			}
			runs = append(runs, r)
			return nil
		})
	})
	return runs, err
}

// Close closes the journal.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
