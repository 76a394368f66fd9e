package scan

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Format tells what an artifact's file currently holds.
type Format int

const (
	RawImage Format = iota
	PageDocument
)

func (f Format) String() string {
	if f == PageDocument {
		return "page-document"
	}
	return "raw-image"
}

// Extensions used for page artifacts.
const (
	ImageExt    = ".tif"
	DocumentExt = ".pdf"
)

// OutputTimeLayout is the time layout embedded in output file names.
const OutputTimeLayout = "2006-01-02-15-04-05"

// PageName returns the file name for page index with extension ext
// (".tif" or "tif"): scan_000001.tif for index 1.
func PageName(index int, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("scan_%06d%s", index, ext)
}

// OutputName returns the merged document name for a run started at t.
func OutputName(t time.Time) string {
	return "scan_" + t.Format(OutputTimeLayout) + ".pdf"
}

// Artifact is one page of a run. Index is 1-based and is the only ordering key.
type Artifact struct {
	Index  int    `json:"index"`
	Path   string `json:"path"`
	Format Format `json:"format"`
}

// WorkingSet is the ordered list of page artifacts in a run's working
// directory. It is owned by a single run.
type WorkingSet struct {
	Dir   string
	Pages []Artifact
}

// NewWorkingSet returns an empty set rooted at dir.
func NewWorkingSet(dir string) *WorkingSet {
	return &WorkingSet{Dir: dir}
}

// PagePath returns the path of page index with extension ext inside the set's
// directory.
func (w *WorkingSet) PagePath(index int, ext string) string {
	return filepath.Join(w.Dir, PageName(index, ext))
}

// Add appends a raw page with the next index and returns it.
func (w *WorkingSet) Add(path string) Artifact {
	a := Artifact{Index: len(w.Pages) + 1, Path: path, Format: RawImage}
	w.Pages = append(w.Pages, a)
	return a
}

// Len reports the number of pages.
func (w *WorkingSet) Len() int { return len(w.Pages) }

// Paths returns the artifact paths in page order.
func (w *WorkingSet) Paths() []string {
	paths := make([]string, len(w.Pages))
	for i, p := range w.Pages {
		paths[i] = p.Path
	}
	return paths
}

// Result is returned by a successful run.
type Result struct {
	RunID      string `json:"run_id"`
	OutputPath string `json:"output_path"`
	PageCount  int    `json:"page_count"`
	OCRApplied bool   `json:"ocr_applied"`
	// WorkDir is the removed working directory, kept for the run journal.
	WorkDir  string        `json:"work_dir"`
	Duration time.Duration `json:"duration"`
}
