package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ironsheep/scan2pdf/internal/device"
	"github.com/ironsheep/scan2pdf/internal/history"
	"github.com/ironsheep/scan2pdf/internal/ocr"
	"github.com/ironsheep/scan2pdf/internal/pdf"
	"github.com/ironsheep/scan2pdf/internal/scan"
	"github.com/ironsheep/scan2pdf/internal/status"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var runStarted = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

type harness struct {
	c       *Controller
	tp      *device.TestPattern
	rec     *status.Recorder
	journal *history.Store
	workDir string
	outDir  string
}

func newHarness(t *testing.T, tp *device.TestPattern, engine ocr.Recognizer) *harness {
	t.Helper()
	root := t.TempDir()
	journal, err := history.Open(filepath.Join(root, "history.db"))
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { journal.Close() })

	h := &harness{
		tp:      tp,
		rec:     &status.Recorder{},
		journal: journal,
		workDir: filepath.Join(root, "work"),
		outDir:  filepath.Join(root, "PDF"),
	}
	h.c = &Controller{
		Acquirer:   NewAcquirer(tp, 0, nil),
		Normalizer: &Normalizer{Workers: 2},
		Recognizer: &Recognizer{Engine: engine, Workers: 2},
		Merger:     pdf.NewMerger(nil),
		OutputDir:  h.outDir,
		WorkRoot:   h.workDir,
		Sink:       h.rec,
		Journal:    journal,
		Now:        func() time.Time { return runStarted },
		NewID:      func() string { return "run-1" },
	}
	return h
}

// workDirs returns the working directories left under the work root.
func (h *harness) workDirs(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.workDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("failed to read work root: %v", err)
	}
	var dirs []string
	for _, e := range entries {
		dirs = append(dirs, filepath.Join(h.workDir, e.Name()))
	}
	return dirs
}

func (h *harness) outputs(t *testing.T) []string {
	t.Helper()
	matches, _ := filepath.Glob(filepath.Join(h.outDir, "*.pdf"))
	return matches
}

func TestRun_FeederGrayLetterNoOCR(t *testing.T) {
	h := newHarness(t, smallPattern(3), nil)
	req := scan.NewRequest(
		scan.WithSource(scan.Feeder),
		scan.WithColor(scan.Grayscale),
		scan.WithPageSize(scan.Letter),
		scan.WithOCR(false),
	)

	res, err := h.c.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if want := filepath.Join(h.outDir, "scan_2024-03-09-14-05-07.pdf"); res.OutputPath != want {
		t.Errorf("output = %s, want %s", res.OutputPath, want)
	}
	if res.PageCount != 3 || res.OCRApplied || res.RunID != "run-1" {
		t.Errorf("result = %+v", res)
	}

	dims, err := pdf.PageSizes(res.OutputPath)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if len(dims) != 3 {
		t.Fatalf("output has %d pages, want 3", len(dims))
	}
	for i, d := range dims {
		if d.Width < 611.5 || d.Width > 612.5 || d.Height < 791.5 || d.Height > 792.5 {
			t.Errorf("page %d is %.1fx%.1f pt, want 612x792", i+1, d.Width, d.Height)
		}
	}

	if dirs := h.workDirs(t); len(dirs) != 0 {
		t.Errorf("working directories left behind: %v", dirs)
	}
	if h.c.State() != scan.StageSucceeded {
		t.Errorf("state = %s", h.c.State())
	}
	if !h.tp.Balanced() {
		t.Error("device not closed")
	}

	var stages []scan.Stage
	for _, e := range h.rec.Events() {
		if e.Page == 0 && (len(stages) == 0 || stages[len(stages)-1] != e.Stage) {
			stages = append(stages, e.Stage)
		}
	}
	want := []scan.Stage{scan.StageAcquiring, scan.StageNormalizing, scan.StageMerging, scan.StageVerifying, scan.StageSucceeded}
	if strings.Join(stageNames(stages), ",") != strings.Join(stageNames(want), ",") {
		t.Errorf("stages = %v, want %v", stages, want)
	}

	run, err := h.journal.Get("run-1")
	if err != nil {
		t.Fatalf("run not journaled: %v", err)
	}
	if run.State != scan.StageSucceeded || run.OutputPath != res.OutputPath || run.Retained {
		t.Errorf("journal entry = %+v", run)
	}
}

func stageNames(stages []scan.Stage) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = string(s)
	}
	return names
}

func TestRun_FlatbedColorNativeOCR(t *testing.T) {
	engine := &pageEngine{}
	h := newHarness(t, smallPattern(1), engine)
	req := scan.NewRequest(
		scan.WithSource(scan.Flatbed),
		scan.WithColor(scan.Color),
		scan.WithPageSize(scan.Native),
		scan.WithOCR(true),
	)

	res, err := h.c.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.PageCount != 1 || !res.OCRApplied {
		t.Errorf("result = %+v", res)
	}
	if n, err := pdf.PageCount(res.OutputPath); err != nil || n != 1 {
		t.Errorf("PageCount = %d, %v", n, err)
	}
	if len(engine.seen) != 1 {
		t.Errorf("engine saw %v", engine.seen)
	}
	if dirs := h.workDirs(t); len(dirs) != 0 {
		t.Errorf("working directories left behind: %v", dirs)
	}
}

func TestRun_ZeroFrames(t *testing.T) {
	h := newHarness(t, smallPattern(0), nil)

	_, err := h.c.Run(context.Background(), scan.NewRequest(scan.WithSource(scan.Flatbed), scan.WithOCR(false)))
	if !errors.Is(err, scan.ErrNoPagesScanned) {
		t.Fatalf("error = %v, want NoPagesScanned", err)
	}
	if h.c.State() != scan.StageFailed {
		t.Errorf("state = %s", h.c.State())
	}
	if dirs := h.workDirs(t); len(dirs) != 0 {
		t.Errorf("empty working directory should be removed: %v", dirs)
	}
	if out := h.outputs(t); len(out) != 0 {
		t.Errorf("unexpected output %v", out)
	}

	run, err := h.journal.Get("run-1")
	if err != nil {
		t.Fatalf("run not journaled: %v", err)
	}
	if run.Kind != scan.KindNoPagesScanned || run.Retained {
		t.Errorf("journal entry = %+v", run)
	}
}

func TestRun_OCRFailureKeepsPages(t *testing.T) {
	engine := &pageEngine{failOn: 2}
	h := newHarness(t, smallPattern(3), engine)
	h.c.Recognizer.Workers = 1
	req := scan.NewRequest(scan.WithSource(scan.Feeder), scan.WithPageSize(scan.Native), scan.WithOCR(true))

	_, err := h.c.Run(context.Background(), req)
	var se *scan.Error
	if !errors.As(err, &se) || se.Kind != scan.KindOCREngine || se.Page != 2 {
		t.Fatalf("error = %v, want OcrEngineError on page 2", err)
	}
	if out := h.outputs(t); len(out) != 0 {
		t.Errorf("no output expected, got %v", out)
	}

	dirs := h.workDirs(t)
	if len(dirs) != 1 {
		t.Fatalf("want one retained working directory, got %v", dirs)
	}
	for _, name := range []string{"scan_000001.pdf", "scan_000001.tif", "scan_000002.tif", "scan_000003.tif"} {
		if _, err := os.Stat(filepath.Join(dirs[0], name)); err != nil {
			t.Errorf("%s not retained: %v", name, err)
		}
	}

	kept, err := h.journal.Retained()
	if err != nil || len(kept) != 1 || kept[0].WorkDir != dirs[0] || kept[0].Page != 2 {
		t.Errorf("retained runs = %+v, %v", kept, err)
	}
}

func TestRun_Canceled(t *testing.T) {
	h := newHarness(t, smallPattern(2), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.c.Run(ctx, scan.NewRequest(scan.WithOCR(false)))
	if scan.KindOf(err) != scan.KindCanceled || !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want Canceled", err)
	}
	if !h.tp.Balanced() {
		t.Error("device not closed")
	}
}

func TestRun_CanceledAfterMergeRemovesOutput(t *testing.T) {
	h := newHarness(t, smallPattern(2), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel once the merge is written, before the output is verified.
	core, _ := observer.New(zapcore.DebugLevel)
	h.c.Merger = pdf.NewMerger(zap.New(core, zap.Hooks(func(e zapcore.Entry) error {
		if e.Message == "merged documents" {
			cancel()
		}
		return nil
	})))

	_, err := h.c.Run(ctx, scan.NewRequest(scan.WithOCR(false)))
	if scan.KindOf(err) != scan.KindCanceled {
		t.Fatalf("error = %v, want Canceled", err)
	}
	if h.c.State() != scan.StageFailed {
		t.Errorf("state = %s", h.c.State())
	}
	if out := h.outputs(t); len(out) != 0 {
		t.Errorf("failed run left output behind: %v", out)
	}
	run, err := h.journal.Get("run-1")
	if err != nil || run.State != scan.StageFailed || run.OutputPath != "" {
		t.Errorf("journal entry = %+v, %v", run, err)
	}
}

func TestRun_Busy(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	engine := ocr.Func(func(ctx context.Context, img, base, lang string) (string, error) {
		close(entered)
		<-release
		return (&pageEngine{}).Recognize(ctx, img, base, lang)
	})
	h := newHarness(t, smallPattern(1), engine)
	req := scan.NewRequest(scan.WithPageSize(scan.Native), scan.WithOCR(true))

	done := make(chan error, 1)
	go func() {
		_, err := h.c.Run(context.Background(), req)
		done <- err
	}()
	<-entered

	if _, err := h.c.Run(context.Background(), req); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent Run error = %v, want ErrBusy", err)
	}
	if h.c.State() != scan.StageRecognizing {
		t.Errorf("state = %s, want recognizing", h.c.State())
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("first run failed: %v", err)
	}
}

func TestRun_Validation(t *testing.T) {
	h := newHarness(t, smallPattern(1), nil)

	bad := scan.NewRequest()
	bad.DPI = 150
	if _, err := h.c.Run(context.Background(), bad); !errors.Is(err, scan.ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}

	h.c.Recognizer = nil
	if _, err := h.c.Run(context.Background(), scan.NewRequest(scan.WithOCR(true))); !errors.Is(err, ErrNoRecognizer) {
		t.Errorf("error = %v, want ErrNoRecognizer", err)
	}
	if h.c.State() != scan.StageIdle {
		t.Errorf("state = %s, want idle", h.c.State())
	}
}

type fakePublisher struct {
	paths []string
	err   error
}

func (p *fakePublisher) Publish(_ context.Context, path string) (string, error) {
	p.paths = append(p.paths, path)
	if p.err != nil {
		return "", p.err
	}
	return "gs://bucket/" + filepath.Base(path), nil
}

func TestRun_PublishAndNameCollision(t *testing.T) {
	h := newHarness(t, smallPattern(1), nil)
	pub := &fakePublisher{}
	h.c.Publisher = pub
	req := scan.NewRequest(scan.WithPageSize(scan.Native), scan.WithOCR(false))

	first, err := h.c.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	pub.err = errors.New("bucket unreachable")
	h.c.NewID = func() string { return "run-2" }
	second, err := h.c.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("a publish failure must not fail the run: %v", err)
	}

	if filepath.Base(second.OutputPath) != "scan_2024-03-09-14-05-07-2.pdf" {
		t.Errorf("second output = %s", second.OutputPath)
	}
	if len(pub.paths) != 2 || pub.paths[0] != first.OutputPath {
		t.Errorf("published %v", pub.paths)
	}

	run, _ := h.journal.Get("run-1")
	if run.PublishedURL != "gs://bucket/scan_2024-03-09-14-05-07.pdf" {
		t.Errorf("published url = %q", run.PublishedURL)
	}
	var warned bool
	for _, e := range h.rec.Events() {
		if e.Level == status.Warn && strings.Contains(e.Message, "publish failed") {
			warned = true
		}
	}
	if !warned {
		t.Error("publish failure not reported")
	}
}
