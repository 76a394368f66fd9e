package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ironsheep/scan2pdf/internal/history"
	"github.com/ironsheep/scan2pdf/internal/pdf"
	"github.com/ironsheep/scan2pdf/internal/scan"
	"github.com/ironsheep/scan2pdf/internal/status"
	"go.uber.org/zap"
)

var (
	// ErrBusy is returned by Run while another run is in progress.
	ErrBusy = errors.New("a scan is already running")

	// ErrNoRecognizer is returned when OCR is requested but no engine is
	// configured.
	ErrNoRecognizer = errors.New("OCR requested but no recognizer configured")
)

// mergedName is the merge target inside the working directory, before the
// document is moved to the output directory.
const mergedName = "document.pdf"

// Journal records finished runs.
type Journal interface {
	Record(history.Run) error
}

// Publisher copies a verified document somewhere else and returns its
// location.
type Publisher interface {
	Publish(ctx context.Context, path string) (string, error)
}

// Controller sequences one scan-to-PDF run through its stages:
// Idle, Acquiring, Normalizing, Recognizing (when OCR is requested),
// Merging, Verifying, then Succeeded or Failed.
type Controller struct {
	Acquirer   *Acquirer
	Normalizer *Normalizer
	// Recognizer may be nil when OCR is never requested.
	Recognizer *Recognizer
	Merger     *pdf.Merger

	// OutputDir receives merged documents; created if missing.
	OutputDir string
	// WorkRoot is the parent of working directories; empty means os.TempDir.
	WorkRoot string

	Sink      status.Sink
	Journal   Journal
	Publisher Publisher
	Logger    *zap.Logger

	Now   func() time.Time
	NewID func() string

	mu      sync.Mutex
	stateMu sync.RWMutex
	state   scan.Stage
}

// State returns the current stage. A controller that has never run is Idle.
func (c *Controller) State() scan.Stage {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.state == "" {
		return scan.StageIdle
	}
	return c.state
}

func (c *Controller) setState(s scan.Stage) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// run carries the per-run state through the stages.
type run struct {
	id      string
	req     scan.Request
	started time.Time
	dir     string
	set     *scan.WorkingSet
	output  string
	rep     status.Reporter
	logger  *zap.Logger
}

// Run executes req to completion. On success the working directory is
// removed and the result names the verified output. On failure the error is
// a *scan.Error and the working directory is kept for diagnosis unless
// nothing was written to it.
func (c *Controller) Run(ctx context.Context, req scan.Request) (*scan.Result, error) {
	if !c.mu.TryLock() {
		return nil, ErrBusy
	}
	defer c.mu.Unlock()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.OCR && (c.Recognizer == nil || c.Recognizer.Engine == nil) {
		return nil, ErrNoRecognizer
	}

	r := &run{id: c.newID(), req: req, started: c.now()}
	r.logger = c.logger().With(zap.String("run_id", r.id))
	r.rep = status.Reporter{RunID: r.id, Sink: c.Sink, Now: c.Now}
	c.setState(scan.StageIdle)

	if c.WorkRoot != "" {
		if err := os.MkdirAll(c.WorkRoot, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create work root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(c.WorkRoot, "scan2pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	r.dir = dir
	r.logger.Info("run started",
		zap.String("source", req.Source.String()),
		zap.String("color", req.Color.String()),
		zap.String("page_size", req.PageSize.String()),
		zap.Bool("ocr", req.OCR),
		zap.String("work_dir", dir))

	res, err := c.execute(ctx, r)
	if err != nil {
		c.fail(r, err)
		return nil, err
	}
	c.succeed(ctx, r, res)
	return res, nil
}

func (c *Controller) execute(ctx context.Context, r *run) (*scan.Result, error) {
	if err := c.enter(ctx, r, scan.StageAcquiring, "Scanning"); err != nil {
		return nil, err
	}
	set, err := c.Acquirer.Acquire(ctx, r.req, r.dir, r.rep)
	r.set = set
	if err != nil {
		return nil, err
	}

	if err := c.enter(ctx, r, scan.StageNormalizing, "Normalizing %d pages", set.Len()); err != nil {
		return nil, err
	}
	if err := c.Normalizer.Normalize(ctx, set, r.req, r.rep); err != nil {
		return nil, err
	}

	merged := filepath.Join(r.dir, mergedName)
	if r.req.OCR {
		if err := c.enter(ctx, r, scan.StageRecognizing, "Recognizing text (%s)", r.req.Language); err != nil {
			return nil, err
		}
		if err := c.Recognizer.Recognize(ctx, set, r.req.Language, r.rep); err != nil {
			return nil, err
		}
		if err := c.enter(ctx, r, scan.StageMerging, "Merging %d pages", set.Len()); err != nil {
			return nil, err
		}
		err = c.Merger.Concat(ctx, set.Paths(), merged)
	} else {
		if err := c.enter(ctx, r, scan.StageMerging, "Merging %d pages", set.Len()); err != nil {
			return nil, err
		}
		var pages []string
		pages, err = c.Merger.ConvertAndMerge(ctx, set.Paths(), r.req.PageSize, r.req.DPI, merged)
		for i, p := range pages {
			set.Pages[i] = scan.Artifact{Index: set.Pages[i].Index, Path: p, Format: scan.PageDocument}
		}
	}
	if err != nil {
		return nil, stageErr(ctx, scan.StageMerging, scan.KindMerge, err)
	}
	output, err := c.place(merged, r.started)
	if err != nil {
		return nil, scan.Fail(scan.StageMerging, scan.KindMerge, err)
	}
	r.output = output

	if err := c.enter(ctx, r, scan.StageVerifying, "Verifying %s", filepath.Base(output)); err != nil {
		return nil, err
	}
	if err := verify(output, set.Len()); err != nil {
		return nil, scan.Fail(scan.StageVerifying, scan.KindOutputMissing, err)
	}

	return &scan.Result{
		RunID:      r.id,
		OutputPath: output,
		PageCount:  set.Len(),
		OCRApplied: r.req.OCR,
		WorkDir:    r.dir,
		Duration:   c.now().Sub(r.started),
	}, nil
}

// enter moves to stage after checking for cancellation.
func (c *Controller) enter(ctx context.Context, r *run, stage scan.Stage, format string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return canceled(stage, err)
	}
	c.setState(stage)
	r.rep.Stage(stage, format, args...)
	r.logger.Debug("stage entered", zap.String("stage", string(stage)))
	return nil
}

// place moves the merged document into the output directory under its
// timestamped name, adding a numeric suffix if that name is taken.
func (c *Controller) place(merged string, started time.Time) (string, error) {
	if err := os.MkdirAll(c.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	name := scan.OutputName(started)
	dst := filepath.Join(c.OutputDir, name)
	for i := 2; fileExists(dst); i++ {
		dst = filepath.Join(c.OutputDir, fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, scan.DocumentExt), i, scan.DocumentExt))
	}
	if err := moveFile(merged, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// verify checks that the output exists, is non-empty and holds pages pages.
func verify(path string, pages int) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty", path)
	}
	n, err := pdf.PageCount(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if n != pages {
		return fmt.Errorf("%s has %d pages, want %d", path, n, pages)
	}
	return nil
}

func (c *Controller) succeed(ctx context.Context, r *run, res *scan.Result) {
	if err := os.RemoveAll(r.dir); err != nil {
		r.logger.Warn("failed to remove working directory", zap.String("work_dir", r.dir), zap.Error(err))
	}
	c.setState(scan.StageSucceeded)
	r.rep.Stage(scan.StageSucceeded, "Saved: %s (%d pages)", res.OutputPath, res.PageCount)
	r.logger.Info("run succeeded",
		zap.String("output", res.OutputPath),
		zap.Int("pages", res.PageCount),
		zap.Duration("duration", res.Duration))

	entry := c.entry(r, scan.StageSucceeded)
	entry.PageCount = res.PageCount
	entry.OutputPath = res.OutputPath

	if c.Publisher != nil {
		url, err := c.Publisher.Publish(ctx, res.OutputPath)
		if err != nil {
			r.rep.Warn(scan.StageSucceeded, "publish failed: %v", err)
			r.logger.Warn("publish failed", zap.Error(err))
		} else {
			entry.PublishedURL = url
			r.rep.Stage(scan.StageSucceeded, "Published: %s", url)
		}
	}
	c.record(r, entry)
}

func (c *Controller) fail(r *run, err error) {
	// Nothing to diagnose in a directory nothing was written to. Remove
	// fails on a non-empty directory, which is then kept.
	retained := true
	if rmErr := os.Remove(r.dir); rmErr == nil {
		retained = false
	}
	c.setState(scan.StageFailed)

	// Only a verified run leaves a document in the output directory.
	if r.output != "" {
		if rmErr := os.Remove(r.output); rmErr != nil && !os.IsNotExist(rmErr) {
			r.logger.Warn("failed to remove unverified output", zap.String("output", r.output), zap.Error(rmErr))
		}
	}

	var se *scan.Error
	errors.As(err, &se)
	r.rep.Fail(scan.StageFailed, "%v", err)
	fields := []zap.Field{zap.Error(err), zap.Bool("retained", retained)}
	if retained {
		fields = append(fields, zap.String("work_dir", r.dir))
		r.rep.Stage(scan.StageFailed, "Pages kept in %s", r.dir)
	}
	r.logger.Error("run failed", fields...)

	entry := c.entry(r, scan.StageFailed)
	entry.Error = err.Error()
	entry.Retained = retained
	if !retained {
		entry.WorkDir = ""
	}
	if se != nil {
		entry.Kind = se.Kind
		entry.FailedStage = se.Stage
		entry.Page = se.Page
	}
	if r.set != nil {
		entry.PageCount = r.set.Len()
	}
	c.record(r, entry)
}

func (c *Controller) entry(r *run, state scan.Stage) history.Run {
	return history.Run{
		ID:       r.id,
		Started:  r.started,
		Finished: c.now(),
		State:    state,
		Device:   r.req.Device,
		Source:   r.req.Source.String(),
		Color:    r.req.Color.String(),
		PageSize: r.req.PageSize.String(),
		OCR:      r.req.OCR,
		WorkDir:  r.dir,
	}
}

func (c *Controller) record(r *run, entry history.Run) {
	if c.Journal == nil {
		return
	}
	if err := c.Journal.Record(entry); err != nil {
		r.logger.Warn("failed to record run", zap.Error(err))
	}
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Controller) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}

func (c *Controller) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// stageErr tags err with kind, or Canceled when ctx is done.
func stageErr(ctx context.Context, stage scan.Stage, kind scan.Kind, err error) *scan.Error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return canceled(stage, err)
	}
	return scan.Fail(stage, kind, err)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// moveFile renames src to dst, copying when they sit on different file
// systems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return os.Remove(src)
}
