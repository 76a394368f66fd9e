package device

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ironsheep/scan2pdf/internal/command"
	"github.com/ironsheep/scan2pdf/internal/imaging"
	"go.uber.org/zap"
)

// statusNoDocs is scanimage's exit status for SANE_STATUS_NO_DOCS.
const statusNoDocs = 7

// areaToleranceMM absorbs devices whose range stops a scan step short of
// the nominal paper size.
const areaToleranceMM = 0.5

// listFormat asks scanimage for one pipe-separated line per device.
const listFormat = "%d|%v|%m|%t%n"

// SANE drives devices through the scanimage program.
type SANE struct {
	// Path is the scanimage executable. Empty means "scanimage" on PATH.
	Path   string
	Runner command.Runner
	Logger *zap.Logger
}

// NewSANE returns a SANE backend that runs scanimage from path.
func NewSANE(path string, logger *zap.Logger) *SANE {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SANE{Path: path, Runner: command.Exec{Logger: logger}, Logger: logger}
}

func (s *SANE) program() string {
	if s.Path == "" {
		return "scanimage"
	}
	return s.Path
}

func (s *SANE) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Devices lists the devices scanimage can see.
func (s *SANE) Devices(ctx context.Context) ([]Info, error) {
	res, err := s.Runner.Run(ctx, s.program(), "-f", listFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return parseDeviceList(string(res.Stdout)), nil
}

func parseDeviceList(out string) []Info {
	var devices []Info
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 4)
		for len(parts) < 4 {
			parts = append(parts, "")
		}
		devices = append(devices, Info{Name: parts[0], Vendor: parts[1], Model: parts[2], Type: parts[3]})
	}
	return devices
}

// Open queries the device's options. The device is not claimed until a
// session starts.
func (s *SANE) Open(ctx context.Context, name string) (Device, error) {
	res, err := s.Runner.Run(ctx, s.program(), "-d", name, "-A")
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrUnknownDevice, name, err)
	}
	info := Info{Name: name}
	if devices, err := s.Devices(ctx); err == nil {
		for _, d := range devices {
			if d.Name == name {
				info = d
				break
			}
		}
	}
	return &saneDevice{
		backend:  s,
		info:     info,
		options:  parseOptions(string(res.Stdout)),
		settings: make(map[string]string),
	}, nil
}

type saneDevice struct {
	backend  *SANE
	info     Info
	options  map[string]saneOption
	settings map[string]string
	area     []string
}

func (d *saneDevice) Info() Info { return d.info }

func (d *saneDevice) SetOption(_ context.Context, name string, candidates ...string) (string, error) {
	if name == OptionArea {
		return d.setArea(candidates...)
	}
	opt, ok := d.options[name]
	if !ok || opt.Inactive {
		return "", fmt.Errorf("%w: %s", ErrOptionUnsupported, name)
	}
	value, ok := opt.Accepts(candidates...)
	if !ok && name == OptionSource && wantsFeeder(candidates) {
		value, ok = opt.FeederValue()
	}
	if !ok {
		return "", fmt.Errorf("%w: %s=%s", ErrOptionUnsupported, name, strings.Join(candidates, "|"))
	}
	d.settings[name] = value
	return value, nil
}

func (d *saneDevice) setArea(candidates ...string) (string, error) {
	x, okX := d.options["x"]
	y, okY := d.options["y"]
	if !okX || !okY || !x.Ranged || !y.Ranged {
		return "", fmt.Errorf("%w: %s", ErrOptionUnsupported, OptionArea)
	}
	for _, c := range candidates {
		switch c {
		case AreaLetter:
			if x.Max+areaToleranceMM < LetterWidthMM || y.Max+areaToleranceMM < LetterHeightMM {
				continue
			}
			w, h := math.Min(LetterWidthMM, x.Max), math.Min(LetterHeightMM, y.Max)
			d.area = []string{"-l", "0", "-t", "0", "-x", formatMM(w), "-y", formatMM(h)}
			return c, nil
		case AreaMax:
			d.area = []string{"-l", "0", "-t", "0", "-x", formatMM(x.Max), "-y", formatMM(y.Max)}
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s=%s", ErrOptionUnsupported, OptionArea, strings.Join(candidates, "|"))
}

// wantsFeeder reports whether any candidate source names a document feeder.
func wantsFeeder(candidates []string) bool {
	for _, c := range candidates {
		if isFeederName(c) {
			return true
		}
	}
	return false
}

func formatMM(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Start begins a batch session. The first batch runs before Start returns so
// an empty feeder is reported here.
func (d *saneDevice) Start(ctx context.Context, multi bool) (Session, error) {
	staging, err := os.MkdirTemp("", "scan2pdf-sane-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	sess := &saneSession{device: d, multi: multi, staging: staging}
	n, err := sess.runBatch(ctx)
	if err != nil {
		os.RemoveAll(staging)
		return nil, err
	}
	if n == 0 && multi {
		os.RemoveAll(staging)
		return nil, ErrFeederEmpty
	}
	return sess, nil
}

func (d *saneDevice) Close() error { return nil }

type saneSession struct {
	device  *saneDevice
	multi   bool
	staging string
	queue   []string
	next    int // batch start number for the next run
	drained bool
	pending error
}

func (s *saneSession) args() []string {
	args := []string{"-d", s.device.info.Name, "--format=tiff"}
	for _, name := range []string{OptionSource, OptionMode, OptionResolution} {
		if v, ok := s.device.settings[name]; ok {
			args = append(args, "--"+name+"="+v)
		}
	}
	args = append(args, s.device.area...)
	args = append(args,
		"--batch="+filepath.Join(s.staging, "raw_%d.tif"),
		"--batch-start="+strconv.Itoa(s.next+1),
	)
	if !s.multi {
		args = append(args, "--batch-count=1")
	}
	return args
}

// runBatch runs scanimage once and queues the pages it wrote. An exit for
// "no documents" after zero pages is not an error.
func (s *saneSession) runBatch(ctx context.Context) (int, error) {
	b := s.device.backend
	_, runErr := b.Runner.Run(ctx, b.program(), s.args()...)

	files, err := s.collect()
	if err != nil {
		return 0, err
	}
	s.queue = append(s.queue, files...)

	var exitErr *command.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr) && exitErr.Code == statusNoDocs:
		if len(files) == 0 && s.multi && s.next == 0 {
			return 0, ErrFeederEmpty
		}
	case len(files) > 0:
		// Deliver what was scanned, then report the failure.
		s.pending = runErr
	default:
		return 0, fmt.Errorf("scan failed: %w", runErr)
	}
	b.logger().Debug("scanimage batch finished", zap.Int("pages", len(files)), zap.Int("start", s.next+1))
	s.next += len(files)
	return len(files), nil
}

// collect returns completed staged pages not yet queued, in batch order.
// scanimage writes pages under a .part suffix and renames them when done.
func (s *saneSession) collect() ([]string, error) {
	entries, err := os.ReadDir(s.staging)
	if err != nil {
		return nil, fmt.Errorf("failed to read staging directory: %w", err)
	}
	type staged struct {
		n    int
		path string
	}
	var found []staged
	for _, e := range entries {
		var n int
		if _, err := fmt.Sscanf(e.Name(), "raw_%d.tif", &n); err != nil || !strings.HasSuffix(e.Name(), ".tif") {
			continue
		}
		if n <= s.next {
			continue
		}
		found = append(found, staged{n, filepath.Join(s.staging, e.Name())})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}

func (s *saneSession) Next(ctx context.Context) (image.Image, error) {
	if len(s.queue) == 0 {
		if s.pending != nil {
			err := s.pending
			s.pending = nil
			return nil, err
		}
		if !s.drained || !s.multi {
			s.drained = true
			return nil, io.EOF
		}
		// Polled again after exhaustion: ask the feeder for more paper.
		n, err := s.runBatch(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, io.EOF
		}
	}
	path := s.queue[0]
	s.queue = s.queue[1:]
	s.drained = false
	img, err := imaging.LoadPage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scanned page: %w", err)
	}
	os.Remove(path)
	return img, nil
}

func (s *saneSession) Close() error {
	return os.RemoveAll(s.staging)
}
