package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ironsheep/scan2pdf/internal/device"
	"github.com/ironsheep/scan2pdf/internal/imaging"
	"github.com/ironsheep/scan2pdf/internal/scan"
	"github.com/ironsheep/scan2pdf/internal/status"
	"go.uber.org/zap"
)

// Candidate option values, in preference order. Backends name the same
// setting differently.
var (
	feederSources  = []string{"ADF", "Automatic Document Feeder", "Feeder"}
	flatbedSources = []string{"Flatbed", "FlatBed", "Auto"}
	colorModes     = []string{"Color"}
	grayModes      = []string{"Gray", "Grayscale"}
)

// Acquirer drives a device backend to fill a working directory with raw
// page images.
type Acquirer struct {
	Backend device.Backend

	// FeederSettle is how long to wait for more paper after a feeder
	// session reports exhaustion. Zero disables the extra poll.
	FeederSettle time.Duration

	Logger *zap.Logger
}

// NewAcquirer returns an Acquirer over backend.
func NewAcquirer(backend device.Backend, settle time.Duration, logger *zap.Logger) *Acquirer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Acquirer{Backend: backend, FeederSettle: settle, Logger: logger}
}

// SelectDevice picks the device whose name or label contains want, ignoring
// case, or the first device when want is empty.
func SelectDevice(devices []device.Info, want string) (device.Info, bool) {
	if len(devices) == 0 {
		return device.Info{}, false
	}
	if want == "" {
		return devices[0], true
	}
	w := strings.ToLower(want)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), w) || strings.Contains(strings.ToLower(d.Label()), w) {
			return d, true
		}
	}
	return device.Info{}, false
}

// Acquire scans every page the configured source yields into dir as
// scan_%06d.tif. The device is closed before Acquire returns.
func (a *Acquirer) Acquire(ctx context.Context, req scan.Request, dir string, rep status.Reporter) (*scan.WorkingSet, error) {
	logger := a.logger()

	devices, err := a.Backend.Devices(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, canceled(scan.StageAcquiring, ctx.Err())
		}
		return nil, scan.Fail(scan.StageAcquiring, scan.KindDeviceNotFound, fmt.Errorf("failed to list devices: %w", err))
	}
	scanners := devices[:0:0]
	for _, d := range devices {
		if d.IsScanner() {
			scanners = append(scanners, d)
		}
	}
	info, ok := SelectDevice(scanners, req.Device)
	if !ok {
		if req.Device != "" {
			return nil, scan.Fail(scan.StageAcquiring, scan.KindDeviceNotFound, fmt.Errorf("no device matches %q", req.Device))
		}
		return nil, scan.Fail(scan.StageAcquiring, scan.KindDeviceNotFound, nil)
	}

	dev, err := a.Backend.Open(ctx, info.Name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, canceled(scan.StageAcquiring, ctx.Err())
		}
		if errors.Is(err, device.ErrUnknownDevice) {
			return nil, scan.Fail(scan.StageAcquiring, scan.KindDeviceNotFound, err)
		}
		return nil, scan.Fail(scan.StageAcquiring, scan.KindDeviceIO, fmt.Errorf("failed to open %s: %w", info.Label(), err))
	}
	defer func() {
		if err := dev.Close(); err != nil {
			logger.Warn("failed to close device", zap.String("device", info.Name), zap.Error(err))
		}
	}()
	rep.Stage(scan.StageAcquiring, "Using scanner: %s", info.Label())
	logger.Info("device opened", zap.String("device", info.Name), zap.String("label", info.Label()))

	multi := a.configure(ctx, dev, req, rep)

	session, err := dev.Start(ctx, multi)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, canceled(scan.StageAcquiring, ctx.Err())
	case errors.Is(err, device.ErrFeederEmpty):
		return nil, scan.Fail(scan.StageAcquiring, scan.KindFeederEmpty, err)
	default:
		return nil, scan.Fail(scan.StageAcquiring, scan.KindDeviceIO, fmt.Errorf("failed to start scan: %w", err))
	}
	defer session.Close()

	set := scan.NewWorkingSet(dir)
	if err := a.drain(ctx, session, multi, req.DPI, set, rep); err != nil {
		return set, err
	}
	if set.Len() == 0 {
		return set, scan.Fail(scan.StageAcquiring, scan.KindNoPagesScanned, nil)
	}
	logger.Info("acquisition complete", zap.Int("pages", set.Len()))
	return set, nil
}

// configure applies the request's options. Every option is best-effort: a
// rejection is reported as degraded and the scan continues with the
// device's own setting. It returns whether to request every page.
func (a *Acquirer) configure(ctx context.Context, dev device.Device, req scan.Request, rep status.Reporter) bool {
	multi := req.Source == scan.Feeder

	sources := flatbedSources
	if multi {
		sources = feederSources
	}
	if !a.setOption(ctx, dev, rep, device.OptionSource, sources...) && multi {
		rep.Warn(scan.StageAcquiring, "feeder not available, scanning a single page")
		multi = false
	}

	area := device.AreaMax
	if req.PageSize == scan.Letter {
		area = device.AreaLetter
	}
	a.setOption(ctx, dev, rep, device.OptionArea, area)
	a.setOption(ctx, dev, rep, device.OptionResolution, strconv.Itoa(req.DPI))

	modes := grayModes
	if req.Color == scan.Color {
		modes = colorModes
	}
	a.setOption(ctx, dev, rep, device.OptionMode, modes...)
	return multi
}

func (a *Acquirer) setOption(ctx context.Context, dev device.Device, rep status.Reporter, name string, candidates ...string) bool {
	value, err := dev.SetOption(ctx, name, candidates...)
	if err != nil {
		a.logger().Warn("device option not honored",
			zap.String("kind", string(scan.KindBackendDegraded)),
			zap.String("option", name),
			zap.Strings("candidates", candidates),
			zap.Error(err))
		rep.Warn(scan.StageAcquiring, "%s: %s not set (%s)", scan.KindBackendDegraded, name, strings.Join(candidates, "|"))
		return false
	}
	a.logger().Debug("device option set", zap.String("option", name), zap.String("value", value))
	return true
}

// drain reads pages until the session is exhausted. Feeder sessions get one
// extra poll after each exhaustion, FeederSettle later, and stop when that
// poll yields nothing.
func (a *Acquirer) drain(ctx context.Context, session device.Session, multi bool, dpi int, set *scan.WorkingSet, rep status.Reporter) error {
	settled := false
	for {
		if err := ctx.Err(); err != nil {
			return canceled(scan.StageAcquiring, err)
		}
		img, err := session.Next(ctx)
		if errors.Is(err, io.EOF) {
			if !multi || a.FeederSettle <= 0 || settled {
				return nil
			}
			a.logger().Debug("feeder reported exhaustion, waiting", zap.Duration("settle", a.FeederSettle))
			if err := sleep(ctx, a.FeederSettle); err != nil {
				return canceled(scan.StageAcquiring, err)
			}
			settled = true
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return canceled(scan.StageAcquiring, ctx.Err())
			}
			return scan.FailPage(scan.StageAcquiring, scan.KindDeviceIO, set.Len()+1, fmt.Errorf("failed to read page: %w", err))
		}
		settled = false

		index := set.Len() + 1
		path := set.PagePath(index, scan.ImageExt)
		if err := imaging.WriteTIFF(path, img, dpi); err != nil {
			return scan.FailPage(scan.StageAcquiring, scan.KindDeviceIO, index, err)
		}
		set.Add(path)
		rep.Page(scan.StageAcquiring, index, 0, "Scanned Page: %d", index)
		a.logger().Debug("page acquired",
			zap.Int("page", index),
			zap.Int("width", img.Bounds().Dx()),
			zap.Int("height", img.Bounds().Dy()))
	}
}

func (a *Acquirer) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func canceled(stage scan.Stage, err error) *scan.Error {
	return scan.Fail(stage, scan.KindCanceled, err)
}
