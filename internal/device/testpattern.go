package device

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// TestPatternName is the device name the test-pattern backend reports.
const TestPatternName = "test:pattern"

// TestPattern is a synthetic backend. Every page is filled with a distinct
// hue so page order survives the pipeline and can be checked by sampling a
// pixel of the output.
type TestPattern struct {
	// Pages is the number of sheets in the feeder.
	Pages int
	// Width and Height are the page size in pixels.
	Width, Height int
	// StallAfter, if positive, makes the feeder report exhaustion once after
	// that many pages, as backends do when a read times out between sheets.
	StallAfter int
	// Unsupported lists option names the device rejects.
	Unsupported []string

	mu     sync.Mutex
	opened int
	closed int
}

// NewTestPattern returns a feeder holding pages Letter-sized sheets at 300 dpi.
func NewTestPattern(pages int) *TestPattern {
	return &TestPattern{Pages: pages, Width: 2550, Height: 3300}
}

// PageColor returns the fill color of page index (1-based).
func PageColor(index int) color.Color {
	hue := float64((index*47)%360)
	c := colorful.Hsv(hue, 0.65, 0.9)
	r, g, b := c.RGB255()
	return color.RGBA{r, g, b, 255}
}

// Devices reports the single synthetic device.
func (tp *TestPattern) Devices(context.Context) ([]Info, error) {
	return []Info{{Name: TestPatternName, Vendor: "scan2pdf", Model: "Test Pattern", Type: "virtual scanner"}}, nil
}

func (tp *TestPattern) Open(_ context.Context, name string) (Device, error) {
	if name != TestPatternName {
		return nil, fmt.Errorf("%w %q", ErrUnknownDevice, name)
	}
	tp.mu.Lock()
	tp.opened++
	tp.mu.Unlock()
	return &testDevice{tp: tp, settings: make(map[string]string)}, nil
}

// Balanced reports whether every opened device was closed.
func (tp *TestPattern) Balanced() bool {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.opened == tp.closed
}

type testDevice struct {
	tp       *TestPattern
	settings map[string]string
}

func (d *testDevice) Info() Info {
	infos, _ := d.tp.Devices(context.Background())
	return infos[0]
}

func (d *testDevice) SetOption(_ context.Context, name string, candidates ...string) (string, error) {
	for _, u := range d.tp.Unsupported {
		if u == name {
			return "", fmt.Errorf("%w: %s", ErrOptionUnsupported, name)
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: %s has no value", ErrOptionUnsupported, name)
	}
	d.settings[name] = candidates[0]
	return candidates[0], nil
}

func (d *testDevice) Start(_ context.Context, multi bool) (Session, error) {
	if multi && d.tp.Pages == 0 {
		return nil, ErrFeederEmpty
	}
	total := d.tp.Pages
	if !multi && total > 1 {
		total = 1
	}
	return &testSession{device: d, total: total}, nil
}

func (d *testDevice) Close() error {
	d.tp.mu.Lock()
	d.tp.closed++
	d.tp.mu.Unlock()
	return nil
}

type testSession struct {
	device  *testDevice
	total   int
	fed     int
	stalled bool
}

func (s *testSession) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tp := s.device.tp
	if s.fed >= s.total {
		return nil, io.EOF
	}
	if tp.StallAfter > 0 && s.fed == tp.StallAfter && !s.stalled {
		s.stalled = true
		return nil, io.EOF
	}
	s.fed++
	return s.render(s.fed), nil
}

func (s *testSession) render(index int) image.Image {
	w, h := s.device.tp.Width, s.device.tp.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(PageColor(index)), image.Point{}, draw.Src)
	if s.device.settings[OptionMode] == "Gray" {
		gray := image.NewGray(img.Bounds())
		draw.Draw(gray, gray.Bounds(), img, image.Point{}, draw.Src)
		return gray
	}
	return img
}

func (s *testSession) Close() error { return nil }
