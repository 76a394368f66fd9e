package pipeline

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ironsheep/scan2pdf/internal/device"
	"github.com/ironsheep/scan2pdf/internal/imaging"
	"github.com/ironsheep/scan2pdf/internal/scan"
	"github.com/ironsheep/scan2pdf/internal/status"
)

// smallPattern returns a synthetic feeder with small pages for fast tests.
func smallPattern(pages int) *device.TestPattern {
	tp := device.NewTestPattern(pages)
	tp.Width, tp.Height = 120, 160
	return tp
}

// emptyBackend reports no devices.
type emptyBackend struct{}

func (emptyBackend) Devices(context.Context) ([]device.Info, error) { return nil, nil }

func (emptyBackend) Open(context.Context, string) (device.Device, error) {
	return nil, device.ErrUnknownDevice
}

func acquire(t *testing.T, a *Acquirer, req scan.Request) (*scan.WorkingSet, *status.Recorder, error) {
	t.Helper()
	rec := &status.Recorder{}
	set, err := a.Acquire(context.Background(), req, t.TempDir(), status.Reporter{Sink: rec})
	return set, rec, err
}

func TestSelectDevice(t *testing.T) {
	devices := []device.Info{
		{Name: "airscan:e0:Canon MF743C", Vendor: "Canon", Model: "MF743C"},
		{Name: "epson2:libusb:001:004", Vendor: "Epson", Model: "Perfection V39"},
	}
	tests := []struct {
		want   string
		name   string
		wantOK bool
	}{
		{"", "airscan:e0:Canon MF743C", true},
		{"epson", "epson2:libusb:001:004", true},
		{"PERFECTION", "epson2:libusb:001:004", true},
		{"canon mf743", "airscan:e0:Canon MF743C", true},
		{"brother", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, ok := SelectDevice(devices, tt.want)
			if ok != tt.wantOK || got.Name != tt.name {
				t.Errorf("SelectDevice(%q) = %q, %v; want %q, %v", tt.want, got.Name, ok, tt.name, tt.wantOK)
			}
		})
	}
	if _, ok := SelectDevice(nil, ""); ok {
		t.Error("empty list should select nothing")
	}
}

func TestAcquire_FeederPages(t *testing.T) {
	tp := smallPattern(3)
	req := scan.NewRequest(scan.WithSource(scan.Feeder), scan.WithOCR(false))

	set, rec, err := acquire(t, NewAcquirer(tp, 0, nil), req)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if set.Len() != 3 {
		t.Fatalf("got %d pages, want 3", set.Len())
	}
	for i, p := range set.Pages {
		if p.Index != i+1 || filepath.Base(p.Path) != scan.PageName(i+1, scan.ImageExt) || p.Format != scan.RawImage {
			t.Errorf("page %d = %+v", i, p)
		}
		img, err := imaging.LoadPage(p.Path)
		if err != nil {
			t.Fatalf("page %d unreadable: %v", p.Index, err)
		}
		if _, ok := img.(*image.Gray); !ok {
			t.Errorf("page %d is %T, want gray from the mode option", p.Index, img)
		}
		if x, _, err := imaging.ReadResolution(p.Path); err != nil || x != 300 {
			t.Errorf("page %d resolution = %d, %v", p.Index, x, err)
		}
	}
	msgs := strings.Join(rec.Messages(), "\n")
	for _, want := range []string{"Scanned Page: 1", "Scanned Page: 2", "Scanned Page: 3"} {
		if !strings.Contains(msgs, want) {
			t.Errorf("status missing %q:\n%s", want, msgs)
		}
	}
	if !tp.Balanced() {
		t.Error("device not closed")
	}
}

func TestAcquire_FlatbedSinglePage(t *testing.T) {
	tp := smallPattern(5)
	set, _, err := acquire(t, NewAcquirer(tp, 0, nil), scan.NewRequest(scan.WithSource(scan.Flatbed)))
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if set.Len() != 1 {
		t.Errorf("got %d pages, want 1", set.Len())
	}
}

func TestAcquire_Failures(t *testing.T) {
	tests := []struct {
		name    string
		backend device.Backend
		req     scan.Request
		want    scan.Kind
		wantErr error
	}{
		{
			name:    "no devices",
			backend: emptyBackend{},
			req:     scan.NewRequest(),
			want:    scan.KindDeviceNotFound,
			wantErr: scan.ErrDeviceNotFound,
		},
		{
			name:    "no matching device",
			backend: smallPattern(1),
			req:     scan.NewRequest(scan.WithDevice("brother")),
			want:    scan.KindDeviceNotFound,
			wantErr: scan.ErrDeviceNotFound,
		},
		{
			name:    "empty feeder",
			backend: smallPattern(0),
			req:     scan.NewRequest(scan.WithSource(scan.Feeder)),
			want:    scan.KindFeederEmpty,
			wantErr: device.ErrFeederEmpty,
		},
		{
			name:    "empty flatbed",
			backend: smallPattern(0),
			req:     scan.NewRequest(scan.WithSource(scan.Flatbed)),
			want:    scan.KindNoPagesScanned,
			wantErr: scan.ErrNoPagesScanned,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := acquire(t, NewAcquirer(tt.backend, 0, nil), tt.req)
			if scan.KindOf(err) != tt.want {
				t.Fatalf("kind = %q (%v), want %q", scan.KindOf(err), err, tt.want)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error %v should match %v", err, tt.wantErr)
			}
			if tp, ok := tt.backend.(*device.TestPattern); ok && !tp.Balanced() {
				t.Error("device not closed")
			}
		})
	}
}

func TestAcquire_DegradedOptions(t *testing.T) {
	tp := smallPattern(4)
	tp.Unsupported = []string{device.OptionSource, device.OptionMode}
	req := scan.NewRequest(scan.WithSource(scan.Feeder))

	set, rec, err := acquire(t, NewAcquirer(tp, 0, nil), req)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	// Without a feeder only a single page is requested.
	if set.Len() != 1 {
		t.Errorf("got %d pages, want 1", set.Len())
	}

	var warnings []string
	for _, e := range rec.Events() {
		if e.Level == status.Warn {
			warnings = append(warnings, e.Message)
		}
	}
	joined := strings.Join(warnings, "\n")
	for _, want := range []string{"BackendDegraded: source", "BackendDegraded: mode", "feeder not available"} {
		if !strings.Contains(joined, want) {
			t.Errorf("warnings missing %q:\n%s", want, joined)
		}
	}
	if !tp.Balanced() {
		t.Error("device not closed")
	}
}

func TestAcquire_FeederSettle(t *testing.T) {
	tests := []struct {
		name   string
		settle time.Duration
		want   int
	}{
		{"stall ends session without settle", 0, 2},
		{"settle polls past the stall", time.Millisecond, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := smallPattern(5)
			tp.StallAfter = 2
			set, _, err := acquire(t, NewAcquirer(tp, tt.settle, nil), scan.NewRequest(scan.WithSource(scan.Feeder)))
			if err != nil {
				t.Fatalf("Acquire failed: %v", err)
			}
			if set.Len() != tt.want {
				t.Errorf("got %d pages, want %d", set.Len(), tt.want)
			}
		})
	}
}

func TestAcquire_CanceledDuringSettle(t *testing.T) {
	tp := smallPattern(2)
	ctx, cancel := context.WithCancel(context.Background())
	sink := status.Func(func(e status.Event) {
		if e.Page == 2 {
			cancel()
		}
	})

	dir := t.TempDir()
	_, err := NewAcquirer(tp, time.Hour, nil).Acquire(ctx, scan.NewRequest(scan.WithSource(scan.Feeder)), dir, status.Reporter{Sink: sink})
	if scan.KindOf(err) != scan.KindCanceled || !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want Canceled", err)
	}
	if !tp.Balanced() {
		t.Error("device not closed")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("%d files kept, want the 2 scanned pages", len(entries))
	}
}
