package device

import (
	"context"
	"errors"
	"image"
	"strings"
)

// Option names understood by every backend.
const (
	OptionSource     = "source"
	OptionMode       = "mode"
	OptionResolution = "resolution"
	// OptionArea takes AreaLetter or AreaMax.
	OptionArea = "area"
)

// Area values for OptionArea.
const (
	AreaLetter = "letter"
	AreaMax    = "max"
)

// Letter scan area in millimetres from the top-left origin.
const (
	LetterWidthMM  = 215.9
	LetterHeightMM = 279.4
)

var (
	// ErrOptionUnsupported is returned by SetOption when the device has no
	// such option or accepts none of the candidate values.
	ErrOptionUnsupported = errors.New("option not supported by device")

	// ErrFeederEmpty is returned by Start when a feeder session is started
	// with no paper loaded.
	ErrFeederEmpty = errors.New("document feeder is empty")

	// ErrUnknownDevice is returned by Open for a name the backend does not know.
	ErrUnknownDevice = errors.New("unknown device")
)

// Info describes a device as reported by its backend.
type Info struct {
	Name   string `json:"name"`
	Vendor string `json:"vendor"`
	Model  string `json:"model"`
	Type   string `json:"type"`
}

// Label is the human-readable device name.
func (i Info) Label() string {
	label := strings.TrimSpace(i.Vendor + " " + i.Model)
	if label == "" {
		return i.Name
	}
	return label
}

// IsScanner reports whether the device type looks like something that scans
// paper. Webcams and video devices exposed through the same backend are not.
func (i Info) IsScanner() bool {
	t := strings.ToLower(i.Type)
	if t == "" {
		return true
	}
	for _, kind := range []string{"scanner", "all-in-one", "multi-function", "sheetfed", "flatbed", "adf"} {
		if strings.Contains(t, kind) {
			return true
		}
	}
	return false
}

// Backend enumerates and opens devices.
type Backend interface {
	Devices(ctx context.Context) ([]Info, error)
	Open(ctx context.Context, name string) (Device, error)
}

// Device is an opened scanner. Close must be called on every path.
type Device interface {
	Info() Info

	// SetOption sets name to the first candidate value the device accepts
	// and returns that value. It returns ErrOptionUnsupported if none is
	// accepted; the device keeps its previous setting.
	SetOption(ctx context.Context, name string, candidates ...string) (string, error)

	// Start begins a scan session. multi requests every page the source can
	// provide; otherwise the session yields at most one page.
	Start(ctx context.Context, multi bool) (Session, error)

	Close() error
}

// Session yields pages in feed order.
type Session interface {
	// Next returns the next page or io.EOF when the session reports
	// exhaustion. Next may be called again after io.EOF: feeder sessions
	// poll the device again and return a page if more paper arrived.
	Next(ctx context.Context) (image.Image, error)

	Close() error
}
