package scan

import (
	"errors"
	"fmt"
	"strings"
)

// DPI is the fixed acquisition resolution. Every geometry constant in the
// pipeline is expressed against it.
const DPI = 300

// DefaultLanguage is the OCR language used when a request names none.
const DefaultLanguage = "eng"

// Source selects where the device takes paper from.
type Source int

const (
	Flatbed Source = iota
	Feeder
)

func (s Source) String() string {
	switch s {
	case Flatbed:
		return "flatbed"
	case Feeder:
		return "feeder"
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// ColorMode selects the pixel format requested from the device.
type ColorMode int

const (
	Grayscale ColorMode = iota
	Color
)

func (c ColorMode) String() string {
	switch c {
	case Grayscale:
		return "gray"
	case Color:
		return "color"
	}
	return fmt.Sprintf("ColorMode(%d)", int(c))
}

// PageSize selects the output page geometry.
type PageSize int

const (
	// Letter crops pages to 8.5x11 in and forces a 215.9x279.4 mm page box.
	Letter PageSize = iota
	// Native keeps the device's full scan area.
	Native
)

func (p PageSize) String() string {
	switch p {
	case Letter:
		return "letter"
	case Native:
		return "native"
	}
	return fmt.Sprintf("PageSize(%d)", int(p))
}

// ParseSource parses "flatbed", "glass", "feeder" or "adf".
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "flatbed", "glass":
		return Flatbed, nil
	case "feeder", "adf":
		return Feeder, nil
	}
	return 0, fmt.Errorf("unknown source %q (want flatbed or feeder)", s)
}

// ParsePageSize parses "letter" or "native".
func ParsePageSize(s string) (PageSize, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "letter":
		return Letter, nil
	case "native", "full":
		return Native, nil
	}
	return 0, fmt.Errorf("unknown page size %q (want letter or native)", s)
}

// Request describes one scan run. It is built once with NewRequest and never
// mutated afterwards.
type Request struct {
	Source   Source    `json:"source"`
	Color    ColorMode `json:"color"`
	PageSize PageSize  `json:"page_size"`
	DPI      int       `json:"dpi"`
	OCR      bool      `json:"ocr"`
	Language string    `json:"language"`

	// Device optionally names the scanner to use. Empty selects the first
	// device the backend reports.
	Device string `json:"device,omitempty"`
}

// Option configures a Request under construction.
type Option func(*Request)

// WithSource selects the flatbed or the sheet feeder.
func WithSource(s Source) Option { return func(r *Request) { r.Source = s } }

// WithColor selects grayscale or color acquisition.
func WithColor(c ColorMode) Option { return func(r *Request) { r.Color = c } }

// WithPageSize selects Letter pages or the scanner's native page size.
func WithPageSize(p PageSize) Option { return func(r *Request) { r.PageSize = p } }

// WithOCR turns the text layer on or off.
func WithOCR(enabled bool) Option { return func(r *Request) { r.OCR = enabled } }

// WithDevice names the scanner to use.
func WithDevice(name string) Option { return func(r *Request) { r.Device = name } }

// WithLanguage sets the OCR language, e.g. "eng".
func WithLanguage(lang string) Option { return func(r *Request) { r.Language = lang } }

// NewRequest returns a Request with the historical defaults (flatbed,
// grayscale, letter, OCR on) overridden by opts.
func NewRequest(opts ...Option) Request {
	r := Request{
		Source:   Flatbed,
		Color:    Grayscale,
		PageSize: Letter,
		DPI:      DPI,
		OCR:      true,
		Language: DefaultLanguage,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// ErrInvalidRequest is returned by Validate.
var ErrInvalidRequest = errors.New("invalid scan request")

// Validate checks that the request can be executed.
func (r Request) Validate() error {
	if r.DPI != DPI {
		return fmt.Errorf("%w: resolution must be %d dpi, got %d", ErrInvalidRequest, DPI, r.DPI)
	}
	if r.Source != Flatbed && r.Source != Feeder {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, r.Source)
	}
	if r.Color != Grayscale && r.Color != Color {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, r.Color)
	}
	if r.PageSize != Letter && r.PageSize != Native {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, r.PageSize)
	}
	if r.OCR && r.Language == "" {
		return fmt.Errorf("%w: OCR requires a language", ErrInvalidRequest)
	}
	return nil
}

// LetterBox returns the Letter crop box in pixels at the request resolution:
// 2550x3300 at 300 dpi.
func (r Request) LetterBox() (width, height int) {
	return r.DPI * 17 / 2, r.DPI * 11
}
