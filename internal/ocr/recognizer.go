package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ironsheep/scan2pdf/internal/command"
	"github.com/ironsheep/scan2pdf/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrOCRNotEnabled is returned by the in-process engine when the binary
	// was built without the ocr tag.
	ErrOCRNotEnabled = errors.New("in-process OCR not compiled in (build with -tags ocr)")

	// ErrEmptyOutput is returned when an engine reports success but left no
	// usable page document behind.
	ErrEmptyOutput = errors.New("OCR produced no output")

	// ErrUnknownEngine is returned by New for an unrecognized engine name.
	ErrUnknownEngine = errors.New("unknown OCR engine")
)

// Recognizer turns one page image into a searchable single-page document.
//
// outputBase is the output path without extension; implementations write
// outputBase + ".pdf" and return that path.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath, outputBase, language string) (string, error)
}

// Func adapts a function to a Recognizer.
type Func func(ctx context.Context, imagePath, outputBase, language string) (string, error)

func (f Func) Recognize(ctx context.Context, imagePath, outputBase, language string) (string, error) {
	return f(ctx, imagePath, outputBase, language)
}

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// TextRegion is a recognized word with its location and confidence (0 to 1).
type TextRegion struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Bounds     Bounds  `json:"bounds"`
}

// OCRResult contains the complete results of text extraction from an image.
type OCRResult struct {
	FullText string       `json:"full_text"`
	Regions  []TextRegion `json:"regions"`
}

// New builds the recognizer named by cfg.Engine.
func New(cfg config.OCRConfig, runner command.Runner, logger *zap.Logger) (Recognizer, error) {
	switch cfg.Engine {
	case config.OCREngineTesseract, "":
		return NewTesseract(cfg.TesseractPath, cfg.TessdataPrefix, runner, logger), nil
	case config.OCREngineGosseract:
		return NewGosseract(cfg.TessdataPrefix, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)
	}
}

// Available reports whether the engine named by cfg can run on this host.
func Available(cfg config.OCRConfig) error {
	switch cfg.Engine {
	case config.OCREngineTesseract, "":
		path := cfg.TesseractPath
		if path == "" {
			path = config.DefaultTesseractPath
		}
		_, err := command.Lookup(path)
		return err
	case config.OCREngineGosseract:
		return gosseractAvailable()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)
	}
}

// checkOutput confirms path exists and is non-empty.
func checkOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmptyOutput, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrEmptyOutput, path)
	}
	return nil
}
