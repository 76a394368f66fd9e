//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/ironsheep/scan2pdf/internal/pdf"
	"github.com/ironsheep/scan2pdf/internal/scan"
	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// Gosseract recognizes pages in-process with libtesseract and composes the
// searchable page with pdfcpu.
type Gosseract struct {
	// TessdataPrefix overrides the system tessdata directory when set.
	TessdataPrefix string
	DPI            int
	Logger         *zap.Logger
	merger         *pdf.Merger
}

// NewGosseract returns an in-process recognizer.
func NewGosseract(tessdataPrefix string, logger *zap.Logger) Recognizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gosseract{
		TessdataPrefix: tessdataPrefix,
		DPI:            scan.DPI,
		Logger:         logger,
		merger:         pdf.NewMerger(logger),
	}
}

func gosseractAvailable() error {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return fmt.Errorf("failed to list tessdata: %w", err)
	}
	if len(langs) == 0 {
		return fmt.Errorf("libtesseract %s has no training data installed", gosseract.Version())
	}
	return nil
}

// Recognize extracts word boxes from imagePath and writes outputBase.pdf:
// the page image with the words as an invisible-to-the-eye underlay.
func (g *Gosseract) Recognize(ctx context.Context, imagePath, outputBase, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	result, err := ExtractText(imagePath, language, g.TessdataPrefix)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	words := make([]pdf.Word, 0, len(result.Regions))
	for _, r := range result.Regions {
		words = append(words, pdf.Word{
			Text: r.Text,
			Box:  image.Rect(r.Bounds.X1, r.Bounds.Y1, r.Bounds.X2, r.Bounds.Y2),
		})
	}

	out := outputBase + scan.DocumentExt
	if err := g.merger.SearchablePage(imagePath, words, g.DPI, out); err != nil {
		return "", fmt.Errorf("failed to compose %s: %w", filepath.Base(out), err)
	}
	if err := checkOutput(out); err != nil {
		return "", err
	}
	g.Logger.Debug("recognized page",
		zap.String("image", filepath.Base(imagePath)),
		zap.Int("words", len(words)))
	return out, nil
}

// ExtractText performs OCR on an entire image file and returns the text and
// its word boxes. An empty tessdataPrefix uses the system training data.
func ExtractText(imagePath, language, tessdataPrefix string) (*OCRResult, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(tessdataPrefix); err != nil {
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if language == "" {
		language = scan.DefaultLanguage
	}
	if err := client.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	// Return just text if boxes fail
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return &OCRResult{FullText: text, Regions: []TextRegion{}}, nil
	}

	regions := make([]TextRegion, 0, len(boxes))
	for _, box := range boxes {
		if strings.TrimSpace(box.Word) == "" {
			continue
		}
		regions = append(regions, TextRegion{
			Text:       box.Word,
			Confidence: box.Confidence / 100.0,
			Bounds: Bounds{
				X1: box.Box.Min.X,
				Y1: box.Box.Min.Y,
				X2: box.Box.Max.X,
				Y2: box.Box.Max.Y,
			},
		})
	}

	return &OCRResult{FullText: text, Regions: regions}, nil
}
