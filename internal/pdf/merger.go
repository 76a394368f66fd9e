package pdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/scan2pdf/internal/scan"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"

	_ "image/jpeg"              // Register JPEG config decoder
	_ "image/png"               // Register PNG config decoder
	_ "golang.org/x/image/tiff" // Register TIFF config decoder
)

var (
	// ErrNoInputs is returned when there is nothing to merge.
	ErrNoInputs = errors.New("no input documents")

	// ErrPageCountMismatch is returned when the output does not hold one
	// page per input.
	ErrPageCountMismatch = errors.New("merged page count does not match input")

	// ErrEmptyOutput is returned when the backend reports success but the
	// output file is missing or empty.
	ErrEmptyOutput = errors.New("merged output missing or empty")
)

// Merger builds and concatenates page documents with pdfcpu.
type Merger struct {
	logger *zap.Logger
}

// NewMerger returns a Merger. A nil logger discards logs.
func NewMerger(logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{logger: logger}
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Concat writes docs, in order, into out. The output must hold exactly one
// page per input page.
func (m *Merger) Concat(ctx context.Context, docs []string, out string) error {
	if len(docs) == 0 {
		return ErrNoInputs
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	want := 0
	for _, d := range docs {
		n, err := api.PageCountFile(d)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", filepath.Base(d), err)
		}
		want += n
	}

	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear %s: %w", out, err)
	}
	if err := api.MergeCreateFile(docs, out, false, newConfiguration()); err != nil {
		return fmt.Errorf("failed to merge %d documents: %w", len(docs), err)
	}
	if err := checkNonEmpty(out); err != nil {
		return err
	}

	got, err := api.PageCountFile(out)
	if err != nil {
		return fmt.Errorf("failed to count pages of %s: %w", out, err)
	}
	if got != want {
		return fmt.Errorf("%w: got %d, want %d", ErrPageCountMismatch, got, want)
	}
	m.logger.Debug("merged documents", zap.Int("inputs", len(docs)), zap.Int("pages", got), zap.String("output", out))
	return nil
}

// ImagePage writes a single-page document at out holding the image at
// imagePath. The image is scaled to fit box, aspect preserved, centered.
func (m *Merger) ImagePage(imagePath string, box PageBox, out string) error {
	imp := pdfcpu.DefaultImportConfig()
	dim := box.Points()
	imp.PageDim = &dim
	imp.PageSize = ""
	imp.UserDim = true
	imp.Pos = types.Center
	imp.Scale = 1.0
	imp.ScaleAbs = false
	imp.InpUnit = types.POINTS

	// ImportImagesFile appends to an existing file.
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear %s: %w", out, err)
	}
	if err := api.ImportImagesFile([]string{imagePath}, out, imp, newConfiguration()); err != nil {
		return fmt.Errorf("failed to convert %s: %w", filepath.Base(imagePath), err)
	}
	return checkNonEmpty(out)
}

// ConvertAndMerge converts each image to a page sized by BoxFor and
// concatenates the pages into out. Intermediate page documents are written
// beside each image with a .pdf extension and returned in order.
func (m *Merger) ConvertAndMerge(ctx context.Context, images []string, size scan.PageSize, dpi int, out string) ([]string, error) {
	if len(images) == 0 {
		return nil, ErrNoInputs
	}
	pages := make([]string, 0, len(images))
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		w, h, err := imageSize(img)
		if err != nil {
			return pages, err
		}
		box := BoxFor(size, w, h, dpi)
		page := strings.TrimSuffix(img, filepath.Ext(img)) + scan.DocumentExt
		if err := m.ImagePage(img, box, page); err != nil {
			return pages, err
		}
		m.logger.Debug("converted page", zap.String("image", filepath.Base(img)), zap.Stringer("box", box))
		pages = append(pages, page)
	}
	return pages, m.Concat(ctx, pages, out)
}

// PageCount returns the number of pages in a document.
func PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}

// PageSizes returns the media box of every page in points.
func PageSizes(path string) ([]types.Dim, error) {
	return api.PageDimsFile(path)
}

func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

func checkNonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmptyOutput, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyOutput, path)
	}
	return nil
}
