package imaging

import (
	"fmt"
	"image"
)

// PageGeometry says how a page is shaped before it is stored.
type PageGeometry struct {
	// CropWidth and CropHeight give the top-left anchored crop box in pixels.
	// Zero keeps the native geometry.
	CropWidth, CropHeight int

	// Gray converts color pages to 8-bit grayscale.
	Gray bool

	// DPI is recorded in the written file.
	DPI int
}

// Shape applies g to img.
func (g PageGeometry) Shape(img image.Image) (image.Image, error) {
	out := img
	if g.CropWidth > 0 && g.CropHeight > 0 {
		cropped, err := CropToBox(out, g.CropWidth, g.CropHeight)
		if err != nil {
			return nil, err
		}
		out = cropped
	}
	if g.Gray {
		out = ToGray(out)
	}
	return out, nil
}

// NormalizeFile rewrites the page at path in place according to g.
func NormalizeFile(path string, g PageGeometry) error {
	img, err := LoadPage(path)
	if err != nil {
		return err
	}
	shaped, err := g.Shape(img)
	if err != nil {
		return fmt.Errorf("failed to shape %s: %w", path, err)
	}
	return WriteTIFF(path, shaped, g.DPI)
}
