package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// CropToBox cuts the width x height box anchored at the image's top-left
// corner. The page is never scaled. Where the source is smaller than the box
// the remainder is filled with white, so the result is always exactly
// width x height.
func CropToBox(img image.Image, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid crop box %dx%d: dimensions must be positive", width, height)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("cannot crop empty image")
	}

	rect := image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Min.X+width, bounds.Min.Y+height)
	cropped := imaging.Crop(img, rect)
	if cropped.Bounds().Dx() == width && cropped.Bounds().Dy() == height {
		return cropped, nil
	}

	canvas := imaging.New(width, height, color.White)
	return imaging.Paste(canvas, cropped, image.Pt(0, 0)), nil
}
