package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
)

// IsGray reports whether img stores a single luminance channel.
func IsGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}

// ToGray converts img to 8-bit grayscale. Images that are already gray are
// returned unchanged.
func ToGray(img image.Image) image.Image {
	if IsGray(img) {
		return img
	}

	// bild returns RGBA with equal channels; keep one of them.
	rgba := effect.Grayscale(img)
	b := rgba.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := rgba.Pix[(y-b.Min.Y)*rgba.Stride:]
		dst := gray.Pix[(y-b.Min.Y)*gray.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dst[x] = src[x*4]
		}
	}
	return gray
}
