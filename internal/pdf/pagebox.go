package pdf

import (
	"fmt"

	"github.com/ironsheep/scan2pdf/internal/scan"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const mmPerInch = 25.4

// Letter page in millimetres.
const (
	LetterWidthMM  = 215.9
	LetterHeightMM = 279.4
)

// PageBox is a physical page size.
type PageBox struct {
	WidthMM, HeightMM float64
}

// MMToPoints converts millimetres to PDF points.
func MMToPoints(mm float64) float64 {
	return mm * 72 / mmPerInch
}

// PixelsToMM converts a pixel length at dpi to millimetres.
func PixelsToMM(px, dpi int) float64 {
	return float64(px) * mmPerInch / float64(dpi)
}

// Points returns the box in PDF points.
func (b PageBox) Points() types.Dim {
	return types.Dim{Width: MMToPoints(b.WidthMM), Height: MMToPoints(b.HeightMM)}
}

func (b PageBox) String() string {
	return fmt.Sprintf("%.1fx%.1fmm", b.WidthMM, b.HeightMM)
}

// BoxFor returns the page box for an image of widthPx x heightPx scanned at
// dpi. Letter pages always get the Letter box regardless of the image;
// native pages take the image's physical size.
func BoxFor(size scan.PageSize, widthPx, heightPx, dpi int) PageBox {
	if size == scan.Letter {
		return PageBox{WidthMM: LetterWidthMM, HeightMM: LetterHeightMM}
	}
	return PageBox{WidthMM: PixelsToMM(widthPx, dpi), HeightMM: PixelsToMM(heightPx, dpi)}
}
