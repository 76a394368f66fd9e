package pdf

import (
	"fmt"
	"image"
	"math"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Word is a recognized word and its box in image pixels.
type Word struct {
	Text string
	Box  image.Rectangle
}

// minFontPoints keeps tiny boxes selectable.
const minFontPoints = 4

// SearchablePage writes a single-page document at out: the image at
// imagePath sized to its physical dimensions at dpi, with words placed as a
// text layer behind it so the page stays visually identical but searchable.
func (m *Merger) SearchablePage(imagePath string, words []Word, dpi int, out string) error {
	w, h, err := imageSize(imagePath)
	if err != nil {
		return err
	}
	box := PageBox{WidthMM: PixelsToMM(w, dpi), HeightMM: PixelsToMM(h, dpi)}
	if err := m.ImagePage(imagePath, box, out); err != nil {
		return err
	}

	wms, err := textWatermarks(words, h, dpi)
	if err != nil {
		return err
	}
	if len(wms) == 0 {
		return nil
	}

	tmp := out + ".text"
	if err := api.AddWatermarksSliceMapFile(out, tmp, map[int][]*model.Watermark{1: wms}, newConfiguration()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to add text layer: %w", err)
	}
	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", out, err)
	}
	return checkNonEmpty(out)
}

// textWatermarks places each word at its box's bottom-left corner. PDF
// y grows upwards, so image rows are flipped against the page height.
func textWatermarks(words []Word, heightPx, dpi int) ([]*model.Watermark, error) {
	scale := 72 / float64(dpi)
	wms := make([]*model.Watermark, 0, len(words))
	for _, word := range words {
		text := strings.TrimSpace(word.Text)
		if text == "" || word.Box.Empty() {
			continue
		}
		x := float64(word.Box.Min.X) * scale
		y := float64(heightPx-word.Box.Max.Y) * scale
		points := int(math.Max(minFontPoints, math.Round(float64(word.Box.Dy())*scale)))

		desc := fmt.Sprintf("fontname:Helvetica, points:%d, position:bl, offset:%.2f %.2f, scalefactor:1 abs, rotation:0", points, x, y)
		wm, err := api.TextWatermark(text, desc, false, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("failed to place word %q: %w", text, err)
		}
		wms = append(wms, wm)
	}
	return wms, nil
}
