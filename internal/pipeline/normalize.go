package pipeline

import (
	"context"

	"github.com/ironsheep/scan2pdf/internal/imaging"
	"github.com/ironsheep/scan2pdf/internal/scan"
	"github.com/ironsheep/scan2pdf/internal/status"
	"go.uber.org/zap"
)

// Normalizer rewrites raw pages in place to the requested geometry and
// pixel format.
type Normalizer struct {
	Workers int
	Logger  *zap.Logger
}

// Geometry returns the page shaping for req: Letter pages are cropped (never
// scaled) to the Letter box at the request resolution, gray requests force
// 8-bit gray.
func Geometry(req scan.Request) imaging.PageGeometry {
	g := imaging.PageGeometry{Gray: req.Color == scan.Grayscale, DPI: req.DPI}
	if req.PageSize == scan.Letter {
		g.CropWidth, g.CropHeight = req.LetterBox()
	}
	return g
}

// Normalize shapes every page of set. Pages already rewritten stay rewritten
// when a later page fails.
func (n *Normalizer) Normalize(ctx context.Context, set *scan.WorkingSet, req scan.Request, rep status.Reporter) error {
	logger := n.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	g := Geometry(req)
	total := set.Len()

	pe, err := forEachPage(ctx, set.Pages, n.Workers, func(_ context.Context, _ int, page scan.Artifact) error {
		if err := imaging.NormalizeFile(page.Path, g); err != nil {
			return err
		}
		rep.Page(scan.StageNormalizing, page.Index, total, "Normalized Page: %d of %d", page.Index, total)
		logger.Debug("page normalized", zap.Int("page", page.Index))
		return nil
	})
	if err != nil {
		return canceled(scan.StageNormalizing, err)
	}
	if pe != nil {
		return scan.FailPage(scan.StageNormalizing, scan.KindNormalize, pe.page, pe.err)
	}
	return nil
}
