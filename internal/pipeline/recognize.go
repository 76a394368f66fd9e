package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ironsheep/scan2pdf/internal/ocr"
	"github.com/ironsheep/scan2pdf/internal/scan"
	"github.com/ironsheep/scan2pdf/internal/status"
	"go.uber.org/zap"
)

// Recognizer runs OCR over every page, turning raw images into single-page
// searchable documents.
type Recognizer struct {
	Engine  ocr.Recognizer
	Workers int
	Logger  *zap.Logger
}

// Recognize converts set in place: on success every artifact is a
// PageDocument with the same index. The first failing page stops the stage.
func (r *Recognizer) Recognize(ctx context.Context, set *scan.WorkingSet, language string, rep status.Reporter) error {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	total := set.Len()

	pe, err := forEachPage(ctx, set.Pages, r.Workers, func(ctx context.Context, i int, page scan.Artifact) error {
		rep.Page(scan.StageRecognizing, page.Index, total, "OCR Page: %d of %d", page.Index, total)
		base := strings.TrimSuffix(page.Path, filepath.Ext(page.Path))
		out, err := r.Engine.Recognize(ctx, page.Path, base, language)
		if err != nil {
			return err
		}
		if out != set.PagePath(page.Index, scan.DocumentExt) {
			return fmt.Errorf("engine wrote %s, want %s", filepath.Base(out), scan.PageName(page.Index, scan.DocumentExt))
		}
		// Workers own distinct slots.
		set.Pages[i] = scan.Artifact{Index: page.Index, Path: out, Format: scan.PageDocument}
		logger.Debug("page recognized", zap.Int("page", page.Index))
		return nil
	})
	if err != nil {
		return canceled(scan.StageRecognizing, err)
	}
	if pe != nil {
		return scan.FailPage(scan.StageRecognizing, scan.KindOCREngine, pe.page, pe.err)
	}
	return nil
}
