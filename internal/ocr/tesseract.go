package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/ironsheep/scan2pdf/internal/command"
	"github.com/ironsheep/scan2pdf/internal/config"
	"github.com/ironsheep/scan2pdf/internal/scan"
	"go.uber.org/zap"
)

// Tesseract recognizes pages by running the tesseract program with its pdf
// renderer.
type Tesseract struct {
	Path string
	// TessdataDir is passed as --tessdata-dir when set.
	TessdataDir string
	DPI         int
	Runner      command.Runner
	Logger      *zap.Logger
}

// NewTesseract returns a CLI recognizer. Empty path means tesseract on PATH.
func NewTesseract(path, tessdataDir string, runner command.Runner, logger *zap.Logger) *Tesseract {
	if path == "" {
		path = config.DefaultTesseractPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = command.Exec{Logger: logger}
	}
	return &Tesseract{Path: path, TessdataDir: tessdataDir, DPI: scan.DPI, Runner: runner, Logger: logger}
}

// Args returns the tesseract argument list for one page.
func (t *Tesseract) Args(imagePath, outputBase, language string) []string {
	if language == "" {
		language = scan.DefaultLanguage
	}
	dpi := t.DPI
	if dpi <= 0 {
		dpi = scan.DPI
	}
	args := []string{imagePath, outputBase, "-l", language, "--dpi", strconv.Itoa(dpi)}
	if t.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.TessdataDir)
	}
	return append(args, "pdf")
}

// Recognize runs tesseract on imagePath. Success requires a zero exit status
// and a non-empty outputBase.pdf; stderr only decorates the error.
func (t *Tesseract) Recognize(ctx context.Context, imagePath, outputBase, language string) (string, error) {
	out := outputBase + scan.DocumentExt
	res, err := t.Runner.Run(ctx, t.Path, t.Args(imagePath, outputBase, language)...)
	if err != nil {
		return "", fmt.Errorf("tesseract failed on %s: %w", filepath.Base(imagePath), err)
	}
	if err := checkOutput(out); err != nil {
		if msg := command.Excerpt(res.Stderr); msg != "" {
			return "", fmt.Errorf("%w (stderr: %s)", err, msg)
		}
		return "", err
	}
	t.Logger.Debug("recognized page", zap.String("image", filepath.Base(imagePath)), zap.String("output", out))
	return out, nil
}
