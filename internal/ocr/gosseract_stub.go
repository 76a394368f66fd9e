//go:build !ocr

package ocr

import (
	"context"

	"go.uber.org/zap"
)

// Gosseract is the in-process engine. This build does not include it.
type Gosseract struct{}

// NewGosseract returns a recognizer that always fails with ErrOCRNotEnabled.
func NewGosseract(string, *zap.Logger) Recognizer {
	return Gosseract{}
}

func (Gosseract) Recognize(context.Context, string, string, string) (string, error) {
	return "", ErrOCRNotEnabled
}

func gosseractAvailable() error {
	return ErrOCRNotEnabled
}

// ExtractText is unavailable without the ocr build tag.
func ExtractText(string, string, string) (*OCRResult, error) {
	return nil, ErrOCRNotEnabled
}
