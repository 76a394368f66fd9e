package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidOutputDir is returned when no output directory is configured.
	ErrInvalidOutputDir = errors.New("invalid output directory: must not be empty")

	// ErrUnknownDeviceBackend is returned for a device backend other than
	// "sane" or "test".
	ErrUnknownDeviceBackend = errors.New("unknown device backend: want sane or test")

	// ErrUnknownOCREngine is returned for an OCR engine other than
	// "tesseract" or "gosseract".
	ErrUnknownOCREngine = errors.New("unknown ocr engine: want tesseract or gosseract")

	// ErrInvalidWorkers is returned when a worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidSettle is returned when the feeder settle interval is negative.
	ErrInvalidSettle = errors.New("invalid feeder settle interval: must be non-negative")

	// ErrInvalidLanguage is returned when the OCR language is empty.
	ErrInvalidLanguage = errors.New("invalid ocr language: must not be empty")
)
