package scan

import (
	"errors"
	"fmt"
)

// Stage is a pipeline controller state.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageAcquiring   Stage = "acquiring"
	StageNormalizing Stage = "normalizing"
	StageRecognizing Stage = "recognizing"
	StageMerging     Stage = "merging"
	StageVerifying   Stage = "verifying"
	StageSucceeded   Stage = "succeeded"
	StageFailed      Stage = "failed"
)

// Terminal reports whether no transition leaves s.
func (s Stage) Terminal() bool {
	return s == StageSucceeded || s == StageFailed
}

// Kind classifies a pipeline failure.
type Kind string

const (
	KindDeviceNotFound  Kind = "DeviceNotFound"
	KindFeederEmpty     Kind = "FeederEmpty"
	KindNoPagesScanned  Kind = "NoPagesScanned"
	KindDeviceIO        Kind = "DeviceIO"
	KindNormalize       Kind = "NormalizeError"
	KindOCREngine       Kind = "OcrEngineError"
	KindMerge           Kind = "MergeError"
	KindOutputMissing   Kind = "OutputMissing"
	KindCanceled        Kind = "Canceled"
	KindBackendDegraded Kind = "BackendDegraded"
)

// Kind sentinels. A *Error of a given kind matches the sentinel under errors.Is.
var (
	ErrDeviceNotFound  = errors.New("no scanning device found")
	ErrFeederEmpty     = errors.New("document feeder is empty")
	ErrNoPagesScanned  = errors.New("no pages scanned")
	ErrDeviceIO        = errors.New("device i/o failure")
	ErrNormalize       = errors.New("page normalization failed")
	ErrOCREngine       = errors.New("ocr engine failed")
	ErrMerge           = errors.New("merge failed")
	ErrOutputMissing   = errors.New("output document missing")
	ErrCanceled        = errors.New("run canceled")
	ErrBackendDegraded = errors.New("backend option not honored")
)

var kindSentinels = map[Kind]error{
	KindDeviceNotFound:  ErrDeviceNotFound,
	KindFeederEmpty:     ErrFeederEmpty,
	KindNoPagesScanned:  ErrNoPagesScanned,
	KindDeviceIO:        ErrDeviceIO,
	KindNormalize:       ErrNormalize,
	KindOCREngine:       ErrOCREngine,
	KindMerge:           ErrMerge,
	KindOutputMissing:   ErrOutputMissing,
	KindCanceled:        ErrCanceled,
	KindBackendDegraded: ErrBackendDegraded,
}

// Sentinel returns the sentinel error for k, or nil for an unknown kind.
func (k Kind) Sentinel() error { return kindSentinels[k] }

// Error is a tagged pipeline failure.
type Error struct {
	Stage Stage
	Kind  Kind
	// Page is the 1-based page index for per-page failures, 0 otherwise.
	Page int
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	if e.Page > 0 {
		msg += fmt.Sprintf(" (page %d)", e.Page)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.Sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Fail builds a stage failure.
func Fail(stage Stage, kind Kind, err error) *Error {
	return &Error{Stage: stage, Kind: kind, Err: err}
}

// FailPage builds a per-page stage failure.
func FailPage(stage Stage, kind Kind, page int, err error) *Error {
	return &Error{Stage: stage, Kind: kind, Page: page, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
