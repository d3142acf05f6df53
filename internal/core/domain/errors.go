package domain

import (
	"errors"
	"fmt"
)

// Extraction error kinds. Remote OCR failures and local fallback failures are
// kept distinguishable so the extractor can report the most specific cause.
var (
	ErrRateLimited     = errors.New("ocr rate limited")
	ErrTierUnsupported = errors.New("ocr operation unsupported on current tier")
	ErrTransient       = errors.New("temporary failure")
	ErrMalformed       = errors.New("malformed provider response")
	ErrNoTextLayer     = errors.New("pdf has no text layer")
	ErrDecodeFailure   = errors.New("cannot decode file content")
)

// Grading error kinds.
var (
	ErrGraderUnreachable = errors.New("grading service unreachable")
	ErrInvalidGrade      = errors.New("grading response not parseable")
	ErrScoreOverrun      = errors.New("grading response violates score bounds")
)

// Persistence error kinds.
var (
	ErrStoreUnavailable = errors.New("result store unavailable")
	ErrConflict         = errors.New("result already stored")
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrInvalidInput       = errors.New("invalid input")

	// ErrScratchUnavailable is the only whole-submission-fatal condition:
	// nothing can proceed without temporary storage for the incoming files.
	ErrScratchUnavailable = errors.New("scratch storage unavailable")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func WrapErrorf(kind error, operation, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", operation, kind, fmt.Sprintf(format, args...))
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
