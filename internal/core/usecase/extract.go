package usecase

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/akulikov/autograder/internal/core/domain"
	"github.com/akulikov/autograder/internal/core/ports"
)

// ContentExtractor resolves text for a single file. For PDFs it tries remote
// OCR first and the local text layer second; neither succeeding produces a
// failed outcome carrying the most specific error encountered. Text files are
// decoded directly with no fallback chain.
type ContentExtractor struct {
	ocr   ports.OCRClient
	local ports.LocalTextExtractor
}

func NewContentExtractor(ocr ports.OCRClient, local ports.LocalTextExtractor) *ContentExtractor {
	return &ContentExtractor{ocr: ocr, local: local}
}

func (e *ContentExtractor) Extract(ctx context.Context, file domain.SubmissionFile, raw []byte) domain.ExtractionOutcome {
	switch file.Kind {
	case domain.KindText:
		return e.decodeText(file, raw)
	case domain.KindPDF:
		return e.extractPDF(ctx, raw)
	default:
		return domain.ExtractionOutcome{
			Method: domain.MethodFailed,
			Err:    domain.WrapErrorf(domain.ErrDecodeFailure, "extract", "unknown file kind %q", file.Kind),
		}
	}
}

func (e *ContentExtractor) decodeText(file domain.SubmissionFile, raw []byte) domain.ExtractionOutcome {
	if !utf8.Valid(raw) {
		return domain.ExtractionOutcome{
			Method: domain.MethodFailed,
			Err:    domain.WrapErrorf(domain.ErrDecodeFailure, "decode text", "%s is not valid utf-8", file.Filename),
		}
	}
	return domain.ExtractionOutcome{
		Text:   strings.TrimSpace(string(raw)),
		Method: domain.MethodDirectText,
	}
}

func (e *ContentExtractor) extractPDF(ctx context.Context, raw []byte) domain.ExtractionOutcome {
	text, ocrErr := e.ocr.ExtractSingle(ctx, raw)
	if ocrErr == nil && strings.TrimSpace(text) != "" {
		return domain.ExtractionOutcome{
			Text:   strings.TrimSpace(text),
			Method: domain.MethodSequentialOCR,
		}
	}

	outcome := e.localFallback(raw)
	if !outcome.Failed() {
		return outcome
	}
	// Report the remote failure when it exists; the local one is only the
	// most specific error when OCR itself produced usable-but-empty output.
	if ocrErr != nil {
		outcome.Err = ocrErr
	}
	return outcome
}

// localFallback works for text-native PDFs and fails on pure-image scans.
func (e *ContentExtractor) localFallback(raw []byte) domain.ExtractionOutcome {
	text, err := e.local.ExtractText(raw)
	if err != nil {
		return domain.ExtractionOutcome{Method: domain.MethodFailed, Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ExtractionOutcome{
			Method: domain.MethodFailed,
			Err:    domain.WrapErrorf(domain.ErrNoTextLayer, "local extract", "text layer is empty"),
		}
	}
	return domain.ExtractionOutcome{Text: text, Method: domain.MethodLocalFallback}
}
