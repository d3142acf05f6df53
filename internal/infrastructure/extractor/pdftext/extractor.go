package pdftext

import (
	"bytes"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/akulikov/autograder/internal/core/domain"
)

// Extractor pulls the embedded text layer out of a PDF without any network
// dependency. It succeeds on text-native PDFs and fails with ErrNoTextLayer
// on pure-image scans, which is exactly the split the OCR fallback chain
// needs.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ExtractText(raw []byte) (text string, err error) {
	// The pdf package panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = domain.WrapErrorf(domain.ErrDecodeFailure, "parse pdf", "parser panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", domain.WrapError(domain.ErrDecodeFailure, "parse pdf", err)
	}

	content, err := reader.GetPlainText()
	if err != nil {
		return "", domain.WrapError(domain.ErrNoTextLayer, "read text layer", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, content); err != nil {
		return "", domain.WrapError(domain.ErrNoTextLayer, "read text layer", err)
	}

	text = strings.TrimSpace(buf.String())
	if text == "" {
		return "", domain.WrapErrorf(domain.ErrNoTextLayer, "read text layer", "document has no embedded text")
	}
	return text, nil
}
