package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/akulikov/autograder/internal/core/domain"
	"github.com/akulikov/autograder/internal/core/ports"
)

// BatchCoordinator resolves text for a whole submission. PDF files go through
// one bulk OCR request first; non-PDF files and any PDF the bulk call could
// not cover fall back to the per-file ContentExtractor. The output always has
// exactly one outcome per input file, in input order.
type BatchCoordinator struct {
	ocr       ports.OCRClient
	extractor *ContentExtractor
}

func NewBatchCoordinator(ocr ports.OCRClient, extractor *ContentExtractor) *BatchCoordinator {
	return &BatchCoordinator{ocr: ocr, extractor: extractor}
}

// Resolve takes the files plus their raw contents, indexed identically.
func (b *BatchCoordinator) Resolve(ctx context.Context, files []domain.SubmissionFile, contents [][]byte) []domain.ExtractionOutcome {
	outcomes := make([]domain.ExtractionOutcome, len(files))

	pdfIdx := make([]int, 0, len(files))
	for i, f := range files {
		if f.Kind == domain.KindPDF {
			pdfIdx = append(pdfIdx, i)
		}
	}

	if len(pdfIdx) > 1 {
		b.resolveBulk(ctx, pdfIdx, contents, outcomes)
	}

	for i := range files {
		if outcomes[i].Method != "" {
			continue
		}
		outcomes[i] = b.extractor.Extract(ctx, files[i], contents[i])
	}
	return outcomes
}

// resolveBulk fills outcome slots for PDFs the bulk call covered. A bulk-level
// failure (tier/configuration, not per-file) leaves every slot empty so the
// sequential path picks those files up.
func (b *BatchCoordinator) resolveBulk(ctx context.Context, pdfIdx []int, contents [][]byte, outcomes []domain.ExtractionOutcome) {
	docs := make([][]byte, len(pdfIdx))
	for n, i := range pdfIdx {
		docs[n] = contents[i]
	}

	items, err := b.ocr.ExtractBatch(ctx, docs)
	if err != nil {
		slog.Warn("bulk_ocr_failed", "files", len(pdfIdx), "error", err)
		return
	}
	if len(items) != len(pdfIdx) {
		slog.Warn("bulk_ocr_result_mismatch", "want", len(pdfIdx), "got", len(items))
		return
	}

	for n, i := range pdfIdx {
		item := items[n]
		text := strings.TrimSpace(item.Text)
		if item.Err != nil || text == "" {
			// Missing per-file result; leave the slot for sequential retry.
			continue
		}
		outcomes[i] = domain.ExtractionOutcome{Text: text, Method: domain.MethodBatchOCR}
	}
}
