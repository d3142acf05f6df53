package usecase

import (
	"context"
	"testing"

	"github.com/akulikov/autograder/internal/core/domain"
	"github.com/akulikov/autograder/internal/core/ports"
)

func batchInput(kinds ...domain.FileKind) ([]domain.SubmissionFile, [][]byte) {
	files := make([]domain.SubmissionFile, len(kinds))
	contents := make([][]byte, len(kinds))
	for i, kind := range kinds {
		files[i] = domain.SubmissionFile{Filename: "f", Kind: kind, Position: i}
		contents[i] = []byte("content")
	}
	return files, contents
}

func TestResolveBulkSuccessCoversAllPDFs(t *testing.T) {
	ocr := &ocrFake{batchItems: []ports.BatchOCRItem{{Text: "one"}, {Text: "two"}}}
	coord := NewBatchCoordinator(ocr, NewContentExtractor(ocr, &localFake{}))

	files, contents := batchInput(domain.KindPDF, domain.KindPDF)
	outcomes := coord.Resolve(context.Background(), files, contents)

	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for i, want := range []string{"one", "two"} {
		if outcomes[i].Method != domain.MethodBatchOCR || outcomes[i].Text != want {
			t.Fatalf("outcome %d: %+v", i, outcomes[i])
		}
	}
	if ocr.singleCalls != 0 {
		t.Fatalf("no sequential calls expected, got %d", ocr.singleCalls)
	}
}

func TestResolveBulkFailureDegradesToSequential(t *testing.T) {
	// 5 PDFs, 1 scanned image among 4 native-text ones; the bulk call fails
	// as a whole and OCR stays unavailable for the sequential pass.
	ocr := &ocrFake{
		batchErr:  domain.WrapErrorf(domain.ErrTierUnsupported, "ocr batch", "batch requires paid tier"),
		singleErr: domain.WrapErrorf(domain.ErrTierUnsupported, "ocr", "free tier"),
	}
	locals := 0
	local := &switchingLocalFake{
		texts: map[int]string{0: "a", 1: "b", 2: "", 3: "c", 4: "d"},
		calls: &locals,
	}
	coord := NewBatchCoordinator(ocr, NewContentExtractor(ocr, local))

	files, contents := batchInput(domain.KindPDF, domain.KindPDF, domain.KindPDF, domain.KindPDF, domain.KindPDF)
	outcomes := coord.Resolve(context.Background(), files, contents)

	if len(outcomes) != 5 {
		t.Fatalf("expected 5 outcomes, got %d", len(outcomes))
	}
	succeeded, failed := 0, 0
	for _, out := range outcomes {
		if out.Failed() {
			failed++
			continue
		}
		if out.Method != domain.MethodLocalFallback {
			t.Fatalf("expected local fallback, got %s", out.Method)
		}
		succeeded++
	}
	if succeeded != 4 || failed != 1 {
		t.Fatalf("expected 4 successes and 1 failure, got %d/%d", succeeded, failed)
	}
}

func TestResolvePartialBulkFillsMissingSlotsOnly(t *testing.T) {
	ocr := &ocrFake{
		batchItems: []ports.BatchOCRItem{
			{Text: "from batch"},
			{Err: domain.WrapErrorf(domain.ErrTransient, "ocr batch", "page timeout")},
		},
		singleText: "from sequential",
	}
	coord := NewBatchCoordinator(ocr, NewContentExtractor(ocr, &localFake{}))

	files, contents := batchInput(domain.KindPDF, domain.KindPDF)
	outcomes := coord.Resolve(context.Background(), files, contents)

	if outcomes[0].Method != domain.MethodBatchOCR || outcomes[0].Text != "from batch" {
		t.Fatalf("outcome 0: %+v", outcomes[0])
	}
	if outcomes[1].Method != domain.MethodSequentialOCR || outcomes[1].Text != "from sequential" {
		t.Fatalf("outcome 1: %+v", outcomes[1])
	}
	if ocr.singleCalls != 1 {
		t.Fatalf("expected exactly 1 sequential call, got %d", ocr.singleCalls)
	}
}

func TestResolveNonPDFBypassesBatching(t *testing.T) {
	ocr := &ocrFake{batchItems: []ports.BatchOCRItem{{Text: "pdf one"}, {Text: "pdf two"}}}
	coord := NewBatchCoordinator(ocr, NewContentExtractor(ocr, &localFake{}))

	files, contents := batchInput(domain.KindText, domain.KindPDF, domain.KindPDF)
	contents[0] = []byte("plain notes")
	outcomes := coord.Resolve(context.Background(), files, contents)

	if outcomes[0].Method != domain.MethodDirectText || outcomes[0].Text != "plain notes" {
		t.Fatalf("outcome 0: %+v", outcomes[0])
	}
	if outcomes[1].Method != domain.MethodBatchOCR || outcomes[2].Method != domain.MethodBatchOCR {
		t.Fatalf("pdf outcomes: %+v %+v", outcomes[1], outcomes[2])
	}
}

func TestResolveNeverDropsASlot(t *testing.T) {
	ocr := &ocrFake{
		batchErr:  domain.WrapErrorf(domain.ErrTransient, "ocr batch", "down"),
		singleErr: domain.WrapErrorf(domain.ErrTransient, "ocr", "down"),
	}
	local := &localFake{err: domain.WrapErrorf(domain.ErrNoTextLayer, "local extract", "scan")}
	coord := NewBatchCoordinator(ocr, NewContentExtractor(ocr, local))

	files, contents := batchInput(domain.KindPDF, domain.KindPDF, domain.KindPDF)
	outcomes := coord.Resolve(context.Background(), files, contents)

	if len(outcomes) != len(files) {
		t.Fatalf("expected %d outcomes, got %d", len(files), len(outcomes))
	}
	for i, out := range outcomes {
		if !out.Failed() || out.Err == nil {
			t.Fatalf("slot %d should be a failed outcome with an error, got %+v", i, out)
		}
	}
}

// switchingLocalFake returns a different text per call position.
type switchingLocalFake struct {
	texts map[int]string
	calls *int
}

func (f *switchingLocalFake) ExtractText([]byte) (string, error) {
	idx := *f.calls
	*f.calls++
	text := f.texts[idx]
	if text == "" {
		return "", domain.WrapErrorf(domain.ErrNoTextLayer, "local extract", "scanned image")
	}
	return text, nil
}
