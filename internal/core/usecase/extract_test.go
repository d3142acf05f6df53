package usecase

import (
	"context"
	"testing"

	"github.com/akulikov/autograder/internal/core/domain"
	"github.com/akulikov/autograder/internal/core/ports"
)

type ocrFake struct {
	singleText  string
	singleErr   error
	singleCalls int

	batchItems []ports.BatchOCRItem
	batchErr   error
	batchCalls int
}

func (f *ocrFake) ExtractSingle(context.Context, []byte) (string, error) {
	f.singleCalls++
	if f.singleErr != nil {
		return "", f.singleErr
	}
	return f.singleText, nil
}

func (f *ocrFake) ExtractBatch(context.Context, [][]byte) ([]ports.BatchOCRItem, error) {
	f.batchCalls++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	return f.batchItems, nil
}

type localFake struct {
	text  string
	err   error
	calls int
}

func (f *localFake) ExtractText([]byte) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func pdfFile(name string) domain.SubmissionFile {
	return domain.SubmissionFile{Filename: name, Kind: domain.KindPDF}
}

func textFile(name string) domain.SubmissionFile {
	return domain.SubmissionFile{Filename: name, Kind: domain.KindText}
}

func TestExtractTextFileDecodesDirectly(t *testing.T) {
	ocr := &ocrFake{}
	ext := NewContentExtractor(ocr, &localFake{})

	out := ext.Extract(context.Background(), textFile("essay.txt"), []byte("  my essay  "))
	if out.Failed() {
		t.Fatalf("unexpected failure: %v", out.Err)
	}
	if out.Text != "my essay" {
		t.Fatalf("expected trimmed text, got %q", out.Text)
	}
	if out.Method != domain.MethodDirectText {
		t.Fatalf("expected direct_text method, got %s", out.Method)
	}
	if ocr.singleCalls != 0 {
		t.Fatalf("text file must not hit OCR")
	}
}

func TestExtractTextFileInvalidUTF8FailsWithoutFallback(t *testing.T) {
	local := &localFake{text: "should not be used"}
	ext := NewContentExtractor(&ocrFake{}, local)

	out := ext.Extract(context.Background(), textFile("notes.txt"), []byte{0xff, 0xfe, 0x01})
	if !out.Failed() {
		t.Fatalf("expected failure")
	}
	if !domain.IsKind(out.Err, domain.ErrDecodeFailure) {
		t.Fatalf("expected decode failure, got %v", out.Err)
	}
	if local.calls != 0 {
		t.Fatalf("text files have no extraction fallback")
	}
}

func TestExtractPDFPrefersOCR(t *testing.T) {
	local := &localFake{text: "text layer"}
	ext := NewContentExtractor(&ocrFake{singleText: "ocr text"}, local)

	out := ext.Extract(context.Background(), pdfFile("hw.pdf"), []byte("%PDF"))
	if out.Text != "ocr text" || out.Method != domain.MethodSequentialOCR {
		t.Fatalf("expected sequential ocr outcome, got %+v", out)
	}
	if local.calls != 0 {
		t.Fatalf("local fallback must not run when OCR succeeds")
	}
}

func TestExtractPDFFallsBackToTextLayer(t *testing.T) {
	ocr := &ocrFake{singleErr: domain.WrapErrorf(domain.ErrTierUnsupported, "ocr", "free tier")}
	ext := NewContentExtractor(ocr, &localFake{text: "native text"})

	out := ext.Extract(context.Background(), pdfFile("hw.pdf"), []byte("%PDF"))
	if out.Failed() {
		t.Fatalf("unexpected failure: %v", out.Err)
	}
	if out.Text != "native text" || out.Method != domain.MethodLocalFallback {
		t.Fatalf("expected local fallback outcome, got %+v", out)
	}
}

func TestExtractPDFScannedImageFailsWithOCRError(t *testing.T) {
	ocr := &ocrFake{singleErr: domain.WrapErrorf(domain.ErrTierUnsupported, "ocr", "free tier")}
	local := &localFake{err: domain.WrapErrorf(domain.ErrNoTextLayer, "local extract", "scanned image")}
	ext := NewContentExtractor(ocr, local)

	out := ext.Extract(context.Background(), pdfFile("scan.pdf"), []byte("%PDF"))
	if !out.Failed() {
		t.Fatalf("expected failure")
	}
	if !domain.IsKind(out.Err, domain.ErrTierUnsupported) {
		t.Fatalf("expected the OCR error to win, got %v", out.Err)
	}
}

func TestExtractPDFEmptyOCRTextUsesLocalError(t *testing.T) {
	local := &localFake{text: "   "}
	ext := NewContentExtractor(&ocrFake{singleText: "  "}, local)

	out := ext.Extract(context.Background(), pdfFile("blank.pdf"), []byte("%PDF"))
	if !out.Failed() {
		t.Fatalf("expected failure")
	}
	if !domain.IsKind(out.Err, domain.ErrNoTextLayer) {
		t.Fatalf("expected no-text-layer error, got %v", out.Err)
	}
}
