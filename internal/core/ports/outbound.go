package ports

import (
	"context"
	"io"

	"github.com/akulikov/autograder/internal/core/domain"
)

// SubmissionRepository persists submission state, file metadata and results.
type SubmissionRepository interface {
	Create(ctx context.Context, sub *domain.Submission) error
	GetByID(ctx context.Context, id string) (*domain.Submission, error)
	UpdateStatus(ctx context.Context, id string, status domain.SubmissionStatus, errMessage string) error
	SaveResult(ctx context.Context, result *domain.SubmissionResult) error
	GetResult(ctx context.Context, submissionID string) (*domain.SubmissionResult, error)
}

// UploadStore keeps the original uploaded files.
type UploadStore interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Scratch is one submission's exclusive temporary storage. Release removes
// everything the scratch holds and is safe to call on every exit path.
type Scratch interface {
	Put(name string, data io.Reader) (path string, err error)
	Release()
}

// ScratchStore hands out per-submission scratch space.
type ScratchStore interface {
	Acquire(submissionID string) (Scratch, error)
}

// BatchOCRItem is the bulk OCR collaborator's per-file outcome. A file the
// provider skipped or rejected carries Err and an empty Text.
type BatchOCRItem struct {
	Text string
	Err  error
}

// OCRClient is the remote OCR collaborator. Failures are distinguishable via
// domain.ErrRateLimited, ErrTierUnsupported, ErrTransient and ErrMalformed.
type OCRClient interface {
	// ExtractBatch covers all documents in one provider request. A non-nil
	// error means the bulk call failed as a whole; otherwise the returned
	// slice has exactly one item per input document.
	ExtractBatch(ctx context.Context, docs [][]byte) ([]BatchOCRItem, error)
	ExtractSingle(ctx context.Context, doc []byte) (string, error)
}

// LocalTextExtractor pulls the embedded text layer out of a PDF without any
// network call. Fails with domain.ErrNoTextLayer for pure-image PDFs.
type LocalTextExtractor interface {
	ExtractText(pdf []byte) (string, error)
}

// GradeRequest is one grading call. CorrectionNote is non-empty on a
// re-request after the previous response violated score bounds.
type GradeRequest struct {
	Text            string
	Rubric          string
	PointsAvailable float64
	CorrectionNote  string
}

// GradingClient is the remote grading collaborator.
type GradingClient interface {
	GradeText(ctx context.Context, req GradeRequest) (domain.GradeRecord, error)
}

// MessageQueue publishes/consumes submission processing jobs.
type MessageQueue interface {
	PublishSubmissionAccepted(ctx context.Context, submissionID string) error
	SubscribeSubmissionAccepted(ctx context.Context, handler func(context.Context, string) error) error
}
