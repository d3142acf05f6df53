package ports

import (
	"context"
	"io"

	"github.com/akulikov/autograder/internal/core/domain"
)

// FileUpload is one incoming file as handed over by upload reception.
type FileUpload struct {
	Filename  string
	MimeType  string
	SizeBytes int64
	Body      io.Reader
}

// SubmissionIntake is the inbound contract for accepting a submission.
type SubmissionIntake interface {
	Accept(ctx context.Context, files []FileUpload, rubric string, pointsAvailable float64) (*domain.Submission, error)
}

// SubmissionProcessor is the inbound contract for running the grading pipeline.
type SubmissionProcessor interface {
	ProcessByID(ctx context.Context, submissionID string) error
}

// SubmissionReader is the inbound read model for submission state and results.
type SubmissionReader interface {
	GetByID(ctx context.Context, id string) (*domain.Submission, error)
	GetResult(ctx context.Context, id string) (*domain.SubmissionResult, error)
}
