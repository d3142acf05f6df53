package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akulikov/autograder/internal/core/domain"
	"github.com/akulikov/autograder/internal/core/ports"
)

// SubmissionPipeline orchestrates extraction, grading and result aggregation
// for one submission. Every run owns exclusive scratch storage that is
// released on all exit paths, and always produces one result entry per file
// in input order.
type SubmissionPipeline struct {
	repo    ports.SubmissionRepository
	uploads ports.UploadStore
	scratch ports.ScratchStore
	batch   *BatchCoordinator
	grader  *Grader

	// GradeConcurrency bounds concurrent grading calls within one submission.
	GradeConcurrency int
}

func NewSubmissionPipeline(
	repo ports.SubmissionRepository,
	uploads ports.UploadStore,
	scratch ports.ScratchStore,
	batch *BatchCoordinator,
	grader *Grader,
	gradeConcurrency int,
) *SubmissionPipeline {
	if gradeConcurrency < 1 {
		gradeConcurrency = 1
	}
	return &SubmissionPipeline{
		repo:             repo,
		uploads:          uploads,
		scratch:          scratch,
		batch:            batch,
		grader:           grader,
		GradeConcurrency: gradeConcurrency,
	}
}

func (p *SubmissionPipeline) ProcessByID(ctx context.Context, submissionID string) error {
	sub, err := p.repo.GetByID(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("fetch submission by id: %w", err)
	}

	if err := p.repo.UpdateStatus(ctx, sub.ID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	result, err := p.run(ctx, sub)
	if err != nil {
		if failErr := p.repo.UpdateStatus(ctx, sub.ID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	// A persistence failure is reported to the caller but does not alter the
	// already-computed grading outcome.
	if err := p.repo.SaveResult(ctx, result); err != nil {
		slog.Error("store_submission_result", "submission_id", sub.ID, "error", err)
		return fmt.Errorf("store submission result: %w", err)
	}
	return nil
}

// run executes the extraction and grading stages. The only error it returns
// is the fatal scratch-acquisition failure; everything else is confined to
// per-file result slots.
func (p *SubmissionPipeline) run(ctx context.Context, sub *domain.Submission) (*domain.SubmissionResult, error) {
	scratch, err := p.scratch.Acquire(sub.ID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrScratchUnavailable, "acquire scratch", err)
	}
	defer scratch.Release()

	contents, err := p.stage(ctx, sub, scratch)
	if err != nil {
		return nil, domain.WrapError(domain.ErrScratchUnavailable, "stage files", err)
	}

	results := make([]domain.FileResult, len(sub.Files))
	for i, f := range sub.Files {
		results[i] = domain.FileResult{
			Filename: f.Filename,
			Position: f.Position,
			State:    domain.FileExtracting,
		}
	}

	outcomes := p.batch.Resolve(ctx, sub.Files, contents)
	for i, outcome := range outcomes {
		results[i].ExtractionMethod = outcome.Method
		if outcome.Failed() {
			results[i].State = domain.FileExtractionFailed
			results[i].ErrorMessage = outcome.Err.Error()
			continue
		}
		results[i].State = domain.FileExtracted
	}

	p.gradeAll(ctx, sub, outcomes, results)

	return &domain.SubmissionResult{
		SubmissionID: sub.ID,
		Status:       overallStatus(results),
		Files:        results,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// stage copies every file into the run's scratch space and returns the raw
// contents, indexed like sub.Files.
func (p *SubmissionPipeline) stage(ctx context.Context, sub *domain.Submission, scratch ports.Scratch) ([][]byte, error) {
	contents := make([][]byte, len(sub.Files))
	for i := range sub.Files {
		file := &sub.Files[i]

		src, err := p.uploads.Open(ctx, file.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("open upload %s: %w", file.Filename, err)
		}
		var buf bytes.Buffer
		path, err := scratch.Put(file.StoragePath, io.TeeReader(src, &buf))
		src.Close()
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", file.Filename, err)
		}
		file.ScratchPath = path
		contents[i] = buf.Bytes()
	}
	return contents, nil
}

// gradeAll grades every successfully-extracted file. Files are independent
// and share no mutable state, so grading runs concurrently; each goroutine
// writes only its own result slot, preserving input order.
func (p *SubmissionPipeline) gradeAll(ctx context.Context, sub *domain.Submission, outcomes []domain.ExtractionOutcome, results []domain.FileResult) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.GradeConcurrency)

	for i := range outcomes {
		if results[i].State != domain.FileExtracted {
			continue
		}
		i := i
		results[i].State = domain.FileGrading
		g.Go(func() error {
			record, err := p.grader.Grade(gctx, outcomes[i].Text, sub.Rubric, sub.PointsAvailable)
			if err != nil {
				results[i].State = domain.FileGradingFailed
				results[i].ErrorMessage = gradeErrorMessage(err)
				return nil
			}
			results[i].State = domain.FileGraded
			results[i].Grade = &record
			return nil
		})
	}
	_ = g.Wait()
}

func gradeErrorMessage(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTransient, "grade", err).Error()
	}
	return err.Error()
}

// overallStatus is completed when every file graded, failed when every file
// failed, partial otherwise.
func overallStatus(results []domain.FileResult) domain.SubmissionStatus {
	graded, failed := 0, 0
	for _, r := range results {
		switch r.State {
		case domain.FileGraded:
			graded++
		case domain.FileExtractionFailed, domain.FileGradingFailed:
			failed++
		}
	}
	switch {
	case len(results) == 0:
		return domain.StatusFailed
	case graded == len(results):
		return domain.StatusCompleted
	case failed == len(results):
		return domain.StatusFailed
	default:
		return domain.StatusPartial
	}
}
