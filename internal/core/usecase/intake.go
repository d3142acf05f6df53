package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/akulikov/autograder/internal/core/domain"
	"github.com/akulikov/autograder/internal/core/ports"
)

// SubmissionIntake receives a submission, rejects oversized files before the
// pipeline is ever involved, persists the originals and queues the grading
// job.
type SubmissionIntake struct {
	repo    ports.SubmissionRepository
	uploads ports.UploadStore
	queue   ports.MessageQueue

	MaxFileSizeBytes int64
	DefaultPoints    float64
}

func NewSubmissionIntake(
	repo ports.SubmissionRepository,
	uploads ports.UploadStore,
	queue ports.MessageQueue,
	maxFileSizeBytes int64,
	defaultPoints float64,
) *SubmissionIntake {
	return &SubmissionIntake{
		repo:             repo,
		uploads:          uploads,
		queue:            queue,
		MaxFileSizeBytes: maxFileSizeBytes,
		DefaultPoints:    defaultPoints,
	}
}

func (uc *SubmissionIntake) Accept(ctx context.Context, files []ports.FileUpload, rubric string, pointsAvailable float64) (*domain.Submission, error) {
	if len(files) == 0 {
		return nil, domain.WrapErrorf(domain.ErrInvalidInput, "accept submission", "no files provided")
	}
	if strings.TrimSpace(rubric) == "" {
		return nil, domain.WrapErrorf(domain.ErrInvalidInput, "accept submission", "rubric is required")
	}
	if pointsAvailable <= 0 {
		pointsAvailable = uc.DefaultPoints
	}

	for _, f := range files {
		if f.SizeBytes > uc.MaxFileSizeBytes {
			return nil, domain.WrapErrorf(domain.ErrInvalidInput, "accept submission",
				"file %s is %d bytes, limit is %d", f.Filename, f.SizeBytes, uc.MaxFileSizeBytes)
		}
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	sub := &domain.Submission{
		ID:              id,
		Rubric:          rubric,
		PointsAvailable: pointsAvailable,
		Status:          domain.StatusQueued,
		Files:           make([]domain.SubmissionFile, 0, len(files)),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for i, f := range files {
		storageKey := fmt.Sprintf("%s_%d_%s", id, i, sanitizeFilename(f.Filename))
		if err := uc.uploads.Save(ctx, storageKey, f.Body); err != nil {
			return nil, fmt.Errorf("save upload %s: %w", f.Filename, err)
		}
		sub.Files = append(sub.Files, domain.SubmissionFile{
			ID:          uuid.NewString(),
			Filename:    f.Filename,
			Kind:        detectKind(f.Filename, f.MimeType),
			StoragePath: storageKey,
			SizeBytes:   f.SizeBytes,
			Position:    i,
		})
	}

	if err := uc.repo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}

	if err := uc.queue.PublishSubmissionAccepted(ctx, sub.ID); err != nil {
		return nil, fmt.Errorf("publish submission job: %w", err)
	}
	return sub, nil
}

func detectKind(filename, mimeType string) domain.FileKind {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") || strings.EqualFold(mimeType, "application/pdf") {
		return domain.KindPDF
	}
	return domain.KindText
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "submission.bin"
	}
	return base
}
