package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/akulikov/autograder/internal/core/domain"
	"github.com/akulikov/autograder/internal/core/ports"
)

type intakeRepoFake struct {
	created *domain.Submission
	err     error
}

func (f *intakeRepoFake) Create(_ context.Context, sub *domain.Submission) error {
	if f.err != nil {
		return f.err
	}
	copySub := *sub
	f.created = &copySub
	return nil
}

func (f *intakeRepoFake) GetByID(context.Context, string) (*domain.Submission, error) {
	return nil, errors.New("not implemented")
}
func (f *intakeRepoFake) UpdateStatus(context.Context, string, domain.SubmissionStatus, string) error {
	return errors.New("not implemented")
}
func (f *intakeRepoFake) SaveResult(context.Context, *domain.SubmissionResult) error {
	return errors.New("not implemented")
}
func (f *intakeRepoFake) GetResult(context.Context, string) (*domain.SubmissionResult, error) {
	return nil, errors.New("not implemented")
}

type intakeUploadsFake struct {
	keys []string
	err  error
}

func (f *intakeUploadsFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	if _, err := io.Copy(io.Discard, data); err != nil {
		return err
	}
	f.keys = append(f.keys, key)
	return nil
}

func (f *intakeUploadsFake) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

type intakeQueueFake struct {
	submissionID string
	err          error
}

func (f *intakeQueueFake) PublishSubmissionAccepted(_ context.Context, submissionID string) error {
	if f.err != nil {
		return f.err
	}
	f.submissionID = submissionID
	return nil
}

func (f *intakeQueueFake) SubscribeSubmissionAccepted(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func upload(name, mime, body string) ports.FileUpload {
	return ports.FileUpload{
		Filename:  name,
		MimeType:  mime,
		SizeBytes: int64(len(body)),
		Body:      bytes.NewBufferString(body),
	}
}

func TestAcceptQueuesSubmission(t *testing.T) {
	repo := &intakeRepoFake{}
	uploads := &intakeUploadsFake{}
	queue := &intakeQueueFake{}
	uc := NewSubmissionIntake(repo, uploads, queue, 10*1024*1024, 100)

	sub, err := uc.Accept(context.Background(), []ports.FileUpload{
		upload("hw 1.pdf", "application/pdf", "%PDF"),
		upload("notes.txt", "text/plain", "notes"),
	}, "Q1[10pts]", 0)
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if sub.Status != domain.StatusQueued {
		t.Fatalf("expected queued, got %s", sub.Status)
	}
	if sub.PointsAvailable != 100 {
		t.Fatalf("expected default points, got %f", sub.PointsAvailable)
	}
	if sub.Files[0].Kind != domain.KindPDF || sub.Files[1].Kind != domain.KindText {
		t.Fatalf("unexpected kinds: %+v", sub.Files)
	}
	if len(uploads.keys) != 2 || !strings.Contains(uploads.keys[0], "hw_1.pdf") {
		t.Fatalf("unexpected upload keys: %v", uploads.keys)
	}
	if repo.created == nil {
		t.Fatalf("expected repo.Create call")
	}
	if queue.submissionID != sub.ID {
		t.Fatalf("expected queued job for %s, got %s", sub.ID, queue.submissionID)
	}
}

func TestAcceptRejectsOversizedFileBeforeAnySideEffect(t *testing.T) {
	repo := &intakeRepoFake{}
	uploads := &intakeUploadsFake{}
	queue := &intakeQueueFake{}
	uc := NewSubmissionIntake(repo, uploads, queue, 16, 100)

	_, err := uc.Accept(context.Background(), []ports.FileUpload{
		upload("small.txt", "text/plain", "ok"),
		upload("big.pdf", "application/pdf", strings.Repeat("x", 64)),
	}, "rubric", 100)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(uploads.keys) != 0 {
		t.Fatalf("oversized submission must not be stored")
	}
	if queue.submissionID != "" {
		t.Fatalf("oversized submission must not be queued")
	}
}

func TestAcceptRequiresRubric(t *testing.T) {
	uc := NewSubmissionIntake(&intakeRepoFake{}, &intakeUploadsFake{}, &intakeQueueFake{}, 1024, 100)
	_, err := uc.Accept(context.Background(), []ports.FileUpload{upload("a.txt", "text/plain", "x")}, "  ", 10)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAcceptQueuePublishFailureSurfaces(t *testing.T) {
	queue := &intakeQueueFake{err: errors.New("queue down")}
	uc := NewSubmissionIntake(&intakeRepoFake{}, &intakeUploadsFake{}, queue, 1024, 100)

	_, err := uc.Accept(context.Background(), []ports.FileUpload{upload("a.txt", "text/plain", "x")}, "rubric", 10)
	if err == nil || !strings.Contains(err.Error(), "publish submission job") {
		t.Fatalf("expected publish error, got %v", err)
	}
}
