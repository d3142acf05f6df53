package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/akulikov/autograder/internal/config"
	"github.com/akulikov/autograder/internal/core/ports"
	"github.com/akulikov/autograder/internal/core/usecase"
	"github.com/akulikov/autograder/internal/infrastructure/extractor/pdftext"
	"github.com/akulikov/autograder/internal/infrastructure/grader/deepseek"
	"github.com/akulikov/autograder/internal/infrastructure/ocr/mistral"
	"github.com/akulikov/autograder/internal/infrastructure/queue/nats"
	"github.com/akulikov/autograder/internal/infrastructure/repository/postgres"
	"github.com/akulikov/autograder/internal/infrastructure/resilience"
	"github.com/akulikov/autograder/internal/infrastructure/storage/scratchfs"
	"github.com/akulikov/autograder/internal/infrastructure/storage/uploadfs"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.SubmissionRepository
	Grader    *usecase.Grader
	IntakeUC  ports.SubmissionIntake
	ProcessUC ports.SubmissionProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewSubmissionRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	uploads, err := uploadfs.New(cfg.UploadPath)
	if err != nil {
		return nil, fmt.Errorf("init upload storage: %w", err)
	}
	scratch, err := scratchfs.New(cfg.ScratchPath, logger)
	if err != nil {
		return nil, fmt.Errorf("init scratch storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	ocrClient := mistral.New(cfg.MistralURL, cfg.MistralAPIKey, cfg.MistralOCRModel, mistral.Options{
		RatePerSec: cfg.OCRRatePerSec,
		Burst:      cfg.OCRBurst,
		Executor:   executor,
	})
	gradingClient := deepseek.New(cfg.DeepSeekURL, cfg.DeepSeekAPIKey, cfg.DeepSeekModel, deepseek.Options{
		Executor: executor,
	})

	extractor := usecase.NewContentExtractor(ocrClient, pdftext.New())
	batch := usecase.NewBatchCoordinator(ocrClient, extractor)
	grader := usecase.NewGrader(gradingClient, cfg.GradeRevalidations)

	intakeUC := usecase.NewSubmissionIntake(repo, uploads, queue, cfg.MaxFileSizeBytes, cfg.DefaultPoints)
	processUC := usecase.NewSubmissionPipeline(repo, uploads, scratch, batch, grader, cfg.GradeConcurrency)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,
		Grader: grader,

		IntakeUC:  intakeUC,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
