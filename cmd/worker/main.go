package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akulikov/autograder/internal/bootstrap"
	"github.com/akulikov/autograder/internal/config"
	"github.com/akulikov/autograder/internal/observability/logging"
	"github.com/akulikov/autograder/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	app.Grader.OnRevalidation = func() {
		workerMetrics.RecordGradeRetry("worker")
	}

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeSubmissionAccepted(ctx, func(handlerCtx context.Context, submissionID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 15*time.Minute)
		defer cancel()

		if sub, getErr := app.Repo.GetByID(processCtx, submissionID); getErr == nil {
			workerMetrics.ObserveQueueLag("worker", time.Since(sub.CreatedAt))
		}

		workerMetrics.StartSubmission()
		start := time.Now()
		processErr := app.ProcessUC.ProcessByID(processCtx, submissionID)
		workerMetrics.FinishSubmission("worker", time.Since(start), processErr)

		if processErr != nil {
			logger.Error("submission processing failed", "submission_id", submissionID, "error", processErr)
			return processErr
		}

		if result, resErr := app.Repo.GetResult(processCtx, submissionID); resErr == nil {
			for _, file := range result.Files {
				workerMetrics.RecordFileResult("worker", file)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
