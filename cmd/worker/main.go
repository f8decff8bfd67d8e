package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/expense-classifier/internal/classify"
	"github.com/dvloznov/expense-classifier/internal/config"
	"github.com/dvloznov/expense-classifier/internal/gcs"
	infraBQ "github.com/dvloznov/expense-classifier/internal/infra/bigquery"
	"github.com/dvloznov/expense-classifier/internal/jobs"
	"github.com/dvloznov/expense-classifier/internal/jobs/inmemory"
	"github.com/dvloznov/expense-classifier/internal/logger"
	"github.com/dvloznov/expense-classifier/internal/pipeline"
)

// Standalone worker draining the import queue. In production the queue
// would be Cloud Tasks or Pub/Sub; the in-memory queue makes this binary
// useful for local end-to-end runs.
func main() {
	log := logger.New()
	cfg := config.Load(log)
	ctx := logger.WithContext(context.Background(), log)

	if cfg.ProjectID == "" {
		log.Fatal().Msg("GOOGLE_CLOUD_PROJECT is required for the worker")
	}

	repo, err := infraBQ.NewRepository(ctx, cfg.ProjectID, cfg.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	storage, err := gcs.NewClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	importer := &pipeline.Importer{
		Classifier:  classify.New(classify.DefaultTaxonomy(), cfg.Providers(ctx, log)...),
		Corrections: repo,
		Expenses:    repo,
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.JobQueueSize, jobStore)

	log.Info().Msg("Starting worker service")

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler := func(ctx context.Context, job jobs.Job) error {
		importJob, ok := job.(*jobs.ImportStatementJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", importJob.JobID).
			Str("gcs_uri", importJob.GCSURI).
			Msg("Processing import job")

		data, err := storage.Fetch(ctx, importJob.GCSURI)
		if err != nil {
			return fmt.Errorf("fetch statement: %w", err)
		}

		filename := importJob.SourceFilename
		if filename == "" {
			filename = gcs.Filename(importJob.GCSURI)
		}

		result, err := importer.ImportFile(ctx, data, filename)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", importJob.JobID).
				Msg("Import failed")
			return err
		}

		importJob.Imported = result.Imported
		importJob.Skipped = result.Skipped

		log.Info().
			Str("job_id", importJob.JobID).
			Int("imported", result.Imported).
			Int("skipped", result.Skipped).
			Msg("Import job completed")

		return nil
	}

	if err := jobQueue.Start(workerCtx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Worker exited")
}
