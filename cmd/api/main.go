package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/expense-classifier/internal/api/handlers"
	"github.com/dvloznov/expense-classifier/internal/api/middleware"
	"github.com/dvloznov/expense-classifier/internal/classify"
	"github.com/dvloznov/expense-classifier/internal/config"
	"github.com/dvloznov/expense-classifier/internal/corrections"
	"github.com/dvloznov/expense-classifier/internal/gcs"
	infraBQ "github.com/dvloznov/expense-classifier/internal/infra/bigquery"
	"github.com/dvloznov/expense-classifier/internal/infra/memory"
	"github.com/dvloznov/expense-classifier/internal/jobs"
	"github.com/dvloznov/expense-classifier/internal/jobs/inmemory"
	"github.com/dvloznov/expense-classifier/internal/logger"
	"github.com/dvloznov/expense-classifier/internal/pipeline"
)

func main() {
	log := logger.New()
	cfg := config.Load(log)
	ctx := logger.WithContext(context.Background(), log)

	// Repositories: BigQuery when a project is configured, in-memory
	// otherwise.
	var (
		expenseRepo     pipeline.ExpenseRepository
		correctionStore corrections.Store
	)
	if cfg.ProjectID != "" {
		repo, err := infraBQ.NewRepository(ctx, cfg.ProjectID, cfg.Dataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer repo.Close()
		expenseRepo = repo
		correctionStore = repo
	} else {
		log.Warn().Msg("GOOGLE_CLOUD_PROJECT not set - using in-memory storage")
		expenseRepo = memory.NewRepository()
		correctionStore = corrections.NewMemoryStore()
	}

	importer := &pipeline.Importer{
		Classifier:  classify.New(classify.DefaultTaxonomy(), cfg.Providers(ctx, log)...),
		Corrections: correctionStore,
		Expenses:    expenseRepo,
	}

	// Optional GCS storage for async imports.
	var storage gcs.StorageService
	if cfg.Bucket != "" {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer client.Close()
		storage = client
	} else {
		log.Warn().Msg("No GCS bucket configured - async imports will be disabled")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.JobQueueSize, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		importJob, ok := job.(*jobs.ImportStatementJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}
		return runImportJob(ctx, importer, storage, importJob)
	}

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	expensesHandler := handlers.NewExpensesHandler(importer, expenseRepo, storage, jobQueue, cfg.Bucket, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/expenses/import", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			expensesHandler.Import(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/expenses/import-gcs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			expensesHandler.ImportGCS(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/expenses/kpis", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			expensesHandler.KPIs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/expenses", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			expensesHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/expenses/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/expenses/")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Expense ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			expensesHandler.Get(w, r, id)
		case http.MethodPut:
			expensesHandler.Update(w, r, id)
		case http.MethodDelete:
			expensesHandler.Delete(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

// runImportJob downloads the statement from GCS and runs the import,
// recording the counts on the job.
func runImportJob(ctx context.Context, importer *pipeline.Importer, storage gcs.StorageService, job *jobs.ImportStatementJob) error {
	log := logger.FromContext(ctx)

	if storage == nil {
		return fmt.Errorf("no storage client configured")
	}

	log.Info().
		Str("job_id", job.JobID).
		Str("gcs_uri", job.GCSURI).
		Msg("Processing import job")

	data, err := storage.Fetch(ctx, job.GCSURI)
	if err != nil {
		return fmt.Errorf("fetch statement: %w", err)
	}

	filename := job.SourceFilename
	if filename == "" {
		filename = gcs.Filename(job.GCSURI)
	}

	result, err := importer.ImportFile(ctx, data, filename)
	if err != nil {
		return fmt.Errorf("import statement: %w", err)
	}

	job.Imported = result.Imported
	job.Skipped = result.Skipped

	log.Info().
		Str("job_id", job.JobID).
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Msg("Import job completed")

	return nil
}
