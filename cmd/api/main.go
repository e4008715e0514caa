package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/budgetbook/budgetbook/internal/api/handlers"
	"github.com/budgetbook/budgetbook/internal/api/middleware"
	"github.com/budgetbook/budgetbook/internal/config"
	"github.com/budgetbook/budgetbook/internal/csvimport"
	"github.com/budgetbook/budgetbook/internal/gcsuploader"
	infraBQ "github.com/budgetbook/budgetbook/internal/infra/bigquery"
	"github.com/budgetbook/budgetbook/internal/jobs"
	"github.com/budgetbook/budgetbook/internal/jobs/inmemory"
	"github.com/budgetbook/budgetbook/internal/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Str("config", *configPath).Msg("Failed to load configuration")
	}

	log := logger.NewWithLevel(cfg.Log.Level)

	if cfg.BigQuery.ProjectID == "" {
		log.Fatal().Msg("bigquery.project_id is required (or set BUDGETBOOK_BIGQUERY_PROJECT_ID)")
	}
	infraBQ.Configure(cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID)

	if cfg.GCS.Bucket == "" {
		log.Warn().Msg("No GCS bucket configured - file uploads will be disabled")
	}

	ctx := context.Background()

	repo, err := infraBQ.NewRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	// Uploads are optional; without a bucket only inline csv_text imports work.
	var gcs *gcsuploader.Service
	if cfg.GCS.Bucket != "" {
		gcs, err = gcsuploader.NewService(ctx, cfg.GCS.Bucket)
		if err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.GCS.Bucket).Msg("Failed to create GCS uploader")
		}
	}

	registry := csvimport.NewRegistry()
	committer := csvimport.NewCommitter(repo, log, cfg.Import.UserID)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, 1, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	// Commit jobs write to BigQuery and are not retried; a failed job keeps
	// its per-row errors for the operator.
	jobHandler := func(ctx context.Context, job jobs.Job) error {
		commitJob, ok := job.(*jobs.CommitImportJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		session, found := registry.Get(commitJob.SessionID)
		if !found {
			return fmt.Errorf("import session not found: %s", commitJob.SessionID)
		}

		log.Info().
			Str("job_id", commitJob.JobID).
			Str("session_id", commitJob.SessionID).
			Msg("Processing commit job")

		runID, err := repo.StartImportRun(ctx, commitJob.SessionID, cfg.Import.UserID)
		if err != nil {
			return fmt.Errorf("failed to start import run: %w", err)
		}

		result, commitErr := committer.Commit(ctx, session, func(pct int) {
			commitJob.Progress = pct
			_ = jobStore.UpdateJobProgress(ctx, commitJob.JobID, pct)
		})
		commitJob.Result = result

		status := "SUCCESS"
		errMsg := ""
		if commitErr != nil {
			status = "FAILED"
			errMsg = commitErr.Error()
		} else if result != nil && !result.Success {
			status = "FAILED"
			errMsg = result.Summary
		}

		total, succeeded, failed := 0, 0, 0
		if result != nil {
			succeeded = result.SuccessfulImports
			failed = result.FailedImports
			total = succeeded + failed
		}
		if err := repo.FinishImportRun(ctx, runID, status, total, succeeded, failed, errMsg); err != nil {
			log.Error().Err(err).Str("import_run_id", runID).Msg("Failed to finish import run record")
		}

		if commitErr != nil {
			return commitErr
		}

		log.Info().
			Str("job_id", commitJob.JobID).
			Str("session_id", commitJob.SessionID).
			Int("succeeded", succeeded).
			Int("failed", failed).
			Msg("Commit job finished")

		return nil
	}

	go func() {
		log.Info().Msg("Starting commit job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	var csvSource handlers.CSVSource
	var uploadsHandler *handlers.UploadsHandler
	if gcs != nil {
		csvSource = &handlers.GCSUploadSource{Store: repo, GCS: gcs}
		uploadsHandler = handlers.NewUploadsHandler(repo, gcs, cfg.Import.MaxUploadBytes, cfg.Import.UserID, log)
	}

	importsHandler := handlers.NewImportsHandler(registry, repo, jobQueue, csvSource, log)
	referenceHandler := handlers.NewReferenceHandler(repo, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Import session endpoints
	mux.HandleFunc("/api/imports", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			importsHandler.CreateSession(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/imports/", importsHandler.Route)

	mux.HandleFunc("/api/sample", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			importsHandler.Sample(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Upload endpoints
	mux.HandleFunc("/api/uploads", func(w http.ResponseWriter, r *http.Request) {
		if uploadsHandler == nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, "File uploads are not configured")
			return
		}
		switch r.Method {
		case http.MethodPost:
			uploadsHandler.Upload(w, r)
		case http.MethodGet:
			uploadsHandler.List(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Reference data endpoints
	mux.HandleFunc("/api/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			referenceHandler.ListAccounts(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			referenceHandler.ListCategories(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/goals", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			referenceHandler.ListGoals(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
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
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("Starting API server")
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

	// Stop job queue and wait for in-flight commits
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
