package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
)

// StartImportRun inserts a new import run with status=RUNNING and returns the
// generated import_run_id.
func StartImportRun(ctx context.Context, sessionID, userID string) (string, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("StartImportRun: bigquery client: %w", err)
	}
	defer client.Close()

	return StartImportRunWithClient(ctx, client, sessionID, userID)
}

// StartImportRunWithClient inserts a new import run with status=RUNNING using
// the provided BigQuery client.
func StartImportRunWithClient(ctx context.Context, client *bigquery.Client, sessionID, userID string) (string, error) {
	importRunID := uuid.NewString()
	started := time.Now()

	q := client.Query(fmt.Sprintf(`
		INSERT `+"`%s.%s.%s`"+` (
			import_run_id,
			session_id,
			user_id,
			status,
			started_ts
		)
		VALUES (
			@import_run_id,
			@session_id,
			@user_id,
			@status,
			@started_ts
		)
	`, projectID, datasetID, importRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "import_run_id", Value: importRunID},
		{Name: "session_id", Value: sessionID},
		{Name: "user_id", Value: userID},
		{Name: "status", Value: "RUNNING"},
		{Name: "started_ts", Value: started},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("StartImportRunWithClient: running insert query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("StartImportRunWithClient: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return "", fmt.Errorf("StartImportRunWithClient: job error: %w", err)
	}

	return importRunID, nil
}

// FinishImportRunWithClient records an import run's terminal state and row
// counts. An empty errMsg means the run finished cleanly.
func FinishImportRunWithClient(ctx context.Context, client *bigquery.Client, importRunID, runStatus string, total, succeeded, failed int, errMsg string) error {
	if errMsg != "" {
		const maxLen = 2000
		if len(errMsg) > maxLen {
			errMsg = errMsg[:maxLen]
		}
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE `+"`%s.%s.%s`"+`
		SET status = @status,
		    total_rows = @total_rows,
		    successful_rows = @successful_rows,
		    failed_rows = @failed_rows,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE import_run_id = @import_run_id
	`, projectID, datasetID, importRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: runStatus},
		{Name: "total_rows", Value: int64(total)},
		{Name: "successful_rows", Value: int64(succeeded)},
		{Name: "failed_rows", Value: int64(failed)},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "import_run_id", Value: importRunID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("FinishImportRunWithClient: running update query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("FinishImportRunWithClient: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("FinishImportRunWithClient: job error: %w", err)
	}

	return nil
}
