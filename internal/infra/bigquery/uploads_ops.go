package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// InsertUploadWithClient records one uploaded CSV file and returns its ID.
func InsertUploadWithClient(ctx context.Context, client *bigquery.Client, row *UploadRow) (string, error) {
	if row.UploadID == "" {
		row.UploadID = uuid.NewString()
	}
	if row.UploadedTS.IsZero() {
		row.UploadedTS = time.Now()
	}

	q := client.Query(fmt.Sprintf(`
		INSERT `+"`%s.%s.%s`"+` (
			upload_id,
			user_id,
			filename,
			gcs_uri,
			size_bytes,
			content_type,
			uploaded_ts
		)
		VALUES (
			@upload_id,
			@user_id,
			@filename,
			@gcs_uri,
			@size_bytes,
			@content_type,
			@uploaded_ts
		)
	`, projectID, datasetID, uploadsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "upload_id", Value: row.UploadID},
		{Name: "user_id", Value: row.UserID},
		{Name: "filename", Value: row.Filename},
		{Name: "gcs_uri", Value: row.GCSURI},
		{Name: "size_bytes", Value: row.SizeBytes},
		{Name: "content_type", Value: row.ContentType},
		{Name: "uploaded_ts", Value: row.UploadedTS},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("InsertUploadWithClient: running insert query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("InsertUploadWithClient: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return "", fmt.Errorf("InsertUploadWithClient: job error: %w", err)
	}

	return row.UploadID, nil
}

// GetUploadWithClient retrieves one upload by ID. Returns nil when the upload
// does not exist.
func GetUploadWithClient(ctx context.Context, client *bigquery.Client, uploadID string) (*UploadRow, error) {
	if uploadID == "" {
		return nil, fmt.Errorf("GetUploadWithClient: upload ID cannot be empty")
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			upload_id,
			user_id,
			filename,
			gcs_uri,
			size_bytes,
			content_type,
			uploaded_ts
		FROM `+"`%s.%s.%s`"+`
		WHERE upload_id = @upload_id
		LIMIT 1
	`, projectID, datasetID, uploadsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "upload_id", Value: uploadID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetUploadWithClient: reading query: %w", err)
	}

	var row UploadRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetUploadWithClient: iterating: %w", err)
	}

	return &row, nil
}

// ListUploadsWithClient retrieves uploads, newest first.
func ListUploadsWithClient(ctx context.Context, client *bigquery.Client) ([]*UploadRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			upload_id,
			user_id,
			filename,
			gcs_uri,
			size_bytes,
			content_type,
			uploaded_ts
		FROM `+"`%s.%s.%s`"+`
		ORDER BY uploaded_ts DESC
	`, projectID, datasetID, uploadsTable))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListUploadsWithClient: reading query: %w", err)
	}

	var uploads []*UploadRow
	for {
		var row UploadRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListUploadsWithClient: iterating: %w", err)
		}
		uploads = append(uploads, &row)
	}

	return uploads, nil
}
