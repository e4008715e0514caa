package jobs

import (
	"context"
	"time"

	"github.com/budgetbook/budgetbook/internal/csvimport"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeCommitImport represents an import session commit job.
	JobTypeCommitImport JobType = "commit_import"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
)

// CommitImportJob represents a job to commit a validated import session.
// Commit jobs are never retried automatically: a commit is not idempotent,
// and a blind rerun would duplicate every transaction already written.
type CommitImportJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// SessionID is the import session being committed.
	SessionID string `json:"session_id"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// Progress is the completed percentage, 0-100.
	Progress int `json:"progress"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// Result is the per-row outcome, set once the commit has run.
	Result *csvimport.ImportResult `json:"result,omitempty"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *CommitImportJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *CommitImportJob) GetType() JobType {
	return JobTypeCommitImport
}

// GetStatus implements the Job interface.
func (j *CommitImportJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
// This abstraction allows for different queue implementations (in-memory, Cloud Tasks, Pub/Sub).
type Publisher interface {
	// PublishCommitImport publishes an import commit job.
	PublishCommitImport(ctx context.Context, job *CommitImportJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job. A returned error marks the
// job failed; it is never re-enqueued.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *CommitImportJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*CommitImportJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*CommitImportJob, error)

	// UpdateJobProgress records the completed percentage of a running job.
	UpdateJobProgress(ctx context.Context, jobID string, progress int) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// SessionID filters jobs by import session.
	SessionID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
