// Package jobs defines the async job model for statement imports and the
// queue abstractions around it.
package jobs

import (
	"context"
	"time"
)

// JobType identifies the kind of work a job carries.
type JobType string

const (
	JobTypeImportStatement JobType = "import_statement"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// ImportStatementJob asks the worker to import one statement file that
// was previously uploaded to GCS.
type ImportStatementJob struct {
	JobID string `json:"job_id"`

	// GCSURI locates the statement, e.g. gs://bucket/imports/extracto.csv.
	GCSURI string `json:"gcs_uri"`

	// SourceFilename is the name the user uploaded the file under.
	SourceFilename string `json:"source_filename"`

	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error holds the failure detail for failed jobs.
	Error string `json:"error,omitempty"`

	// Imported and Skipped are filled in on completion.
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is the minimal view the queue needs of any job type.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ImportStatementJob) GetID() string        { return j.JobID }
func (j *ImportStatementJob) GetType() JobType     { return JobTypeImportStatement }
func (j *ImportStatementJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues import jobs. The abstraction leaves room for a
// Cloud Tasks or Pub/Sub implementation next to the in-memory one.
type Publisher interface {
	PublishImportStatement(ctx context.Context, job *ImportStatementJob) error
	Close() error
}

// Consumer drains the queue, calling the handler for each job.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error schedules a retry until
// MaxRetries is exhausted.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state so the API can answer status queries.
type JobStore interface {
	SaveJob(ctx context.Context, job *ImportStatementJob) error
	GetJob(ctx context.Context, jobID string) (*ImportStatementJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ImportStatementJob, error)
}

// JobFilter narrows ListJobs. Zero values mean no constraint.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}
