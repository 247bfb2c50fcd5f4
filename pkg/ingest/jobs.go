package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sgberrors "github.com/signalboard/sgb-cli/pkg/errors"
	"github.com/signalboard/sgb-cli/pkg/logging"
)

// JobStatus represents the state of an import job.
type JobStatus string

const (
	JobStatusPending         JobStatus = "pending"
	JobStatusInProgress      JobStatus = "in_progress"
	JobStatusCompleted       JobStatus = "completed"
	JobStatusCompletedErrors JobStatus = "completed_with_errors"
	JobStatusFailed          JobStatus = "failed"
)

// Job tracks one batch import run. Matches the import_jobs table.
type Job struct {
	ID             string
	Kind           Kind
	SourceFile     string
	Status         JobStatus
	TotalRecords   int
	ProcessedCount int
	ImportedCount  int
	FailedCount    int
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// JobError records one rejected line. Matches the import_errors table.
type JobError struct {
	ID           int64
	JobID        string
	LineNumber   int
	ErrorCode    sgberrors.ErrorCode
	ErrorMessage string
	CreatedAt    time.Time
}

// JobRepository persists import jobs and their errors.
type JobRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewJobRepository creates a job repository.
func NewJobRepository(pool *pgxpool.Pool, logger logging.Logger) *JobRepository {
	return &JobRepository{
		pool:   pool,
		logger: logger.With(logging.F("component", "import_jobs")),
	}
}

// Create inserts a new job row.
func (r *JobRepository) Create(ctx context.Context, job *Job) error {
	query := `
		INSERT INTO import_jobs (
			id, kind, source_file, status, total_records,
			processed_count, imported_count, failed_count, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Kind), job.SourceFile, string(job.Status),
		job.TotalRecords, job.ProcessedCount, job.ImportedCount, job.FailedCount,
	)
	if err != nil {
		return fmt.Errorf("create import job: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}

	r.logger.Debug("Import job created",
		logging.F("job_id", job.ID),
		logging.F("kind", string(job.Kind)),
		logging.F("total_records", job.TotalRecords))
	return nil
}

// UpdateProgress refreshes the job counters.
func (r *JobRepository) UpdateProgress(ctx context.Context, jobID string, processed, imported, failed int) error {
	query := `
		UPDATE import_jobs
		SET processed_count = $2, imported_count = $3, failed_count = $4,
		    status = $5, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, jobID, processed, imported, failed, string(JobStatusInProgress))
	if err != nil {
		return fmt.Errorf("update import job progress: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("import job %s: %w", jobID, sgberrors.ErrNotFound)
	}
	return nil
}

// Complete marks the job finished with its final counters and status.
func (r *JobRepository) Complete(ctx context.Context, jobID string, status JobStatus, processed, imported, failed int) error {
	query := `
		UPDATE import_jobs
		SET status = $2, processed_count = $3, imported_count = $4, failed_count = $5,
		    completed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, jobID, string(status), processed, imported, failed)
	if err != nil {
		return fmt.Errorf("complete import job: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("import job %s: %w", jobID, sgberrors.ErrNotFound)
	}

	r.logger.Debug("Import job completed",
		logging.F("job_id", jobID),
		logging.F("status", string(status)))
	return nil
}

// RecordError stores one rejected line for the job.
func (r *JobRepository) RecordError(ctx context.Context, jobID string, lineNumber int, code sgberrors.ErrorCode, message string) error {
	query := `
		INSERT INTO import_errors (job_id, line_number, error_code, error_message)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, jobID, lineNumber, string(code), message)
	if err != nil {
		return fmt.Errorf("record import error: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}
	return nil
}

// Get retrieves a job by ID.
func (r *JobRepository) Get(ctx context.Context, jobID string) (*Job, error) {
	query := `
		SELECT id, kind, source_file, status, total_records,
		       processed_count, imported_count, failed_count,
		       started_at, completed_at, created_at, updated_at
		FROM import_jobs
		WHERE id = $1
	`

	job := &Job{}
	var kind, status string
	err := r.pool.QueryRow(ctx, query, jobID).Scan(
		&job.ID, &kind, &job.SourceFile, &status, &job.TotalRecords,
		&job.ProcessedCount, &job.ImportedCount, &job.FailedCount,
		&job.StartedAt, &job.CompletedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("import job %s: %w", jobID, sgberrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get import job: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}

	job.Kind = Kind(kind)
	job.Status = JobStatus(status)
	return job, nil
}

// Errors retrieves the rejected lines for a job, oldest first.
func (r *JobRepository) Errors(ctx context.Context, jobID string) ([]*JobError, error) {
	query := `
		SELECT id, job_id, line_number, error_code, error_message, created_at
		FROM import_errors
		WHERE job_id = $1
		ORDER BY line_number
	`

	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("get import errors: %w: %v", sgberrors.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var errlist []*JobError
	for rows.Next() {
		e := &JobError{}
		var code string
		if err := rows.Scan(&e.ID, &e.JobID, &e.LineNumber, &code, &e.ErrorMessage, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan import error: %w", err)
		}
		e.ErrorCode = sgberrors.ErrorCode(code)
		errlist = append(errlist, e)
	}
	return errlist, rows.Err()
}
