package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	sgberrors "github.com/signalboard/sgb-cli/pkg/errors"
	"github.com/signalboard/sgb-cli/pkg/ingest/events"
	"github.com/signalboard/sgb-cli/pkg/logging"
	"github.com/signalboard/sgb-cli/pkg/report"
	"github.com/signalboard/sgb-cli/pkg/store"
)

// Lines longer than this abort the import rather than silently truncate.
const maxLineBytes = 1024 * 1024

// ImporterOptions control a batch import run.
type ImporterOptions struct {
	// DryRun parses and validates every line without writing anything,
	// including the job row itself.
	DryRun bool

	// ProgressEvery is the line interval between progress updates.
	// Zero means every 100 lines.
	ProgressEvery int
}

// Importer runs JSONL batch imports against the event store.
type Importer struct {
	repo      *store.Repository
	jobs      *JobRepository
	publisher *events.Publisher
	logger    logging.Logger
	opts      ImporterOptions
}

// NewImporter creates an importer. publisher may be nil when no broker is
// configured.
func NewImporter(repo *store.Repository, jobs *JobRepository, publisher *events.Publisher, logger logging.Logger, opts ImporterOptions) *Importer {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 100
	}
	return &Importer{
		repo:      repo,
		jobs:      jobs,
		publisher: publisher,
		logger:    logger.With(logging.F("component", "importer")),
		opts:      opts,
	}
}

// Run imports one JSONL file. Every line is processed independently:
// rejected lines are recorded against the job and never abort the run.
// The returned job carries the final counters even when err is non-nil.
func (imp *Importer) Run(ctx context.Context, kind Kind, path string) (*Job, error) {
	if kind != KindContent && kind != KindFunnel {
		return nil, fmt.Errorf("unknown import kind %q: %w", kind, sgberrors.ErrValidation)
	}

	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:           uuid.New().String(),
		Kind:         kind,
		SourceFile:   path,
		Status:       JobStatusInProgress,
		TotalRecords: len(lines),
	}

	if !imp.opts.DryRun {
		if err := imp.jobs.Create(ctx, job); err != nil {
			return nil, err
		}
	}

	imp.logger.Info("Import started",
		logging.F("job_id", job.ID),
		logging.F("kind", string(kind)),
		logging.F("file", path),
		logging.F("total_records", job.TotalRecords),
		logging.F("dry_run", imp.opts.DryRun))

	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return imp.finish(ctx, job, JobStatusFailed, err)
		}

		if err := imp.processLine(ctx, kind, line.data); err != nil {
			if sgberrors.IsStorageUnavailable(err) {
				job.FailedCount++
				job.ProcessedCount++
				return imp.finish(ctx, job, JobStatusFailed,
					fmt.Errorf("import job %s aborted: %w", job.ID, err))
			}
			job.FailedCount++
			imp.recordLineError(ctx, job, line.number, err)
		} else {
			job.ImportedCount++
		}
		job.ProcessedCount++

		if job.ProcessedCount%imp.opts.ProgressEvery == 0 && !imp.opts.DryRun {
			if err := imp.jobs.UpdateProgress(ctx, job.ID, job.ProcessedCount, job.ImportedCount, job.FailedCount); err != nil {
				imp.logger.Warn("Failed to update job progress", logging.Err(err), logging.F("job_id", job.ID))
			}
			imp.publisher.JobProgress(ctx, job.ID, string(kind), job.TotalRecords,
				job.ProcessedCount, job.ImportedCount, job.FailedCount)
		}
	}

	status := JobStatusCompleted
	if job.FailedCount > 0 {
		status = JobStatusCompletedErrors
	}
	if job.TotalRecords > 0 && job.ImportedCount == 0 {
		status = JobStatusFailed
	}
	return imp.finish(ctx, job, status, nil)
}

// finish persists the final job state and returns cause, or a generic
// failure error when a job with records imported nothing.
func (imp *Importer) finish(ctx context.Context, job *Job, status JobStatus, cause error) (*Job, error) {
	job.Status = status

	if !imp.opts.DryRun {
		if err := imp.jobs.Complete(ctx, job.ID, status, job.ProcessedCount, job.ImportedCount, job.FailedCount); err != nil {
			imp.logger.Warn("Failed to persist final job state", logging.Err(err), logging.F("job_id", job.ID))
		}
		imp.publisher.JobCompleted(ctx, job.ID, string(job.Kind), job.TotalRecords,
			job.ImportedCount, job.FailedCount, string(status))
	}

	imp.logger.Info("Import finished",
		logging.F("job_id", job.ID),
		logging.F("status", string(status)),
		logging.F("imported", job.ImportedCount),
		logging.F("failed", job.FailedCount))

	if cause != nil {
		return job, cause
	}
	if status == JobStatusFailed {
		return job, fmt.Errorf("import job %s failed: no records imported", job.ID)
	}
	return job, nil
}

// processLine parses, validates, and writes one JSONL line.
func (imp *Importer) processLine(ctx context.Context, kind Kind, line []byte) error {
	switch kind {
	case KindContent:
		rec, err := ParseContentRecord(line)
		if err != nil {
			return err
		}
		ev := rec.Event()
		if err := store.ValidateContentEvent(ev); err != nil {
			return err
		}
		if imp.opts.DryRun {
			return nil
		}
		id, err := imp.repo.UpsertContentEvent(ctx, ev)
		if err != nil {
			return err
		}
		imp.publisher.ContentUpserted(ctx, id, ev.ExternalKey, ev.Channel,
			report.FormatMonth(report.MonthOf(ev.OccurredAt)))
		return nil

	case KindFunnel:
		rec, err := ParseFunnelRecord(line)
		if err != nil {
			return err
		}
		ev := rec.Event()
		if err := store.ValidateFunnelEvent(ev); err != nil {
			return err
		}
		if imp.opts.DryRun {
			return nil
		}
		id, err := imp.repo.UpsertFunnelEvent(ctx, ev)
		if err != nil {
			return err
		}
		imp.publisher.FunnelUpserted(ctx, id, ev.ExternalKey, ev.Stage,
			report.FormatMonth(report.MonthOf(ev.OccurredAt)))
		return nil
	}
	return fmt.Errorf("unknown import kind %q: %w", kind, sgberrors.ErrValidation)
}

func (imp *Importer) recordLineError(ctx context.Context, job *Job, lineNumber int, lineErr error) {
	imp.logger.Warn("Record rejected",
		logging.Err(lineErr),
		logging.F("job_id", job.ID),
		logging.F("line", lineNumber))

	if imp.opts.DryRun {
		return
	}
	code := sgberrors.CodeFor(lineErr)
	if err := imp.jobs.RecordError(ctx, job.ID, lineNumber, code, lineErr.Error()); err != nil {
		imp.logger.Warn("Failed to record import error", logging.Err(err), logging.F("job_id", job.ID))
	}
}

// sourceLine keeps the physical line number so rejected lines can be traced
// back to the export file.
type sourceLine struct {
	number int
	data   []byte
}

// readLines loads the file, skipping blank lines. JSONL exports are monthly
// and small enough to hold in memory.
func readLines(path string) ([]sourceLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	var lines []sourceLine
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for n := 1; scanner.Scan(); n++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, sourceLine{number: n, data: append([]byte(nil), line...)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	return lines, nil
}
