// Package core drives the import itself: job lifecycle, type coercion,
// dependency planning, reference resolution, chunked execution and batch
// orchestration. It has no transport dependencies and can be driven from a
// CLI, a web handler or tests without modification.
package core

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ekowhinson/HRMS-sub000/internal/match"
)

// JobStatus is the lifecycle state of one file's import job.
type JobStatus string

const (
	StatusPending JobStatus = "pending"
	StatusParsing JobStatus = "parsing"

	// StatusMapping and StatusPreview are the interactive confirm steps;
	// drivers that pause between analysis and execution set them. The CLI
	// pipeline goes straight from pending to parsing.
	StatusMapping JobStatus = "mapping"
	StatusPreview JobStatus = "preview"

	StatusExecuting JobStatus = "executing"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ErrorCap bounds how many RowErrors a job retains. The total error count is
// tracked independently of the retained samples.
var ErrorCap = 100

// ExecContext carries per-execution identity through every component call:
// job id, actor id and the cancellation token travel explicitly, never as
// ambient global state. The cancellation flag is polled at chunk boundaries
// only.
type ExecContext struct {
	JobID   string
	BatchID string
	ActorID string

	cancelled atomic.Bool
}

// Cancel requests cancellation. The executor finishes the current chunk
// cleanly and then stops; committed chunks are never rolled back.
func (e *ExecContext) Cancel() { e.cancelled.Store(true) }

// Cancelled reports whether cancellation was requested.
func (e *ExecContext) Cancelled() bool { return e.cancelled.Load() }

// ImportJob tracks one file's import through its lifecycle. The executor and
// orchestrator mutate it through the mutex-holding helpers below so that
// Snapshot can be polled concurrently while the import runs; terminal once
// Completed/Failed/Cancelled.
type ImportJob struct {
	ID       string
	FileName string
	Entity   string
	Status   JobStatus

	Total     int // Row estimate from the ingestor
	Processed int
	Succeeded int
	Errored   int
	Skipped   int

	Errors     []RowError // Capped at ErrorCap
	ErrorCount int        // Uncapped total

	StartedAt  time.Time
	FinishedAt time.Time

	mu sync.Mutex
}

// start marks the job running. Called once at the top of Execute.
func (j *ImportJob) start(at time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.StartedAt = at
	j.Status = StatusParsing
}

func (j *ImportJob) setStatus(s JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = s
}

func (j *ImportJob) setTotal(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Total = n
}

func (j *ImportJob) addProcessed(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Processed += n
}

func (j *ImportJob) addSucceeded(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Succeeded += n
}

func (j *ImportJob) addErrored(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Errored += n
}

func (j *ImportJob) addSkipped(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Skipped += n
}

// finish moves the job to a terminal status and stamps the finish time.
func (j *ImportJob) finish(s JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = s
	j.FinishedAt = time.Now()
}

// complete reconciles the row estimate with the rows actually read and
// finishes the job as Completed, in one locked step.
func (j *ImportJob) complete() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Total = j.Processed
	j.Status = StatusCompleted
	j.FinishedAt = time.Now()
}

// RecordError appends a row error respecting the cap and counts it.
func (j *ImportJob) RecordError(e RowError) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.ErrorCount++
	if len(j.Errors) < ErrorCap {
		j.Errors = append(j.Errors, e)
	}
}

// Snapshot returns a copy of the job safe to hand to callers.
func (j *ImportJob) Snapshot() ImportJob {
	j.mu.Lock()
	defer j.mu.Unlock()

	cp := ImportJob{
		ID:         j.ID,
		FileName:   j.FileName,
		Entity:     j.Entity,
		Status:     j.Status,
		Total:      j.Total,
		Processed:  j.Processed,
		Succeeded:  j.Succeeded,
		Errored:    j.Errored,
		Skipped:    j.Skipped,
		ErrorCount: j.ErrorCount,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
	cp.Errors = append([]RowError(nil), j.Errors...)
	return cp
}

// ImportMode selects what happens when a row's natural key already exists.
type ImportMode string

const (
	// ModeSkipExisting leaves existing records untouched.
	ModeSkipExisting ImportMode = "skip"
	// ModeOverwrite bulk-updates existing records with the file's values.
	ModeOverwrite ImportMode = "overwrite"
	// ModeMerge updates only the fields the file actually provides.
	ModeMerge ImportMode = "merge"
)

// FileResult is the final accounting for one file.
type FileResult struct {
	JobID     string
	FileName  string
	Entity    string
	Status    JobStatus
	Total     int
	Processed int
	Succeeded int
	Errored   int
	Skipped   int

	Errors     []RowError // Capped at ErrorCap
	ErrorCount int        // Uncapped total

	Duration time.Duration
	Err      string // Non-empty when the job failed or was skipped
}

// FileAnalysis is the per-file outcome of the analyze phase.
type FileAnalysis struct {
	FileName   string
	Entity     string
	Confidence float64
	Mapping    match.ColumnMapping
	Result     match.Result
	RowCount   int
	Err        string // Parse failure; file is excluded from the batch
}

// BatchAnalysis is the outcome of analyzing a set of files together.
type BatchAnalysis struct {
	Files    []FileAnalysis
	Order    []string // Batch-wide processing order over detected entities
	Tiers    [][]string
	Warnings []string
}

// BatchReport aggregates per-file results into batch totals.
type BatchReport struct {
	BatchID   string
	Files     []FileResult
	Total     int
	Succeeded int
	Errored   int
	Skipped   int
	Failed    int // Files that terminally failed
	Duration  time.Duration
}

// contextKey scopes core's context values.
type contextKey string

const ctxKeyExec contextKey = "exec_context"

// WithExecContext attaches the execution context for log enrichment.
func WithExecContext(ctx context.Context, exec *ExecContext) context.Context {
	return context.WithValue(ctx, ctxKeyExec, exec)
}

// ExecFromContext retrieves the execution context, if any.
func ExecFromContext(ctx context.Context) (*ExecContext, bool) {
	exec, ok := ctx.Value(ctxKeyExec).(*ExecContext)
	return exec, ok
}

// execLogger returns the default logger enriched with the execution identity
// carried in ctx, so every entry for one import correlates on job id.
func execLogger(ctx context.Context) *slog.Logger {
	log := slog.Default()
	exec, ok := ExecFromContext(ctx)
	if !ok {
		return log
	}
	if exec.JobID != "" {
		log = log.With("job_id", exec.JobID)
	}
	if exec.BatchID != "" {
		log = log.With("batch_id", exec.BatchID)
	}
	if exec.ActorID != "" {
		log = log.With("actor_id", exec.ActorID)
	}
	return log
}
