package core

// executor.go streams a file's rows in bounded chunks: mapping, coercion,
// reference resolution, dedupe, and batched persistence with progress and
// error accounting. Within one file chunks are strictly sequential; chunk
// N+1 never starts before chunk N's flush has committed.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/ekowhinson/HRMS-sub000/internal/ingest"
	"github.com/ekowhinson/HRMS-sub000/internal/match"
	"github.com/ekowhinson/HRMS-sub000/internal/progress"
	"github.com/ekowhinson/HRMS-sub000/internal/schema"
	"github.com/ekowhinson/HRMS-sub000/internal/store"
)

// DefaultChunkSize is the number of raw rows held in memory at once.
const DefaultChunkSize = 1000

// DefaultBatchSize is the number of resolved rows per storage flush.
const DefaultBatchSize = 500

// ExecutorConfig tunes one executor instance.
type ExecutorConfig struct {
	ChunkSize int
	BatchSize int
	Mode      ImportMode
	// AllowMissingRequired skips the pre-execution mapping validation.
	// Rows will then fail individually on their missing required values.
	AllowMissingRequired bool
}

// Executor is the chunked import executor. One instance per file execution;
// its dedupe state is never shared across files.
type Executor struct {
	store    store.Store
	resolver *ReferenceResolver
	progress progress.Store
	cfg      ExecutorConfig
}

// NewExecutor creates an executor. Zero config values fall back to defaults.
func NewExecutor(st store.Store, resolver *ReferenceResolver, prog progress.Store, cfg ExecutorConfig) *Executor {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeSkipExisting
	}
	return &Executor{store: st, resolver: resolver, progress: prog, cfg: cfg}
}

// pendingRecord is a resolved row waiting for its batch flush.
type pendingRecord struct {
	rec          store.Record
	row          int
	generatedKey bool
}

// Execute runs the import for one file. Row-level failures are recorded and
// never abort a chunk; a chunk-level system failure marks the job Failed.
// Cancellation is honored at chunk boundaries only.
func (x *Executor) Execute(ctx context.Context, exec *ExecContext, job *ImportJob, src *ingest.Source, mapping match.ColumnMapping) *FileResult {
	started := time.Now()
	log := execLogger(ctx)
	job.start(started)

	entity, ok := schema.Get(job.Entity)
	if !ok {
		return x.fail(log, job, started, fmt.Sprintf("unknown entity type %q", job.Entity))
	}

	profile := src.Profile()
	job.setTotal(profile.RowEstimate)

	if !x.cfg.AllowMissingRequired {
		if missing := match.MissingRequired(entity, mapping); len(missing) > 0 {
			job.RecordError(RowError{
				Kind:    KindMapping,
				Field:   strings.Join(missing, ", "),
				Message: "required fields have no confident column mapping",
			})
			return x.fail(log, job, started, fmt.Sprintf("unmapped required fields: %s", strings.Join(missing, ", ")))
		}
	}

	// The target entity's own natural keys drive create-vs-update decisions,
	// mirroring the reference cache for foreign keys.
	if !x.resolver.Known(job.Entity) {
		if err := x.resolver.Prime(ctx, []string{job.Entity}); err != nil {
			return x.fail(log, job, started, fmt.Sprintf("prime natural keys: %v", err))
		}
	}

	rows, err := src.Rows()
	if err != nil {
		return x.fail(log, job, started, fmt.Sprintf("open row stream: %v", err))
	}
	defer rows.Close()

	job.setStatus(StatusExecuting)

	totalChunks := 0
	if job.Total > 0 {
		totalChunks = int(math.Ceil(float64(job.Total) / float64(x.cfg.ChunkSize)))
	}

	run := &execution{
		executor: x,
		job:      job,
		entity:   entity,
		mapping:  mapping,
		header:   MakeHeaderIndex(profile.Headers),
		seen:     make(map[string]bool),
		log:      log,
	}

	chunk := make([][]string, 0, x.cfg.ChunkSize)
	rowNum := 0
	chunkIdx := 0
	for {
		row, more := rows.Next()
		if more {
			chunk = append(chunk, row)
			if len(chunk) < x.cfg.ChunkSize {
				continue
			}
		}
		if len(chunk) > 0 {
			chunkIdx++
			if err := run.processChunk(ctx, chunk, rowNum); err != nil {
				return x.fail(log, job, started, err.Error())
			}
			rowNum += len(chunk)
			chunk = chunk[:0]

			log.Debug("chunk committed",
				"chunk", chunkIdx,
				"total_chunks", totalChunks,
				"processed", job.Processed)
			x.publishProgress(exec, job, chunkIdx, totalChunks)

			// Cancellation and timeouts are polled only here so a chunk
			// always completes cleanly; committed chunks stay committed.
			if exec.Cancelled() || ctx.Err() != nil {
				job.finish(StatusCancelled)
				log.Info("import cancelled", "processed", job.Processed)
				return x.result(job, started, "cancelled")
			}
		}
		if !more {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return x.fail(log, job, started, fmt.Sprintf("read rows: %v", err))
	}

	job.complete() // Reconciles the estimate with reality.
	x.publishProgress(exec, job, chunkIdx, chunkIdx)
	return x.result(job, started, "")
}

// execution is the per-file mutable state of one Execute call.
type execution struct {
	executor *Executor
	job      *ImportJob
	entity   schema.EntityType
	mapping  match.ColumnMapping
	header   HeaderIndex
	seen     map[string]bool // lower-cased natural keys handled this run
	log      *slog.Logger

	inserts []pendingRecord
	updates []pendingRecord
}

// processChunk converts, resolves and persists one chunk. Returns an error
// only for system-level failures, which abort the file's job.
func (e *execution) processChunk(ctx context.Context, chunk [][]string, offset int) error {
	for i, row := range chunk {
		rowNum := offset + i + 1
		e.processRow(rowNum, row)

		if len(e.inserts) >= e.executor.cfg.BatchSize {
			if err := e.flushInserts(ctx); err != nil {
				return err
			}
		}
		if len(e.updates) >= e.executor.cfg.BatchSize {
			if err := e.flushUpdates(ctx); err != nil {
				return err
			}
		}
	}

	// The chunk boundary is a commit point: progress snapshots and
	// cancellation both assume nothing is left buffered here.
	if err := e.flushInserts(ctx); err != nil {
		return err
	}
	return e.flushUpdates(ctx)
}

// processRow coerces and resolves one row; every outcome lands in exactly
// one of succeeded (via buffers), errored or skipped.
func (e *execution) processRow(rowNum int, row []string) {
	e.job.addProcessed(1)

	fields := make(map[string]any, len(e.mapping))
	failed := false

	for sourceCol, fm := range e.mapping {
		field, ok := e.entity.Field(fm.Field)
		if !ok {
			continue
		}
		pos, ok := e.header[strings.ToLower(CleanCell(sourceCol))]
		if !ok || pos >= len(row) {
			continue
		}
		raw := row[pos]

		value, err := Coerce(raw, field)
		if err != nil {
			e.job.RecordError(RowError{
				Row:     rowNum,
				Kind:    KindValidation,
				Field:   field.Name,
				Value:   CleanCell(raw),
				Message: err.Error(),
			})
			failed = true
			continue
		}
		if value != nil {
			fields[field.Name] = value
		}
	}

	if !failed {
		failed = e.checkRequired(rowNum, fields)
	}
	if !failed {
		failed = e.resolveReferences(rowNum, fields)
	}
	if failed {
		e.job.addErrored(1)
		return
	}

	e.stageRow(rowNum, fields)
}

// checkRequired records a validation error for each required field without a
// value. The natural-key fields are exempt: codegen covers them.
func (e *execution) checkRequired(rowNum int, fields map[string]any) bool {
	failed := false
	for _, f := range e.entity.Fields {
		if !f.Required || f.Name == e.entity.KeyField {
			continue
		}
		if fields[f.Name] == nil {
			e.job.RecordError(RowError{
				Row:     rowNum,
				Kind:    KindValidation,
				Field:   f.Name,
				Message: "required value is missing",
			})
			failed = true
		}
	}
	return failed
}

// resolveReferences swaps foreign-key natural keys for internal ids through
// the tier cache. A value that does not resolve fails the row: rows are
// never persisted with a dangling reference.
func (e *execution) resolveReferences(rowNum int, fields map[string]any) bool {
	failed := false
	for _, f := range e.entity.Fields {
		if f.Type != schema.FieldReference {
			continue
		}
		raw, ok := fields[f.Name].(string)
		if !ok || raw == "" {
			continue
		}
		id, ok := e.executor.resolver.Resolve(f.References, raw)
		if !ok {
			e.job.RecordError(RowError{
				Row:     rowNum,
				Kind:    KindReference,
				Field:   f.Name,
				Value:   raw,
				Message: fmt.Sprintf("no %s found for %q", f.References, raw),
			})
			failed = true
			continue
		}
		fields[f.Name] = id
	}
	return failed
}

// stageRow settles the natural key, dedupes and buffers the record for its
// bulk create or update.
func (e *execution) stageRow(rowNum int, fields map[string]any) {
	key, _ := fields[e.entity.KeyField].(string)
	name, _ := fields[e.entity.NameField].(string)

	generated := false
	if key == "" {
		if name == "" {
			// No identifying key at all: nothing to dedupe or look up by.
			e.job.addSkipped(1)
			return
		}
		key = GenerateCode(name, func(candidate string) bool {
			lower := strings.ToLower(candidate)
			if e.seen[lower] {
				return true
			}
			_, exists := e.executor.resolver.Resolve(e.job.Entity, candidate)
			return exists
		})
		generated = true
	}

	lower := strings.ToLower(key)
	if e.seen[lower] {
		e.job.addSkipped(1)
		return
	}
	e.seen[lower] = true

	fields[e.entity.KeyField] = key
	rec := store.Record{Key: key, Name: name, Fields: fields}

	if id, exists := e.executor.resolver.Resolve(e.job.Entity, key); exists {
		if e.executor.cfg.Mode == ModeSkipExisting {
			e.job.addSkipped(1)
			return
		}
		rec.ID = id
		e.updates = append(e.updates, pendingRecord{rec: rec, row: rowNum})
		return
	}
	e.inserts = append(e.inserts, pendingRecord{rec: rec, row: rowNum, generatedKey: generated})
}

// flushInserts commits buffered creates in one all-or-nothing batch. A
// constraint violation tied to a specific row triggers per-row retry; any
// other failure is a system error for the whole file.
func (e *execution) flushInserts(ctx context.Context) error {
	if len(e.inserts) == 0 {
		return nil
	}
	batch := e.inserts
	e.inserts = nil

	records := make([]store.Record, len(batch))
	for i, p := range batch {
		records[i] = p.rec
	}

	err := e.executor.store.BulkInsert(ctx, e.job.Entity, records)
	if err == nil {
		e.job.addSucceeded(len(batch))
		return nil
	}

	var constraint *store.ConstraintError
	if !errors.As(err, &constraint) {
		return fmt.Errorf("bulk insert %s: %w", e.job.Entity, err)
	}
	e.log.Warn("batch insert hit a constraint, retrying rows individually",
		"rows", len(batch), "key", constraint.Key)
	return e.retryRows(ctx, batch)
}

// retryRows re-inserts a failed batch one record at a time. A record whose
// generated key collides gets exactly one regenerated key before being
// recorded as a persistence error.
func (e *execution) retryRows(ctx context.Context, batch []pendingRecord) error {
	for _, p := range batch {
		err := e.executor.store.BulkInsert(ctx, e.job.Entity, []store.Record{p.rec})
		if err == nil {
			e.job.addSucceeded(1)
			continue
		}

		var constraint *store.ConstraintError
		if !errors.As(err, &constraint) {
			return fmt.Errorf("insert %s row %d: %w", e.job.Entity, p.row, err)
		}

		if p.generatedKey {
			retry := p.rec
			retry.Key = GenerateCode(retry.Name, func(candidate string) bool {
				lower := strings.ToLower(candidate)
				if e.seen[lower] {
					return true
				}
				_, exists := e.executor.resolver.Resolve(e.job.Entity, candidate)
				return exists
			})
			retry.Fields[e.entity.KeyField] = retry.Key
			e.seen[strings.ToLower(retry.Key)] = true

			if err := e.executor.store.BulkInsert(ctx, e.job.Entity, []store.Record{retry}); err == nil {
				e.job.addSucceeded(1)
				continue
			}
		}

		e.job.RecordError(RowError{
			Row:     p.row,
			Kind:    KindPersistence,
			Field:   e.entity.KeyField,
			Value:   p.rec.Key,
			Message: constraint.Error(),
		})
		e.job.addErrored(1)
	}
	return nil
}

func (e *execution) flushUpdates(ctx context.Context) error {
	if len(e.updates) == 0 {
		return nil
	}
	batch := e.updates
	e.updates = nil

	records := make([]store.Record, len(batch))
	for i, p := range batch {
		records[i] = p.rec
	}

	if err := e.executor.store.BulkUpdate(ctx, e.job.Entity, records); err != nil {
		return fmt.Errorf("bulk update %s: %w", e.job.Entity, err)
	}
	e.job.addSucceeded(len(batch))
	return nil
}

func (x *Executor) publishProgress(exec *ExecContext, job *ImportJob, chunk, totalChunks int) {
	if x.progress == nil {
		return
	}

	total := job.Total
	if total < job.Processed {
		total = job.Processed
	}
	pct := 0.0
	if total > 0 {
		pct = float64(job.Processed) / float64(total) * 100
	}
	x.progress.Put(exec.JobID, progress.Snapshot{
		JobID:       exec.JobID,
		Processed:   job.Processed,
		Total:       total,
		Percentage:  math.Round(pct*10) / 10,
		Chunk:       chunk,
		TotalChunks: totalChunks,
	})
}

func (x *Executor) fail(log *slog.Logger, job *ImportJob, started time.Time, reason string) *FileResult {
	job.finish(StatusFailed)
	log.Error("import failed", "reason", reason)
	return x.result(job, started, reason)
}

func (x *Executor) result(job *ImportJob, started time.Time, errMsg string) *FileResult {
	snap := job.Snapshot()
	return &FileResult{
		JobID:      snap.ID,
		FileName:   snap.FileName,
		Entity:     snap.Entity,
		Status:     snap.Status,
		Total:      snap.Total,
		Processed:  snap.Processed,
		Succeeded:  snap.Succeeded,
		Errored:    snap.Errored,
		Skipped:    snap.Skipped,
		Errors:     snap.Errors,
		ErrorCount: snap.ErrorCount,
		Duration:   time.Since(started),
		Err:        errMsg,
	}
}
