package core

// orchestrator.go coordinates multi-file batches end to end: analyze,
// override, plan, then execute tier by tier with bounded concurrency inside
// each tier and a reference-cache refresh barrier between tiers.

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekowhinson/HRMS-sub000/internal/ingest"
	"github.com/ekowhinson/HRMS-sub000/internal/match"
	"github.com/ekowhinson/HRMS-sub000/internal/progress"
	"github.com/ekowhinson/HRMS-sub000/internal/schema"
	"github.com/ekowhinson/HRMS-sub000/internal/store"
)

// FileInput is one uploaded file: just a name and its raw bytes.
type FileInput struct {
	Name string
	Data []byte
}

// batchFile is one file's full state inside a registered batch.
type batchFile struct {
	analysis FileAnalysis
	source   *ingest.Source
	job      *ImportJob
	exec     *ExecContext
}

// Batch is a registered set of files awaiting execution.
type Batch struct {
	ID       string
	ActorID  string
	Analysis BatchAnalysis

	files    []*batchFile
	executed bool
}

// Orchestrator owns batch and job state. Safe for concurrent use.
type Orchestrator struct {
	store    store.Store
	matcher  match.Matcher
	progress progress.Store
	limiter  *ImportLimiter
	log      *slog.Logger

	chunkSize int
	batchSize int

	mu      sync.Mutex
	batches map[string]*Batch
	jobs    map[string]*batchFile
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLimiter replaces the default concurrency limiter.
func WithLimiter(l *ImportLimiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithChunking overrides the executor chunk and batch sizes.
func WithChunking(chunkSize, batchSize int) Option {
	return func(o *Orchestrator) {
		o.chunkSize = chunkSize
		o.batchSize = batchSize
	}
}

// NewOrchestrator wires an orchestrator over a store and a matcher.
func NewOrchestrator(st store.Store, matcher match.Matcher, prog progress.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     st,
		matcher:   matcher,
		progress:  prog,
		limiter:   NewImportLimiter(DefaultMaxConcurrentFiles, DefaultMaxWaitTime),
		log:       slog.Default(),
		chunkSize: DefaultChunkSize,
		batchSize: DefaultBatchSize,
		batches:   make(map[string]*Batch),
		jobs:      make(map[string]*batchFile),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Analyze profiles and matches every file without touching any state. Files
// that fail to parse get an Err set and are excluded from the plan; one bad
// file never sinks the batch.
func (o *Orchestrator) Analyze(ctx context.Context, files []FileInput) BatchAnalysis {
	analysis, _ := o.analyze(ctx, files)
	return analysis
}

func (o *Orchestrator) analyze(ctx context.Context, files []FileInput) (BatchAnalysis, []*ingest.Source) {
	var analysis BatchAnalysis
	sources := make([]*ingest.Source, len(files))

	for i, f := range files {
		fa := FileAnalysis{FileName: f.Name}

		src, err := ingest.Open(f.Name, f.Data)
		if err != nil {
			fa.Err = err.Error()
			analysis.Files = append(analysis.Files, fa)
			o.log.Warn("file analysis failed", "file", f.Name, "error", err)
			continue
		}
		sources[i] = src

		profile := src.Profile()
		result := o.matcher.Match(ctx, profile.Headers, profile.Sample, f.Name)

		fa.Entity = result.Entity
		fa.Confidence = result.Confidence
		fa.Mapping = result.Mapping
		fa.Result = result
		fa.RowCount = profile.RowEstimate

		analysis.Files = append(analysis.Files, fa)
	}

	o.replan(&analysis)
	return analysis, sources
}

// replan recomputes the batch-wide order from the currently assigned
// entities and rebuilds the warning list from the current per-file state
// plus the plan's own warnings. Called after analysis and after every
// override, so an override that settles a doubtful match also clears its
// warning.
func (o *Orchestrator) replan(analysis *BatchAnalysis) {
	seen := make(map[string]bool)
	var present []string
	for _, fa := range analysis.Files {
		if fa.Err != "" || fa.Entity == "" || seen[fa.Entity] {
			continue
		}
		seen[fa.Entity] = true
		present = append(present, fa.Entity)
	}

	plan := BuildPlan(present, schema.DependencyGraph(), schema.Names())
	analysis.Order = plan.Order
	analysis.Tiers = plan.Tiers
	analysis.Warnings = append(fileWarnings(analysis.Files), plan.Warnings...)
}

// fileWarnings derives the per-file warnings from the files' current state.
func fileWarnings(files []FileAnalysis) []string {
	var out []string
	for _, fa := range files {
		switch {
		case fa.Err != "":
			out = append(out, fmt.Sprintf("%s: excluded from batch: %s", fa.FileName, fa.Err))
		case fa.Entity == "":
			out = append(out, fmt.Sprintf("%s: no entity type matched; assign one explicitly", fa.FileName))
		case fa.Confidence < match.MinConfidence:
			out = append(out, fmt.Sprintf("%s: matched %s at %.2f confidence; confirm before executing",
				fa.FileName, fa.Entity, fa.Confidence))
		}
	}
	return out
}

// CreateBatch analyzes the files and registers a batch ready for overrides
// and execution. Fails only when not a single file is usable.
func (o *Orchestrator) CreateBatch(ctx context.Context, actorID string, files []FileInput) (*Batch, error) {
	analysis, sources := o.analyze(ctx, files)

	batch := &Batch{
		ID:       uuid.NewString(),
		ActorID:  actorID,
		Analysis: analysis,
	}

	usable := 0
	for i := range analysis.Files {
		fa := analysis.Files[i]
		bf := &batchFile{analysis: fa, source: sources[i]}
		if fa.Err == "" {
			usable++
			bf.job = &ImportJob{
				ID:       uuid.NewString(),
				FileName: fa.FileName,
				Entity:   fa.Entity,
				Status:   StatusPending,
				Total:    fa.RowCount,
			}
			bf.exec = &ExecContext{JobID: bf.job.ID, BatchID: batch.ID, ActorID: actorID}
		}
		batch.files = append(batch.files, bf)
	}
	if usable == 0 {
		return nil, fmt.Errorf("create batch: no usable files among %d", len(files))
	}

	o.mu.Lock()
	o.batches[batch.ID] = batch
	for _, bf := range batch.files {
		if bf.job != nil {
			o.jobs[bf.job.ID] = bf
		}
	}
	o.mu.Unlock()

	o.log.Info("batch created",
		"batch_id", batch.ID,
		"actor_id", actorID,
		"files", len(files),
		"usable", usable,
		"order", strings.Join(analysis.Order, ","))
	return batch, nil
}

// Override reassigns a file's entity type and/or adjusts its column mapping
// before execution. An entity change with no explicit mapping re-derives the
// mapping for the new entity; explicit entries then replace the derived ones
// column by column.
func (o *Orchestrator) Override(batchID, fileName, entity string, mapping match.ColumnMapping) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	batch, ok := o.batches[batchID]
	if !ok {
		return ErrBatchNotFound
	}
	if batch.executed {
		return fmt.Errorf("override %s: batch already executed", batchID)
	}

	var bf *batchFile
	for _, candidate := range batch.files {
		if candidate.analysis.FileName == fileName {
			bf = candidate
			break
		}
	}
	if bf == nil || bf.job == nil {
		return fmt.Errorf("override %s: no usable file %q in batch", batchID, fileName)
	}

	if entity != "" && entity != bf.analysis.Entity {
		result, err := match.NewRuleMatcher().MatchEntity(entity, bf.source.Profile().Headers)
		if err != nil {
			return fmt.Errorf("override %s: %w", fileName, err)
		}
		bf.analysis.Entity = entity
		bf.analysis.Confidence = result.Confidence
		bf.analysis.Mapping = result.Mapping
		bf.analysis.Result = result
		bf.job.Entity = entity
	}

	for col, fm := range mapping {
		if fm.Field == "" {
			delete(bf.analysis.Mapping, col)
			continue
		}
		bf.analysis.Mapping[col] = fm
	}

	for i := range batch.Analysis.Files {
		if batch.Analysis.Files[i].FileName == fileName {
			batch.Analysis.Files[i] = bf.analysis
		}
	}
	o.replan(&batch.Analysis)
	return nil
}

// ExecuteBatch runs a batch tier by tier. Files inside one tier run
// concurrently under the limiter; a tier only starts after the previous one
// committed and the reference caches were refreshed. A file whose entity
// depends on a failed entity is skipped, never executed against missing
// references.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, batchID string, mode ImportMode) (*BatchReport, error) {
	o.mu.Lock()
	batch, ok := o.batches[batchID]
	if !ok {
		o.mu.Unlock()
		return nil, ErrBatchNotFound
	}
	if batch.executed {
		o.mu.Unlock()
		return nil, fmt.Errorf("execute batch %s: already executed", batchID)
	}
	batch.executed = true
	o.mu.Unlock()

	started := time.Now()
	resolver := NewReferenceResolver(o.store)
	defer resolver.Discard()

	// Files grouped by their (possibly overridden) entity type.
	byEntity := make(map[string][]*batchFile)
	for _, bf := range batch.files {
		if bf.job == nil || bf.analysis.Entity == "" {
			continue
		}
		byEntity[bf.analysis.Entity] = append(byEntity[bf.analysis.Entity], bf)
	}

	var (
		resultsMu sync.Mutex
		results   []FileResult
		failed    = make(map[string]bool) // Entity types that terminally failed
	)

	for _, tier := range batch.Analysis.Tiers {
		if err := resolver.Refresh(ctx, tierDependencies(tier)); err != nil {
			return nil, fmt.Errorf("refresh references before tier %v: %w", tier, err)
		}

		var wg sync.WaitGroup
		for _, entity := range tier {
			for _, bf := range byEntity[entity] {
				resultsMu.Lock()
				blocked := upstreamFailure(entity, failed)
				if blocked != "" {
					results = append(results, o.skipUpstream(bf, blocked))
					failed[entity] = true
					resultsMu.Unlock()
					continue
				}
				resultsMu.Unlock()

				wg.Add(1)
				go func(bf *batchFile) {
					defer wg.Done()
					res := o.runFile(ctx, bf, resolver, mode)

					resultsMu.Lock()
					results = append(results, *res)
					if res.Status == StatusFailed {
						failed[bf.analysis.Entity] = true
					}
					resultsMu.Unlock()
				}(bf)
			}
		}
		wg.Wait()
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FileName < results[j].FileName
	})
	report := BuildBatchReport(batch.ID, results, time.Since(started))

	o.log.Info("batch finished",
		"batch_id", batch.ID,
		"files", len(results),
		"rows", report.Total,
		"succeeded", report.Succeeded,
		"errored", report.Errored,
		"skipped", report.Skipped,
		"failed_files", report.Failed,
		"duration", report.Duration)
	return &report, nil
}

// runFile executes one file under the limiter, surviving panics in the
// worker so one poisoned file cannot take the batch down.
func (o *Orchestrator) runFile(ctx context.Context, bf *batchFile, resolver *ReferenceResolver, mode ImportMode) (res *FileResult) {
	log := o.log.With(
		"job_id", bf.job.ID,
		"batch_id", bf.exec.BatchID,
		"file", bf.analysis.FileName,
		"entity", bf.analysis.Entity)

	defer func() {
		if r := recover(); r != nil {
			log.Error("import worker panicked", "panic", r, "stack", string(debug.Stack()))
			res = &FileResult{
				JobID:    bf.job.ID,
				FileName: bf.analysis.FileName,
				Entity:   bf.analysis.Entity,
				Status:   StatusFailed,
				Err:      fmt.Sprintf("internal error: %v", r),
			}
			bf.job.finish(StatusFailed)
		}
	}()

	if err := o.limiter.Acquire(ctx); err != nil {
		log.Warn("limiter rejected import", "error", err)
		bf.job.finish(StatusFailed)
		return &FileResult{
			JobID:    bf.job.ID,
			FileName: bf.analysis.FileName,
			Entity:   bf.analysis.Entity,
			Status:   StatusFailed,
			Err:      err.Error(),
		}
	}
	defer o.limiter.Release()

	log.Info("file import started", "rows", bf.analysis.RowCount, "mode", string(mode))

	exec := NewExecutor(o.store, resolver, o.progress, ExecutorConfig{
		ChunkSize: o.chunkSize,
		BatchSize: o.batchSize,
		Mode:      mode,
	})
	res = exec.Execute(WithExecContext(ctx, bf.exec), bf.exec, bf.job, bf.source, bf.analysis.Mapping)

	log.Info("file import finished",
		"status", string(res.Status),
		"processed", res.Processed,
		"succeeded", res.Succeeded,
		"errored", res.Errored,
		"skipped", res.Skipped,
		"duration", res.Duration)
	return res
}

// skipUpstream marks a file failed without running it because an entity it
// depends on already failed in an earlier tier.
func (o *Orchestrator) skipUpstream(bf *batchFile, blocked string) FileResult {
	msg := fmt.Sprintf("%v: %s", ErrUpstreamFailed, blocked)
	bf.job.finish(StatusFailed)
	bf.job.RecordError(RowError{Kind: KindSystem, Message: msg})

	o.log.Warn("file skipped",
		"job_id", bf.job.ID,
		"file", bf.analysis.FileName,
		"entity", bf.analysis.Entity,
		"failed_dependency", blocked)
	return FileResult{
		JobID:    bf.job.ID,
		FileName: bf.analysis.FileName,
		Entity:   bf.analysis.Entity,
		Status:   StatusFailed,
		Err:      msg,
	}
}

// upstreamFailure returns the first dependency of entity that already
// failed, or "" when the entity is clear to run.
func upstreamFailure(entity string, failed map[string]bool) string {
	et, ok := schema.Get(entity)
	if !ok {
		return ""
	}
	for _, dep := range et.DependsOn {
		if failed[dep] {
			return dep
		}
	}
	return ""
}

// tierDependencies returns the entity types whose keys a tier needs cached:
// everything the tier's entities reference, plus the entities themselves for
// create-vs-update decisions.
func tierDependencies(tier []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, name := range tier {
		add(name)
		if et, ok := schema.Get(name); ok {
			for _, ref := range et.References() {
				add(ref)
			}
		}
	}
	return out
}

// GetBatch returns a registered batch's analysis.
func (o *Orchestrator) GetBatch(batchID string) (BatchAnalysis, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	batch, ok := o.batches[batchID]
	if !ok {
		return BatchAnalysis{}, ErrBatchNotFound
	}
	return batch.Analysis, nil
}

// GetJob returns a point-in-time snapshot of a job.
func (o *Orchestrator) GetJob(jobID string) (ImportJob, error) {
	o.mu.Lock()
	bf, ok := o.jobs[jobID]
	o.mu.Unlock()

	if !ok {
		return ImportJob{}, ErrJobNotFound
	}
	return bf.job.Snapshot(), nil
}

// CancelJob requests cancellation of a running job. The executor stops after
// the chunk in flight; already committed chunks stay committed.
func (o *Orchestrator) CancelJob(jobID string) error {
	o.mu.Lock()
	bf, ok := o.jobs[jobID]
	o.mu.Unlock()

	if !ok {
		return ErrJobNotFound
	}
	bf.exec.Cancel()
	o.log.Info("job cancellation requested", "job_id", jobID)
	return nil
}

// Progress returns the latest published progress snapshot for a job.
func (o *Orchestrator) Progress(jobID string) (progress.Snapshot, bool) {
	if o.progress == nil {
		return progress.Snapshot{}, false
	}
	return o.progress.Get(jobID)
}
