package core

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekowhinson/HRMS-sub000/internal/match"
	"github.com/ekowhinson/HRMS-sub000/internal/store"
	"github.com/ekowhinson/HRMS-sub000/internal/store/memory"
)

var (
	departmentsCSV = "code,name,cost center\nENG,Engineering,CC100\nFIN,Finance,CC200\n"
	employeesCSV   = strings.Join([]string{
		"Staff ID,Given Name,Surname,Work Email,Dept.",
		"E001,Ama,Mensah,ama@example.com,Engineering",
		"E002,Kofi,Boateng,kofi@example.com,Finance",
		"E003,Esi,Asante,esi@example.com,ENG",
	}, "\n") + "\n"
)

func newTestOrchestrator(st store.Store) *Orchestrator {
	return NewOrchestrator(st, match.NewRuleMatcher(), &recordingProgress{})
}

func TestOrchestrator_AnalyzeDetectsAndOrders(t *testing.T) {
	orch := newTestOrchestrator(memory.New())

	analysis := orch.Analyze(context.Background(), []FileInput{
		{Name: "staff.csv", Data: []byte(employeesCSV)},
		{Name: "departments.csv", Data: []byte(departmentsCSV)},
	})

	require.Len(t, analysis.Files, 2)

	byName := make(map[string]FileAnalysis)
	for _, fa := range analysis.Files {
		byName[fa.FileName] = fa
	}
	assert.Equal(t, "employee", byName["staff.csv"].Entity)
	assert.Equal(t, "department", byName["departments.csv"].Entity)

	// Departments must come before the employees that reference them.
	require.Equal(t, []string{"department", "employee"}, analysis.Order)
}

func TestOrchestrator_AnalyzeExcludesUnparseableFile(t *testing.T) {
	orch := newTestOrchestrator(memory.New())

	analysis := orch.Analyze(context.Background(), []FileInput{
		{Name: "departments.csv", Data: []byte(departmentsCSV)},
		{Name: "numbers.csv", Data: []byte("1,2,3\n4,5,6\n")},
	})

	require.Len(t, analysis.Files, 2)
	assert.NotEmpty(t, analysis.Files[1].Err, "file without a header must carry its parse error")
	assert.Equal(t, []string{"department"}, analysis.Order, "broken file stays out of the plan")
	assert.NotEmpty(t, analysis.Warnings)
}

func TestOrchestrator_ExecuteBatch_EndToEnd(t *testing.T) {
	st := memory.New()
	orch := newTestOrchestrator(st)
	ctx := context.Background()

	batch, err := orch.CreateBatch(ctx, "tester", []FileInput{
		{Name: "staff.csv", Data: []byte(employeesCSV)},
		{Name: "departments.csv", Data: []byte(departmentsCSV)},
	})
	require.NoError(t, err)

	report, err := orch.ExecuteBatch(ctx, batch.ID, ModeSkipExisting)
	require.NoError(t, err)

	require.Len(t, report.Files, 2)
	assert.Equal(t, 5, report.Succeeded)
	assert.Zero(t, report.Errored)
	assert.Zero(t, report.Failed)

	// Employees resolved their departments against rows created in the
	// same batch one tier earlier.
	assert.Equal(t, 2, st.Count("department"))
	assert.Equal(t, 3, st.Count("employee"))
}

func TestOrchestrator_UpstreamFailureSkipsDependents(t *testing.T) {
	st := memory.New()
	st.FailInsert = func(entityType string, _ []store.Record) error {
		if entityType == "department" {
			return fmt.Errorf("department table unavailable")
		}
		return nil
	}
	orch := newTestOrchestrator(st)
	ctx := context.Background()

	batch, err := orch.CreateBatch(ctx, "tester", []FileInput{
		{Name: "departments.csv", Data: []byte(departmentsCSV)},
		{Name: "staff.csv", Data: []byte(employeesCSV)},
	})
	require.NoError(t, err)

	report, err := orch.ExecuteBatch(ctx, batch.ID, ModeSkipExisting)
	require.NoError(t, err)

	require.Len(t, report.Files, 2)
	assert.Equal(t, 2, report.Failed)

	byName := make(map[string]FileResult)
	for _, f := range report.Files {
		byName[f.FileName] = f
	}
	assert.Equal(t, StatusFailed, byName["departments.csv"].Status)

	staff := byName["staff.csv"]
	assert.Equal(t, StatusFailed, staff.Status)
	assert.Contains(t, staff.Err, ErrUpstreamFailed.Error())
	assert.Zero(t, staff.Processed, "dependent file must never start")
	assert.Zero(t, st.Count("employee"))
}

func TestOrchestrator_OverrideEntity(t *testing.T) {
	orch := newTestOrchestrator(memory.New())
	ctx := context.Background()

	// Ambiguous headers fit several reference entities.
	batch, err := orch.CreateBatch(ctx, "tester", []FileInput{
		{Name: "codes.csv", Data: []byte("code,name\nACC,Accra Office\n")},
	})
	require.NoError(t, err)

	require.NoError(t, orch.Override(batch.ID, "codes.csv", "location", nil))

	analysis, err := orch.GetBatch(batch.ID)
	require.NoError(t, err)
	assert.Equal(t, "location", analysis.Files[0].Entity)
	assert.Equal(t, []string{"location"}, analysis.Order)

	report, err := orch.ExecuteBatch(ctx, batch.ID, ModeSkipExisting)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
}

func TestOrchestrator_OverrideMappingColumn(t *testing.T) {
	orch := newTestOrchestrator(memory.New())
	ctx := context.Background()

	batch, err := orch.CreateBatch(ctx, "tester", []FileInput{
		{Name: "departments.csv", Data: []byte("code,name,misc\nENG,Engineering,overflow\n")},
	})
	require.NoError(t, err)

	require.NoError(t, orch.Override(batch.ID, "departments.csv", "",
		match.ColumnMapping{"misc": {Field: "description", Confidence: 1.0, Reason: "user override"}}))

	analysis, err := orch.GetBatch(batch.ID)
	require.NoError(t, err)
	assert.Equal(t, "description", analysis.Files[0].Mapping["misc"].Field)
}

func TestOrchestrator_OverridePreservesFileWarnings(t *testing.T) {
	orch := newTestOrchestrator(memory.New())
	ctx := context.Background()

	batch, err := orch.CreateBatch(ctx, "tester", []FileInput{
		{Name: "departments.csv", Data: []byte(departmentsCSV)},
		{Name: "numbers.csv", Data: []byte("1,2,3\n4,5,6\n")},
	})
	require.NoError(t, err)
	require.NotEmpty(t, batch.Analysis.Warnings)

	require.NoError(t, orch.Override(batch.ID, "departments.csv", "",
		match.ColumnMapping{"cost center": {Field: "cost_center", Confidence: 1.0, Reason: "user override"}}))

	analysis, err := orch.GetBatch(batch.ID)
	require.NoError(t, err)

	found := false
	for _, w := range analysis.Warnings {
		if strings.Contains(w, "numbers.csv") && strings.Contains(w, "excluded from batch") {
			found = true
		}
	}
	assert.True(t, found, "the excluded-file warning must survive an override")
}

func TestOrchestrator_OverrideUnknownBatch(t *testing.T) {
	orch := newTestOrchestrator(memory.New())
	err := orch.Override("missing", "f.csv", "department", nil)
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestOrchestrator_JobLifecycle(t *testing.T) {
	orch := newTestOrchestrator(memory.New())
	ctx := context.Background()

	batch, err := orch.CreateBatch(ctx, "tester", []FileInput{
		{Name: "departments.csv", Data: []byte(departmentsCSV)},
	})
	require.NoError(t, err)

	require.Len(t, batch.Analysis.Files, 1)
	jobID := ""
	for _, bf := range batch.files {
		jobID = bf.job.ID
	}
	require.NotEmpty(t, jobID)

	job, err := orch.GetJob(jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)

	_, err = orch.GetJob("unknown")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, orch.CancelJob("unknown"), ErrJobNotFound)

	report, err := orch.ExecuteBatch(ctx, batch.ID, ModeSkipExisting)
	require.NoError(t, err)
	require.Equal(t, 2, report.Succeeded)

	job, err = orch.GetJob(jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)

	snap, ok := orch.Progress(jobID)
	require.True(t, ok)
	assert.Equal(t, 2, snap.Processed)
}

func TestOrchestrator_ExecuteBatchTwiceRejected(t *testing.T) {
	orch := newTestOrchestrator(memory.New())
	ctx := context.Background()

	batch, err := orch.CreateBatch(ctx, "tester", []FileInput{
		{Name: "departments.csv", Data: []byte(departmentsCSV)},
	})
	require.NoError(t, err)

	_, err = orch.ExecuteBatch(ctx, batch.ID, ModeSkipExisting)
	require.NoError(t, err)

	_, err = orch.ExecuteBatch(ctx, batch.ID, ModeSkipExisting)
	assert.Error(t, err, "a batch must execute at most once")
}

func TestOrchestrator_CreateBatchAllFilesBroken(t *testing.T) {
	orch := newTestOrchestrator(memory.New())

	_, err := orch.CreateBatch(context.Background(), "tester", []FileInput{
		{Name: "numbers.csv", Data: []byte("1,2\n3,4\n")},
	})
	assert.Error(t, err)
}

func TestOrchestrator_ExecuteUnknownBatch(t *testing.T) {
	orch := newTestOrchestrator(memory.New())
	_, err := orch.ExecuteBatch(context.Background(), "missing", ModeSkipExisting)
	assert.ErrorIs(t, err, ErrBatchNotFound)
}
