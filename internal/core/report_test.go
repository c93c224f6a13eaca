package core

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorReport(t *testing.T) {
	result := &FileResult{
		Errored:    2,
		ErrorCount: 2,
		Errors: []RowError{
			{Row: 3, Kind: KindValidation, Field: "email", Value: "nope", Message: "invalid email"},
			{Row: 7, Kind: KindReference, Field: "department", Value: "Warehouse", Message: "no department found"},
		},
	}

	var sb strings.Builder
	require.NoError(t, WriteErrorReport(&sb, result))

	records, err := csv.NewReader(strings.NewReader(sb.String())).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3, "header plus one line per error")
	assert.Equal(t, []string{"row", "kind", "field", "value", "message"}, records[0])
	assert.Equal(t, []string{"3", "validation", "email", "nope", "invalid email"}, records[1])
	assert.Equal(t, "7", records[2][0])
}

func TestWriteErrorReport_TruncationNote(t *testing.T) {
	result := &FileResult{
		Errored:    150,
		ErrorCount: 150,
		Errors:     []RowError{{Row: 1, Kind: KindValidation, Message: "bad"}},
	}

	var sb strings.Builder
	require.NoError(t, WriteErrorReport(&sb, result))

	records, err := csv.NewReader(strings.NewReader(sb.String())).ReadAll()
	require.NoError(t, err)

	last := records[len(records)-1]
	assert.Contains(t, last[4], "149 further errors")
}

func TestBuildBatchReport(t *testing.T) {
	results := []FileResult{
		{FileName: "a.csv", Status: StatusCompleted, Processed: 10, Succeeded: 8, Errored: 1, Skipped: 1},
		{FileName: "b.csv", Status: StatusFailed, Processed: 4, Succeeded: 0, Errored: 0, Skipped: 0},
	}

	report := BuildBatchReport("batch-1", results, 2*time.Second)

	assert.Equal(t, "batch-1", report.BatchID)
	assert.Equal(t, 14, report.Total)
	assert.Equal(t, 8, report.Succeeded)
	assert.Equal(t, 1, report.Errored)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2*time.Second, report.Duration)
}
