package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// WriteErrorReport writes a job's retained row errors as flat CSV for
// download. When the cap truncated the sample, a trailing summary row says
// how many errors went unrecorded.
func WriteErrorReport(w io.Writer, result *FileResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"row", "kind", "field", "value", "message"}); err != nil {
		return fmt.Errorf("write error report header: %w", err)
	}

	for _, e := range result.Errors {
		rec := []string{
			strconv.Itoa(e.Row),
			string(e.Kind),
			e.Field,
			e.Value,
			e.Message,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write error report row: %w", err)
		}
	}

	truncated := result.ErrorCount - len(result.Errors)
	if truncated > 0 {
		rec := []string{"", "", "", "", fmt.Sprintf("%d further errors not retained", truncated)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write error report row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// BuildBatchReport aggregates per-file results into batch totals.
func BuildBatchReport(batchID string, results []FileResult, elapsed time.Duration) BatchReport {
	report := BatchReport{
		BatchID:  batchID,
		Files:    results,
		Duration: elapsed,
	}
	for _, r := range results {
		report.Total += r.Processed
		report.Succeeded += r.Succeeded
		report.Errored += r.Errored
		report.Skipped += r.Skipped
		if r.Status == StatusFailed {
			report.Failed++
		}
	}
	return report
}
