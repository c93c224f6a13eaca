// Package ingest turns raw uploaded bytes into a header row, a lazy stream of
// data rows and a row-count estimate, without materializing whole files.
//
// Supported inputs are delimited text (encoding and delimiter auto-detected)
// and xlsx spreadsheets (streamed row by row). Row streams are single-pass
// but can be reopened from the original bytes as often as needed.
package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MaxHeaderSearchRows is the maximum number of leading rows scanned for the
// header. Exported files often carry title or export-date rows first.
var MaxHeaderSearchRows = 10

// SampleRows is the number of data rows captured in a FileProfile.
var SampleRows = 10

// ParseError reports a file that could not be decoded or has no recoverable
// header row. It is fatal to that file only.
type ParseError struct {
	File   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.File, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.File, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FileProfile is the immutable per-file metadata produced once at Open.
type FileProfile struct {
	FileName    string
	Headers     []string
	RowEstimate int        // Data rows, excluding everything up to the header
	Sample      [][]string // First few data rows
}

// RowIter is a single-pass iterator over data rows.
type RowIter interface {
	// Next returns the next data row, or false when the stream is exhausted.
	Next() ([]string, bool)
	// Err returns the first error encountered while iterating.
	Err() error
	Close() error
}

// Source is an opened file: detected format, encoding and delimiter, plus the
// original bytes so row streams can be reopened at will.
type Source struct {
	profile   FileProfile
	raw       []byte
	isSheet   bool
	enc       detectedEncoding
	delimiter rune
	headerRow int // Index of the header row in the physical file
}

// Open detects the file format, encoding and delimiter, locates the header
// row and computes the row estimate. It never persists anything.
func Open(filename string, data []byte) (*Source, error) {
	if len(data) == 0 {
		return nil, &ParseError{File: filename, Reason: "empty file"}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".xlsx" || ext == ".xlsm" {
		return openSheet(filename, data)
	}
	return openDelimited(filename, data)
}

// Profile returns the file's immutable metadata.
func (s *Source) Profile() FileProfile { return s.profile }

// Rows reopens the data-row stream from the original bytes. The returned
// iterator starts at the first row after the header.
func (s *Source) Rows() (RowIter, error) {
	if s.isSheet {
		return s.sheetRows()
	}
	return s.delimitedRows()
}

// findHeader returns the index of the first plausible header row within the
// search window: the first row with at least one non-empty cell containing a
// letter. Returns -1 when no such row exists.
func findHeader(rows [][]string) int {
	limit := len(rows)
	if limit > MaxHeaderSearchRows {
		limit = MaxHeaderSearchRows
	}

	for i := 0; i < limit; i++ {
		if isHeaderRow(rows[i]) {
			return i
		}
	}
	return -1
}

func isHeaderRow(row []string) bool {
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		for _, r := range cell {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				return true
			}
		}
	}
	return false
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// cleanHeader trims whitespace and strips stray quotes from header cells.
func cleanHeader(row []string) []string {
	out := make([]string, len(row))
	for i, h := range row {
		out[i] = strings.Trim(strings.TrimSpace(h), `"'`)
	}
	return out
}
