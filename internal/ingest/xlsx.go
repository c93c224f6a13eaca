package ingest

// xlsx.go streams spreadsheet rows through excelize's row iterator rather
// than materializing whole sheets. Only the first sheet of a workbook is
// imported.

import (
	"bytes"

	"github.com/xuri/excelize/v2"
)

func openSheet(filename string, data []byte) (*Source, error) {
	s := &Source{
		raw:     data,
		isSheet: true,
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{File: filename, Reason: "open workbook", Err: err}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, &ParseError{File: filename, Reason: "workbook has no sheets"}
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, &ParseError{File: filename, Reason: "read sheet", Err: err}
	}
	defer rows.Close()

	// One streaming pass: locate the header, grab samples, count the rest.
	var (
		leading   [][]string
		headerRow = -1
		headers   []string
		sample    [][]string
		count     int
	)
	idx := -1
	for rows.Next() {
		idx++
		row, err := rows.Columns()
		if err != nil {
			return nil, &ParseError{File: filename, Reason: "read row", Err: err}
		}

		if headerRow < 0 {
			leading = append(leading, row)
			if found := findHeader(leading); found >= 0 {
				headerRow = found
				headers = cleanHeader(leading[found])
			} else if idx >= MaxHeaderSearchRows {
				return nil, &ParseError{File: filename, Reason: "no recoverable header row"}
			}
			continue
		}

		if isEmptyRow(row) {
			continue
		}
		count++
		if len(sample) < SampleRows {
			sample = append(sample, row)
		}
	}
	if err := rows.Error(); err != nil {
		return nil, &ParseError{File: filename, Reason: "iterate sheet", Err: err}
	}
	if headerRow < 0 {
		return nil, &ParseError{File: filename, Reason: "no recoverable header row"}
	}
	s.headerRow = headerRow

	s.profile = FileProfile{
		FileName:    filename,
		Headers:     headers,
		RowEstimate: count,
		Sample:      sample,
	}
	return s, nil
}

type sheetIter struct {
	file   *excelize.File
	rows   *excelize.Rows
	err    error
	closed bool
}

func (s *Source) sheetRows() (RowIter, error) {
	f, err := excelize.OpenReader(bytes.NewReader(s.raw))
	if err != nil {
		return nil, &ParseError{File: s.profile.FileName, Reason: "reopen workbook", Err: err}
	}

	rows, err := f.Rows(f.GetSheetName(0))
	if err != nil {
		f.Close()
		return nil, &ParseError{File: s.profile.FileName, Reason: "reopen sheet", Err: err}
	}

	// Skip everything up to and including the header.
	for i := 0; i <= s.headerRow && rows.Next(); i++ {
		if _, err := rows.Columns(); err != nil {
			rows.Close()
			f.Close()
			return nil, &ParseError{File: s.profile.FileName, Reason: "skip header", Err: err}
		}
	}

	return &sheetIter{file: f, rows: rows}, nil
}

func (it *sheetIter) Next() ([]string, bool) {
	for it.rows.Next() {
		row, err := it.rows.Columns()
		if err != nil {
			it.err = err
			return nil, false
		}
		if isEmptyRow(row) {
			continue
		}
		return row, true
	}
	if err := it.rows.Error(); err != nil {
		it.err = err
	}
	return nil, false
}

func (it *sheetIter) Err() error { return it.err }

func (it *sheetIter) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if err := it.rows.Close(); err != nil {
		it.file.Close()
		return err
	}
	return it.file.Close()
}
