package ingest

import (
	"testing"

	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes rows into the first sheet and returns the xlsx bytes.
func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row %d: %v", i, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestOpen_Workbook(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"code", "name", "cost center"},
		{"ENG", "Engineering", "CC100"},
		{"FIN", "Finance", "CC200"},
	})

	src, err := Open("departments.xlsx", data)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	p := src.Profile()
	if len(p.Headers) != 3 || p.Headers[0] != "code" {
		t.Fatalf("Headers = %v", p.Headers)
	}
	if p.RowEstimate != 2 {
		t.Errorf("RowEstimate = %d, want 2", p.RowEstimate)
	}
	if len(p.Sample) != 2 {
		t.Errorf("len(Sample) = %d, want 2", len(p.Sample))
	}

	rows := collect(t, src)
	if len(rows) != 2 {
		t.Fatalf("row count = %d, want 2", len(rows))
	}
	if rows[0][0] != "ENG" || rows[1][1] != "Finance" {
		t.Errorf("rows = %v", rows)
	}
}

func TestOpen_WorkbookHeaderAfterTitleRows(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{123},
		{"code", "name"},
		{"ENG", "Engineering"},
	})

	src, err := Open("d.xlsx", data)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := src.Profile().Headers; len(got) != 2 || got[0] != "code" {
		t.Fatalf("Headers = %v, want header found after numeric row", got)
	}

	rows := collect(t, src)
	if len(rows) != 1 || rows[0][0] != "ENG" {
		t.Errorf("rows = %v, want the single data row", rows)
	}
}

func TestOpen_WorkbookReopenable(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"code", "name"},
		{"ENG", "Engineering"},
	})

	src, err := Open("d.xlsx", data)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if first := collect(t, src); len(first) != 1 {
		t.Fatalf("first pass rows = %d, want 1", len(first))
	}
	if second := collect(t, src); len(second) != 1 {
		t.Fatalf("second pass rows = %d, want 1", len(second))
	}
}

func TestOpen_WorkbookSkipsBlankRows(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"code", "name"},
		{"ENG", "Engineering"},
		{"", ""},
		{"FIN", "Finance"},
	})

	src, err := Open("d.xlsx", data)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := src.Profile().RowEstimate; got != 2 {
		t.Errorf("RowEstimate = %d, want 2", got)
	}

	rows := collect(t, src)
	if len(rows) != 2 {
		t.Errorf("row count = %d, want 2", len(rows))
	}
}
