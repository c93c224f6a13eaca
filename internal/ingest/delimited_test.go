package ingest

import (
	"strings"
	"testing"
)

// collect drains a row iterator.
func collect(t *testing.T, src *Source) [][]string {
	t.Helper()

	rows, err := src.Rows()
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	defer rows.Close()

	var out [][]string
	for {
		row, ok := rows.Next()
		if !ok {
			break
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iteration error = %v", err)
	}
	return out
}

func TestOpen_PlainCSV(t *testing.T) {
	data := []byte("code,name,cost center\nENG,Engineering,CC100\nFIN,Finance,CC200\n")

	src, err := Open("departments.csv", data)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	p := src.Profile()
	wantHeaders := []string{"code", "name", "cost center"}
	for i, h := range p.Headers {
		if h != wantHeaders[i] {
			t.Errorf("Headers[%d] = %q, want %q", i, h, wantHeaders[i])
		}
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
	if rows[0][0] != "ENG" || rows[1][0] != "FIN" {
		t.Errorf("rows = %v", rows)
	}
}

func TestOpen_NoTrailingNewline(t *testing.T) {
	data := []byte("code,name\nENG,Engineering")

	src, err := Open("d.csv", data)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := src.Profile().RowEstimate; got != 1 {
		t.Errorf("RowEstimate = %d, want 1", got)
	}
	if rows := collect(t, src); len(rows) != 1 {
		t.Errorf("row count = %d, want 1", len(rows))
	}
}

func TestOpen_SemicolonDelimiter(t *testing.T) {
	data := []byte("code;name;city\nACC;Accra Office;Accra\nKSI;Kumasi Office;Kumasi\n")

	src, err := Open("locations.csv", data)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	p := src.Profile()
	if len(p.Headers) != 3 || p.Headers[1] != "name" {
		t.Fatalf("Headers = %v, want 3 semicolon-split columns", p.Headers)
	}

	rows := collect(t, src)
	if rows[0][1] != "Accra Office" {
		t.Errorf("rows[0][1] = %q, want %q", rows[0][1], "Accra Office")
	}
}

func TestOpen_TabDelimiter(t *testing.T) {
	data := []byte("code\tname\nENG\tEngineering\n")

	src, err := Open("d.tsv", data)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := src.Profile().Headers; len(got) != 2 || got[0] != "code" {
		t.Errorf("Headers = %v, want [code name]", got)
	}
}

func TestOpen_UTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("code,name\nENG,Engineering\n")...)

	src, err := Open("d.csv", data)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := src.Profile().Headers[0]; got != "code" {
		t.Errorf("Headers[0] = %q, want %q without BOM residue", got, "code")
	}
}

func TestOpen_Windows1252(t *testing.T) {
	// 0xE9 is 'é' in Windows-1252 and invalid as UTF-8 on its own.
	data := append([]byte("code,name\nFRN,Caf"), 0xE9, '\n')

	src, err := Open("d.csv", data)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	rows := collect(t, src)
	if len(rows) != 1 {
		t.Fatalf("row count = %d, want 1", len(rows))
	}
	if rows[0][1] != "Café" {
		t.Errorf("rows[0][1] = %q, want %q", rows[0][1], "Café")
	}
}

func TestOpen_UTF16LE(t *testing.T) {
	text := "code,name\nENG,Engineering\n"
	data := []byte{0xFF, 0xFE}
	for _, r := range text {
		data = append(data, byte(r), 0x00)
	}

	src, err := Open("d.csv", data)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := src.Profile().Headers[0]; got != "code" {
		t.Errorf("Headers[0] = %q, want %q", got, "code")
	}
	if rows := collect(t, src); len(rows) != 1 || rows[0][1] != "Engineering" {
		t.Errorf("rows = %v", rows)
	}
}

func TestOpen_HeaderAfterPreamble(t *testing.T) {
	// Empty and numeric preamble rows precede the header.
	data := []byte(",,\n1,2,3\ncode,name,city\nACC,Accra Office,Accra\n")

	src, err := Open("l.csv", data)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	p := src.Profile()
	if p.Headers[0] != "code" {
		t.Fatalf("Headers = %v, want header row after preamble", p.Headers)
	}
	if p.RowEstimate != 1 {
		t.Errorf("RowEstimate = %d, want 1", p.RowEstimate)
	}

	rows := collect(t, src)
	if len(rows) != 1 || rows[0][0] != "ACC" {
		t.Errorf("rows = %v, want the single data row", rows)
	}
}

func TestOpen_SkipsBlankRows(t *testing.T) {
	data := []byte("code,name\nENG,Engineering\n,\n\nFIN,Finance\n")

	src, err := Open("d.csv", data)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	rows := collect(t, src)
	if len(rows) != 2 {
		t.Fatalf("row count = %d, want 2 after skipping blanks", len(rows))
	}
	if rows[1][0] != "FIN" {
		t.Errorf("rows[1][0] = %q, want FIN", rows[1][0])
	}
}

func TestOpen_QuotedFields(t *testing.T) {
	data := []byte("code,name\nENG,\"Engineering, Core\"\n")

	src, err := Open("d.csv", data)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	rows := collect(t, src)
	if rows[0][1] != "Engineering, Core" {
		t.Errorf("rows[0][1] = %q, want embedded comma preserved", rows[0][1])
	}
}

func TestOpen_EmptyFile(t *testing.T) {
	if _, err := Open("empty.csv", nil); err == nil {
		t.Fatal("Open(empty) expected error")
	}
}

func TestOpen_NoHeader(t *testing.T) {
	data := []byte("1,2,3\n4,5,6\n")

	_, err := Open("numbers.csv", data)
	if err == nil {
		t.Fatal("Open(no header) expected error")
	}
	if !strings.Contains(err.Error(), "header") {
		t.Errorf("error = %v, want mention of missing header", err)
	}
}

func TestRows_Reopenable(t *testing.T) {
	data := []byte("code,name\nENG,Engineering\nFIN,Finance\n")

	src, err := Open("d.csv", data)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	first := collect(t, src)
	second := collect(t, src)
	if len(first) != len(second) {
		t.Fatalf("reopened stream yielded %d rows, first pass %d", len(second), len(first))
	}
	for i := range first {
		for j := range first[i] {
			if first[i][j] != second[i][j] {
				t.Errorf("row %d col %d differs: %q vs %q", i, j, first[i][j], second[i][j])
			}
		}
	}
}
