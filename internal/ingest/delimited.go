package ingest

// delimited.go handles delimited text: encoding detection with a
// byte-preserving fallback, delimiter sniffing over a bounded prefix, and a
// streaming csv-backed row iterator.

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// delimiterCandidates are tried in order; ties go to the earlier candidate.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

// sniffLimit bounds how much of the content is sampled for delimiter and
// encoding detection.
const sniffLimit = 8 * 1024

type detectedEncoding int

const (
	encUTF8 detectedEncoding = iota
	encUTF8BOM
	encUTF16LE
	encUTF16BE
	encWindows1252
)

// detectEncoding inspects BOMs first, then UTF-8 validity over a bounded
// prefix. Content that is neither falls back to Windows-1252, which maps
// every byte and therefore never loses data.
func detectEncoding(data []byte) detectedEncoding {
	switch {
	case len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF:
		return encUTF8BOM
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE:
		return encUTF16LE
	case len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF:
		return encUTF16BE
	}

	sample := data
	if len(sample) > sniffLimit {
		sample = sample[:sniffLimit]
		// Do not judge a rune split by the sample boundary.
		for len(sample) > 0 && !utf8.Valid(sample) {
			if r, _ := utf8.DecodeLastRune(sample); r == utf8.RuneError {
				sample = sample[:len(sample)-1]
				continue
			}
			break
		}
	}
	if utf8.Valid(sample) {
		return encUTF8
	}
	return encWindows1252
}

func (e detectedEncoding) decoder() *encoding.Decoder {
	switch e {
	case encUTF8BOM:
		return unicode.UTF8BOM.NewDecoder()
	case encUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	case encUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
	case encWindows1252:
		return charmap.Windows1252.NewDecoder()
	default:
		return unicode.UTF8.NewDecoder()
	}
}

// decodedReader reopens the raw bytes as decoded text.
func decodedReader(raw []byte, enc detectedEncoding) io.Reader {
	return transform.NewReader(bytes.NewReader(raw), enc.decoder().Transformer)
}

// detectDelimiter counts candidate occurrences in a bounded prefix of the
// decoded content and picks the most frequent one. Defaults to comma.
func detectDelimiter(r io.Reader) rune {
	buf := make([]byte, sniffLimit)
	n, _ := io.ReadFull(r, buf)
	sample := string(buf[:n])

	best := ','
	bestCount := 0
	for _, cand := range delimiterCandidates {
		count := 0
		for _, c := range sample {
			if c == cand {
				count++
			}
		}
		if count > bestCount {
			best = cand
			bestCount = count
		}
	}
	return best
}

func openDelimited(filename string, data []byte) (*Source, error) {
	enc := detectEncoding(data)
	delim := detectDelimiter(decodedReader(data, enc))

	s := &Source{
		raw:       data,
		enc:       enc,
		delimiter: delim,
	}

	// Scan the leading rows once to find the header and grab samples.
	reader := newCSVReader(decodedReader(data, enc), delim)
	var leading [][]string
	for len(leading) < MaxHeaderSearchRows {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{File: filename, Reason: "unreadable content", Err: err}
		}
		leading = append(leading, row)
	}

	headerRow := findHeader(leading)
	if headerRow < 0 {
		return nil, &ParseError{File: filename, Reason: "no recoverable header row"}
	}
	s.headerRow = headerRow

	headers := cleanHeader(leading[headerRow])
	var sample [][]string
	for _, row := range leading[headerRow+1:] {
		if isEmptyRow(row) {
			continue
		}
		sample = append(sample, row)
	}
	for len(sample) < SampleRows {
		row, err := reader.Read()
		if err != nil {
			break
		}
		if isEmptyRow(row) {
			continue
		}
		sample = append(sample, row)
	}
	if len(sample) > SampleRows {
		sample = sample[:SampleRows]
	}

	s.profile = FileProfile{
		FileName:    filename,
		Headers:     headers,
		RowEstimate: estimateRows(decodedReader(data, enc), headerRow),
		Sample:      sample,
	}
	return s, nil
}

// estimateRows counts physical lines without parsing them into fields, then
// subtracts everything up to and including the header row.
func estimateRows(r io.Reader, headerRow int) int {
	br := bufio.NewReader(r)
	lines := 0
	trailing := false
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			if chunk[len(chunk)-1] == '\n' {
				lines++
				trailing = false
			} else {
				trailing = true
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			break
		}
	}
	// A final line without a trailing newline still counts.
	if trailing {
		lines++
	}

	est := lines - headerRow - 1
	if est < 0 {
		est = 0
	}
	return est
}

func newCSVReader(r io.Reader, delim rune) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

type delimitedIter struct {
	reader *csv.Reader
	err    error
}

func (s *Source) delimitedRows() (RowIter, error) {
	reader := newCSVReader(decodedReader(s.raw, s.enc), s.delimiter)
	// Skip everything up to and including the header.
	for i := 0; i <= s.headerRow; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, &ParseError{File: s.profile.FileName, Reason: "reopen rows", Err: err}
		}
	}
	return &delimitedIter{reader: reader}, nil
}

func (it *delimitedIter) Next() ([]string, bool) {
	for {
		row, err := it.reader.Read()
		if err == io.EOF {
			return nil, false
		}
		if err != nil {
			it.err = err
			return nil, false
		}
		if isEmptyRow(row) {
			continue
		}
		return row, true
	}
}

func (it *delimitedIter) Err() error   { return it.err }
func (it *delimitedIter) Close() error { return nil }
