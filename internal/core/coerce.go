package core

// coerce.go converts raw cell text to the semantic type of its target field.
//
// These functions handle the messy reality of user-provided tabular data:
//   - Multiple date formats (US, EU, ISO, etc.) with 2-digit year pivot
//   - Currency symbols and thousand separators in numbers
//   - Accounting negatives "(123.45)"
//   - Various boolean representations (yes/no, true/false, 1/0)
//   - Excel formula prefixes (="value")
//
// Coercion failure is an ordinary value-level outcome, reported per row.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekowhinson/HRMS-sub000/internal/schema"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted. Years that
// would land more than this many years in the future are pushed back a
// century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2 Jan 2006", "Jan 2, 2006",
		"20060102",
	}
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// CleanCell removes common artifacts from a cell value: surrounding
// whitespace, Excel formula prefixes (="..."), stray quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// Coerce converts a raw cell to the Go value for the field's semantic type.
// Empty input yields (nil, nil): absence, not failure. Reference fields are
// not handled here; the executor resolves them through the reference cache.
func Coerce(raw string, f schema.FieldDef) (any, error) {
	s := CleanCell(raw)
	if s == "" {
		return nil, nil
	}

	switch f.Type {
	case schema.FieldString, schema.FieldReference:
		return s, nil

	case schema.FieldInteger:
		n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		return n, nil

	case schema.FieldDecimal:
		d, ok := parseDecimal(s)
		if !ok {
			return nil, fmt.Errorf("invalid decimal %q", s)
		}
		return d, nil

	case schema.FieldDate:
		t, ok := parseDate(s)
		if !ok {
			return nil, fmt.Errorf("invalid date %q", s)
		}
		return t, nil

	case schema.FieldEmail:
		if !emailRe.MatchString(s) {
			return nil, fmt.Errorf("invalid email %q", s)
		}
		return strings.ToLower(s), nil

	case schema.FieldBool:
		b, ok := parseBool(s)
		if !ok {
			return nil, fmt.Errorf("invalid boolean %q", s)
		}
		return b, nil

	default:
		return s, nil
	}
}

// parseDate supports multiple layouts and handles 2-digit years with the
// pivot. 4-digit layouts are tried first since they are unambiguous.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// parseDecimal handles currency symbols, thousands separators and the
// accounting format for negatives.
func parseDecimal(s string) (decimal.Decimal, bool) {
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, sym := range []string{"$", "€", "£", ","} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	if negative {
		s = "-" + s
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y", "1", "active":
		return true, true
	case "false", "f", "no", "n", "0", "inactive":
		return false, true
	default:
		return false, false
	}
}

// HeaderIndex maps lower-cased column names to their position in a row.
type HeaderIndex map[string]int

// MakeHeaderIndex builds a HeaderIndex from a header row.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, exists := idx[key]; !exists {
			idx[key] = i
		}
	}
	return idx
}
