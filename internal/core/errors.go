package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies import errors across the whole engine. Row-level
// kinds never abort a chunk; KindSystem aborts the owning file's job.
type ErrorKind string

const (
	KindParse       ErrorKind = "parse"
	KindMapping     ErrorKind = "mapping"
	KindValidation  ErrorKind = "validation"
	KindReference   ErrorKind = "reference"
	KindPersistence ErrorKind = "persistence"
	KindSystem      ErrorKind = "system"
)

// RowError is one recorded per-row failure. It is a value, not an exception:
// the hot row loop accumulates these instead of unwinding.
type RowError struct {
	Row     int       `json:"row"` // 1-based data row number (header excluded)
	Kind    ErrorKind `json:"kind"`
	Field   string    `json:"field,omitempty"`
	Value   string    `json:"value,omitempty"`
	Message string    `json:"message"`
}

func (e RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d [%s] %s: %s", e.Row, e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("row %d [%s]: %s", e.Row, e.Kind, e.Message)
}

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// ErrBatchNotFound is returned for unknown batch ids.
var ErrBatchNotFound = errors.New("batch not found")

// ErrUpstreamFailed marks a file skipped because an entity it depends on
// failed to import in an earlier tier.
var ErrUpstreamFailed = errors.New("upstream entity import failed")
