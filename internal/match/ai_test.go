package match

import (
	"context"
	"errors"
	"testing"
)

// stubSuggester returns a canned Result or error.
type stubSuggester struct {
	result Result
	err    error
	calls  int
}

func (s *stubSuggester) Suggest(_ context.Context, _ []string, _ [][]string, _ string) (Result, error) {
	s.calls++
	return s.result, s.err
}

func TestDecorator_NilSuggesterPassesThrough(t *testing.T) {
	d := NewDecorator(NewRuleMatcher(), nil)

	got := d.Match(context.Background(), messyEmployeeHeaders, nil, "staff.csv")
	want := NewRuleMatcher().Match(context.Background(), messyEmployeeHeaders, nil, "staff.csv")

	if got.Entity != want.Entity || got.Confidence != want.Confidence {
		t.Errorf("pass-through mismatch: got %v/%v, want %v/%v",
			got.Entity, got.Confidence, want.Entity, want.Confidence)
	}
}

func TestDecorator_SuggesterErrorKeepsBase(t *testing.T) {
	stub := &stubSuggester{err: errors.New("model unavailable")}
	d := NewDecorator(NewRuleMatcher(), stub)

	got := d.Match(context.Background(), messyEmployeeHeaders, nil, "staff.csv")
	if got.Entity != "employee" {
		t.Errorf("Entity = %q, want rule-based employee after suggester error", got.Entity)
	}
	if stub.calls != 1 {
		t.Errorf("suggester calls = %d, want 1", stub.calls)
	}
}

func TestDecorator_WeakSuggestionDiscarded(t *testing.T) {
	stub := &stubSuggester{result: Result{Entity: "location", Confidence: 0.3}}
	d := NewDecorator(NewRuleMatcher(), stub)

	got := d.Match(context.Background(), messyEmployeeHeaders, nil, "staff.csv")
	if got.Entity != "employee" {
		t.Errorf("Entity = %q, want employee; sub-threshold suggestion must not win", got.Entity)
	}
}

func TestDecorator_DifferentEntityNeedsHigherConfidence(t *testing.T) {
	base := NewRuleMatcher().Match(context.Background(), messyEmployeeHeaders, nil, "staff.csv")

	stub := &stubSuggester{result: Result{Entity: "salary", Confidence: base.Confidence}}
	d := NewDecorator(NewRuleMatcher(), stub)

	got := d.Match(context.Background(), messyEmployeeHeaders, nil, "staff.csv")
	if got.Entity != base.Entity {
		t.Errorf("Entity = %q, want %q; an equal-confidence rival must not win", got.Entity, base.Entity)
	}
}

func TestDecorator_SameEntityMergesBetterColumns(t *testing.T) {
	stub := &stubSuggester{result: Result{
		Entity:     "employee",
		Confidence: 0.9,
		Mapping: ColumnMapping{
			"Dept.":     {Field: "department", Confidence: 0.99, Reason: "semantic"},
			"Extra Col": {Field: "phone", Confidence: 0.8, Reason: "semantic"},
		},
	}}
	d := NewDecorator(NewRuleMatcher(), stub)

	got := d.Match(context.Background(), messyEmployeeHeaders, nil, "staff.csv")
	if got.Entity != "employee" {
		t.Fatalf("Entity = %q, want employee", got.Entity)
	}
	if fm := got.Mapping["Dept."]; fm.Confidence != 0.99 {
		t.Errorf("Dept. confidence = %v, want the stronger 0.99 suggestion", fm.Confidence)
	}
	if fm, ok := got.Mapping["Extra Col"]; !ok || fm.Field != "phone" {
		t.Errorf("Extra Col = %+v, want merged phone mapping", fm)
	}
	// Columns the suggester did not mention keep their rule-based mapping.
	if fm := got.Mapping["Staff ID"]; fm.Field != "employee_number" {
		t.Errorf("Staff ID = %q, want employee_number preserved", fm.Field)
	}
}
