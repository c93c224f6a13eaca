package match

import (
	"context"
	"reflect"
	"testing"
)

// messyEmployeeHeaders mimics a real export: alias names, odd casing and
// stray whitespace.
var messyEmployeeHeaders = []string{"Staff ID", "Given Name", "  SURNAME  ", "Dept.", "Hire Date"}

func TestRuleMatcher_DetectsEmployee(t *testing.T) {
	m := NewRuleMatcher()
	result := m.Match(context.Background(), messyEmployeeHeaders, nil, "staff_list.csv")

	if result.Entity != "employee" {
		t.Fatalf("Entity = %q, want %q (scores: %v)", result.Entity, "employee", result.Scores)
	}
	if result.Confidence < MinConfidence {
		t.Errorf("Confidence = %v, want >= %v", result.Confidence, MinConfidence)
	}

	wantFields := map[string]string{
		"Staff ID":     "employee_number",
		"Given Name":   "first_name",
		"  SURNAME  ":  "last_name",
		"Dept.":        "department",
		"Hire Date":    "hire_date",
	}
	for header, field := range wantFields {
		fm, ok := result.Mapping[header]
		if !ok {
			t.Errorf("header %q missing from mapping", header)
			continue
		}
		if fm.Field != field {
			t.Errorf("mapping[%q] = %q, want %q", header, fm.Field, field)
		}
	}
}

func TestRuleMatcher_Deterministic(t *testing.T) {
	m := NewRuleMatcher()
	ctx := context.Background()

	first := m.Match(ctx, messyEmployeeHeaders, nil, "staff_list.csv")
	for i := 0; i < 5; i++ {
		again := m.Match(ctx, messyEmployeeHeaders, nil, "staff_list.csv")
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs from first run", i+1)
		}
	}
}

func TestRuleMatcher_NoMatch(t *testing.T) {
	m := NewRuleMatcher()
	headers := []string{"Favourite Colour", "Shoe Size", "Playlist"}

	result := m.Match(context.Background(), headers, nil, "misc.csv")
	if result.Entity != "" {
		t.Errorf("Entity = %q, want empty", result.Entity)
	}
	if result.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", result.Confidence)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a warning for unmatched headers")
	}
	if len(result.Unmapped) != len(headers) {
		t.Errorf("Unmapped = %v, want all headers", result.Unmapped)
	}
}

func TestRuleMatcher_AmbiguityDampsConfidence(t *testing.T) {
	m := NewRuleMatcher()
	// "Code" and "Name" fit department, location and salary_grade almost
	// equally; the winner must not look confident.
	headers := []string{"Code", "Name"}

	result := m.Match(context.Background(), headers, nil, "data.csv")
	if result.Entity == "" {
		t.Fatal("expected a winner even when headers are ambiguous")
	}
	if result.Confidence >= result.Scores[0].Score {
		t.Errorf("Confidence = %v, want damped below raw score %v",
			result.Confidence, result.Scores[0].Score)
	}
}

func TestRuleMatcher_MissingRequiredWarned(t *testing.T) {
	m := NewRuleMatcher()
	// Employee headers without first or last name.
	headers := []string{"Employee Number", "Hire Date", "Work Email"}

	result := m.Match(context.Background(), headers, nil, "employees.csv")
	if result.Entity != "employee" {
		t.Fatalf("Entity = %q, want employee", result.Entity)
	}
	if len(result.MissingRequired) == 0 {
		t.Fatal("expected missing required fields")
	}
	if len(result.Warnings) == 0 {
		t.Error("missing required fields should produce warnings")
	}
}

func TestMatchEntity(t *testing.T) {
	m := NewRuleMatcher()

	result, err := m.MatchEntity("department", []string{"Dept Code", "Department Name"})
	if err != nil {
		t.Fatalf("MatchEntity() error = %v", err)
	}
	if result.Entity != "department" {
		t.Errorf("Entity = %q, want department", result.Entity)
	}
	if result.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0 for explicit selection", result.Confidence)
	}
	if fm := result.Mapping["Dept Code"]; fm.Field != "code" {
		t.Errorf("mapping[Dept Code] = %q, want code", fm.Field)
	}

	if _, err := m.MatchEntity("spaceship", nil); err == nil {
		t.Error("MatchEntity(spaceship) expected error")
	}
}
