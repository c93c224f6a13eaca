// Package match scores file headers against the registered entity types and
// proposes column-to-field mappings with per-column confidence.
//
// The default strategy is purely rule based and fully deterministic: repeated
// calls over the same headers always yield the same ranking and mapping. An
// optional AI-backed strategy can wrap it (see Decorator) but always degrades
// to the rule-based result on any failure.
package match

import (
	"context"
	"sort"

	"github.com/ekowhinson/HRMS-sub000/internal/schema"
)

// MinConfidence is the threshold below which a column mapping is excluded
// from the default mapping and an entity match is only a warning.
const MinConfidence = 0.5

// FieldMatch is one proposed source-column-to-target-field assignment.
type FieldMatch struct {
	Field      string  `json:"field"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ColumnMapping maps source column names to their proposed target fields.
// Mutable only by explicit user override before execution.
type ColumnMapping map[string]FieldMatch

// EntityScore is one candidate entity with its aggregate score.
type EntityScore struct {
	Entity string  `json:"entity"`
	Score  float64 `json:"score"`
}

// Result is the outcome of matching one file against all candidate entities.
// A zero-confidence Result (Entity == "") means nothing matched; matching
// itself never fails.
type Result struct {
	Entity          string        `json:"entity"`
	Confidence      float64       `json:"confidence"`
	Scores          []EntityScore `json:"scores"`
	Mapping         ColumnMapping `json:"mapping"`
	Excluded        ColumnMapping `json:"excluded,omitempty"`
	Unmapped        []string      `json:"unmapped,omitempty"`
	MissingRequired []string      `json:"missingRequired,omitempty"`
	Warnings        []string      `json:"warnings,omitempty"`
}

// Matcher ranks candidate entity types for a file and proposes the best
// column mapping. Implementations must treat a no-match as a zero-confidence
// Result, not an error.
type Matcher interface {
	Match(ctx context.Context, headers []string, sample [][]string, filename string) Result
}

// MapColumns produces the column mapping for a specific entity type: each
// header is assigned to at most one field and each field to at most one
// header, highest score first, header order breaking ties. The second return
// value holds sub-threshold candidates kept as metadata.
func MapColumns(entity schema.EntityType, headers []string) (ColumnMapping, ColumnMapping) {
	type pair struct {
		headerIdx int
		fieldIdx  int
		score     float64
		reason    string
	}

	var pairs []pair
	for hi, h := range headers {
		for fi, f := range entity.Fields {
			score, reason := scorePair(h, f)
			if score <= 0 {
				continue
			}
			pairs = append(pairs, pair{headerIdx: hi, fieldIdx: fi, score: score, reason: reason})
		}
	}

	// Highest score first; ties resolved by first-seen header then field.
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		if pairs[i].headerIdx != pairs[j].headerIdx {
			return pairs[i].headerIdx < pairs[j].headerIdx
		}
		return pairs[i].fieldIdx < pairs[j].fieldIdx
	})

	mapping := make(ColumnMapping)
	excluded := make(ColumnMapping)
	usedHeader := make(map[int]bool)
	usedField := make(map[int]bool)

	for _, p := range pairs {
		if usedHeader[p.headerIdx] || usedField[p.fieldIdx] {
			continue
		}
		fm := FieldMatch{
			Field:      entity.Fields[p.fieldIdx].Name,
			Confidence: p.score,
			Reason:     p.reason,
		}
		if p.score >= MinConfidence {
			mapping[headers[p.headerIdx]] = fm
			usedHeader[p.headerIdx] = true
			usedField[p.fieldIdx] = true
		} else if _, seen := excluded[headers[p.headerIdx]]; !seen {
			excluded[headers[p.headerIdx]] = fm
		}
	}

	return mapping, excluded
}

// MissingRequired returns the required fields of entity that mapping does not
// cover, in field declaration order.
func MissingRequired(entity schema.EntityType, mapping ColumnMapping) []string {
	covered := make(map[string]bool, len(mapping))
	for _, fm := range mapping {
		covered[fm.Field] = true
	}

	var missing []string
	for _, name := range entity.RequiredFields() {
		if !covered[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
