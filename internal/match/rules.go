package match

// rules.go implements the mandatory rule-based matching strategy.

import (
	"context"
	"fmt"
	"sort"

	"github.com/ekowhinson/HRMS-sub000/internal/schema"
)

// RuleMatcher is the deterministic rule-based Matcher. It consults only the
// entity registry; no hidden state, no randomness.
type RuleMatcher struct{}

// NewRuleMatcher returns the default rule-based matching strategy.
func NewRuleMatcher() *RuleMatcher { return &RuleMatcher{} }

// Match ranks all registered entity types for the given headers and builds
// the winner's column mapping. The winner's confidence is damped when the
// runner-up is close, so a high raw score over ambiguous headers still
// surfaces as a low-confidence match.
func (m *RuleMatcher) Match(_ context.Context, headers []string, sample [][]string, filename string) Result {
	entities := schema.All()

	scores := make([]EntityScore, 0, len(entities))
	for _, e := range entities {
		scores = append(scores, EntityScore{
			Entity: e.Name,
			Score:  scoreEntity(e, headers, sample, filename),
		})
	}
	// Declaration order is the stable tie-break.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	result := Result{Scores: scores}
	if len(scores) == 0 || scores[0].Score <= 0 {
		result.Mapping = make(ColumnMapping)
		result.Unmapped = append([]string(nil), headers...)
		result.Warnings = append(result.Warnings, "no entity type matches these headers")
		return result
	}

	winner := scores[0]
	confidence := winner.Score
	if len(scores) > 1 && scores[1].Score > 0 {
		gap := (winner.Score - scores[1].Score) / winner.Score
		if damped := 0.5 + 0.5*gap; damped < confidence {
			confidence = damped
		}
	}

	result.Entity = winner.Entity
	result.Confidence = confidence
	m.fillMapping(&result, headers)
	return result
}

// MatchEntity builds a Result for an explicitly requested entity type,
// bypassing the ranking. Used when the caller overrides the detected entity.
func (m *RuleMatcher) MatchEntity(entityName string, headers []string) (Result, error) {
	entity, ok := schema.Get(entityName)
	if !ok {
		return Result{}, fmt.Errorf("unknown entity type: %s", entityName)
	}

	result := Result{
		Entity:     entity.Name,
		Confidence: 1.0, // caller-asserted
		Scores:     []EntityScore{{Entity: entity.Name, Score: 1.0}},
	}
	m.fillMapping(&result, headers)
	return result, nil
}

func (m *RuleMatcher) fillMapping(result *Result, headers []string) {
	entity, ok := schema.Get(result.Entity)
	if !ok {
		return
	}

	result.Mapping, result.Excluded = MapColumns(entity, headers)
	result.MissingRequired = MissingRequired(entity, result.Mapping)

	for _, h := range headers {
		if _, mapped := result.Mapping[h]; !mapped {
			result.Unmapped = append(result.Unmapped, h)
		}
	}

	// Missing required fields are a validation warning at matching time,
	// never fatal here; execution decides whether they block.
	for _, f := range result.MissingRequired {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("required field %q has no confident column mapping", f))
	}
	if result.Confidence < MinConfidence {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("low-confidence entity match %q (%.2f)", result.Entity, result.Confidence))
	}
}
