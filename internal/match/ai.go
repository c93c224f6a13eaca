package match

// ai.go is the optional AI-backed matching strategy. It is a decorator over
// the mandatory rule-based matcher, never a replacement: any client failure,
// timeout or weak suggestion falls through to the rule-based result.

import (
	"context"
	"log/slog"
	"time"
)

// Suggester is the pluggable semantic-matching client. Implementations talk
// to an external model; none ship with this module.
type Suggester interface {
	// Suggest proposes an entity and mapping for the headers. Returning an
	// error, or a suggestion below MinConfidence, discards the suggestion.
	Suggest(ctx context.Context, headers []string, sample [][]string, filename string) (Result, error)
}

// DefaultSuggestTimeout bounds how long one suggestion call may take before
// the decorator gives up and keeps the rule-based result.
var DefaultSuggestTimeout = 10 * time.Second

// Decorator wraps a rule-based Matcher with an optional Suggester.
type Decorator struct {
	rules     Matcher
	suggester Suggester
	timeout   time.Duration
}

// NewDecorator builds a Decorator. A nil suggester yields a pass-through
// matcher, so callers can wire the decorator unconditionally.
func NewDecorator(rules Matcher, suggester Suggester) *Decorator {
	return &Decorator{
		rules:     rules,
		suggester: suggester,
		timeout:   DefaultSuggestTimeout,
	}
}

// Match runs the rule-based strategy first, then lets the suggester improve
// on it. The suggestion only wins when it is confidently better; mapping
// entries are merged per column, keeping whichever side is more confident.
func (d *Decorator) Match(ctx context.Context, headers []string, sample [][]string, filename string) Result {
	base := d.rules.Match(ctx, headers, sample, filename)
	if d.suggester == nil {
		return base
	}

	sctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	suggestion, err := d.suggester.Suggest(sctx, headers, sample, filename)
	if err != nil {
		slog.Debug("matcher suggestion failed, keeping rule-based result",
			"file", filename, "error", err)
		return base
	}
	if suggestion.Entity == "" || suggestion.Confidence < MinConfidence {
		return base
	}
	if suggestion.Entity != base.Entity && suggestion.Confidence <= base.Confidence {
		return base
	}

	if suggestion.Entity == base.Entity {
		// Same entity: keep the better-scored mapping entry per column.
		merged := base
		for col, fm := range suggestion.Mapping {
			if existing, ok := base.Mapping[col]; !ok || fm.Confidence > existing.Confidence {
				merged.Mapping[col] = fm
			}
		}
		return merged
	}
	return suggestion
}
