package match

// score.go holds the deterministic scoring rules: header normalization,
// per-pair scores and the per-entity aggregate.

import (
	"regexp"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/ekowhinson/HRMS-sub000/internal/schema"
)

const (
	exactScore = 1.0
	aliasScore = 0.95

	// similarityFloor is the minimum edit-distance ratio considered a match
	// at all; similarityScale keeps fuzzy matches below exact and alias hits.
	similarityFloor = 0.7
	similarityScale = 0.88

	// minContainLen avoids spurious containment hits on tiny fragments.
	minContainLen = 3

	signatureBonusPer = 0.1
	signatureBonusCap = 0.3
	filenameBonus     = 0.05
	sampleBonusPer    = 0.01
	sampleBonusCap    = 0.05
)

var separatorRe = regexp.MustCompile(`[_\-.\s]+`)

// Normalize lowercases a header or field name and collapses separator runs
// to single spaces, so "First_Name", "first-name" and "First Name" compare
// equal.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = separatorRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// scorePair scores one (header, field) pair. Exact field-name matches beat
// alias matches, which beat containment, which beats edit-distance
// similarity; fuzzy scores are scaled down so they can never outrank an
// exact or alias hit.
func scorePair(header string, f schema.FieldDef) (float64, string) {
	h := Normalize(header)
	if h == "" {
		return 0, ""
	}

	name := Normalize(f.Name)
	if h == name {
		return exactScore, "exact field name"
	}
	for _, alias := range f.Aliases {
		if h == Normalize(alias) {
			return aliasScore, "alias match"
		}
	}

	candidates := make([]string, 0, len(f.Aliases)+1)
	candidates = append(candidates, name)
	for _, alias := range f.Aliases {
		candidates = append(candidates, Normalize(alias))
	}

	best := 0.0
	reason := ""
	for _, cand := range candidates {
		if s := containmentScore(h, cand); s > best {
			best = s
			reason = "contains"
		}
	}
	for _, cand := range candidates {
		r := levenshtein.RatioForStrings([]rune(h), []rune(cand), levenshtein.DefaultOptions)
		if r >= similarityFloor {
			if s := r * similarityScale; s > best {
				best = s
				reason = "similar"
			}
		}
	}
	return best, reason
}

// containmentScore scores substring containment by the length ratio of the
// shorter string over the longer one.
func containmentScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) < minContainLen {
		return 0
	}
	if !strings.Contains(longer, shorter) {
		return 0
	}
	return float64(len(shorter)) / float64(len(longer))
}

// bestFieldScore returns the best score any field of entity achieves for the
// header, and whether that field is a signature column.
func bestFieldScore(entity schema.EntityType, header string) (float64, *schema.FieldDef) {
	best := 0.0
	var bestField *schema.FieldDef
	for i := range entity.Fields {
		s, _ := scorePair(header, entity.Fields[i])
		if s > best {
			best = s
			bestField = &entity.Fields[i]
		}
	}
	return best, bestField
}

// scoreEntity computes the aggregate score of one candidate entity for a
// header set: weighted header coverage, required-field coverage and average
// match confidence, plus bounded signature, filename and sample bonuses.
func scoreEntity(entity schema.EntityType, headers []string, sample [][]string, filename string) float64 {
	if len(headers) == 0 {
		return 0
	}

	matched := 0
	confSum := 0.0
	signatureBonus := 0.0
	sampleBonus := 0.0
	matchedFields := make(map[string]bool)

	for hi, h := range headers {
		score, field := bestFieldScore(entity, h)
		if score < MinConfidence || field == nil {
			continue
		}
		matched++
		confSum += score
		matchedFields[field.Name] = true

		if field.Signature && signatureBonus < signatureBonusCap {
			signatureBonus += signatureBonusPer
		}
		if sampleBonus < sampleBonusCap && sampleAgrees(sample, hi, field.Type) {
			sampleBonus += sampleBonusPer
		}
	}

	if matched == 0 {
		return 0
	}

	required := entity.RequiredFields()
	reqCoverage := 1.0
	if len(required) > 0 {
		reqMatched := 0
		for _, name := range required {
			if matchedFields[name] {
				reqMatched++
			}
		}
		reqCoverage = float64(reqMatched) / float64(len(required))
	}

	coverage := float64(matched) / float64(len(headers))
	avgConf := confSum / float64(matched)

	score := 0.4*coverage + 0.4*reqCoverage + 0.2*avgConf
	if signatureBonus > signatureBonusCap {
		signatureBonus = signatureBonusCap
	}
	score += signatureBonus + sampleBonus

	fn := Normalize(strings.TrimSuffix(filename, fileExt(filename)))
	if fn != "" && (strings.Contains(fn, Normalize(entity.Name)) || strings.Contains(fn, Normalize(entity.Label))) {
		score += filenameBonus
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func fileExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

// Light shape checks used for the sample bonus. These deliberately accept
// more than the executor's coercion does; they only nudge ranking.
var (
	numericShapeRe = regexp.MustCompile(`^[+-]?[\d,]+(\.\d+)?$`)
	dateShapeRe    = regexp.MustCompile(`^\d{1,4}[/.\-]\d{1,2}[/.\-]\d{1,4}$`)
	emailShapeRe   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// sampleAgrees reports whether the sample values in column idx look like the
// field's semantic type. Only typed fields participate; string fields always
// agree trivially and earn no bonus.
func sampleAgrees(sample [][]string, idx int, t schema.FieldType) bool {
	var re *regexp.Regexp
	switch t {
	case schema.FieldDecimal, schema.FieldInteger:
		re = numericShapeRe
	case schema.FieldDate:
		re = dateShapeRe
	case schema.FieldEmail:
		re = emailShapeRe
	default:
		return false
	}

	seen, ok := 0, 0
	for _, row := range sample {
		if idx >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[idx])
		if v == "" {
			continue
		}
		seen++
		if re.MatchString(v) {
			ok++
		}
	}
	return seen > 0 && float64(ok)/float64(seen) >= 0.6
}
