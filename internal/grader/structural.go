package grader

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var sparqlKeywords = []string{
	"SELECT", "CONSTRUCT", "ASK", "DESCRIBE", "WHERE", "FILTER", "OPTIONAL",
	"UNION", "ORDER BY", "GROUP BY", "LIMIT", "OFFSET", "DISTINCT", "PREFIX",
}

var whitespaceRe = regexp.MustCompile(`\s+`)

var sparqlKeywordRes = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(sparqlKeywords))
	for i, kw := range sparqlKeywords {
		out[i] = regexp.MustCompile(`(?i)\b` + strings.ReplaceAll(kw, " ", `\s+`) + `\b`)
	}
	return out
}()

const structuralBonusPerMarker = 0.05
const structuralBonusCap = 0.2

// StructuralGrader checks the shape of the emitted query: required and
// forbidden structure markers plus literal substrings, with a capped bonus
// for optional markers. Score may exceed 1.0 when bonuses apply.
type StructuralGrader struct {
	required  []string
	forbidden []string
	optional  []string
	literals  []string
}

func newStructuralGrader(cfg Config) *StructuralGrader {
	return &StructuralGrader{
		required:  trimmedNonEmpty(cfg.RequiredMarkers),
		forbidden: trimmedNonEmpty(cfg.ForbiddenMarkers),
		optional:  trimmedNonEmpty(cfg.OptionalMarkers),
		literals:  trimmedNonEmpty(cfg.RequiredLiterals),
	}
}

func (g *StructuralGrader) Kind() Kind { return KindStructural }

func (g *StructuralGrader) Grade(ctx context.Context, in *Input) (*Result, error) {
	if in == nil {
		return fail("no trial input", nil), nil
	}

	raw := in.Query
	if strings.TrimSpace(raw) == "" {
		if qs := in.Transcript.Queries(); len(qs) > 0 {
			raw = qs[len(qs)-1]
		}
	}
	if strings.TrimSpace(raw) == "" {
		return fail("no query emitted", map[string]any{"required": g.required}), nil
	}

	normalized := normalizeQuery(raw)
	upper := strings.ToUpper(normalized)

	total := len(g.required) + len(g.literals)
	satisfied := 0

	var missingMarkers []string
	for _, m := range g.required {
		if strings.Contains(upper, strings.ToUpper(m)) {
			satisfied++
		} else {
			missingMarkers = append(missingMarkers, m)
		}
	}

	var foundForbidden []string
	for _, m := range g.forbidden {
		if strings.Contains(upper, strings.ToUpper(m)) {
			foundForbidden = append(foundForbidden, m)
		}
	}

	var missingLiterals []string
	for _, lit := range g.literals {
		if strings.Contains(normalized, lit) {
			satisfied++
		} else {
			missingLiterals = append(missingLiterals, lit)
		}
	}

	bonus := 0.0
	bonusMarkers := 0
	for _, m := range g.optional {
		if strings.Contains(upper, strings.ToUpper(m)) {
			bonusMarkers++
			bonus += structuralBonusPerMarker
		}
	}
	if bonus > structuralBonusCap {
		bonus = structuralBonusCap
	}

	base := 1.0
	if total > 0 {
		base = float64(satisfied) / float64(total)
	}
	if len(foundForbidden) > 0 {
		base = 0.0
	}

	passed := len(missingMarkers) == 0 && len(missingLiterals) == 0 && len(foundForbidden) == 0
	score := base
	if passed {
		score = base + bonus
	}

	details := map[string]any{
		"markers_required":  len(g.required),
		"markers_missing":   missingMarkers,
		"literals_required": len(g.literals),
		"literals_missing":  missingLiterals,
		"forbidden_found":   foundForbidden,
		"optional_matched":  bonusMarkers,
		"bonus":             bonus,
	}

	reason := fmt.Sprintf("%d/%d structural checks satisfied", satisfied, total)
	if len(foundForbidden) > 0 {
		reason = fmt.Sprintf("forbidden markers present: %s", strings.Join(foundForbidden, ", "))
	}

	return &Result{Passed: passed, Score: score, Reason: reason, Details: details}, nil
}

// normalizeQuery case-folds query keywords and collapses whitespace so that
// marker checks are layout-insensitive.
func normalizeQuery(q string) string {
	out := whitespaceRe.ReplaceAllString(strings.TrimSpace(q), " ")
	for i, re := range sparqlKeywordRes {
		out = re.ReplaceAllString(out, sparqlKeywords[i])
	}
	return out
}
