package grader

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var (
	uriTokenRe    = regexp.MustCompile(`<[^>\s]+>|https?://[^\s<>"')\]]+|\b[A-Za-z][A-Za-z0-9_-]*:[A-Za-z_][A-Za-z0-9_./#-]*`)
	capitalizedRe = regexp.MustCompile(`\b[A-Z][a-z0-9]+(?:[ -][A-Z][a-z0-9]+)+\b`)
	quotedRe      = regexp.MustCompile(`"([^"\n]{2,80})"|'([^'\n]{2,80})'`)
)

// GroundednessGrader checks that the entities named in the answer actually
// appeared in the agent's recorded query output.
type GroundednessGrader struct {
	minScore float64
	required []*regexp.Regexp
	patterns []string
}

func newGroundednessGrader(cfg Config) (*GroundednessGrader, error) {
	required, err := compilePatterns("groundedness", cfg.RequiredPatterns)
	if err != nil {
		return nil, err
	}
	minScore := cfg.MinScore
	if minScore <= 0 {
		minScore = 0.5
	}
	return &GroundednessGrader{
		minScore: minScore,
		required: required,
		patterns: cfg.RequiredPatterns,
	}, nil
}

func (g *GroundednessGrader) Kind() Kind { return KindGroundedness }

func (g *GroundednessGrader) Grade(ctx context.Context, in *Input) (*Result, error) {
	if in == nil {
		return fail("no trial input", nil), nil
	}

	output := in.Transcript.Output()
	entities := extractEntities(in.Answer)

	var missingPatterns []string
	for i, re := range g.required {
		if !re.MatchString(output) {
			missingPatterns = append(missingPatterns, g.patterns[i])
		}
	}

	var grounded, ungrounded []string
	for _, e := range entities {
		if containsFold(output, e) {
			grounded = append(grounded, e)
		} else {
			ungrounded = append(ungrounded, e)
		}
	}

	var score float64
	switch {
	case len(entities) > 0:
		score = float64(len(grounded)) / float64(len(entities))
	case strings.TrimSpace(output) != "":
		// Nothing checkable was claimed; recorded output exists.
		score = 1.0
	default:
		// No entities and no output to ground against.
		score = 0.5
	}

	details := map[string]any{
		"entities_extracted": len(entities),
		"entities_grounded":  len(grounded),
		"min_score":          g.minScore,
		"required_patterns":  len(g.required),
		"missing_patterns":   missingPatterns,
	}
	if len(ungrounded) > 0 {
		details["ungrounded"] = ungrounded
	}

	passed := len(missingPatterns) == 0 && score >= g.minScore
	reason := fmt.Sprintf("%d/%d entities grounded in output", len(grounded), len(entities))
	if len(missingPatterns) > 0 {
		reason = fmt.Sprintf("%s; %d required patterns missing from output", reason, len(missingPatterns))
	}

	return &Result{
		Passed:  passed,
		Score:   score,
		Reason:  reason,
		Details: details,
	}, nil
}

// extractEntities pulls candidate entity tokens from an answer: URI-like
// tokens, capitalized multi-word names, and quoted substrings.
func extractEntities(answer string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(s string) {
		s = strings.Trim(strings.TrimSpace(s), `<>"'`)
		if len(s) < 2 {
			return
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}

	for _, m := range uriTokenRe.FindAllString(answer, -1) {
		add(m)
	}
	for _, m := range capitalizedRe.FindAllString(answer, -1) {
		add(m)
	}
	for _, m := range quotedRe.FindAllStringSubmatch(answer, -1) {
		if m[1] != "" {
			add(m[1])
		} else {
			add(m[2])
		}
	}
	return out
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
