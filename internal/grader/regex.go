package grader

import (
	"context"
	"fmt"
	"regexp"
)

// RegexGrader checks that every configured pattern matches the answer.
type RegexGrader struct {
	patterns []*regexp.Regexp
	raw      []string
}

func newRegexGrader(cfg Config) (*RegexGrader, error) {
	compiled, err := compilePatterns("regex", cfg.Patterns)
	if err != nil {
		return nil, err
	}
	return &RegexGrader{patterns: compiled, raw: cfg.Patterns}, nil
}

func (g *RegexGrader) Kind() Kind { return KindRegex }

func (g *RegexGrader) Grade(ctx context.Context, in *Input) (*Result, error) {
	if in == nil {
		return fail("no trial input", nil), nil
	}

	total := len(g.patterns)
	if total == 0 {
		return &Result{
			Passed:  true,
			Score:   1.0,
			Reason:  "no patterns configured",
			Details: map[string]any{"matched": 0, "total": 0},
		}, nil
	}

	matched := 0
	var missing []string
	for i, re := range g.patterns {
		if re.MatchString(in.Answer) {
			matched++
		} else {
			missing = append(missing, g.raw[i])
		}
	}

	details := map[string]any{
		"matched": matched,
		"total":   total,
	}
	if len(missing) > 0 {
		details["missing"] = missing
	}

	return &Result{
		Passed:  matched == total,
		Score:   float64(matched) / float64(total),
		Reason:  fmt.Sprintf("matched %d/%d patterns", matched, total),
		Details: details,
	}, nil
}
