package grader

import (
	"context"
	"fmt"
)

// ContainsGrader checks required and forbidden substrings in the answer.
type ContainsGrader struct {
	required  []string
	forbidden []string
}

func newContainsGrader(cfg Config) *ContainsGrader {
	return &ContainsGrader{
		required:  trimmedNonEmpty(cfg.Required),
		forbidden: trimmedNonEmpty(cfg.Forbidden),
	}
}

func (g *ContainsGrader) Kind() Kind { return KindContains }

func (g *ContainsGrader) Grade(ctx context.Context, in *Input) (*Result, error) {
	if in == nil {
		return fail("no trial input", nil), nil
	}

	total := len(g.required) + len(g.forbidden)
	if total == 0 {
		return &Result{
			Passed:  true,
			Score:   1.0,
			Reason:  "no substring checks configured",
			Details: map[string]any{"matched": 0, "total": 0},
		}, nil
	}

	satisfied := 0
	var missing, found []string
	for _, s := range g.required {
		if containsFold(in.Answer, s) {
			satisfied++
		} else {
			missing = append(missing, s)
		}
	}
	for _, s := range g.forbidden {
		if containsFold(in.Answer, s) {
			found = append(found, s)
		} else {
			satisfied++
		}
	}

	details := map[string]any{
		"matched": satisfied,
		"total":   total,
	}
	if len(missing) > 0 {
		details["missing"] = missing
	}
	if len(found) > 0 {
		details["forbidden_found"] = found
	}

	return &Result{
		Passed:  satisfied == total,
		Score:   float64(satisfied) / float64(total),
		Reason:  fmt.Sprintf("matched %d/%d", satisfied, total),
		Details: details,
	}, nil
}
