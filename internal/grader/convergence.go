package grader

import (
	"context"
	"fmt"
	"strings"
)

// ConvergenceGrader passes when the agent produced a real answer within its
// iteration budget, rewarding fewer iterations.
type ConvergenceGrader struct {
	maxIterations int
}

func newConvergenceGrader(cfg Config) *ConvergenceGrader {
	max := cfg.MaxIterations
	if max <= 0 {
		max = 10
	}
	return &ConvergenceGrader{maxIterations: max}
}

func (g *ConvergenceGrader) Kind() Kind { return KindConvergence }

var placeholderAnswers = []string{
	"i don't know", "i do not know", "unknown", "unable to", "no answer",
	"n/a", "not available", "error", "cannot determine",
}

func (g *ConvergenceGrader) Grade(ctx context.Context, in *Input) (*Result, error) {
	if in == nil {
		return fail("no trial input", nil), nil
	}

	iterations := in.Iterations
	if iterations <= 0 {
		iterations = in.Transcript.Len()
	}

	details := map[string]any{
		"iterations":     iterations,
		"max_iterations": g.maxIterations,
	}

	if isPlaceholder(in.Answer) {
		details["answer_empty"] = true
		return fail("answer is empty or a placeholder", details), nil
	}
	if iterations > g.maxIterations {
		return fail(fmt.Sprintf("exceeded iteration limit: %d > %d", iterations, g.maxIterations), details), nil
	}

	// Fewer iterations score higher; using the full budget still passes
	// at half credit above the floor.
	score := 1.0 - (float64(iterations)/float64(g.maxIterations))*0.5
	return &Result{
		Passed:  true,
		Score:   score,
		Reason:  fmt.Sprintf("converged in %d/%d iterations", iterations, g.maxIterations),
		Details: details,
	}, nil
}

func isPlaceholder(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	if a == "" {
		return true
	}
	for _, p := range placeholderAnswers {
		if a == p || (len(a) < 64 && strings.HasPrefix(a, p)) {
			return true
		}
	}
	return false
}
