package grader

import (
	"context"
	"fmt"
	"strings"
)

// ExplorationGrader judges exploration behavior from the transcript: enough
// queries were executed and the agent did not spin on duplicates.
type ExplorationGrader struct {
	minQueries    int
	maxRepeatRate float64
}

func newExplorationGrader(cfg Config) *ExplorationGrader {
	min := cfg.MinQueries
	if min <= 0 {
		min = 1
	}
	maxRepeat := cfg.MaxRepeatRate
	if maxRepeat <= 0 {
		maxRepeat = 0.5
	}
	return &ExplorationGrader{minQueries: min, maxRepeatRate: maxRepeat}
}

func (g *ExplorationGrader) Kind() Kind { return KindExploration }

func (g *ExplorationGrader) Grade(ctx context.Context, in *Input) (*Result, error) {
	if in == nil {
		return fail("no trial input", nil), nil
	}

	queries := in.Transcript.Queries()
	executed := len(queries)

	details := map[string]any{
		"executed":        executed,
		"min_queries":     g.minQueries,
		"max_repeat_rate": g.maxRepeatRate,
	}
	if executed == 0 {
		return fail("no queries executed", details), nil
	}

	distinct := map[string]struct{}{}
	for _, q := range queries {
		distinct[strings.Join(strings.Fields(q), " ")] = struct{}{}
	}
	diversity := float64(len(distinct)) / float64(executed)
	repeatRate := 1.0 - diversity
	coverage := clamp01(float64(executed) / float64(g.minQueries))

	details["distinct"] = len(distinct)
	details["repeat_rate"] = repeatRate

	passed := executed >= g.minQueries && repeatRate <= g.maxRepeatRate
	score := 0.6*coverage + 0.4*diversity

	reason := fmt.Sprintf("%d queries executed (%d distinct)", executed, len(distinct))
	if executed < g.minQueries {
		reason = fmt.Sprintf("only %d queries executed, need %d", executed, g.minQueries)
	} else if repeatRate > g.maxRepeatRate {
		reason = fmt.Sprintf("repeat rate %.2f above limit %.2f", repeatRate, g.maxRepeatRate)
	}

	return &Result{Passed: passed, Score: score, Reason: reason, Details: details}, nil
}
