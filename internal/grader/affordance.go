package grader

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var queryIdentifierRe = regexp.MustCompile(`<[^>\s]+>|\b[A-Za-z][A-Za-z0-9_-]*:[A-Za-z_][A-Za-z0-9_./#-]*`)

// sparqlBuiltinPrefixes are namespace tokens that look like identifiers but
// carry no domain information.
var sparqlBuiltinPrefixes = map[string]struct{}{
	"rdf": {}, "rdfs": {}, "owl": {}, "xsd": {},
}

// AffordanceGrader compares the identifiers the agent used in its emitted
// query against the inventory the task context made available to it.
type AffordanceGrader struct {
	minUtilization   float64
	maxHallucination float64
	requireGrounding bool
}

func newAffordanceGrader(cfg Config) *AffordanceGrader {
	minUtil := cfg.MinUtilization
	if minUtil <= 0 {
		minUtil = 0.5
	}
	maxHal := cfg.MaxHallucination
	if maxHal <= 0 {
		maxHal = 0.3
	}
	return &AffordanceGrader{
		minUtilization:   minUtil,
		maxHallucination: maxHal,
		requireGrounding: cfg.RequireGrounding,
	}
}

func (g *AffordanceGrader) Kind() Kind { return KindAffordance }

func (g *AffordanceGrader) Grade(ctx context.Context, in *Input) (*Result, error) {
	if in == nil {
		return fail("no trial input", nil), nil
	}

	available := normalizeIdentifiers(contextStrings(in.TaskContext["affordances"]))
	if len(available) == 0 {
		return fail("no affordance inventory in task context", map[string]any{
			"available": 0,
		}), nil
	}

	query := in.Query
	if strings.TrimSpace(query) == "" {
		// Fall back to the last executed query in the transcript.
		if qs := in.Transcript.Queries(); len(qs) > 0 {
			query = qs[len(qs)-1]
		}
	}
	used := normalizeIdentifiers(queryIdentifierRe.FindAllString(query, -1))

	usedKnown := 0
	var hallucinated []string
	for id := range used {
		if _, ok := available[id]; ok {
			usedKnown++
		} else {
			hallucinated = append(hallucinated, id)
		}
	}

	utilization := float64(usedKnown) / float64(len(available))
	hallucination := 0.0
	if len(used) > 0 {
		hallucination = float64(len(hallucinated)) / float64(len(used))
	}

	grounded := len(in.Evidence) > 0 || len(in.Transcript.Queries()) > 0
	groundScore := 0.0
	if grounded {
		groundScore = 1.0
	}

	score := 0.4*clamp01(utilization/g.minUtilization) + 0.4*(1.0-hallucination) + 0.2*groundScore

	passed := utilization >= g.minUtilization && hallucination <= g.maxHallucination
	if g.requireGrounding && !grounded {
		passed = false
	}

	details := map[string]any{
		"available":          len(available),
		"used":               len(used),
		"used_known":         usedKnown,
		"utilization_rate":   utilization,
		"hallucination_rate": hallucination,
		"grounded":           grounded,
		"min_utilization":    g.minUtilization,
		"max_hallucination":  g.maxHallucination,
	}
	if len(hallucinated) > 0 {
		details["hallucinated"] = hallucinated
	}

	return &Result{
		Passed:  passed,
		Score:   clamp01(score),
		Reason:  fmt.Sprintf("utilization %.2f, hallucination %.2f", utilization, hallucination),
		Details: details,
	}, nil
}

func normalizeIdentifiers(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.Trim(strings.TrimSpace(id), "<>")
		if id == "" {
			continue
		}
		if i := strings.Index(id, ":"); i > 0 {
			if _, builtin := sparqlBuiltinPrefixes[strings.ToLower(id[:i])]; builtin {
				continue
			}
		}
		out[strings.ToLower(id)] = struct{}{}
	}
	return out
}
