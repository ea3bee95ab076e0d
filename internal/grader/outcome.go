package grader

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Known evidence keys, checked before any structural search.
var evidenceResultKeys = []string{"results", "rows", "bindings", "records", "items", "matches"}

// Keys that record a result count when only metadata was captured.
var evidenceCountKeys = []string{"result_count", "count", "num_results", "total_results", "total"}

// OutcomeGrader verifies the domain evidence blob the trial produced:
// rows are present/absent, match patterns, or fall within a count range.
type OutcomeGrader struct {
	mode           string
	minResults     int
	maxResults     int
	requiredFields []string
	patternMode    string
	fieldPatterns  map[string][]*regexp.Regexp
	rawPatterns    map[string][]string
	patterns       []*regexp.Regexp
	rawContains    []string
}

func newOutcomeGrader(cfg Config) (*OutcomeGrader, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "present"
	}
	switch mode {
	case "present", "absent", "contains", "count":
	default:
		return nil, fmt.Errorf("grader: outcome: unknown mode %q", cfg.Mode)
	}

	patternMode := strings.ToLower(strings.TrimSpace(cfg.PatternMode))
	if patternMode == "" {
		patternMode = "all"
	}
	if patternMode != "all" && patternMode != "any" {
		return nil, fmt.Errorf("grader: outcome: pattern_mode must be all or any, got %q", cfg.PatternMode)
	}

	fieldPatterns := make(map[string][]*regexp.Regexp, len(cfg.FieldPatterns))
	for field, pats := range cfg.FieldPatterns {
		compiled, err := compilePatterns("outcome field "+field, pats)
		if err != nil {
			return nil, err
		}
		fieldPatterns[field] = compiled
	}

	patterns, err := compilePatterns("outcome", cfg.Patterns)
	if err != nil {
		return nil, err
	}

	minResults := cfg.MinResults
	if minResults <= 0 && (mode == "present" || mode == "count") {
		minResults = 1
	}

	return &OutcomeGrader{
		mode:           mode,
		minResults:     minResults,
		maxResults:     cfg.MaxResults,
		requiredFields: trimmedNonEmpty(cfg.RequiredFields),
		patternMode:    patternMode,
		fieldPatterns:  fieldPatterns,
		rawPatterns:    cfg.FieldPatterns,
		patterns:       patterns,
		rawContains:    cfg.Patterns,
	}, nil
}

func (g *OutcomeGrader) Kind() Kind { return KindOutcome }

func (g *OutcomeGrader) Grade(ctx context.Context, in *Input) (*Result, error) {
	if in == nil {
		return fail("no trial input", nil), nil
	}

	rows, source := extractResultRows(in.Evidence)
	details := map[string]any{
		"mode":            g.mode,
		"result_count":    len(rows),
		"evidence_source": source,
	}

	switch g.mode {
	case "absent":
		if len(rows) > 0 {
			details["unexpected_rows"] = len(rows)
			return fail(fmt.Sprintf("expected no results, found %d (%s)", len(rows), source), details), nil
		}
		return &Result{Passed: true, Score: 1.0, Reason: "no results, as required", Details: details}, nil

	case "count":
		if source == "" {
			return fail("no evidence found in trial artifacts", details), nil
		}
		details["min_results"] = g.minResults
		details["max_results"] = g.maxResults
		if len(rows) < g.minResults {
			return fail(fmt.Sprintf("result count %d below minimum %d", len(rows), g.minResults), details), nil
		}
		if g.maxResults > 0 && len(rows) > g.maxResults {
			return fail(fmt.Sprintf("result count %d above maximum %d", len(rows), g.maxResults), details), nil
		}
		return &Result{
			Passed:  true,
			Score:   1.0,
			Reason:  fmt.Sprintf("result count %d within [%d,%d]", len(rows), g.minResults, g.maxResults),
			Details: details,
		}, nil

	case "contains":
		if source == "" {
			return fail("no evidence found in trial artifacts", details), nil
		}
		serialized := serializeRows(rows)
		var missing []string
		for i, re := range g.patterns {
			if !re.MatchString(serialized) {
				missing = append(missing, g.rawContains[i])
			}
		}
		details["patterns_total"] = len(g.patterns)
		details["patterns_missing"] = missing
		if len(missing) > 0 {
			return fail(fmt.Sprintf("%d/%d patterns missing from evidence", len(missing), len(g.patterns)), details), nil
		}
		return &Result{
			Passed:  true,
			Score:   1.0,
			Reason:  fmt.Sprintf("all %d patterns matched evidence", len(g.patterns)),
			Details: details,
		}, nil

	default: // present
		if source == "" {
			return fail("no evidence found in trial artifacts", details), nil
		}
		details["min_results"] = g.minResults
		if len(rows) < g.minResults {
			return fail(fmt.Sprintf("found %d results, need at least %d", len(rows), g.minResults), details), nil
		}
		return g.gradePresent(rows, details), nil
	}
}

func (g *OutcomeGrader) gradePresent(rows []map[string]any, details map[string]any) *Result {
	checks := 1 // count check already passed
	satisfied := 1

	var missingFields []string
	for _, field := range g.requiredFields {
		checks++
		if rowsHaveField(rows, field) {
			satisfied++
		} else {
			missingFields = append(missingFields, field)
		}
	}
	if len(g.requiredFields) > 0 {
		details["required_fields"] = g.requiredFields
		details["missing_fields"] = missingFields
	}

	var failedPatternFields []string
	for field, res := range g.fieldPatterns {
		checks++
		if fieldPatternsMatch(rows, field, res, g.patternMode) {
			satisfied++
		} else {
			failedPatternFields = append(failedPatternFields, field)
		}
	}
	if len(g.fieldPatterns) > 0 {
		details["pattern_mode"] = g.patternMode
		details["failed_pattern_fields"] = failedPatternFields
	}

	score := float64(satisfied) / float64(checks)
	passed := len(missingFields) == 0 && len(failedPatternFields) == 0
	reason := fmt.Sprintf("%d results present", len(rows))
	if !passed {
		reason = fmt.Sprintf("%s; %d/%d checks satisfied", reason, satisfied, checks)
	}
	return &Result{Passed: passed, Score: score, Reason: reason, Details: details}
}

// extractResultRows searches the evidence blob for a result list using an
// ordered fallback: well-known keys, then any list of mappings anywhere in
// the blob, then rows synthesized from count+verified metadata.
func extractResultRows(evidence map[string]any) ([]map[string]any, string) {
	if len(evidence) == 0 {
		return nil, ""
	}

	for _, key := range evidenceResultKeys {
		if v, ok := evidence[key]; ok {
			if rows, ok := asRowList(v); ok {
				return rows, "key:" + key
			}
		}
	}

	if rows, path := findRowList(evidence, "", 0); path != "" {
		return rows, "search:" + path
	}

	for _, key := range evidenceCountKeys {
		v, ok := evidence[key]
		if !ok {
			continue
		}
		count, ok := asIntValue(v)
		if !ok || count < 0 {
			continue
		}
		verified := false
		if b, ok := asBoolValue(evidence["verified"]); ok {
			verified = b
		}
		rows := make([]map[string]any, count)
		for i := range rows {
			rows[i] = map[string]any{"synthesized": true, "verified": verified}
		}
		return rows, "metadata:" + key
	}

	return nil, ""
}

func asRowList(v any) ([]map[string]any, bool) {
	switch list := v.(type) {
	case []map[string]any:
		return list, true
	case []any:
		if len(list) == 0 {
			return []map[string]any{}, true
		}
		rows := make([]map[string]any, 0, len(list))
		for _, e := range list {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, false
			}
			rows = append(rows, m)
		}
		return rows, true
	default:
		return nil, false
	}
}

const maxEvidenceDepth = 6

func findRowList(v any, path string, depth int) ([]map[string]any, string) {
	if depth > maxEvidenceDepth {
		return nil, ""
	}
	switch vv := v.(type) {
	case map[string]any:
		// Sorted keys keep the chosen list and reported path stable.
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := vv[k]
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			if rows, ok := asRowList(child); ok && len(rows) > 0 {
				return rows, childPath
			}
			if rows, p := findRowList(child, childPath, depth+1); p != "" {
				return rows, p
			}
		}
	case []any:
		for i, child := range vv {
			childPath := fmt.Sprintf("%s[%d]", path, i)
			if rows, p := findRowList(child, childPath, depth+1); p != "" {
				return rows, p
			}
		}
	}
	return nil, ""
}

func rowsHaveField(rows []map[string]any, field string) bool {
	for _, row := range rows {
		if _, ok := lookupField(row, field); ok {
			return true
		}
	}
	return false
}

func fieldPatternsMatch(rows []map[string]any, field string, patterns []*regexp.Regexp, mode string) bool {
	var values []string
	for _, row := range rows {
		if v, ok := lookupField(row, field); ok {
			values = append(values, fmt.Sprintf("%v", v))
		}
	}
	if len(values) == 0 {
		return false
	}

	matched := func(re *regexp.Regexp) bool {
		for _, v := range values {
			if re.MatchString(v) {
				return true
			}
		}
		return false
	}

	if mode == "any" {
		for _, re := range patterns {
			if matched(re) {
				return true
			}
		}
		return false
	}
	for _, re := range patterns {
		if !matched(re) {
			return false
		}
	}
	return true
}

func serializeRows(rows []map[string]any) string {
	b, err := json.Marshal(rows)
	if err != nil {
		return fmt.Sprintf("%v", rows)
	}
	return string(b)
}
