package grader

import (
	"context"
	"strings"
	"testing"

	"github.com/stellarlinkco/agent-eval/internal/transcript"
)

func outcomeInput(evidence map[string]any) *Input {
	return &Input{Transcript: &transcript.Transcript{}, Answer: "done", Evidence: evidence}
}

func TestOutcomePresentWithKnownKey(t *testing.T) {
	t.Parallel()

	g, err := New(Config{Type: "outcome", Mode: "present", MinResults: 2}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := g.Grade(context.Background(), outcomeInput(map[string]any{
		"results": []any{
			map[string]any{"name": "a"},
			map[string]any{"name": "b"},
		},
	}))
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if !res.Passed {
		t.Fatalf("expected pass: %+v", res)
	}
	if res.Details["evidence_source"] != "key:results" {
		t.Fatalf("evidence_source: %v", res.Details["evidence_source"])
	}
}

func TestOutcomePresentNoEvidence(t *testing.T) {
	t.Parallel()

	g, err := New(Config{Type: "outcome", Mode: "present", MinResults: 1}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := g.Grade(context.Background(), outcomeInput(map[string]any{
		"note": "only scalar metadata, no count keys either",
	}))
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if res.Passed || res.Score != 0.0 {
		t.Fatalf("got passed=%v score=%v", res.Passed, res.Score)
	}
	if !strings.Contains(res.Reason, "no evidence found") {
		t.Fatalf("reason should state no evidence found: %q", res.Reason)
	}
}

func TestOutcomeNestedSearchFallback(t *testing.T) {
	t.Parallel()

	g, err := New(Config{Type: "outcome"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := g.Grade(context.Background(), outcomeInput(map[string]any{
		"payload": map[string]any{
			"inner": []any{map[string]any{"id": 1}},
		},
	}))
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if !res.Passed {
		t.Fatalf("expected nested row list to be found: %+v", res)
	}
	if src, _ := res.Details["evidence_source"].(string); !strings.HasPrefix(src, "search:") {
		t.Fatalf("evidence_source: %v", res.Details["evidence_source"])
	}
}

func TestOutcomeSearchFallbackDeterministic(t *testing.T) {
	t.Parallel()

	g, err := New(Config{Type: "outcome"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Two candidate row lists at the same depth: the lexicographically
	// first key must win on every run.
	for i := 0; i < 20; i++ {
		res, err := g.Grade(context.Background(), outcomeInput(map[string]any{
			"zeta":  []any{map[string]any{"id": 1}, map[string]any{"id": 2}},
			"alpha": []any{map[string]any{"id": 3}},
		}))
		if err != nil {
			t.Fatalf("Grade: %v", err)
		}
		if res.Details["evidence_source"] != "search:alpha" {
			t.Fatalf("evidence_source: %v", res.Details["evidence_source"])
		}
		if res.Details["result_count"] != 1 {
			t.Fatalf("result_count: %v", res.Details["result_count"])
		}
	}
}

func TestOutcomeSynthesizedFromMetadata(t *testing.T) {
	t.Parallel()

	g, err := New(Config{Type: "outcome", Mode: "count", MinResults: 2, MaxResults: 5}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := g.Grade(context.Background(), outcomeInput(map[string]any{
		"result_count": 3,
		"verified":     true,
	}))
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if !res.Passed {
		t.Fatalf("expected synthesized rows to satisfy count: %+v", res)
	}
	if res.Details["evidence_source"] != "metadata:result_count" {
		t.Fatalf("evidence_source: %v", res.Details["evidence_source"])
	}
}

func TestOutcomeAbsentMode(t *testing.T) {
	t.Parallel()

	g, err := New(Config{Type: "outcome", Mode: "absent"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := g.Grade(context.Background(), outcomeInput(nil))
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if !res.Passed {
		t.Fatalf("absent with no evidence should pass: %+v", res)
	}

	res, err = g.Grade(context.Background(), outcomeInput(map[string]any{
		"results": []any{map[string]any{"x": 1}},
	}))
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if res.Passed {
		t.Fatalf("absent with rows should fail: %+v", res)
	}
}

func TestOutcomeContainsMode(t *testing.T) {
	t.Parallel()

	g, err := New(Config{Type: "outcome", Mode: "contains", Patterns: []string{`P53`, `(?i)tumor`}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := g.Grade(context.Background(), outcomeInput(map[string]any{
		"rows": []any{map[string]any{"protein": "P53", "label": "Tumor suppressor"}},
	}))
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if !res.Passed {
		t.Fatalf("expected both patterns to match serialized rows: %+v", res)
	}
}

func TestOutcomeRequiredFieldVariants(t *testing.T) {
	t.Parallel()

	g, err := New(Config{Type: "outcome", RequiredFields: []string{"gene_name"}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Row uses the camelCase spelling.
	res, err := g.Grade(context.Background(), outcomeInput(map[string]any{
		"results": []any{map[string]any{"geneName": "TP53"}},
	}))
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if !res.Passed {
		t.Fatalf("field variant matching should accept camelCase: %+v", res)
	}
}

func TestOutcomeFieldPatterns(t *testing.T) {
	t.Parallel()

	g, err := New(Config{
		Type:          "outcome",
		FieldPatterns: map[string][]string{"id": {`^ex:`}},
		PatternMode:   "all",
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := g.Grade(context.Background(), outcomeInput(map[string]any{
		"results": []any{map[string]any{"id": "other:1"}},
	}))
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if res.Passed {
		t.Fatalf("field pattern should fail: %+v", res)
	}
	if res.Score >= 1.0 || res.Score <= 0.0 {
		t.Fatalf("partial score expected, got %v", res.Score)
	}
}
