package grader

import (
	"context"
	"strings"
	"testing"

	"github.com/stellarlinkco/agent-eval/internal/transcript"
)

func TestStructuralMarkersLayoutInsensitive(t *testing.T) {
	t.Parallel()

	g, err := New(Config{
		Type:            "structural",
		RequiredMarkers: []string{"SELECT", "WHERE", "ORDER BY"},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := g.Grade(context.Background(), &Input{
		Transcript: &transcript.Transcript{},
		Query:      "select ?x\nwhere { ?x a ex:Protein }\norder\n   by ?x",
	})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if !res.Passed || res.Score != 1.0 {
		t.Fatalf("got passed=%v score=%v details=%v", res.Passed, res.Score, res.Details)
	}
}

func TestStructuralForbiddenMarker(t *testing.T) {
	t.Parallel()

	g, err := New(Config{
		Type:             "structural",
		RequiredMarkers:  []string{"SELECT"},
		ForbiddenMarkers: []string{"DELETE"},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := g.Grade(context.Background(), &Input{
		Transcript: &transcript.Transcript{},
		Query:      "SELECT ?x WHERE { ?x ?p ?o } ; DELETE WHERE { ?x ?p ?o }",
	})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if res.Passed || res.Score != 0.0 {
		t.Fatalf("got passed=%v score=%v", res.Passed, res.Score)
	}
	if !strings.Contains(res.Reason, "forbidden markers present") {
		t.Fatalf("reason: %q", res.Reason)
	}
}

func TestStructuralRequiredLiteral(t *testing.T) {
	t.Parallel()

	g, err := New(Config{
		Type:             "structural",
		RequiredLiterals: []string{"ex:Protein"},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := g.Grade(context.Background(), &Input{
		Transcript: &transcript.Transcript{},
		Query:      "SELECT ?p WHERE { ?p a ex:Gene }",
	})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if res.Passed || res.Score != 0.0 {
		t.Fatalf("missing literal: got passed=%v score=%v", res.Passed, res.Score)
	}
}

func TestStructuralOptionalBonus(t *testing.T) {
	t.Parallel()

	g, err := New(Config{
		Type:            "structural",
		RequiredMarkers: []string{"SELECT"},
		OptionalMarkers: []string{"DISTINCT", "LIMIT", "FILTER", "OPTIONAL", "UNION"},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := g.Grade(context.Background(), &Input{
		Transcript: &transcript.Transcript{},
		Query:      "SELECT DISTINCT ?x WHERE { ?x ?p ?o FILTER(?x > 1) OPTIONAL { ?x ?q ?r } } UNION {} LIMIT 5",
	})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if !res.Passed {
		t.Fatalf("expected pass: %+v", res)
	}
	// 5 optional markers matched, bonus capped at 0.2.
	if res.Score != 1.2 {
		t.Fatalf("score: got %v, want 1.2", res.Score)
	}
}

func TestStructuralNoQuery(t *testing.T) {
	t.Parallel()

	g, err := New(Config{Type: "structural", RequiredMarkers: []string{"SELECT"}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := g.Grade(context.Background(), &Input{Transcript: &transcript.Transcript{}})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if res.Passed || !strings.Contains(res.Reason, "no query emitted") {
		t.Fatalf("got passed=%v reason=%q", res.Passed, res.Reason)
	}
}

func TestStructuralFallsBackToTranscriptQuery(t *testing.T) {
	t.Parallel()

	g, err := New(Config{Type: "structural", RequiredMarkers: []string{"ASK"}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := g.Grade(context.Background(), &Input{
		Transcript: trWith(
			transcript.Execution{Query: "SELECT ?x WHERE { ?x ?p ?o }", Output: "x"},
			transcript.Execution{Query: "ASK { ex:P53 a ex:Protein }", Output: "true"},
		),
	})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if !res.Passed {
		t.Fatalf("last transcript query should be graded: %+v", res)
	}
}
