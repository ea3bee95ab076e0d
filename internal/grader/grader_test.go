package grader

import (
	"context"
	"errors"
	"testing"

	"github.com/stellarlinkco/agent-eval/internal/transcript"
)

func trWith(execs ...transcript.Execution) *transcript.Transcript {
	t := &transcript.Transcript{}
	for i, ex := range execs {
		t.Iterations = append(t.Iterations, transcript.Iteration{
			Number:     i + 1,
			Executions: []transcript.Execution{ex},
		})
	}
	return t
}

func TestNewKnownKinds(t *testing.T) {
	t.Parallel()

	for _, kind := range Kinds() {
		if kind == KindJudge {
			continue // needs provider and criteria
		}
		g, err := New(Config{Type: string(kind)}, nil)
		if err != nil {
			t.Fatalf("New(%s): %v", kind, err)
		}
		if g.Kind() != kind {
			t.Fatalf("New(%s): Kind() = %s", kind, g.Kind())
		}
	}
}

func TestNewUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Type: "telepathy"}, nil)
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if Known("telepathy") {
		t.Fatalf("Known(telepathy) = true")
	}
	if !Known("groundedness") {
		t.Fatalf("Known(groundedness) = false")
	}
}

func TestNewRejectsBadPatterns(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Type: "regex", Patterns: []string{"("}}, nil); err == nil {
		t.Fatalf("expected compile error for bad regex pattern")
	}
	if _, err := New(Config{Type: "groundedness", RequiredPatterns: []string{"["}}, nil); err == nil {
		t.Fatalf("expected compile error for bad groundedness pattern")
	}
	if _, err := New(Config{Type: "outcome", Mode: "sideways"}, nil); err == nil {
		t.Fatalf("expected error for unknown outcome mode")
	}
}

func TestGradersNeverErrorOnEmptyInput(t *testing.T) {
	t.Parallel()

	in := &Input{Transcript: &transcript.Transcript{}}
	for _, kind := range Kinds() {
		if kind == KindJudge {
			continue
		}
		g, err := New(Config{Type: string(kind)}, nil)
		if err != nil {
			t.Fatalf("New(%s): %v", kind, err)
		}
		res, err := g.Grade(context.Background(), in)
		if err != nil {
			t.Fatalf("%s: Grade returned error on empty input: %v", kind, err)
		}
		if res == nil {
			t.Fatalf("%s: nil result", kind)
		}
	}
}
