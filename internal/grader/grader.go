// Package grader scores exploration-agent trials. Each grader inspects one
// dimension of a trial (grounding, convergence, outcomes, query structure,
// ...) and returns an auditable verdict.
package grader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stellarlinkco/agent-eval/internal/llm"
	"github.com/stellarlinkco/agent-eval/internal/transcript"
)

// Kind identifies a grader variant. The set is closed: New is the only
// constructor and rejects anything else.
type Kind string

const (
	KindGroundedness Kind = "groundedness"
	KindConvergence  Kind = "convergence"
	KindOutcome      Kind = "outcome"
	KindAffordance   Kind = "affordance"
	KindStructural   Kind = "structural"
	KindContains     Kind = "contains"
	KindRegex        Kind = "regex"
	KindExploration  Kind = "exploration"
	KindJudge        Kind = "judge"
)

// ErrUnknownKind marks a grader configuration naming no registered kind.
var ErrUnknownKind = errors.New("grader: unknown kind")

// Kinds lists every registered grader kind.
func Kinds() []Kind {
	return []Kind{
		KindGroundedness, KindConvergence, KindOutcome, KindAffordance,
		KindStructural, KindContains, KindRegex, KindExploration, KindJudge,
	}
}

// Known reports whether typ names a registered grader kind.
func Known(typ string) bool {
	k := Kind(strings.TrimSpace(typ))
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Result is one grader's verdict for one trial.
type Result struct {
	Passed  bool           `json:"passed"`
	Score   float64        `json:"score"`
	Reason  string         `json:"reason"`
	Details map[string]any `json:"details,omitempty"`
}

// Input is the read-only evidence a grader judges: the normalized
// transcript, the final answer, the task's domain context, and the
// artifacts the backend reported for this trial.
type Input struct {
	Transcript  *transcript.Transcript
	Answer      string
	TaskQuery   string
	TaskContext map[string]any

	Query      string         // last emitted domain query
	Evidence   map[string]any // structured evidence blob
	Iterations int
	Converged  bool
}

// Grader scores one dimension of a trial. Implementations are stateless
// beyond their construction-time configuration and must return a failed
// Result (never an error) on missing or ambiguous evidence.
type Grader interface {
	Kind() Kind
	Grade(ctx context.Context, in *Input) (*Result, error)
}

// Config is the flat per-grader configuration loaded from a task file.
// Only the fields for the configured type are consulted.
type Config struct {
	Type string `yaml:"type" json:"type"`

	// groundedness
	MinScore         float64  `yaml:"min_score,omitempty" json:"min_score,omitempty"`
	RequiredPatterns []string `yaml:"required_patterns,omitempty" json:"required_patterns,omitempty"`

	// convergence, exploration
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`

	// outcome
	Mode           string              `yaml:"mode,omitempty" json:"mode,omitempty"` // present|absent|contains|count
	MinResults     int                 `yaml:"min_results,omitempty" json:"min_results,omitempty"`
	MaxResults     int                 `yaml:"max_results,omitempty" json:"max_results,omitempty"`
	RequiredFields []string            `yaml:"required_fields,omitempty" json:"required_fields,omitempty"`
	FieldPatterns  map[string][]string `yaml:"field_patterns,omitempty" json:"field_patterns,omitempty"`
	PatternMode    string              `yaml:"pattern_mode,omitempty" json:"pattern_mode,omitempty"` // all|any
	Patterns       []string            `yaml:"patterns,omitempty" json:"patterns,omitempty"`

	// affordance
	MinUtilization   float64 `yaml:"min_utilization,omitempty" json:"min_utilization,omitempty"`
	MaxHallucination float64 `yaml:"max_hallucination,omitempty" json:"max_hallucination,omitempty"`
	RequireGrounding bool    `yaml:"require_grounding,omitempty" json:"require_grounding,omitempty"`

	// structural
	RequiredMarkers  []string `yaml:"required_markers,omitempty" json:"required_markers,omitempty"`
	ForbiddenMarkers []string `yaml:"forbidden_markers,omitempty" json:"forbidden_markers,omitempty"`
	OptionalMarkers  []string `yaml:"optional_markers,omitempty" json:"optional_markers,omitempty"`
	RequiredLiterals []string `yaml:"required_literals,omitempty" json:"required_literals,omitempty"`

	// contains
	Required  []string `yaml:"required,omitempty" json:"required,omitempty"`
	Forbidden []string `yaml:"forbidden,omitempty" json:"forbidden,omitempty"`

	// exploration
	MinQueries    int     `yaml:"min_queries,omitempty" json:"min_queries,omitempty"`
	MaxRepeatRate float64 `yaml:"max_repeat_rate,omitempty" json:"max_repeat_rate,omitempty"`

	// judge
	Criteria       string   `yaml:"criteria,omitempty" json:"criteria,omitempty"`
	Rubric         []string `yaml:"rubric,omitempty" json:"rubric,omitempty"`
	ScoreScale     int      `yaml:"score_scale,omitempty" json:"score_scale,omitempty"`
	ScoreThreshold float64  `yaml:"score_threshold,omitempty" json:"score_threshold,omitempty"`
}

// New builds the grader for cfg.Type. judge may be nil unless cfg selects
// the judge grader. Pattern fields are compiled here so Grade never has to
// fail on configuration.
func New(cfg Config, judge llm.Provider) (Grader, error) {
	kind := Kind(strings.TrimSpace(cfg.Type))
	switch kind {
	case KindGroundedness:
		return newGroundednessGrader(cfg)
	case KindConvergence:
		return newConvergenceGrader(cfg), nil
	case KindOutcome:
		return newOutcomeGrader(cfg)
	case KindAffordance:
		return newAffordanceGrader(cfg), nil
	case KindStructural:
		return newStructuralGrader(cfg), nil
	case KindContains:
		return newContainsGrader(cfg), nil
	case KindRegex:
		return newRegexGrader(cfg)
	case KindExploration:
		return newExplorationGrader(cfg), nil
	case KindJudge:
		return newJudgeGrader(cfg, judge)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, cfg.Type)
	}
}

// fail is the shared "missing or ambiguous evidence" verdict.
func fail(reason string, details map[string]any) *Result {
	return &Result{
		Passed:  false,
		Score:   0.0,
		Reason:  reason,
		Details: details,
	}
}
