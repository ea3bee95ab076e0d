// Package harness runs evaluation trials: it invokes the agent backend,
// normalizes what came back, applies the task's graders, and aggregates
// trial outcomes into per-task results.
package harness

import (
	"time"

	"github.com/stellarlinkco/agent-eval/internal/grader"
	"github.com/stellarlinkco/agent-eval/internal/transcript"
)

// Artifacts are the structured byproducts of one trial that graders inspect.
type Artifacts struct {
	QueryEmitted string         `json:"query_emitted,omitempty"`
	Evidence     map[string]any `json:"evidence,omitempty"`
	Converged    bool           `json:"converged"`
	Reasoning    string         `json:"reasoning,omitempty"`
}

// TrialResult is the outcome of one trial. A trial that crashed before
// grading has Error set, empty GraderResults, and Passed=false.
type TrialResult struct {
	TrialNumber    int                       `json:"trial_number"`
	Passed         bool                      `json:"passed"`
	Answer         string                    `json:"answer,omitempty"`
	IterationCount int                       `json:"iteration_count"`
	Converged      bool                      `json:"converged"`
	GraderResults  map[string]*grader.Result `json:"grader_results,omitempty"`
	Transcript     *transcript.Transcript    `json:"transcript,omitempty"`
	Artifacts      *Artifacts                `json:"artifacts,omitempty"`
	Error          string                    `json:"error,omitempty"`
	DurationMS     int64                     `json:"duration_ms"`
}

// EvalResult aggregates every trial of one task. PassAtK and PassPowerK are
// computed with k equal to the total trial count: the chance at least one
// trial passed, and the chance every trial passed.
type EvalResult struct {
	TaskID    string `json:"task_id"`
	TaskQuery string `json:"task_query"`
	Cohort    string `json:"cohort,omitempty"`

	TrialResults []TrialResult `json:"trial_results"`

	TotalTrials  int     `json:"total_trials"`
	PassedTrials int     `json:"passed_trials"`
	PassRate     float64 `json:"pass_rate"`
	PassAtK      float64 `json:"pass_at_k"`
	PassPowerK   float64 `json:"pass_power_k"`

	AvgIterations   float64 `json:"avg_iterations"`
	AvgGroundedness float64 `json:"avg_groundedness"`

	Timestamp time.Time `json:"timestamp"`
}
