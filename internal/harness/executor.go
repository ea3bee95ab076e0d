package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/stellarlinkco/agent-eval/internal/agent"
	"github.com/stellarlinkco/agent-eval/internal/grader"
	"github.com/stellarlinkco/agent-eval/internal/llm"
	"github.com/stellarlinkco/agent-eval/internal/task"
	"github.com/stellarlinkco/agent-eval/internal/transcript"
)

// boundGrader pairs a built grader with its result key. Duplicate kinds in
// one task get an index suffix so no verdict shadows another.
type boundGrader struct {
	key string
	g   grader.Grader
}

// TrialExecutor runs single trials of one task: invoke the backend,
// normalize the trajectory, grade, aggregate. Grader configuration errors
// surface at construction, never mid-trial.
type TrialExecutor struct {
	backend agent.Backend
	task    task.Task
	graders []boundGrader
	timeout time.Duration
}

func NewTrialExecutor(backend agent.Backend, t task.Task, judge llm.Provider, timeout time.Duration) (*TrialExecutor, error) {
	if backend == nil {
		return nil, fmt.Errorf("harness: task %s: no backend", t.ID)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}

	graders := make([]boundGrader, 0, len(t.Graders))
	counts := map[string]int{}
	for _, gc := range t.Graders {
		g, err := grader.New(gc, judge)
		if err != nil {
			return nil, fmt.Errorf("harness: task %s: %w", t.ID, err)
		}
		key := string(g.Kind())
		counts[key]++
		if n := counts[key]; n > 1 {
			key = fmt.Sprintf("%s#%d", key, n)
		}
		graders = append(graders, boundGrader{key: key, g: g})
	}

	return &TrialExecutor{backend: backend, task: t, graders: graders, timeout: timeout}, nil
}

// ExecuteTrial runs one trial. It never returns an error: every failure mode
// is folded into the TrialResult so one bad trial cannot sink the batch.
func (e *TrialExecutor) ExecuteTrial(ctx context.Context, trialNumber int, params map[string]any, taskContext map[string]any) *TrialResult {
	started := time.Now()
	result := &TrialResult{TrialNumber: trialNumber}
	defer func() {
		result.DurationMS = time.Since(started).Milliseconds()
	}()

	if taskContext == nil {
		taskContext = e.task.Context
	}
	req := &agent.Request{
		TaskID:        e.task.ID,
		Query:         e.task.Query,
		Context:       taskContext,
		MaxIterations: e.task.MaxIterations,
		Parameters:    params,
	}

	out, err := e.invoke(ctx, req)
	if err != nil {
		result.Error = fmt.Sprintf("task %s trial %d: %s", e.task.ID, trialNumber, err)
		return result
	}

	tr, err := transcript.Normalize(out.Trajectory)
	if err != nil {
		result.Error = fmt.Sprintf("task %s trial %d: normalize transcript: %s", e.task.ID, trialNumber, err)
		return result
	}

	result.Answer = out.Answer
	result.Converged = out.Converged
	result.Transcript = tr
	result.IterationCount = tr.Len()
	result.Artifacts = artifactsFromOutput(out)

	in := &grader.Input{
		Transcript:  tr,
		Answer:      out.Answer,
		TaskQuery:   e.task.Query,
		TaskContext: taskContext,
		Query:       result.Artifacts.QueryEmitted,
		Evidence:    result.Artifacts.Evidence,
		Iterations:  result.IterationCount,
		Converged:   out.Converged,
	}

	result.GraderResults = make(map[string]*grader.Result, len(e.graders))
	passed := true
	for _, bg := range e.graders {
		verdict := e.gradeOne(ctx, bg, in)
		result.GraderResults[bg.key] = verdict
		if !verdict.Passed {
			passed = false
		}
	}
	result.Passed = passed
	return result
}

// invoke calls the backend under the per-trial timeout, converting panics
// into errors.
func (e *TrialExecutor) invoke(ctx context.Context, req *agent.Request) (out *agent.RunOutput, err error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("backend panic: %v", r)
		}
	}()

	out, err = e.backend.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("backend returned no output")
	}
	return out, nil
}

// gradeOne applies a single grader with panic and error isolation: a broken
// grader yields a synthetic failed verdict instead of killing the trial.
func (e *TrialExecutor) gradeOne(ctx context.Context, bg boundGrader, in *grader.Input) (verdict *grader.Result) {
	defer func() {
		if r := recover(); r != nil {
			verdict = &grader.Result{
				Passed: false,
				Score:  0.0,
				Reason: fmt.Sprintf("grader error: panic: %v", r),
			}
		}
	}()

	verdict, err := bg.g.Grade(ctx, in)
	if err != nil {
		return &grader.Result{
			Passed: false,
			Score:  0.0,
			Reason: fmt.Sprintf("grader error: %s", err),
		}
	}
	if verdict == nil {
		return &grader.Result{
			Passed: false,
			Score:  0.0,
			Reason: "grader error: nil result",
		}
	}
	return verdict
}

func artifactsFromOutput(out *agent.RunOutput) *Artifacts {
	a := &Artifacts{Converged: out.Converged}
	if out.Artifacts == nil {
		return a
	}
	if q, ok := out.Artifacts["query_emitted"].(string); ok {
		a.QueryEmitted = q
	}
	if ev, ok := out.Artifacts["evidence"].(map[string]any); ok {
		a.Evidence = ev
	}
	if r, ok := out.Artifacts["reasoning"].(string); ok {
		a.Reasoning = r
	}
	return a
}
