package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stellarlinkco/agent-eval/internal/agent"
	"github.com/stellarlinkco/agent-eval/internal/grader"
	"github.com/stellarlinkco/agent-eval/internal/llm"
	"github.com/stellarlinkco/agent-eval/internal/stats"
	"github.com/stellarlinkco/agent-eval/internal/task"
)

// TaskEvaluator runs every trial of a task and aggregates the outcomes.
type TaskEvaluator struct {
	backend     agent.Backend
	judge       llm.Provider
	concurrency int
	timeout     time.Duration
}

func NewTaskEvaluator(backend agent.Backend, judge llm.Provider, concurrency int, trialTimeout time.Duration) *TaskEvaluator {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &TaskEvaluator{
		backend:     backend,
		judge:       judge,
		concurrency: concurrency,
		timeout:     trialTimeout,
	}
}

// Evaluate runs t.Trials trials through a bounded worker pool. Trial results
// keep their index order regardless of completion order. params and
// taskContext let a cohort override what the agent sees; pass nil for the
// task's own context.
func (e *TaskEvaluator) Evaluate(ctx context.Context, t task.Task, params map[string]any, taskContext map[string]any) (*EvalResult, error) {
	executor, err := NewTrialExecutor(e.backend, t, e.judge, e.timeout)
	if err != nil {
		return nil, err
	}

	n := executor.task.Trials
	results := make([]TrialResult, n)

	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = *executor.ExecuteTrial(ctx, i+1, params, taskContext)
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("harness: task %s: %w", t.ID, err)
	}

	return aggregate(executor.task, results), nil
}

func aggregate(t task.Task, results []TrialResult) *EvalResult {
	n := len(results)
	passes := make([]bool, n)
	passed := 0
	totalIterations := 0

	groundednessSum := 0.0
	groundednessTrials := 0

	for i, tr := range results {
		passes[i] = tr.Passed
		if tr.Passed {
			passed++
		}
		totalIterations += tr.IterationCount
		for key, verdict := range tr.GraderResults {
			if kindOfKey(key) == grader.KindGroundedness {
				groundednessSum += verdict.Score
				groundednessTrials++
			}
		}
	}

	res := &EvalResult{
		TaskID:       t.ID,
		TaskQuery:    t.Query,
		TrialResults: results,
		TotalTrials:  n,
		PassedTrials: passed,
		PassAtK:      stats.PassAtK(passes, n),
		PassPowerK:   stats.PassPowerK(passes, n),
		Timestamp:    time.Now().UTC(),
	}
	if n > 0 {
		res.PassRate = float64(passed) / float64(n)
		res.AvgIterations = float64(totalIterations) / float64(n)
	}
	if groundednessTrials > 0 {
		res.AvgGroundedness = groundednessSum / float64(groundednessTrials)
	}
	return res
}

// kindOfKey strips the duplicate-index suffix from a grader result key.
func kindOfKey(key string) grader.Kind {
	for i := 0; i < len(key); i++ {
		if key[i] == '#' {
			return grader.Kind(key[:i])
		}
	}
	return grader.Kind(key)
}
