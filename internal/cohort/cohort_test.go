package cohort

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stellarlinkco/agent-eval/internal/agent"
	"github.com/stellarlinkco/agent-eval/internal/grader"
	"github.com/stellarlinkco/agent-eval/internal/harness"
	"github.com/stellarlinkco/agent-eval/internal/task"
)

func TestPresetsStrictlyIncrease(t *testing.T) {
	t.Parallel()

	names := PresetNames()
	if len(names) != 6 || names[0] != "baseline" || names[5] != "full" {
		t.Fatalf("preset order: %v", names)
	}

	capCount := func(c AblationConfig) int {
		n := 0
		for _, on := range []bool{
			c.IncludeSchema, c.IncludeAffordances, c.IncludeExamples,
			c.EnableMemory, c.EnableReasoning,
		} {
			if on {
				n++
			}
		}
		return n
	}

	prev := -1
	var prevCfg AblationConfig
	for i, name := range names {
		cfg, err := Preset(name)
		if err != nil {
			t.Fatalf("Preset(%s): %v", name, err)
		}
		n := capCount(cfg)
		if n != prev+1 {
			t.Fatalf("%s: capability count %d, want %d", name, n, prev+1)
		}
		if i > 0 {
			// Superset check: nothing the previous cohort had may be dropped.
			if prevCfg.IncludeSchema && !cfg.IncludeSchema ||
				prevCfg.IncludeAffordances && !cfg.IncludeAffordances ||
				prevCfg.IncludeExamples && !cfg.IncludeExamples ||
				prevCfg.EnableMemory && !cfg.EnableMemory ||
				prevCfg.EnableReasoning && !cfg.EnableReasoning {
				t.Fatalf("%s drops a capability of its predecessor", name)
			}
		}
		prev, prevCfg = n, cfg
	}
}

func TestPresetUnknown(t *testing.T) {
	t.Parallel()

	if _, err := Preset("turbo"); !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("got %v", err)
	}
}

func TestFilterContext(t *testing.T) {
	t.Parallel()

	taskCtx := map[string]any{
		"endpoint":    "http://kg.local/sparql",
		"schema":      "...",
		"affordances": []string{"ex:encodes"},
		"examples":    "...",
		"extra":       42,
	}

	base, _ := Preset("baseline")
	got := base.FilterContext(taskCtx)
	if _, ok := got["schema"]; ok {
		t.Fatalf("baseline must not see schema: %v", got)
	}
	if got["endpoint"] != "http://kg.local/sparql" || got["extra"] != 42 {
		t.Fatalf("ungated keys must pass through: %v", got)
	}

	full, _ := Preset("full")
	got = full.FilterContext(taskCtx)
	if len(got) != len(taskCtx) {
		t.Fatalf("full cohort should see everything: %v", got)
	}

	params := full.Parameters()
	if params["memory"] != true || params["memory_top_k"] != 3 || params["reasoning"] != true {
		t.Fatalf("full parameters: %v", params)
	}
	if len(base.Parameters()) != 0 {
		t.Fatalf("baseline parameters: %v", base.Parameters())
	}
}

// scriptedEvaluator passes a task only when a given context key is present.
type scriptedEvaluator struct {
	needKey string
	calls   int
}

func (e *scriptedEvaluator) Evaluate(ctx context.Context, t task.Task, params map[string]any, taskContext map[string]any) (*harness.EvalResult, error) {
	e.calls++
	rate := 0.0
	if _, ok := taskContext[e.needKey]; ok {
		rate = 1.0
	}
	return &harness.EvalResult{
		TaskID:        t.ID,
		TaskQuery:     t.Query,
		TotalTrials:   2,
		PassedTrials:  int(rate * 2),
		PassRate:      rate,
		PassAtK:       rate,
		AvgIterations: 2,
		Timestamp:     time.Now().UTC(),
	}, nil
}

func matrixTasks() []task.Task {
	return []task.Task{
		{ID: "t1", Query: "q1", Context: map[string]any{"schema": "s", "endpoint": "e"}},
		{ID: "t2", Query: "q2", Context: map[string]any{"schema": "s"}},
	}
}

func TestRunnerMatrix(t *testing.T) {
	t.Parallel()

	ev := &scriptedEvaluator{needKey: "schema"}
	summary, err := NewRunner(ev).Run(context.Background(), []string{"baseline", "schema", "full"}, matrixTasks())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Cohorts) != 3 || len(summary.Results) != 6 {
		t.Fatalf("cohorts=%v results=%d", summary.Cohorts, len(summary.Results))
	}
	if summary.ByCohort["baseline"].MeanPassRate != 0.0 {
		t.Fatalf("baseline: %+v", summary.ByCohort["baseline"])
	}
	if summary.ByCohort["schema"].MeanPassRate != 1.0 {
		t.Fatalf("schema: %+v", summary.ByCohort["schema"])
	}
	if summary.ByTask["t1"]["baseline"] != 0.0 || summary.ByTask["t1"]["full"] != 1.0 {
		t.Fatalf("by task: %v", summary.ByTask)
	}

	if len(summary.Improvements) != 1 {
		t.Fatalf("improvements: %v", summary.Improvements)
	}
	imp := summary.Improvements[0]
	if imp.Comparison != "baseline->full" || imp.AbsoluteImprovement != 1.0 {
		t.Fatalf("improvement: %+v", imp)
	}
}

type stubBackend struct{}

func (stubBackend) Name() string { return "stub" }

func (stubBackend) Run(ctx context.Context, req *agent.Request) (*agent.RunOutput, error) {
	return &agent.RunOutput{Answer: "ex:TP53", Converged: true}, nil
}

func TestRunnerSkipsMisconfiguredTask(t *testing.T) {
	t.Parallel()

	ev := harness.NewTaskEvaluator(stubBackend{}, nil, 1, 0)
	tasks := []task.Task{
		{ID: "good", Query: "q", Trials: 1, Graders: []grader.Config{
			{Type: "contains", Required: []string{"ex:TP53"}},
		}},
		{ID: "bad", Query: "q", Trials: 1, Graders: []grader.Config{
			{Type: "regex", Patterns: []string{"["}},
		}},
	}

	summary, err := NewRunner(ev).Run(context.Background(), []string{"baseline", "full"}, tasks)
	if err != nil {
		t.Fatalf("a misconfigured task must not abort the matrix: %v", err)
	}
	// The good task ran under both cohorts.
	if len(summary.Results) != 2 {
		t.Fatalf("results: %d", len(summary.Results))
	}
	for _, res := range summary.Results {
		if res.TaskID != "good" || res.PassRate != 1.0 {
			t.Fatalf("unexpected result: %+v", res)
		}
	}
	if summary.ByCohort["baseline"].Tasks != 1 || summary.ByCohort["full"].Tasks != 1 {
		t.Fatalf("by cohort: %v", summary.ByCohort)
	}
	if msg := summary.Errors["task:bad"]; !strings.Contains(msg, "regex") {
		t.Fatalf("task error not recorded: %v", summary.Errors)
	}
	if len(summary.Improvements) != 1 {
		t.Fatalf("improvements should still be computed: %v", summary.Improvements)
	}
}

func TestRunnerAbortsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ev := harness.NewTaskEvaluator(stubBackend{}, nil, 1, 0)
	summary, err := NewRunner(ev).Run(ctx, []string{"baseline"}, []task.Task{
		{ID: "t1", Query: "q", Trials: 1},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
	if summary != nil {
		t.Fatalf("no summary on cancellation, got %+v", summary)
	}
}

func TestRunnerSkipsUnknownCohort(t *testing.T) {
	t.Parallel()

	ev := &scriptedEvaluator{needKey: "schema"}
	summary, err := NewRunner(ev).Run(context.Background(), []string{"baseline", "warp", "schema"}, matrixTasks())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Cohorts) != 2 {
		t.Fatalf("cohorts: %v", summary.Cohorts)
	}
	if summary.Errors["warp"] == "" {
		t.Fatalf("unknown cohort must be recorded: %v", summary.Errors)
	}
	// Baseline ran but full did not: no improvement record.
	if len(summary.Improvements) != 0 {
		t.Fatalf("improvements without full cohort: %v", summary.Improvements)
	}
}
