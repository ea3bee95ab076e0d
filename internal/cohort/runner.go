package cohort

import (
	"context"
	"log"
	"time"

	"github.com/stellarlinkco/agent-eval/internal/harness"
	"github.com/stellarlinkco/agent-eval/internal/task"
)

// Evaluator runs one task under one capability configuration.
type Evaluator interface {
	Evaluate(ctx context.Context, t task.Task, params map[string]any, taskContext map[string]any) (*harness.EvalResult, error)
}

// Aggregate is one cohort's rollup over every task it ran.
type Aggregate struct {
	Tasks          int     `json:"tasks"`
	MeanPassRate   float64 `json:"mean_pass_rate"`
	MeanPassAtK    float64 `json:"mean_pass_at_k"`
	MeanIterations float64 `json:"mean_iterations"`
}

// Improvement compares the baseline cohort against the full cohort.
type Improvement struct {
	Comparison          string  `json:"comparison"`
	BaselineRate        float64 `json:"baseline_rate"`
	FullRate            float64 `json:"full_rate"`
	AbsoluteImprovement float64 `json:"absolute_improvement"`
	RelativeImprovement float64 `json:"relative_improvement"`
}

// MatrixSummary is the output of one ablation run.
type MatrixSummary struct {
	Cohorts []string `json:"cohorts"`

	Results  []*harness.EvalResult         `json:"results"`
	ByCohort map[string]Aggregate          `json:"by_cohort"`
	ByTask   map[string]map[string]float64 `json:"by_task"` // task id -> cohort -> pass rate

	Improvements []Improvement     `json:"improvements,omitempty"`
	Errors       map[string]string `json:"errors,omitempty"` // cohort or task:<id> -> configuration error

	Timestamp time.Time `json:"timestamp"`
}

// Runner evaluates a task set across cohorts.
type Runner struct {
	evaluator Evaluator
}

func NewRunner(evaluator Evaluator) *Runner {
	return &Runner{evaluator: evaluator}
}

// Run evaluates every task under every named cohort. An unknown cohort name
// skips that cohort only; a task whose evaluation fails (a misconfigured
// grader, typically) is skipped for that cohort. Both are recorded in the
// summary's Errors. Only context cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, cohortNames []string, tasks []task.Task) (*MatrixSummary, error) {
	if len(cohortNames) == 0 {
		cohortNames = PresetNames()
	}

	summary := &MatrixSummary{
		ByCohort:  map[string]Aggregate{},
		ByTask:    map[string]map[string]float64{},
		Errors:    map[string]string{},
		Timestamp: time.Now().UTC(),
	}

	for _, name := range cohortNames {
		cfg, err := Preset(name)
		if err != nil {
			log.Printf("cohort: skipping %q: %s", name, err)
			summary.Errors[name] = err.Error()
			continue
		}
		summary.Cohorts = append(summary.Cohorts, name)

		params := cfg.Parameters()
		var agg Aggregate
		for _, t := range tasks {
			res, err := r.evaluator.Evaluate(ctx, t, params, cfg.FilterContext(t.Context))
			if err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				log.Printf("cohort: %s: skipping task %q: %s", name, t.ID, err)
				summary.Errors["task:"+t.ID] = err.Error()
				continue
			}
			res.Cohort = name
			summary.Results = append(summary.Results, res)

			agg.Tasks++
			agg.MeanPassRate += res.PassRate
			agg.MeanPassAtK += res.PassAtK
			agg.MeanIterations += res.AvgIterations

			byCohort := summary.ByTask[res.TaskID]
			if byCohort == nil {
				byCohort = map[string]float64{}
				summary.ByTask[res.TaskID] = byCohort
			}
			byCohort[name] = res.PassRate
		}
		if agg.Tasks > 0 {
			n := float64(agg.Tasks)
			agg.MeanPassRate /= n
			agg.MeanPassAtK /= n
			agg.MeanIterations /= n
		}
		summary.ByCohort[name] = agg
	}

	summary.Improvements = improvements(summary.ByCohort)
	return summary, nil
}

// improvements is only computed when both ends of the comparison actually ran.
func improvements(byCohort map[string]Aggregate) []Improvement {
	base, haveBase := byCohort["baseline"]
	full, haveFull := byCohort["full"]
	if !haveBase || !haveFull {
		return nil
	}
	imp := Improvement{
		Comparison:          "baseline->full",
		BaselineRate:        base.MeanPassRate,
		FullRate:            full.MeanPassRate,
		AbsoluteImprovement: full.MeanPassRate - base.MeanPassRate,
	}
	if base.MeanPassRate > 0 {
		imp.RelativeImprovement = (full.MeanPassRate - base.MeanPassRate) / base.MeanPassRate
	}
	return []Improvement{imp}
}
