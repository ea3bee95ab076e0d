package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/agent-eval/internal/harness"
	"github.com/stellarlinkco/agent-eval/internal/store"
	"github.com/stellarlinkco/agent-eval/internal/task"
)

var errThresholdNotMet = errors.New("agent-eval: minimum pass rate not met")

type runOptions struct {
	trials      int
	concurrency int
	minPassRate float64
	output      string
}

func newRunCmd(st *cliState) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [pattern]",
		Short: "Run evaluations for tasks matching pattern",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadState(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}
			return runEvaluations(cmd, st, &opts, pattern)
		},
	}

	cmd.Flags().IntVar(&opts.trials, "trials", -1, "trials per task (overrides task definitions)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", -1, "concurrent trials per task (overrides config)")
	cmd.Flags().Float64Var(&opts.minPassRate, "min-pass-rate", -1, "fail the run when any task's pass rate is below this (overrides config)")
	cmd.Flags().StringVar(&opts.output, "output", "", "output format: table|json")

	return cmd
}

func runEvaluations(cmd *cobra.Command, st *cliState, opts *runOptions, pattern string) error {
	output, err := parseOutputFormat(opts.output)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	tasks, err := task.LoadFromDir(st.tasksDir, pattern)
	if err != nil {
		return err
	}
	if opts.trials > 0 {
		for i := range tasks {
			tasks[i].Trials = opts.trials
		}
	}

	concurrency := st.cfg.Evaluation.Concurrency
	if opts.concurrency > 0 {
		concurrency = opts.concurrency
	}
	minPassRate := st.cfg.Evaluation.MinPassRate
	if opts.minPassRate >= 0 {
		minPassRate = opts.minPassRate
	}
	if minPassRate > 1 {
		return fmt.Errorf("run: min pass rate must be between 0 and 1 (got %v)", minPassRate)
	}

	backend, err := buildBackend(st.cfg)
	if err != nil {
		return err
	}
	judge, err := judgeProviderFor(st.cfg, tasks)
	if err != nil {
		return err
	}
	evaluator := harness.NewTaskEvaluator(backend, judge, concurrency, st.cfg.Evaluation.Timeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// A task that cannot be evaluated (misconfigured grader, typically) is
	// reported and skipped; the remaining tasks still run.
	var results []*harness.EvalResult
	var failedTasks []string
	for _, t := range tasks {
		res, err := evaluator.Evaluate(ctx, t, nil, nil)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "task %s: %v\n", t.ID, err)
			failedTasks = append(failedTasks, t.ID)
			continue
		}
		results = append(results, res)
	}

	if err := persistResults(ctx, st, results); err != nil {
		return err
	}

	belowThreshold := false
	switch output {
	case FormatTable:
		for _, res := range results {
			fmt.Fprint(cmd.OutOrStdout(), formatEvalResultTable(res))
		}
	case FormatJSON:
		if err := printJSON(cmd, results); err != nil {
			return err
		}
	}
	for _, res := range results {
		if minPassRate > 0 && res.PassRate < minPassRate {
			belowThreshold = true
		}
	}
	if belowThreshold {
		fmt.Fprintf(cmd.OutOrStdout(), "Overall: %s (pass rate below %.2f)\n", coloredStatus(false), minPassRate)
		return errThresholdNotMet
	}
	if len(failedTasks) > 0 {
		return fmt.Errorf("run: %d of %d tasks could not be evaluated: %s",
			len(failedTasks), len(tasks), strings.Join(failedTasks, ", "))
	}
	if output == FormatTable {
		fmt.Fprintf(cmd.OutOrStdout(), "Overall: %s\n", coloredStatus(true))
	}
	return nil
}

func persistResults(ctx context.Context, st *cliState, results []*harness.EvalResult) error {
	db, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	writer, err := store.NewResultsWriter(st.cfg.Storage.ResultsDir)
	if err != nil {
		return err
	}

	for _, res := range results {
		if err := db.SaveTaskRun(ctx, store.NewTaskRunRecord(res)); err != nil {
			return err
		}
		if _, err := writer.WriteEvalResult(res); err != nil {
			return err
		}
	}
	return nil
}
