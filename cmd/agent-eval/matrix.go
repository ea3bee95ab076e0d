package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/agent-eval/internal/cohort"
	"github.com/stellarlinkco/agent-eval/internal/harness"
	"github.com/stellarlinkco/agent-eval/internal/store"
	"github.com/stellarlinkco/agent-eval/internal/task"
)

type matrixOptions struct {
	cohorts     []string
	trials      int
	concurrency int
	minPassRate float64
	output      string
}

func newMatrixCmd(st *cliState) *cobra.Command {
	var opts matrixOptions

	cmd := &cobra.Command{
		Use:   "matrix [pattern]",
		Short: "Run an ablation matrix across capability cohorts",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadState(st)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}
			return runMatrix(cmd, st, &opts, pattern)
		},
	}

	cmd.Flags().StringSliceVar(&opts.cohorts, "cohorts", cohort.PresetNames(), "cohorts to run")
	cmd.Flags().IntVar(&opts.trials, "trials", -1, "trials per task (overrides task definitions)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", -1, "concurrent trials per task (overrides config)")
	cmd.Flags().Float64Var(&opts.minPassRate, "min-pass-rate", -1, "fail the run when any task's pass rate is below this (overrides config)")
	cmd.Flags().StringVar(&opts.output, "output", "", "output format: table|json")

	return cmd
}

func runMatrix(cmd *cobra.Command, st *cliState, opts *matrixOptions, pattern string) error {
	output, err := parseOutputFormat(opts.output)
	if err != nil {
		return fmt.Errorf("matrix: %w", err)
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
		return fmt.Errorf("matrix: min pass rate must be between 0 and 1 (got %v)", minPassRate)
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

	summary, err := cohort.NewRunner(evaluator).Run(ctx, opts.cohorts, tasks)
	if err != nil {
		return err
	}
	if len(summary.Cohorts) == 0 {
		return fmt.Errorf("matrix: no runnable cohorts in %v", opts.cohorts)
	}

	if err := persistMatrix(ctx, st, summary); err != nil {
		return err
	}

	switch output {
	case FormatTable:
		fmt.Fprint(cmd.OutOrStdout(), formatMatrixTable(summary))
	case FormatJSON:
		if err := printJSON(cmd, summary); err != nil {
			return err
		}
	}

	if minPassRate > 0 {
		for _, res := range summary.Results {
			if res.PassRate < minPassRate {
				fmt.Fprintf(cmd.OutOrStdout(), "Overall: %s (pass rate below %.2f)\n", coloredStatus(false), minPassRate)
				return errThresholdNotMet
			}
		}
	}
	return nil
}

func persistMatrix(ctx context.Context, st *cliState, summary *cohort.MatrixSummary) error {
	db, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.SaveMatrixRun(ctx, store.NewMatrixRunRecord(summary)); err != nil {
		return err
	}

	writer, err := store.NewResultsWriter(st.cfg.Storage.ResultsDir)
	if err != nil {
		return err
	}
	for _, res := range summary.Results {
		if err := db.SaveTaskRun(ctx, store.NewTaskRunRecord(res)); err != nil {
			return err
		}
		if _, err := writer.WriteEvalResult(res); err != nil {
			return err
		}
	}
	_, err = writer.WriteMatrixSummary(summary)
	return err
}
