package main

import (
	"bytes"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/agent-eval/internal/harness"
	"github.com/stellarlinkco/agent-eval/internal/stats"
	"github.com/stellarlinkco/agent-eval/internal/store"
)

func newAnalyzeCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "analyze <result.json>",
		Short: "Break down a persisted task-run result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			res, err := store.ReadEvalResult(args[0])
			if err != nil {
				return err
			}
			if format == FormatJSON {
				return printJSON(cmd, res)
			}

			fmt.Fprint(cmd.OutOrStdout(), formatEvalResultTable(res))

			// pass@k / pass^k across the full k range.
			passes := make([]bool, len(res.TrialResults))
			for i, trial := range res.TrialResults {
				passes[i] = trial.Passed
			}
			var buf bytes.Buffer
			tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "K\tPASS@K\tPASS^K")
			for k := 1; k <= len(passes); k++ {
				fmt.Fprintf(tw, "%d\t%.4f\t%.4f\n", k, stats.PassAtK(passes, k), stats.PassPowerK(passes, k))
			}
			_ = tw.Flush()
			fmt.Fprint(cmd.OutOrStdout(), buf.String())

			printFailureReasons(cmd, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "output format: table|json")
	return cmd
}

// printFailureReasons rolls up why trials failed: crash errors and failed
// grader verdicts, with occurrence counts.
func printFailureReasons(cmd *cobra.Command, res *harness.EvalResult) {
	counts := map[string]int{}
	for _, trial := range res.TrialResults {
		if trial.Error != "" {
			counts["crash: "+trial.Error]++
			continue
		}
		for key, verdict := range trial.GraderResults {
			if !verdict.Passed {
				counts[key+": "+verdict.Reason]++
			}
		}
	}
	if len(counts) == 0 {
		return
	}

	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool {
		if counts[reasons[i]] != counts[reasons[j]] {
			return counts[reasons[i]] > counts[reasons[j]]
		}
		return reasons[i] < reasons[j]
	})

	fmt.Fprintln(cmd.OutOrStdout(), "\nFailure reasons:")
	for _, r := range reasons {
		fmt.Fprintf(cmd.OutOrStdout(), "  %dx %s\n", counts[r], r)
	}
}
