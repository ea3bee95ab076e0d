package main

import (
	"bytes"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/agent-eval/internal/harness"
	"github.com/stellarlinkco/agent-eval/internal/store"
)

func newReportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "report <results-dir>",
		Short: "Summarize every persisted task run under a results directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return fmt.Errorf("report: %w", err)
			}

			files, err := store.FindResultFiles(args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("report: no results under %s", args[0])
			}

			var results []*harness.EvalResult
			for _, path := range files {
				res, err := store.ReadEvalResult(path)
				if err != nil {
					return err
				}
				results = append(results, res)
			}

			if format == FormatJSON {
				return printJSON(cmd, results)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatReportTable(results))
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "output format: table|json")
	return cmd
}

func formatReportTable(results []*harness.EvalResult) string {
	sort.Slice(results, func(i, j int) bool {
		if results[i].TaskID != results[j].TaskID {
			return results[i].TaskID < results[j].TaskID
		}
		if results[i].Cohort != results[j].Cohort {
			return results[i].Cohort < results[j].Cohort
		}
		return results[i].Timestamp.Before(results[j].Timestamp)
	})

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tCOHORT\tTRIALS\tPASSED\tPASS RATE\tPASS@K\tPASS^K\tAVG ITER\tWHEN")
	totalRate := 0.0
	for _, res := range results {
		cohortName := res.Cohort
		if cohortName == "" {
			cohortName = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.3f\t%.4f\t%.4f\t%.1f\t%s\n",
			res.TaskID, cohortName, res.TotalTrials, res.PassedTrials,
			res.PassRate, res.PassAtK, res.PassPowerK, res.AvgIterations,
			res.Timestamp.UTC().Format("2006-01-02 15:04"))
		totalRate += res.PassRate
	}
	_ = tw.Flush()
	fmt.Fprintf(&buf, "Runs: %d mean_pass_rate=%.3f\n", len(results), totalRate/float64(len(results)))
	return buf.String()
}
