package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/agent-eval/internal/cohort"
	"github.com/stellarlinkco/agent-eval/internal/harness"
)

type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
)

func parseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "json", "jsonl":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("invalid --output %q (expected table|json)", s)
	}
}

func coloredStatus(passed bool) string {
	if passed {
		return colorGreen + "PASS" + colorReset
	}
	return colorRed + "FAIL" + colorReset
}

func formatEvalResultTable(res *harness.EvalResult) string {
	if res == nil {
		return "Task: <nil> " + coloredStatus(false) + "\n\n"
	}

	var buf bytes.Buffer
	label := res.TaskID
	if res.Cohort != "" {
		label += " (cohort=" + res.Cohort + ")"
	}
	fmt.Fprintf(&buf, "Task: %s %s\n", label, coloredStatus(res.PassedTrials == res.TotalTrials))
	fmt.Fprintf(&buf, "Trials: %d passed=%d pass_rate=%.2f pass@k=%.4f pass^k=%.4f avg_iter=%.1f\n",
		res.TotalTrials, res.PassedTrials, res.PassRate, res.PassAtK, res.PassPowerK, res.AvgIterations)

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRIAL\tRESULT\tITER\tGRADERS\tERROR")
	for _, trial := range res.TrialResults {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n",
			trial.TrialNumber, coloredStatus(trial.Passed), trial.IterationCount,
			formatVerdicts(trial), trial.Error)
	}
	_ = tw.Flush()
	buf.WriteString("\n")
	return buf.String()
}

func formatVerdicts(trial harness.TrialResult) string {
	if len(trial.GraderResults) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(trial.GraderResults))
	for k := range trial.GraderResults {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := trial.GraderResults[k]
		mark := "+"
		if !v.Passed {
			mark = "-"
		}
		parts = append(parts, fmt.Sprintf("%s%s=%.2f", mark, k, v.Score))
	}
	return strings.Join(parts, " ")
}

func formatMatrixTable(summary *cohort.MatrixSummary) string {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COHORT\tTASKS\tMEAN PASS RATE\tMEAN PASS@K\tMEAN ITER")
	for _, name := range summary.Cohorts {
		agg := summary.ByCohort[name]
		fmt.Fprintf(tw, "%s\t%d\t%.3f\t%.3f\t%.1f\n",
			name, agg.Tasks, agg.MeanPassRate, agg.MeanPassAtK, agg.MeanIterations)
	}
	_ = tw.Flush()

	if len(summary.Errors) > 0 {
		names := make([]string, 0, len(summary.Errors))
		for name := range summary.Errors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&buf, "skipped %s: %s\n", name, summary.Errors[name])
		}
	}
	for _, imp := range summary.Improvements {
		fmt.Fprintf(&buf, "%s: %.3f -> %.3f (%+.3f absolute, %+.1f%% relative)\n",
			imp.Comparison, imp.BaselineRate, imp.FullRate, imp.AbsoluteImprovement, imp.RelativeImprovement*100)
	}
	return buf.String()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
