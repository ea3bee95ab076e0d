package main

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/agent-eval/internal/task"
)

func newListCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "list [pattern]",
		Short: "List task definitions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}
			tasks, err := task.LoadFromDir(st.tasksDir, pattern)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TASK\tTRIALS\tMAX ITER\tGRADERS")
			for _, t := range tasks {
				kinds := make([]string, 0, len(t.Graders))
				for _, gc := range t.Graders {
					kinds = append(kinds, gc.Type)
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", t.ID, t.Trials, t.MaxIterations, strings.Join(kinds, ","))
			}
			_ = tw.Flush()
			fmt.Fprint(cmd.OutOrStdout(), buf.String())
			return nil
		},
	}
}
