package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/agent-eval/internal/config"
)

const defaultTasksDir = "tasks"

type cliState struct {
	configPath string
	tasksDir   string
	cfg        *config.Config
}

var (
	osExit                 = os.Exit
	stderrWriter io.Writer = os.Stderr
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, errThresholdNotMet) {
			osExit(1)
			return
		}
		fmt.Fprintln(stderrWriter, err)
		osExit(1)
	}
}

func newRootCmd() *cobra.Command {
	st := &cliState{configPath: config.DefaultPath, tasksDir: defaultTasksDir}

	root := &cobra.Command{
		Use:           "agent-eval",
		Short:         "Evaluate exploration agents against task suites",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", st.configPath, "path to config file")
	root.PersistentFlags().StringVar(&st.tasksDir, "tasks", st.tasksDir, "directory of task definitions")

	root.AddCommand(newRunCmd(st))
	root.AddCommand(newListCmd(st))
	root.AddCommand(newMatrixCmd(st))
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newReportCmd())
	return root
}

// loadState loads configuration for commands that need it. Missing config
// file falls back to defaults so `agent-eval run` works in a bare checkout.
func loadState(st *cliState) error {
	cfg, err := config.Load(st.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			st.cfg = config.Default()
			return nil
		}
		return err
	}
	st.cfg = cfg
	return nil
}
