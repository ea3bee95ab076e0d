// Package task loads and validates evaluation task definitions.
package task

import (
	"fmt"
	"strings"

	"github.com/stellarlinkco/agent-eval/internal/grader"
)

const (
	defaultTrials        = 5
	defaultMaxIterations = 10
)

// Task is one evaluation unit: a query for the agent, the domain context it
// may be given, and the graders that judge each trial.
type Task struct {
	ID          string `yaml:"id" json:"id"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Query       string `yaml:"query" json:"query"`

	Trials        int `yaml:"trials,omitempty" json:"trials,omitempty"`
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`

	Context map[string]any  `yaml:"context,omitempty" json:"context,omitempty"`
	Graders []grader.Config `yaml:"graders" json:"graders"`
}

// Validate checks the task definition. Defaults are applied first so a
// validated task is also a runnable one.
func (t *Task) Validate() error {
	t.applyDefaults()

	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("task: missing id")
	}
	if strings.TrimSpace(t.Query) == "" {
		return fmt.Errorf("task %s: missing query", t.ID)
	}
	if t.Trials <= 0 {
		return fmt.Errorf("task %s: trials must be positive", t.ID)
	}
	for i, gc := range t.Graders {
		typ := strings.TrimSpace(gc.Type)
		if typ == "" {
			return fmt.Errorf("task %s: grader %d: missing type", t.ID, i)
		}
		if !grader.Known(typ) {
			return fmt.Errorf("task %s: grader %d: %w %q", t.ID, i, grader.ErrUnknownKind, typ)
		}
	}
	return nil
}

func (t *Task) applyDefaults() {
	if t.Trials == 0 {
		t.Trials = defaultTrials
	}
	if t.MaxIterations == 0 {
		t.MaxIterations = defaultMaxIterations
	}
}
