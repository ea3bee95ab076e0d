// Package agent invokes the exploration agent under evaluation. Backends
// share one contract: a task request in, a final answer plus the raw
// trajectory and trial artifacts out.
package agent

import "context"

// Request is one trial's input to the agent.
type Request struct {
	TaskID        string         `json:"task_id"`
	Query         string         `json:"query"`
	Context       map[string]any `json:"context,omitempty"`
	MaxIterations int            `json:"max_iterations"`
	Parameters    map[string]any `json:"parameters,omitempty"`
}

// RunOutput is what a backend returns for one trial. Trajectory holds the
// raw iteration records before normalization; Artifacts carries the trial
// artifacts graders inspect (query_emitted, evidence, converged, reasoning).
type RunOutput struct {
	Answer     string         `json:"answer"`
	Trajectory []any          `json:"trajectory"`
	Converged  bool           `json:"converged"`
	Artifacts  map[string]any `json:"artifacts,omitempty"`
}

// Backend runs the agent for a single trial.
type Backend interface {
	Name() string
	Run(ctx context.Context, req *Request) (*RunOutput, error)
}
