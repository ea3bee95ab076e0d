// Package transcript defines the canonical record of an agent trial and
// normalizes the two trajectory shapes backends produce into it.
package transcript

import (
	"fmt"
	"strings"
)

// Execution is one executed query or tool call and its captured output.
type Execution struct {
	Query  string `json:"query"`
	Output string `json:"output"`
	Stderr string `json:"stderr,omitempty"`
}

// Iteration is one agent step: the model's response text plus every
// execution it performed during the step.
type Iteration struct {
	Number     int         `json:"number"`
	Response   string      `json:"response,omitempty"`
	Executions []Execution `json:"executions,omitempty"`
}

// Transcript is the ordered, read-only evidence graders inspect.
type Transcript struct {
	Iterations []Iteration `json:"iterations"`
}

// Len returns the number of iterations.
func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Iterations)
}

// Queries returns every executed query in order.
func (t *Transcript) Queries() []string {
	if t == nil {
		return nil
	}
	var out []string
	for _, it := range t.Iterations {
		for _, ex := range it.Executions {
			if strings.TrimSpace(ex.Query) != "" {
				out = append(out, ex.Query)
			}
		}
	}
	return out
}

// Output concatenates every captured execution output.
func (t *Transcript) Output() string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	for _, it := range t.Iterations {
		for _, ex := range it.Executions {
			if ex.Output != "" {
				sb.WriteString(ex.Output)
				sb.WriteString("\n")
			}
			if ex.Stderr != "" {
				sb.WriteString(ex.Stderr)
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

// Normalize converts a backend trajectory into a Transcript. Backends emit
// either structured iteration records (maps with "iteration"/"response"/
// "executions" keys) or flat step maps ({"code"/"query", "output"}); both are
// accepted, and a flat step becomes a single-execution iteration.
func Normalize(trajectory []any) (*Transcript, error) {
	t := &Transcript{}
	for i, raw := range trajectory {
		switch v := raw.(type) {
		case nil:
			continue
		case Iteration:
			t.Iterations = append(t.Iterations, withNumber(v, len(t.Iterations)+1))
		case *Iteration:
			if v != nil {
				t.Iterations = append(t.Iterations, withNumber(*v, len(t.Iterations)+1))
			}
		case map[string]any:
			it, err := normalizeMap(v, len(t.Iterations)+1)
			if err != nil {
				return nil, fmt.Errorf("transcript: step %d: %w", i, err)
			}
			t.Iterations = append(t.Iterations, it)
		default:
			return nil, fmt.Errorf("transcript: step %d: unsupported shape %T", i, raw)
		}
	}
	return t, nil
}

func withNumber(it Iteration, fallback int) Iteration {
	if it.Number <= 0 {
		it.Number = fallback
	}
	return it
}

func normalizeMap(m map[string]any, fallbackNum int) (Iteration, error) {
	// Structured shape: iteration number, response text, execution sub-blocks.
	if _, ok := m["executions"]; ok {
		it := Iteration{Number: fallbackNum}
		if n, ok := asInt(m["iteration"]); ok && n > 0 {
			it.Number = n
		}
		it.Response, _ = m["response"].(string)

		rawExecs, ok := m["executions"].([]any)
		if !ok {
			return Iteration{}, fmt.Errorf("executions must be a list, got %T", m["executions"])
		}
		for j, rawExec := range rawExecs {
			em, ok := rawExec.(map[string]any)
			if !ok {
				return Iteration{}, fmt.Errorf("executions[%d]: expected map, got %T", j, rawExec)
			}
			it.Executions = append(it.Executions, executionFromMap(em))
		}
		return it, nil
	}

	// Flat step shape: {code|query, output}.
	it := Iteration{Number: fallbackNum}
	if n, ok := asInt(m["iteration"]); ok && n > 0 {
		it.Number = n
	}
	it.Response, _ = m["response"].(string)
	ex := executionFromMap(m)
	if ex.Query != "" || ex.Output != "" || ex.Stderr != "" {
		it.Executions = append(it.Executions, ex)
	}
	return it, nil
}

func executionFromMap(m map[string]any) Execution {
	ex := Execution{}
	if s, ok := m["query"].(string); ok {
		ex.Query = s
	} else if s, ok := m["code"].(string); ok {
		ex.Query = s
	}
	if s, ok := m["output"].(string); ok {
		ex.Output = s
	} else if s, ok := m["stdout"].(string); ok {
		ex.Output = s
	}
	if s, ok := m["stderr"].(string); ok {
		ex.Stderr = s
	}
	return ex
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	default:
		return 0, false
	}
}
