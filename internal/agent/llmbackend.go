package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stellarlinkco/agent-eval/internal/llm"
	"github.com/stellarlinkco/agent-eval/internal/memory"
	"github.com/stellarlinkco/agent-eval/internal/transcript"
)

const finalAnswerMarker = "FINAL ANSWER:"

const explorerSystemPrompt = `You are a knowledge-graph exploration agent. You answer questions by
querying a SPARQL endpoint, one query per turn.

Each turn, either:
1. Emit exactly one SPARQL query inside a fenced block tagged sparql. You
   will receive the result rows next turn.
2. Or, when you have enough evidence, reply with a line starting with
   "FINAL ANSWER:" followed by your answer. Reference the entities you found
   by their identifiers.

Do not invent identifiers you have not seen in the schema, the affordance
inventory, or query results.`

// LLMBackend drives the exploration loop with a completion provider: the
// model emits a query, the backend executes it and feeds results back, until
// the model answers or the iteration cap is hit.
type LLMBackend struct {
	provider llm.Provider
	engine   QueryEngine
	memory   *memory.Store

	maxIterations int
	maxResultRows int
}

func NewLLMBackend(provider llm.Provider, engine QueryEngine, mem *memory.Store) *LLMBackend {
	return &LLMBackend{
		provider:      provider,
		engine:        engine,
		memory:        mem,
		maxIterations: 10,
		maxResultRows: 20,
	}
}

func (b *LLMBackend) Name() string { return "llm" }

func (b *LLMBackend) Run(ctx context.Context, req *Request) (*RunOutput, error) {
	if req == nil {
		return nil, fmt.Errorf("agent: llm: nil request")
	}
	if b.provider == nil {
		return nil, fmt.Errorf("agent: llm: no provider configured")
	}

	maxIter := req.MaxIterations
	if maxIter <= 0 {
		maxIter = b.maxIterations
	}

	endpoint, _ := req.Context["endpoint"].(string)
	memoryEnabled := paramBool(req.Parameters, "memory")
	reasoningEnabled := paramBool(req.Parameters, "reasoning")

	messages := []llm.Message{{Role: "user", Content: b.initialPrompt(req, memoryEnabled)}}

	out := &RunOutput{Artifacts: map[string]any{}}
	var lastQuery string
	var lastRows []map[string]any
	var lastText string

	for i := 1; i <= maxIter; i++ {
		resp, err := b.provider.Complete(ctx, &llm.Request{
			System:    explorerSystemPrompt,
			Messages:  messages,
			MaxTokens: 2048,
		})
		if err != nil {
			return nil, fmt.Errorf("agent: llm: task %s iteration %d: %w", req.TaskID, i, err)
		}
		text := strings.TrimSpace(llm.Text(resp))
		lastText = text

		if answer, ok := extractFinalAnswer(text); ok {
			out.Answer = answer
			out.Converged = true
			out.Trajectory = append(out.Trajectory, transcript.Iteration{Number: i, Response: text})
			break
		}

		query, ok := llm.ExtractFenced(text, "sparql")
		if !ok {
			// No query and no final-answer marker: treat the reply as the answer.
			out.Answer = text
			out.Converged = true
			out.Trajectory = append(out.Trajectory, transcript.Iteration{Number: i, Response: text})
			break
		}

		lastQuery = query
		exec := transcript.Execution{Query: query}
		var feedback string

		rows, err := b.execute(ctx, endpoint, query)
		if err != nil {
			exec.Stderr = err.Error()
			feedback = "Query failed: " + err.Error()
		} else {
			lastRows = rows
			exec.Output = renderRows(rows, b.maxResultRows)
			feedback = fmt.Sprintf("Results (%d rows):\n%s", len(rows), exec.Output)
		}

		out.Trajectory = append(out.Trajectory, transcript.Iteration{
			Number:     i,
			Response:   text,
			Executions: []transcript.Execution{exec},
		})

		messages = append(messages,
			llm.Message{Role: "assistant", Content: text},
			llm.Message{Role: "user", Content: feedback},
		)
	}

	if out.Answer == "" && !out.Converged {
		out.Answer = lastText
	}

	if lastQuery != "" {
		out.Artifacts["query_emitted"] = lastQuery
	}
	if lastRows != nil {
		out.Artifacts["evidence"] = map[string]any{
			"results":      rowsToAny(lastRows),
			"result_count": len(lastRows),
		}
	}
	out.Artifacts["converged"] = out.Converged
	if reasoningEnabled && lastText != "" {
		out.Artifacts["reasoning"] = lastText
	}

	if memoryEnabled && b.memory != nil && out.Converged && out.Answer != "" {
		b.memory.Append(req.TaskID, fmt.Sprintf("%s => %s", req.Query, out.Answer))
	}

	return out, nil
}

func (b *LLMBackend) execute(ctx context.Context, endpoint, query string) ([]map[string]any, error) {
	if b.engine == nil {
		return nil, fmt.Errorf("agent: llm: no query engine configured")
	}
	return b.engine.Execute(ctx, endpoint, query)
}

// initialPrompt assembles the task prompt from the cohort-gated context:
// only keys present in req.Context are rendered, so ablation cohorts control
// what the agent sees by stripping keys upstream.
func (b *LLMBackend) initialPrompt(req *Request, memoryEnabled bool) string {
	var sb strings.Builder
	sb.WriteString("Task: ")
	sb.WriteString(req.Query)
	sb.WriteString("\n")

	if schema := contextSection(req.Context["schema"]); schema != "" {
		sb.WriteString("\nSchema of the knowledge source:\n")
		sb.WriteString(schema)
		sb.WriteString("\n")
	}
	if aff := contextList(req.Context["affordances"]); len(aff) > 0 {
		sb.WriteString("\nAvailable identifiers (use only these):\n")
		for _, a := range aff {
			sb.WriteString("- ")
			sb.WriteString(a)
			sb.WriteString("\n")
		}
	}
	if examples := contextSection(req.Context["examples"]); examples != "" {
		sb.WriteString("\nWorked examples:\n")
		sb.WriteString(examples)
		sb.WriteString("\n")
	}
	if memoryEnabled && b.memory != nil {
		topK := paramInt(req.Parameters, "memory_top_k", 3)
		if recalled := memory.Render(b.memory.Recall(req.Query, topK)); recalled != "" {
			sb.WriteString("\n")
			sb.WriteString(recalled)
		}
	}
	return sb.String()
}

func extractFinalAnswer(text string) (string, bool) {
	idx := strings.Index(text, finalAnswerMarker)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(text[idx+len(finalAnswerMarker):]), true
}

func renderRows(rows []map[string]any, max int) string {
	if len(rows) == 0 {
		return "(no rows)"
	}
	shown := rows
	if len(shown) > max {
		shown = shown[:max]
	}
	data, err := json.MarshalIndent(shown, "", "  ")
	if err != nil {
		return fmt.Sprintf("(%d rows, unrenderable)", len(rows))
	}
	out := string(data)
	if len(rows) > max {
		out += fmt.Sprintf("\n... and %d more rows", len(rows)-max)
	}
	return out
}

func rowsToAny(rows []map[string]any) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

func contextSection(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case nil:
		return ""
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func contextList(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func paramBool(params map[string]any, key string) bool {
	v, ok := params[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func paramInt(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}
