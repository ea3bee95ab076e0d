package grader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"text/template"

	"github.com/stellarlinkco/agent-eval/internal/llm"
)

const judgePromptTemplate = `You are an expert evaluator. Assess the agent's final answer against the given criteria.

## Evaluation Criteria
{{.Criteria}}

{{if .Rubric}}
## Scoring Dimensions
{{range .Rubric}}- {{.}}
{{end}}
{{end}}

## Task
{{.TaskQuery}}

## Agent Answer to Evaluate
{{.Answer}}

## Instructions
Rate the answer on a scale of 1-{{.ScoreScale}}.
- 1: Completely fails to meet criteria
- {{.ScoreScale}}: Perfectly meets all criteria

Output ONLY valid JSON in this exact format:
{"score": <integer 1-{{.ScoreScale}}>, "reasoning": "<brief explanation>"}`

var judgePromptTmpl = template.Must(template.New("judge").Parse(judgePromptTemplate))

type judgePromptData struct {
	Criteria   string
	Rubric     []string
	TaskQuery  string
	Answer     string
	ScoreScale int
}

type judgeOutput struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// JudgeGrader scores the final answer with an LLM judge. Unlike the other
// graders it fails OPEN: if the judge itself is unavailable the trial is not
// punished, and the verdict records that the pass was a policy decision.
type JudgeGrader struct {
	provider  llm.Provider
	criteria  string
	rubric    []string
	scale     int
	threshold float64
}

func newJudgeGrader(cfg Config, provider llm.Provider) (*JudgeGrader, error) {
	criteria := strings.TrimSpace(cfg.Criteria)
	if criteria == "" {
		return nil, errors.New("grader: judge: missing criteria")
	}
	if provider == nil {
		return nil, errors.New("grader: judge: no judge provider configured")
	}
	scale := cfg.ScoreScale
	if scale <= 1 {
		scale = 5
	}
	threshold := cfg.ScoreThreshold
	if threshold <= 0 {
		threshold = 0.6
	}
	if threshold > 1 {
		threshold = 1
	}
	return &JudgeGrader{
		provider:  provider,
		criteria:  criteria,
		rubric:    trimmedNonEmpty(cfg.Rubric),
		scale:     scale,
		threshold: threshold,
	}, nil
}

func (g *JudgeGrader) Kind() Kind { return KindJudge }

func (g *JudgeGrader) Grade(ctx context.Context, in *Input) (*Result, error) {
	if in == nil {
		return fail("no trial input", nil), nil
	}

	var promptBuf bytes.Buffer
	if err := judgePromptTmpl.Execute(&promptBuf, judgePromptData{
		Criteria:   g.criteria,
		Rubric:     g.rubric,
		TaskQuery:  in.TaskQuery,
		Answer:     in.Answer,
		ScoreScale: g.scale,
	}); err != nil {
		return fail("judge prompt render failed: "+err.Error(), nil), nil
	}

	resp, err := g.provider.Complete(ctx, &llm.Request{
		Messages:  []llm.Message{{Role: "user", Content: promptBuf.String()}},
		MaxTokens: 512,
	})
	if err != nil || resp == nil {
		return g.failOpen(err), nil
	}

	raw := strings.TrimSpace(llm.Text(resp))
	var out judgeOutput
	if err := llm.ParseJSON(raw, &out); err != nil {
		return fail("invalid judge output", map[string]any{
			"error":  err.Error(),
			"output": raw,
		}), nil
	}
	if out.Score < 1 || out.Score > g.scale {
		return fail("judge score out of range", map[string]any{
			"score":       out.Score,
			"score_scale": g.scale,
			"output":      raw,
		}), nil
	}

	score := normalizeLikert(out.Score, g.scale)
	reasoning := strings.TrimSpace(out.Reasoning)
	if reasoning == "" {
		reasoning = "no reasoning provided"
	}

	return &Result{
		Passed: score >= g.threshold,
		Score:  score,
		Reason: reasoning,
		Details: map[string]any{
			"raw_score":       out.Score,
			"score_scale":     g.scale,
			"score_threshold": g.threshold,
		},
	}, nil
}

// failOpen converts a judge-side failure into a pass with reduced
// confidence so an unreliable judge cannot zero out valid trials. The
// policy is recorded in the verdict for auditing.
func (g *JudgeGrader) failOpen(err error) *Result {
	msg := "no response"
	if err != nil {
		msg = err.Error()
	}
	log.Printf("grader: judge unavailable, failing open: %s", msg)
	return &Result{
		Passed: true,
		Score:  0.5,
		Reason: fmt.Sprintf("judge unavailable (fail-open): %s", msg),
		Details: map[string]any{
			"fail_open":   true,
			"judge_error": msg,
		},
	}
}

func normalizeLikert(score int, scale int) float64 {
	if scale <= 1 || score <= 1 {
		return 0
	}
	if score >= scale {
		return 1
	}
	return float64(score-1) / float64(scale-1)
}
