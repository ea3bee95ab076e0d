package main

import (
	"fmt"
	"strings"

	"github.com/stellarlinkco/agent-eval/internal/agent"
	"github.com/stellarlinkco/agent-eval/internal/config"
	"github.com/stellarlinkco/agent-eval/internal/llm"
	"github.com/stellarlinkco/agent-eval/internal/memory"
	"github.com/stellarlinkco/agent-eval/internal/task"
)

// buildBackend wires the configured agent backend. The LLM backend shares
// one memory store across every trial of the invocation.
func buildBackend(cfg *config.Config) (agent.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Agent.Backend)) {
	case "", "llm":
		provider, err := llm.DefaultProviderFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		engine := agent.NewSPARQLClient(cfg.Agent.Timeout)
		return agent.NewLLMBackend(provider, engine, memory.NewStore()), nil
	case "http":
		return agent.NewHTTPBackend(cfg.Agent.Endpoint, cfg.Agent.Timeout)
	default:
		return nil, fmt.Errorf("agent-eval: unknown agent backend %q", cfg.Agent.Backend)
	}
}

// judgeProviderFor resolves the judge provider only when a task actually
// configures a judge grader, so judge-less runs need no judge credentials.
func judgeProviderFor(cfg *config.Config, tasks []task.Task) (llm.Provider, error) {
	needed := false
	for _, t := range tasks {
		for _, gc := range t.Graders {
			if strings.TrimSpace(gc.Type) == "judge" {
				needed = true
			}
		}
	}
	if !needed {
		return nil, nil
	}
	judge, err := llm.JudgeProviderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("agent-eval: judge grader configured: %w", err)
	}
	return judge, nil
}
