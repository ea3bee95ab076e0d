// Package config loads harness configuration from YAML with environment
// overrides for provider credentials.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Agent      AgentConfig      `yaml:"agent"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Storage    StorageConfig    `yaml:"storage"`
}

type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
	JudgeProvider   string                    `yaml:"judge_provider,omitempty"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// AgentConfig selects and parameterizes the exploration-agent backend.
type AgentConfig struct {
	Backend       string        `yaml:"backend,omitempty"` // "llm" or "http"
	Endpoint      string        `yaml:"endpoint,omitempty"`
	MaxIterations int           `yaml:"max_iterations,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
}

type EvaluationConfig struct {
	Trials      int           `yaml:"trials"`
	Concurrency int           `yaml:"concurrency,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"` // per trial
	MinPassRate float64       `yaml:"min_pass_rate,omitempty"`
}

type StorageConfig struct {
	Type       string `yaml:"type,omitempty"`        // "sqlite" or "memory"
	Path       string `yaml:"path,omitempty"`        // SQLite file path
	ResultsDir string `yaml:"results_dir,omitempty"` // JSON result dumps
}

func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]ProviderConfig)
	}
	if strings.TrimSpace(cfg.LLM.DefaultProvider) == "" {
		cfg.LLM.DefaultProvider = "claude"
	}
	if strings.TrimSpace(cfg.Agent.Backend) == "" {
		cfg.Agent.Backend = "llm"
	}
	if cfg.Agent.MaxIterations <= 0 {
		cfg.Agent.MaxIterations = 10
	}
	if cfg.Evaluation.Trials <= 0 {
		cfg.Evaluation.Trials = 5
	}
	if cfg.Evaluation.Concurrency <= 0 {
		cfg.Evaluation.Concurrency = 1
	}
	if strings.TrimSpace(cfg.Storage.ResultsDir) == "" {
		cfg.Storage.ResultsDir = "results"
	}

	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	} else if v := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		p := cfg.LLM.Providers["openai"]
		p.APIKey = v
		cfg.LLM.Providers["openai"] = p
	}
}
