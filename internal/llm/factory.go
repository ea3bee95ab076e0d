package llm

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/stellarlinkco/agent-eval/internal/config"
)

// Registry stores providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	if r == nil {
		panic("llm: register on nil registry")
	}
	if p == nil {
		panic("llm: register nil provider")
	}
	name := strings.TrimSpace(p.Name())
	if name == "" {
		panic("llm: provider has empty name")
	}
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[name] = p
}

// Get returns a named provider if present.
func (r *Registry) Get(name string) (Provider, bool) {
	if r == nil || r.providers == nil {
		return nil, false
	}
	p, ok := r.providers[strings.TrimSpace(name)]
	return p, ok
}

// NewRegistryFromConfig builds providers for every configured entry.
func NewRegistryFromConfig(cfg *config.Config) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}

	r := NewRegistry()
	for name, pcfg := range cfg.LLM.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "":
			continue
		case "claude", "anthropic":
			r.Register(NewClaudeProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model))
		case "openai":
			r.Register(NewOpenAIProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model))
		default:
			return nil, fmt.Errorf("llm: unknown provider %q", name)
		}
	}
	return r, nil
}

// DefaultProviderFromConfig resolves the configured default provider.
func DefaultProviderFromConfig(cfg *config.Config) (Provider, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}
	reg, err := NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return providerByName(reg, cfg.LLM.DefaultProvider, "claude")
}

// JudgeProviderFromConfig resolves the provider the judge grader uses,
// falling back to the default provider when none is configured.
func JudgeProviderFromConfig(cfg *config.Config) (Provider, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}
	if strings.TrimSpace(cfg.LLM.JudgeProvider) == "" {
		return DefaultProviderFromConfig(cfg)
	}
	reg, err := NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return providerByName(reg, cfg.LLM.JudgeProvider, "")
}

func providerByName(reg *Registry, name, fallback string) (Provider, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	if p, ok := reg.Get(name); ok {
		return p, nil
	}
	if len(reg.providers) == 1 {
		for _, p := range reg.providers {
			return p, nil
		}
	}

	available := make([]string, 0, len(reg.providers))
	for k := range reg.providers {
		available = append(available, k)
	}
	sort.Strings(available)
	return nil, fmt.Errorf("llm: provider %q not configured (available: %s)", name, strings.Join(available, ", "))
}
