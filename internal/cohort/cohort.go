// Package cohort runs ablation matrices: the same task set evaluated under
// capability cohorts that strictly grow from a bare baseline to the full
// agent configuration.
package cohort

import (
	"errors"
	"fmt"
)

// AblationConfig names one cohort and the capabilities its agent gets.
type AblationConfig struct {
	Name               string `json:"name"`
	IncludeSchema      bool   `json:"include_schema"`
	IncludeAffordances bool   `json:"include_affordances"`
	IncludeExamples    bool   `json:"include_examples"`
	EnableMemory       bool   `json:"enable_memory"`
	MemoryTopK         int    `json:"memory_top_k,omitempty"`
	EnableReasoning    bool   `json:"enable_reasoning"`
}

// ErrUnknownPreset marks a cohort name with no registered preset.
var ErrUnknownPreset = errors.New("cohort: unknown preset")

// Preset order matters: each cohort is a strict superset of the previous one.
var presetOrder = []string{"baseline", "schema", "affordances", "examples", "memory", "full"}

var presets = map[string]AblationConfig{
	"baseline": {Name: "baseline"},
	"schema":   {Name: "schema", IncludeSchema: true},
	"affordances": {
		Name:          "affordances",
		IncludeSchema: true, IncludeAffordances: true,
	},
	"examples": {
		Name:          "examples",
		IncludeSchema: true, IncludeAffordances: true, IncludeExamples: true,
	},
	"memory": {
		Name:          "memory",
		IncludeSchema: true, IncludeAffordances: true, IncludeExamples: true,
		EnableMemory: true, MemoryTopK: 3,
	},
	"full": {
		Name:          "full",
		IncludeSchema: true, IncludeAffordances: true, IncludeExamples: true,
		EnableMemory: true, MemoryTopK: 3, EnableReasoning: true,
	},
}

// Preset resolves a cohort name.
func Preset(name string) (AblationConfig, error) {
	cfg, ok := presets[name]
	if !ok {
		return AblationConfig{}, fmt.Errorf("%w %q", ErrUnknownPreset, name)
	}
	return cfg, nil
}

// PresetNames lists the presets in capability order.
func PresetNames() []string {
	out := make([]string, len(presetOrder))
	copy(out, presetOrder)
	return out
}

// Parameters renders the cohort's runtime capabilities for the agent request.
func (c AblationConfig) Parameters() map[string]any {
	params := map[string]any{}
	if c.EnableMemory {
		params["memory"] = true
		params["memory_top_k"] = c.MemoryTopK
	}
	if c.EnableReasoning {
		params["reasoning"] = true
	}
	return params
}

// FilterContext strips the capability-gated keys the cohort does not grant.
// Everything else (endpoint and arbitrary extras) passes through untouched.
func (c AblationConfig) FilterContext(taskContext map[string]any) map[string]any {
	out := make(map[string]any, len(taskContext))
	for k, v := range taskContext {
		switch k {
		case "schema":
			if !c.IncludeSchema {
				continue
			}
		case "affordances":
			if !c.IncludeAffordances {
				continue
			}
		case "examples":
			if !c.IncludeExamples {
				continue
			}
		}
		out[k] = v
	}
	return out
}
