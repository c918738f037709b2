// Package pipeline implements an ordered, role-based analysis pipeline.
// Stages execute strictly in sequence, each receiving the accumulated
// outputs of its predecessors, and any stage failure aborts the run.
package pipeline

import (
	"fmt"

	"github.com/tickerflow/tickerflow/pkg/capability"
)

// Pipeline is an ordered sequence of stages. It is constructed once from
// static configuration and is stateless between runs.
type Pipeline struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description,omitempty"`
	DefaultAdapter string   `yaml:"default_adapter,omitempty"`
	DefaultModel   string   `yaml:"default_model,omitempty"`
	Stages         []*Stage `yaml:"stages"`
}

// Stage is one unit of role-bound work. Its capabilities are resolved by
// name against a registry at run time; its output is synthesized through
// an LLM adapter and checked against the declared output contract.
type Stage struct {
	Name           string            `yaml:"name"`
	Role           string            `yaml:"role"`
	Goal           string            `yaml:"goal"`
	Capabilities   []string          `yaml:"capabilities,omitempty"`
	Queries        map[string]string `yaml:"queries,omitempty"` // capability name -> input template
	OutputContract string            `yaml:"output_contract,omitempty"`
	Adapter        string            `yaml:"adapter,omitempty"`
	Model          string            `yaml:"model,omitempty"`
	Prompt         string            `yaml:"prompt,omitempty"` // overrides the default template
}

// Validate checks the pipeline configuration for errors.
func (p *Pipeline) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pipeline name is required")
	}
	if len(p.Stages) == 0 {
		return fmt.Errorf("pipeline must define at least one stage")
	}

	seen := make(map[string]struct{})
	for _, stage := range p.Stages {
		if stage.Name == "" {
			return fmt.Errorf("stage name is required")
		}
		if _, ok := seen[stage.Name]; ok {
			return fmt.Errorf("duplicate stage name: %s", stage.Name)
		}
		seen[stage.Name] = struct{}{}

		if stage.Role == "" {
			return fmt.Errorf("stage %s must declare a role", stage.Name)
		}
		if stage.Goal == "" && stage.Prompt == "" {
			return fmt.Errorf("stage %s must declare a goal or a prompt", stage.Name)
		}
		for _, capName := range stage.Capabilities {
			if capName == "" {
				return fmt.Errorf("stage %s has an empty capability binding", stage.Name)
			}
		}
		for capName := range stage.Queries {
			if !stage.bindsCapability(capName) {
				return fmt.Errorf("stage %s declares a query for unbound capability %s", stage.Name, capName)
			}
		}
	}

	return nil
}

// ResolveBindings verifies every stage capability binding exists in the
// registry. Missing bindings are configuration errors, caught before any
// stage runs.
func (p *Pipeline) ResolveBindings(registry *capability.Registry) error {
	for _, stage := range p.Stages {
		for _, capName := range stage.Capabilities {
			if _, ok := registry.Get(capName); !ok {
				return fmt.Errorf("stage %s binds unknown capability %s", stage.Name, capName)
			}
		}
	}
	return nil
}

func (s *Stage) bindsCapability(name string) bool {
	for _, capName := range s.Capabilities {
		if capName == name {
			return true
		}
	}
	return false
}
