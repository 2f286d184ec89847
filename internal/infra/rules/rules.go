// Package rules loads keyword rules for the rule-based intent resolver.
package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"jarvis/config"
	"jarvis/internal/application"
)

type file struct {
	Rules []config.RuleConfig `yaml:"rules"`
}

// Load returns the rules from the optional rules file followed by the
// inline rules, preserving declaration order.
func Load(path string, inline []config.RuleConfig) ([]application.Rule, error) {
	var all []config.RuleConfig

	if path != "" {
		fromFile, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, fromFile...)
	}
	all = append(all, inline...)

	out := make([]application.Rule, 0, len(all))
	for _, r := range all {
		out = append(out, application.Rule{
			ActionKeyword: r.Action,
			TargetKeyword: r.Target,
			EntityID:      r.Entity,
			Service:       r.Service,
			Message:       r.Message,
		})
	}
	return out, nil
}

// LoadFile parses a YAML rules file with a top-level "rules" list.
func LoadFile(path string) ([]config.RuleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}

	for i, r := range f.Rules {
		if r.Action == "" || r.Target == "" || r.Entity == "" || r.Service == "" {
			return nil, fmt.Errorf("%s: rule %d: action, target, entity and service are required", path, i)
		}
	}
	return f.Rules, nil
}
