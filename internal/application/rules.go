package application

import (
	"context"
	"strings"

	"jarvis/internal/domain"
)

// Rule maps an (action keyword, target keyword) pair to a service call.
type Rule struct {
	ActionKeyword string
	TargetKeyword string
	EntityID      string
	Service       string
	Message       string
}

// RuleResolver matches text against an ordered rule list. A rule matches
// when both of its keywords occur in the text, ignoring case; the first
// matching rule in declaration order wins.
type RuleResolver struct {
	rules []Rule
}

func NewRuleResolver(rules []Rule) *RuleResolver {
	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		r.ActionKeyword = strings.ToLower(strings.TrimSpace(r.ActionKeyword))
		r.TargetKeyword = strings.ToLower(strings.TrimSpace(r.TargetKeyword))
		if r.ActionKeyword == "" || r.TargetKeyword == "" {
			continue
		}
		normalized = append(normalized, r)
	}
	return &RuleResolver{rules: normalized}
}

func (r *RuleResolver) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

func (r *RuleResolver) Resolve(_ context.Context, text string, _ *domain.Snapshot) (*domain.Intent, error) {
	lowered := strings.ToLower(text)

	for _, rule := range r.rules {
		if strings.Contains(lowered, rule.ActionKeyword) && strings.Contains(lowered, rule.TargetKeyword) {
			return &domain.Intent{
				EntityID:            rule.EntityID,
				Action:              rule.Service,
				Parameters:          map[string]any{},
				ConfirmationMessage: rule.Message,
				RawText:             text,
			}, nil
		}
	}

	return nil, ErrNoMatch
}
