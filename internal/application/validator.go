package application

import (
	"fmt"
	"regexp"

	"github.com/antzucaro/matchr"

	"jarvis/internal/domain"
)

var actionPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

const suggestionThreshold = 0.85

// Validator checks an Intent against a snapshot before anything is sent to
// the backend. It has no side effects.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns a ValidatedIntent, or a domain error with kind
// IncompleteIntent or UnknownEntity.
func (v *Validator) Validate(intent *domain.Intent, snapshot *domain.Snapshot) (*domain.ValidatedIntent, error) {
	if intent == nil || intent.EntityID == "" || intent.Action == "" {
		return nil, domain.NewError(domain.KindIncompleteIntent, "Incomplete intent: entity and action are required", nil)
	}

	entity, ok := snapshot.Lookup(intent.EntityID)
	if !ok {
		msg := fmt.Sprintf("Unknown or unsupported entity: %s", intent.EntityID)
		if s := suggest(intent.EntityID, snapshot); s != "" {
			msg += fmt.Sprintf(" (did you mean %s?)", s)
		}
		return nil, domain.NewError(domain.KindUnknownEntity, msg, nil)
	}

	if !actionPattern.MatchString(intent.Action) {
		return nil, domain.NewError(domain.KindIncompleteIntent, fmt.Sprintf("Incomplete intent: invalid action %q", intent.Action), nil)
	}

	validated := &domain.ValidatedIntent{Intent: *intent, Entity: entity}
	if validated.Parameters == nil {
		validated.Parameters = map[string]any{}
	}
	return validated, nil
}

// suggest returns the closest known entity id, or "" when nothing is close
// enough.
func suggest(id string, snapshot *domain.Snapshot) string {
	best, bestScore := "", 0.0
	for _, candidate := range snapshot.IDs() {
		score := matchr.JaroWinkler(id, candidate, false)
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	if bestScore < suggestionThreshold {
		return ""
	}
	return best
}
