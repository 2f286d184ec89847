package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"jarvis/internal/domain"
)

const (
	modelSystemPrompt = "You are a helpful smart home assistant."
	modelUnsureReply  = "I'm not sure how to help with that."
)

// ModelResolver asks a language model to pick an entity and service for
// the text. The model is shown every known entity id and told to answer
// with a single JSON object.
type ModelResolver struct {
	model  ChatModel
	logger *slog.Logger
}

func NewModelResolver(model ChatModel, logger *slog.Logger) *ModelResolver {
	return &ModelResolver{model: model, logger: logger}
}

type modelReply struct {
	Entity   string          `json:"entity"`
	Intent   string          `json:"intent"`
	Data     json.RawMessage `json:"data"`
	Response string          `json:"response"`
}

func (r *ModelResolver) Resolve(ctx context.Context, text string, snapshot *domain.Snapshot) (*domain.Intent, error) {
	reply, err := r.model.Complete(ctx, modelSystemPrompt, BuildModelPrompt(text, snapshot))
	if err != nil {
		return nil, domain.NewError(domain.KindBackendCallFailed, "Failed to get response from language model", err)
	}

	r.logger.Debug("model reply received", "reply", reply)

	return ParseModelReply(text, reply), nil
}

// BuildModelPrompt renders the instruction sent with every request.
func BuildModelPrompt(text string, snapshot *domain.Snapshot) string {
	var sb strings.Builder

	sb.WriteString("You are Jarvis, a smart home assistant. Here are the user's current Home Assistant devices:\n")
	for _, e := range snapshot.Entities() {
		name := e.FriendlyName
		if name == "" {
			name = e.ID
		}
		fmt.Fprintf(&sb, "%s (%s)\n", name, e.ID)
	}
	sb.WriteString("\nValid entity ids: ")
	sb.WriteString(strings.Join(snapshot.IDs(), ", "))
	fmt.Fprintf(&sb, "\n\nThe user said: %q\n\n", text)
	sb.WriteString(`Only use one of the valid entity ids above. Respond only with JSON like this:
{
  "intent": "turn_on",
  "entity": "light.kitchen_ceiling",
  "data": {},
  "response": "Turning on the kitchen light."
}

If unsure, only reply with:
{"response": "` + modelUnsureReply + `"}
`)
	return sb.String()
}

// ParseModelReply converts raw model output into an Intent. Output without
// a usable JSON object becomes a conversational reply carrying the raw
// text. Entity ids are passed through unchecked.
func ParseModelReply(text, reply string) *domain.Intent {
	conversational := func(msg string) *domain.Intent {
		msg = strings.TrimSpace(msg)
		if msg == "" {
			msg = modelUnsureReply
		}
		return &domain.Intent{ConfirmationMessage: msg, RawText: text}
	}

	obj, ok := ExtractJSONObject(reply)
	if !ok {
		return conversational(reply)
	}

	var parsed modelReply
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return conversational(reply)
	}

	intent := &domain.Intent{
		EntityID:            strings.TrimSpace(parsed.Entity),
		Action:              normalizeAction(strings.TrimSpace(parsed.Intent), parsed.Entity),
		Parameters:          objectParams(parsed.Data),
		ConfirmationMessage: strings.TrimSpace(parsed.Response),
		RawText:             text,
	}
	if intent.IsConversational() && intent.ConfirmationMessage == "" {
		return conversational(reply)
	}
	return intent
}

// normalizeAction strips a "<domain>." prefix the model sometimes puts in
// front of the service name.
func normalizeAction(action, entityID string) string {
	d := domain.DomainOf(strings.TrimSpace(entityID))
	if d != "" {
		action = strings.TrimPrefix(action, d+".")
	}
	return action
}

// objectParams decodes data when it is a JSON object. Anything else, such
// as [] or "", yields no parameters.
func objectParams(data json.RawMessage) map[string]any {
	params := map[string]any{}
	if len(data) == 0 {
		return params
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return params
	}
	return obj
}
