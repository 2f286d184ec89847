package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"jarvis/internal/domain"
	"jarvis/internal/observe"
)

// SpeakerTable holds the device and room mappings used to pick a speaker.
type SpeakerTable struct {
	Default string
	Devices map[string]string
	Rooms   map[string]string
}

// ResponseRouter picks the speaker for a reply and voices it. Delivery
// failures are reported but never change the outcome of a request.
type ResponseRouter struct {
	defaultSpeaker string
	devices        map[string]string
	rooms          map[string]string
	speaker        Speaker
	notifier       Notifier
	metrics        *observe.Metrics
	logger         *slog.Logger
}

func NewResponseRouter(table SpeakerTable, speaker Speaker, notifier Notifier, metrics *observe.Metrics, logger *slog.Logger) *ResponseRouter {
	r := &ResponseRouter{
		defaultSpeaker: table.Default,
		devices:        make(map[string]string, len(table.Devices)),
		rooms:          make(map[string]string, len(table.Rooms)),
		speaker:        speaker,
		notifier:       notifier,
		metrics:        metrics,
		logger:         logger,
	}
	for k, v := range table.Devices {
		r.devices[normalizeLocation(k)] = v
	}
	for k, v := range table.Rooms {
		r.rooms[normalizeLocation(k)] = v
	}
	if r.notifier == nil {
		r.notifier = &NoopNotifier{}
	}
	return r
}

// Route resolves the speaker entity for an originating device. It tries an
// exact device match, then the device name with trailing qualifiers removed
// one at a time as a room name, then the default speaker.
func (r *ResponseRouter) Route(device string) string {
	key := normalizeLocation(device)
	if key == "" {
		return r.defaultSpeaker
	}

	if s, ok := r.devices[key]; ok {
		return s
	}

	tokens := strings.Split(key, "_")
	for n := len(tokens); n > 0; n-- {
		room := strings.Join(tokens[:n], "_")
		if s, ok := r.rooms[room]; ok {
			return s
		}
	}

	return r.defaultSpeaker
}

// Deliver voices message on the speaker routed for device. The returned
// error has kind DeliveryFailed and is informational only.
func (r *ResponseRouter) Deliver(ctx context.Context, message, device string) error {
	if strings.TrimSpace(message) == "" {
		return nil
	}

	target := r.Route(device)
	if target == "" {
		r.metrics.RecordDelivery(ctx, "skipped")
		r.logger.Warn("no speaker configured, reply not voiced", "device", device)
		return nil
	}

	if err := r.speaker.Speak(ctx, target, message); err != nil {
		r.metrics.RecordDelivery(ctx, "error")
		r.logger.Error("delivering reply", "speaker", target, "device", device, "error", err)
		if nErr := r.notifier.Notify(ctx, fmt.Sprintf("Could not speak on %s: %v", target, err)); nErr != nil {
			r.logger.Error("notifying delivery failure", "error", nErr)
		}
		return domain.NewError(domain.KindDeliveryFailed, "Failed to deliver reply", err)
	}

	r.metrics.RecordDelivery(ctx, "ok")
	r.logger.Info("reply delivered", "speaker", target, "device", device)
	return nil
}

// normalizeLocation lowercases s and folds separators to underscores.
func normalizeLocation(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}
