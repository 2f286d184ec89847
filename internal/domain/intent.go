package domain

// Intent is the normalized interpretation of a user command.
type Intent struct {
	EntityID            string
	Action              string
	Parameters          map[string]any
	ConfirmationMessage string
	RawText             string
}

// IsConversational reports whether the intent is a pure reply with no
// device action attached.
func (i *Intent) IsConversational() bool {
	return i.EntityID == "" && i.Action == ""
}

// ValidatedIntent is an Intent whose entity is present in the snapshot the
// validator checked it against. Only the validator constructs it.
type ValidatedIntent struct {
	Intent
	Entity Entity
}

// Provider identifies a speech-to-text backend.
type Provider string

const (
	ProviderWhisper    Provider = "whisper"
	ProviderCloudSTT   Provider = "cloud_stt"
	ProviderOfflineSTT Provider = "offline_stt"
)

// Providers lists the known providers in their default priority order.
func Providers() []Provider {
	return []Provider{ProviderWhisper, ProviderCloudSTT, ProviderOfflineSTT}
}

func (p Provider) Valid() bool {
	switch p {
	case ProviderWhisper, ProviderCloudSTT, ProviderOfflineSTT:
		return true
	}
	return false
}

type TranscriptionResult struct {
	Text     string
	Provider Provider
}

// CommandOutcome is the result of dispatching a validated intent.
type CommandOutcome struct {
	Success    bool
	Message    string
	HTTPStatus int
}
