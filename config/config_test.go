package config_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"jarvis/config"
)

func TestLoad_DefaultsAndEnvExpansion(t *testing.T) {
	t.Setenv("JARVIS_HA_TOKEN", "secret-token")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
home_assistant:
  token: ${JARVIS_HA_TOKEN}
speakers:
  devices:
    kitchen_satellite: media_player.kitchen_speaker
intent:
  rules:
    - action: turn off
      target: conservatory
      entity: switch.conservatory_lights_switch_1
      service: turn_off
      message: Turning off conservatory lights
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HomeAssistant.Token != "secret-token" {
		t.Errorf("token: got %q", cfg.HomeAssistant.Token)
	}
	if cfg.Server.Addr != ":5000" {
		t.Errorf("addr: got %q", cfg.Server.Addr)
	}
	if cfg.HomeAssistant.Timeout != 10*time.Second {
		t.Errorf("timeout: got %v", cfg.HomeAssistant.Timeout)
	}
	if cfg.Intent.Strategy != "rules" {
		t.Errorf("strategy: got %q", cfg.Intent.Strategy)
	}
	wantOrder := []string{"whisper", "cloud_stt", "offline_stt"}
	if !reflect.DeepEqual(cfg.Transcription.Order, wantOrder) {
		t.Errorf("order: got %v, want %v", cfg.Transcription.Order, wantOrder)
	}
	if cfg.Speakers.Default != "media_player.kitchen" {
		t.Errorf("default speaker: got %q", cfg.Speakers.Default)
	}
	if len(cfg.Intent.Rules) != 1 || cfg.Intent.Rules[0].Entity != "switch.conservatory_lights_switch_1" {
		t.Errorf("rules: got %+v", cfg.Intent.Rules)
	}
}

func TestParse_Durations(t *testing.T) {
	cfg, err := config.Parse([]byte(`
home_assistant:
  token: x
  timeout: 3s
transcription:
  timeout: 1m
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.HomeAssistant.Timeout != 3*time.Second {
		t.Errorf("ha timeout: got %v", cfg.HomeAssistant.Timeout)
	}
	if cfg.Transcription.Timeout != time.Minute {
		t.Errorf("stt timeout: got %v", cfg.Transcription.Timeout)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing token", `intent: {strategy: rules}`, "home_assistant.token"},
		{"bad strategy", "home_assistant: {token: x}\nintent: {strategy: magic}", "unknown intent strategy"},
		{"model without key", "home_assistant: {token: x}\nintent: {strategy: model}", "llm.api_key"},
		{"bad llm provider", "home_assistant: {token: x}\nintent: {strategy: model}\nllm: {provider: foo, api_key: k}", "unknown llm provider"},
		{"bad stt provider", "home_assistant: {token: x}\ntranscription: {order: [whisper, siri]}", "unknown transcription provider"},
		{"duplicate stt provider", "home_assistant: {token: x}\ntranscription: {order: [whisper, whisper]}", "listed twice"},
		{"incomplete rule", "home_assistant: {token: x}\nintent: {rules: [{action: on}]}", "intent.rules[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
