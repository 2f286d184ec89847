package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"jarvis/internal/domain"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	HomeAssistant HomeAssistantConfig `yaml:"home_assistant"`
	Entities      EntitiesConfig      `yaml:"entities"`
	Intent        IntentConfig        `yaml:"intent"`
	LLM           LLMConfig           `yaml:"llm"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Speakers      SpeakersConfig      `yaml:"speakers"`
	Listen        ListenConfig        `yaml:"listen"`
	Pushover      PushoverConfig      `yaml:"pushover"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Log           LogConfig           `yaml:"log"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

type HomeAssistantConfig struct {
	URL        string        `yaml:"url"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout"`
	TTSService string        `yaml:"tts_service"`
}

type EntitiesConfig struct {
	SnapshotPath string   `yaml:"snapshot_path"`
	StatesPath   string   `yaml:"states_path"`
	Include      []string `yaml:"include"`
	Watch        bool     `yaml:"watch"`
}

type IntentConfig struct {
	Strategy      string       `yaml:"strategy"`
	RulesFile     string       `yaml:"rules_file"`
	Rules         []RuleConfig `yaml:"rules"`
	FallbackReply string       `yaml:"fallback_reply"`
}

// RuleConfig is one keyword rule. Rules are matched in the order listed.
type RuleConfig struct {
	Action  string `yaml:"action"`
	Target  string `yaml:"target"`
	Entity  string `yaml:"entity"`
	Service string `yaml:"service"`
	Message string `yaml:"message"`
}

type LLMConfig struct {
	Provider string        `yaml:"provider"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

type TranscriptionConfig struct {
	// Order is the explicit provider preference list.
	Order   []string       `yaml:"order"`
	Timeout time.Duration  `yaml:"timeout"`
	Whisper WhisperConfig  `yaml:"whisper"`
	Cloud   CloudSTTConfig `yaml:"cloud_stt"`
	Offline OfflineConfig  `yaml:"offline_stt"`
	Breaker BreakerConfig  `yaml:"breaker"`
}

type WhisperConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	BaseURL  string `yaml:"base_url"`
}

type CloudSTTConfig struct {
	URL      string `yaml:"url"`
	APIKey   string `yaml:"api_key"`
	Language string `yaml:"language"`
}

type OfflineConfig struct {
	// ServerURL points at a whisper.cpp server; ModelPath is used instead
	// when the binary is built with the whispercpp tag.
	ServerURL string `yaml:"server_url"`
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
}

type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

type SpeakersConfig struct {
	Default string            `yaml:"default"`
	Devices map[string]string `yaml:"devices"`
	Rooms   map[string]string `yaml:"rooms"`
}

type ListenConfig struct {
	Source     string `yaml:"source"`
	Device     string `yaml:"device"`
	FileDir    string `yaml:"file_dir"`
	SampleRate int    `yaml:"sample_rate"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
	Metrics     bool   `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data, expanding ${VAR} references from the
// environment first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":5000"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 90 * time.Second
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 20 * 1024 * 1024
	}
	if c.HomeAssistant.URL == "" {
		c.HomeAssistant.URL = "http://homeassistant.local:8123"
	}
	if c.HomeAssistant.Timeout == 0 {
		c.HomeAssistant.Timeout = 10 * time.Second
	}
	if c.HomeAssistant.TTSService == "" {
		c.HomeAssistant.TTSService = "google_translate_say"
	}
	if c.Entities.SnapshotPath == "" {
		c.Entities.SnapshotPath = "entities_summary.json"
	}
	if c.Entities.StatesPath == "" {
		c.Entities.StatesPath = "entities.json"
	}
	if c.Intent.Strategy == "" {
		c.Intent.Strategy = "rules"
	}
	if c.Intent.FallbackReply == "" {
		c.Intent.FallbackReply = "Sorry, I don't understand that command."
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 30 * time.Second
	}
	if len(c.Transcription.Order) == 0 {
		for _, p := range domain.Providers() {
			c.Transcription.Order = append(c.Transcription.Order, string(p))
		}
	}
	if c.Transcription.Timeout == 0 {
		c.Transcription.Timeout = 30 * time.Second
	}
	if c.Transcription.Whisper.Model == "" {
		c.Transcription.Whisper.Model = "whisper-1"
	}
	if c.Transcription.Whisper.Language == "" {
		c.Transcription.Whisper.Language = "en"
	}
	if c.Transcription.Cloud.Language == "" {
		c.Transcription.Cloud.Language = c.Transcription.Whisper.Language
	}
	if c.Transcription.Offline.ServerURL == "" {
		c.Transcription.Offline.ServerURL = "http://127.0.0.1:8178"
	}
	if c.Transcription.Offline.Language == "" {
		c.Transcription.Offline.Language = c.Transcription.Whisper.Language
	}
	if c.Transcription.Breaker.MaxFailures == 0 {
		c.Transcription.Breaker.MaxFailures = 5
	}
	if c.Transcription.Breaker.OpenTimeout == 0 {
		c.Transcription.Breaker.OpenTimeout = 30 * time.Second
	}
	if c.Speakers.Default == "" {
		c.Speakers.Default = "media_player.kitchen"
	}
	if c.Listen.Source == "" {
		c.Listen.Source = "file"
	}
	if c.Listen.Device == "" {
		c.Listen.Device = "local"
	}
	if c.Listen.FileDir == "" {
		c.Listen.FileDir = "./audio"
	}
	if c.Listen.SampleRate == 0 {
		c.Listen.SampleRate = 16000
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "jarvis"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks settings that have no sensible default.
func (c *Config) Validate() error {
	if c.HomeAssistant.Token == "" {
		return fmt.Errorf("home_assistant.token is required")
	}

	switch c.Intent.Strategy {
	case "rules":
	case "model":
		switch c.LLM.Provider {
		case "openai", "anthropic", "gemini":
		default:
			return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
		}
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required for the model strategy")
		}
	default:
		return fmt.Errorf("unknown intent strategy %q", c.Intent.Strategy)
	}

	seen := make(map[string]bool, len(c.Transcription.Order))
	for _, name := range c.Transcription.Order {
		if !domain.Provider(name).Valid() {
			return fmt.Errorf("unknown transcription provider %q", name)
		}
		if seen[name] {
			return fmt.Errorf("transcription provider %q listed twice", name)
		}
		seen[name] = true
	}

	for i, r := range c.Intent.Rules {
		if r.Action == "" || r.Target == "" || r.Entity == "" || r.Service == "" {
			return fmt.Errorf("intent.rules[%d]: action, target, entity and service are required", i)
		}
	}

	return nil
}
