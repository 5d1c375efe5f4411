package commands

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Config describes a voxloop session as loaded from a YAML file.
type Config struct {
	Greeting     string `yaml:"greeting"`
	SystemPrompt string `yaml:"system_prompt"`

	MinSpeechFrames  int `yaml:"min_speech_frames"`
	MinSilenceFrames int `yaml:"min_silence_frames"`

	MaxHistoryTurns   int    `yaml:"max_history_turns"`
	HistoryTruncation string `yaml:"history_truncation"`

	FailureThreshold int `yaml:"failure_threshold"`

	Transcriber TranscriberConfig `yaml:"transcriber"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Synthesizer SynthesizerConfig `yaml:"synthesizer"`
	Audio       AudioConfig       `yaml:"audio"`
}

// TranscriberConfig selects and configures the speech-to-text provider.
type TranscriberConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

// GeneratorConfig selects and configures the response generator.
type GeneratorConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// SynthesizerConfig selects and configures the text-to-speech provider.
type SynthesizerConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Voice    string `yaml:"voice"`
}

// AudioConfig selects the audio device backend.
type AudioConfig struct {
	Driver     string `yaml:"driver"`
	BufferSize int    `yaml:"buffer_size"`
}

// LoadConfig reads and parses a session config file. Provider selection
// defaults are applied here; pipeline defaults are left to the session.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Transcriber.Provider == "" {
		cfg.Transcriber.Provider = "deepgram"
	}
	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = "openai"
	}
	if cfg.Synthesizer.Provider == "" {
		cfg.Synthesizer.Provider = "deepgram"
	}
	if cfg.Audio.Driver == "" {
		cfg.Audio.Driver = "miniaudio"
	}
	if cfg.Audio.BufferSize == 0 {
		cfg.Audio.BufferSize = 512
	}

	return &cfg, nil
}
